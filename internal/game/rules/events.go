package rules

import (
	"sync"
	"time"
)

// EventType discriminates notification events sent to players.
type EventType string

const (
	EventRoundStart       EventType = "round_start"
	EventDealCard         EventType = "deal_card"
	EventNextTurn         EventType = "next_turn"
	EventDrawCard         EventType = "draw_card"
	EventCardPlayed       EventType = "card_played"
	EventCardEffect       EventType = "card_effect"
	EventBlocked          EventType = "blocked_by_protection"
	EventNoTarget         EventType = "no_target"
	EventPlayerEliminated EventType = "player_eliminated"
	EventPrivateInfo      EventType = "private_info"
	EventRoundEnd         EventType = "round_end"
	EventMatchEnd         EventType = "match_end"
	EventError            EventType = "error"

	// Table-level events.
	EventPlayerJoined EventType = "player_joined"
	EventPlayerLeft   EventType = "player_left"
	EventMatchStart   EventType = "match_start"
	EventTurnTimeout  EventType = "turn_timeout"
)

// Event is a structured notification. Only fields relevant to Type are set.
type Event struct {
	Type      EventType      `json:"type"`
	TableID   string         `json:"table_id,omitempty"`
	RoundID   string         `json:"round_id,omitempty"`
	ActorID   string         `json:"actor_id,omitempty"`
	TargetID  string         `json:"target_id,omitempty"`
	PlayerID  string         `json:"player_id,omitempty"`
	Card      string         `json:"card,omitempty"`
	Rank      *int           `json:"rank,omitempty"`
	Guess     *int           `json:"guess,omitempty"`
	Hand      []string       `json:"hand,omitempty"`
	Winners   []string       `json:"winners,omitempty"`
	Scores    map[string]int `json:"scores,omitempty"`
	Remaining *int           `json:"deck_remaining,omitempty"`
	Aborted   bool           `json:"aborted,omitempty"`
	Message   string         `json:"message,omitempty"`
	Timestamp time.Time      `json:"ts"`
}

// NewEvent creates an event of the given type stamped with the current time.
func NewEvent(eventType EventType, message string) Event {
	return Event{
		Type:      eventType,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// IntPtr is a helper for the optional numeric fields.
func IntPtr(v int) *int {
	return &v
}

// Sink delivers events to players. The engine treats delivery errors as
// non-fatal and never retries.
type Sink interface {
	SendToPlayer(playerID string, event Event) error
	Broadcast(event Event, excludeIDs ...string) error
}

// Delivery records one event handed to the sink, for observers.
type Delivery struct {
	Event     Event
	Recipient string   // set for private events
	Excluded  []string // set for broadcasts
}

// Private reports whether the delivery targeted a single player.
func (d Delivery) Private() bool {
	return d.Recipient != ""
}

// Listener defines a callback that reacts to deliveries.
type Listener func(Delivery)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Delivery)
}

// EventBus provides a synchronous publish/subscribe implementation with type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all deliveries and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Delivery)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers to all registered listeners synchronously.
func (bus *EventBus) Publish(d Delivery) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(d)
	}
	for _, listener := range bus.typedListeners[d.Event.Type] {
		listener.Callback(d)
	}
}
