package server

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/letterbox/letterbox-server/internal/game/rules"
	"go.uber.org/zap"
)

// ErrPlayerNotConnected is returned when no live connection exists for a player.
var ErrPlayerNotConnected = errors.New("player not connected")

// Registry tracks live connections by player ID.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Register records c under its player ID, replacing any earlier connection.
func (r *Registry) Register(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.PlayerID()] = c
}

// Unregister removes c if it is still the connection registered for its player.
func (r *Registry) Unregister(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[c.PlayerID()] == c {
		delete(r.conns, c.PlayerID())
	}
}

// Get returns the live connection for playerID.
func (r *Registry) Get(playerID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[playerID]
	return c, ok
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// AtTable returns the connections currently bound to tableID.
func (r *Registry) AtTable(tableID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Connection
	for _, c := range r.conns {
		if c.TableID() == tableID {
			out = append(out, c)
		}
	}
	return out
}

// Send delivers msg to one player.
func (r *Registry) Send(playerID string, msg *Message) error {
	c, ok := r.Get(playerID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotConnected, playerID)
	}
	return c.SendMessage(msg)
}

// CloseAll closes every registered connection.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

// TableSink returns the event sink for one table.
func (r *Registry) TableSink(tableID string, logger *zap.Logger) rules.Sink {
	return &tableSink{
		tableID:  tableID,
		registry: r,
		logger:   logger.With(zap.String("table_id", tableID)),
	}
}

// tableSink routes engine events to the connections seated at one table.
type tableSink struct {
	tableID  string
	registry *Registry
	logger   *zap.Logger
}

func (s *tableSink) SendToPlayer(playerID string, event rules.Event) error {
	msg, err := eventMessage(event)
	if err != nil {
		return err
	}
	return s.registry.Send(playerID, msg)
}

func (s *tableSink) Broadcast(event rules.Event, excludeIDs ...string) error {
	msg, err := eventMessage(event)
	if err != nil {
		return err
	}
	var errs []error
	recipients := 0
	for _, c := range s.registry.AtTable(s.tableID) {
		if slices.Contains(excludeIDs, c.PlayerID()) {
			continue
		}
		if err := c.SendMessage(msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.PlayerID(), err))
			continue
		}
		recipients++
	}
	s.logger.Debug("broadcast event",
		zap.String("event", string(event.Type)),
		zap.Int("recipients", recipients),
	)
	return errors.Join(errs...)
}
