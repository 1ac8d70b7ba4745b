package game

import (
	"time"

	"github.com/letterbox/letterbox-server/internal/game/rules"
	"go.uber.org/zap"
)

// notifier stamps round events and hands them to the sink. Delivery is
// fire-and-forget: failures are logged and the round carries on.
type notifier struct {
	roundID string
	sink    rules.Sink
	bus     *rules.EventBus
	logger  *zap.Logger
	now     func() time.Time
}

func (n *notifier) stamp(ev rules.Event) rules.Event {
	ev.RoundID = n.roundID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = n.now()
	}
	return ev
}

func (n *notifier) toPlayer(playerID string, ev rules.Event) {
	ev = n.stamp(ev)
	if n.sink != nil {
		if err := n.sink.SendToPlayer(playerID, ev); err != nil {
			n.logger.Warn("failed to deliver event",
				zap.String("player_id", playerID),
				zap.String("event", string(ev.Type)),
				zap.Error(err),
			)
		}
	}
	if n.bus != nil {
		n.bus.Publish(rules.Delivery{Event: ev, Recipient: playerID})
	}
}

func (n *notifier) broadcast(ev rules.Event, excludeIDs ...string) {
	ev = n.stamp(ev)
	if n.sink != nil {
		if err := n.sink.Broadcast(ev, excludeIDs...); err != nil {
			n.logger.Warn("failed to broadcast event",
				zap.String("event", string(ev.Type)),
				zap.Error(err),
			)
		}
	}
	if n.bus != nil {
		n.bus.Publish(rules.Delivery{Event: ev, Excluded: excludeIDs})
	}
}
