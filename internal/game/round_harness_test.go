package game

import (
	"errors"
	"sync"
	"testing"

	"github.com/letterbox/letterbox-server/internal/game/cards"
	"github.com/letterbox/letterbox-server/internal/game/deck"
	"github.com/letterbox/letterbox-server/internal/game/rules"
	"github.com/letterbox/letterbox-server/internal/game/targeting"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// recordingSink keeps every delivered event.
type recordingSink struct {
	mu        sync.Mutex
	broadcast []rules.Event
	private   map[string][]rules.Event
	fail      bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{private: make(map[string][]rules.Event)}
}

func (s *recordingSink) SendToPlayer(playerID string, event rules.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.private[playerID] = append(s.private[playerID], event)
	if s.fail {
		return errors.New("connection closed")
	}
	return nil
}

func (s *recordingSink) Broadcast(event rules.Event, excludeIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcast = append(s.broadcast, event)
	if s.fail {
		return errors.New("connection closed")
	}
	return nil
}

func (s *recordingSink) public(t rules.EventType) []rules.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []rules.Event
	for _, ev := range s.broadcast {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (s *recordingSink) privateTo(playerID string, t rules.EventType) []rules.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []rules.Event
	for _, ev := range s.private[playerID] {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// stacked builds a composition whose first card is drawn first when the
// pile is not shuffled.
func stacked(kinds ...cards.Kind) []cards.Card {
	out := make([]cards.Card, len(kinds))
	for i, k := range kinds {
		out[len(kinds)-1-i] = cards.MustLookup(k)
	}
	return out
}

type harness struct {
	round   *Round
	sink    *recordingSink
	players []*Player
}

func (h *harness) player(id string) *Player {
	for _, p := range h.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// newStackedRound seats the given ids and deals from kinds in order: one card
// per seat, then the first player's draw, then subsequent draws.
func newStackedRound(t *testing.T, ids []string, variant cards.Variant, kinds ...cards.Kind) *harness {
	t.Helper()
	sink := newRecordingSink()
	round, err := NewRound(RoundConfig{
		ID:          "round-test",
		Variant:     variant,
		Composition: stacked(kinds...),
		Shuffler:    deck.IdentityShuffler{},
		Sink:        sink,
		Logger:      zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	players := make([]*Player, len(ids))
	for i, id := range ids {
		players[i] = NewPlayer(id, id)
	}
	require.NoError(t, round.InitializeRound(players, nil))
	return &harness{round: round, sink: sink, players: players}
}

func indexOf(t *testing.T, p *Player, kind cards.Kind) int {
	t.Helper()
	for i, c := range p.Hand {
		if c.Kind == kind {
			return i
		}
	}
	t.Fatalf("%s does not hold %s (hand %v)", p.ID, kind, p.HandNames())
	return -1
}

func (h *harness) play(t *testing.T, actorID string, kind cards.Kind, spec targeting.TargetSpec) PlayResult {
	t.Helper()
	actor := h.player(actorID)
	result, err := h.round.HandlePlayedCard(actorID, indexOf(t, actor, kind), spec)
	require.NoError(t, err)
	return result
}

func names(kinds ...cards.Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = cards.MustLookup(k).Name
	}
	return out
}
