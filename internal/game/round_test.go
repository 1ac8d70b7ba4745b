package game

import (
	"testing"

	"github.com/letterbox/letterbox-server/internal/game/cards"
	"github.com/letterbox/letterbox-server/internal/game/deck"
	"github.com/letterbox/letterbox-server/internal/game/rules"
	"github.com/letterbox/letterbox-server/internal/game/targeting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestInitializeRoundDealsOneCardEach(t *testing.T) {
	h := newStackedRound(t, []string{"a", "b", "c"}, "",
		cards.Guard, cards.Priest, cards.Baron, cards.Handmaid, cards.Guard, cards.Guard)

	assert.Equal(t, names(cards.Guard, cards.Handmaid), h.player("a").HandNames())
	assert.Equal(t, names(cards.Priest), h.player("b").HandNames())
	assert.Equal(t, names(cards.Baron), h.player("c").HandNames())
	assert.Equal(t, "a", h.round.CurrentSeatID())
	assert.True(t, h.round.IsRoundActive())
	assert.Equal(t, rules.PhaseAwaitingPlay, h.round.Phase())

	require.Len(t, h.sink.privateTo("b", rules.EventDealCard), 1)
	assert.Equal(t, "Priest", h.sink.privateTo("b", rules.EventDealCard)[0].Card)
	require.Len(t, h.sink.privateTo("a", rules.EventDrawCard), 1)
	assert.Equal(t, "Handmaid", h.sink.privateTo("a", rules.EventDrawCard)[0].Card)
	assert.Len(t, h.sink.public(rules.EventRoundStart), 1)
	assert.Len(t, h.sink.public(rules.EventNextTurn), 1)
}

func TestInitializeRoundValidation(t *testing.T) {
	round, err := NewRound(RoundConfig{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	err = round.InitializeRound([]*Player{NewPlayer("a", "")}, nil)
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)

	err = round.InitializeRound([]*Player{NewPlayer("a", ""), NewPlayer("a", "")}, nil)
	assert.ErrorIs(t, err, ErrDuplicatePlayer)

	gone := NewPlayer("c", "")
	gone.Left = true
	err = round.InitializeRound([]*Player{NewPlayer("a", ""), gone}, nil)
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)

	require.NoError(t, round.InitializeRound([]*Player{NewPlayer("a", ""), NewPlayer("b", "")}, nil))
	err = round.InitializeRound([]*Player{NewPlayer("a", ""), NewPlayer("b", "")}, nil)
	assert.ErrorIs(t, err, ErrRoundInProgress)

	_, err = NewRound(RoundConfig{Variant: "nope"})
	assert.Error(t, err)
}

func TestTooManyPlayersForDeck(t *testing.T) {
	round, err := NewRound(RoundConfig{Composition: stacked(cards.Guard, cards.Guard)})
	require.NoError(t, err)
	err = round.InitializeRound([]*Player{NewPlayer("a", ""), NewPlayer("b", "")}, nil)
	assert.ErrorIs(t, err, ErrTooManyPlayers)
}

func TestStartingSeatFollowsLastWinners(t *testing.T) {
	round, err := NewRound(RoundConfig{Shuffler: deck.NewSeededShuffler(3)})
	require.NoError(t, err)
	players := []*Player{NewPlayer("a", ""), NewPlayer("b", ""), NewPlayer("c", "")}
	require.NoError(t, round.InitializeRound(players, []string{"ghost", "c", "b"}))
	assert.Equal(t, "c", round.CurrentSeatID())

	players[0].Left = true
	round, err = NewRound(RoundConfig{Shuffler: deck.NewSeededShuffler(3)})
	require.NoError(t, err)
	require.NoError(t, round.InitializeRound(players, nil))
	assert.Equal(t, "b", round.CurrentSeatID())
	assert.False(t, players[0].Active)
	assert.Empty(t, players[0].Hand)
}

func TestScenarioGuardEliminatesAndTurnSkips(t *testing.T) {
	h := newStackedRound(t, []string{"a", "b", "c"}, "",
		cards.Guard, cards.Priest, cards.Baron, cards.Handmaid,
		cards.Guard, cards.Guard, cards.Guard, cards.Prince)

	result := h.play(t, "a", cards.Guard, targeting.Guess("b", 2))
	assert.Equal(t, OutcomeResolved, result.Outcome)
	assert.Equal(t, []string{"b"}, result.Eliminated)
	assert.False(t, h.player("b").Active)
	assert.Empty(t, h.player("b").Hand)

	eliminated := h.sink.public(rules.EventPlayerEliminated)
	require.Len(t, eliminated, 1)
	assert.Equal(t, "b", eliminated[0].PlayerID)
	assert.Equal(t, "Priest", eliminated[0].Card)

	assert.Equal(t, "c", h.round.CurrentSeatID())
	assert.Equal(t, "c", result.NextPlayer)

	// c misses, and the turn comes back to a without visiting b.
	h.play(t, "c", cards.Guard, targeting.Guess("a", 8))
	assert.Equal(t, "a", h.round.CurrentSeatID())
	assert.True(t, h.round.IsRoundActive())
}

func TestScenarioHandmaidBlocksGuard(t *testing.T) {
	h := newStackedRound(t, []string{"a", "b", "c"}, "",
		cards.Handmaid, cards.Guard, cards.Priest, cards.Countess,
		cards.Priest, cards.Guard, cards.Baron, cards.Guard, cards.Guard)

	h.play(t, "a", cards.Handmaid, targeting.TargetSpec{})
	assert.True(t, h.player("a").Protected)

	// A correct guess still does nothing.
	result := h.play(t, "b", cards.Guard, targeting.Guess("a", 7))
	assert.Equal(t, OutcomeBlocked, result.Outcome)
	assert.True(t, h.player("a").Active)
	assert.True(t, h.player("a").Protected)
	blocked := h.sink.public(rules.EventBlocked)
	require.Len(t, blocked, 1)
	assert.Equal(t, "a", blocked[0].TargetID)

	result = h.play(t, "c", cards.Priest, targeting.Target("a"))
	assert.Equal(t, OutcomeBlocked, result.Outcome)
	assert.Empty(t, h.sink.privateTo("c", rules.EventPrivateInfo))

	// Protection ends when a's own turn begins.
	assert.Equal(t, "a", h.round.CurrentSeatID())
	assert.False(t, h.player("a").Protected)
}

func TestTurnLegality(t *testing.T) {
	h := newStackedRound(t, []string{"a", "b", "c"}, "",
		cards.Guard, cards.Priest, cards.Baron, cards.Handmaid, cards.Guard, cards.Guard)
	before := h.round.Snapshot().Checksum()

	_, err := h.round.HandlePlayedCard("b", 0, targeting.Guess("a", 2))
	assert.ErrorIs(t, err, ErrNotPlayersTurn)
	_, err = h.round.HandlePlayedCard("ghost", 0, targeting.TargetSpec{})
	assert.ErrorIs(t, err, ErrNotPlayersTurn)
	_, err = h.round.HandlePlayedCard("a", 2, targeting.TargetSpec{})
	assert.ErrorIs(t, err, ErrInvalidCardIndex)
	_, err = h.round.HandlePlayedCard("a", -1, targeting.TargetSpec{})
	assert.ErrorIs(t, err, ErrInvalidCardIndex)

	assert.Equal(t, before, h.round.Snapshot().Checksum())
	assert.Len(t, h.sink.privateTo("b", rules.EventError), 1)
	assert.Len(t, h.sink.privateTo("a", rules.EventError), 2)
	assert.Empty(t, h.sink.public(rules.EventCardPlayed))
}

func TestBeginTurnTwiceIsRejected(t *testing.T) {
	h := newStackedRound(t, []string{"a", "b"}, "",
		cards.Guard, cards.Priest, cards.Baron, cards.Guard)
	assert.ErrorIs(t, h.round.BeginTurn(), ErrTurnAlreadyBegun)
	assert.Len(t, h.player("a").Hand, 2)
}

func TestGuardDeterminism(t *testing.T) {
	byRank := map[int]cards.Kind{
		2: cards.Priest, 3: cards.Baron, 4: cards.Handmaid, 5: cards.Prince,
		6: cards.King, 7: cards.Countess, 8: cards.Princess,
	}
	for rank, kind := range byRank {
		for guess := 2; guess <= 8; guess++ {
			h := newStackedRound(t, []string{"a", "b"}, "",
				cards.Guard, kind, cards.Guard, cards.Guard, cards.Guard, cards.Guard)
			result := h.play(t, "a", cards.Guard, targeting.Guess("b", guess))
			assert.Equal(t, rank == guess, !h.player("b").Active, "rank %d guess %d", rank, guess)
			assert.Equal(t, rank == guess, result.RoundEnded, "rank %d guess %d", rank, guess)
		}
	}
}

func TestEndByAttrition(t *testing.T) {
	h := newStackedRound(t, []string{"a", "b"}, "",
		cards.Guard, cards.King, cards.Guard, cards.Guard, cards.Guard, cards.Guard)
	result := h.play(t, "a", cards.Guard, targeting.Guess("b", 6))

	assert.True(t, result.RoundEnded)
	assert.Equal(t, []string{"a"}, result.Winners)
	assert.False(t, h.round.IsRoundActive())
	assert.Equal(t, rules.PhaseRoundEnded, h.round.Phase())
	assert.Equal(t, map[string]int{"a": 1, "b": 0}, h.round.ScoresSnapshot())
	assert.Equal(t, "", h.round.CurrentSeatID())

	end := h.sink.public(rules.EventRoundEnd)
	require.Len(t, end, 1)
	assert.Equal(t, []string{"a"}, end[0].Winners)
	assert.False(t, end[0].Aborted)

	_, err := h.round.HandlePlayedCard("a", 0, targeting.TargetSpec{})
	assert.ErrorIs(t, err, ErrRoundNotActive)
}

func TestEndByExhaustionTie(t *testing.T) {
	h := newStackedRound(t, []string{"a", "b"}, "",
		cards.King, cards.King, cards.Guard)
	result := h.play(t, "a", cards.Guard, targeting.Guess("b", 2))

	require.True(t, result.RoundEnded)
	assert.ElementsMatch(t, []string{"a", "b"}, result.Winners)
	assert.Len(t, h.round.Winners(), 2)
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, h.round.ScoresSnapshot())
}

func TestDetermineWinnersUsesRankBonus(t *testing.T) {
	h := newStackedRound(t, []string{"a", "b", "c"}, "",
		cards.Prince, cards.King, cards.Baron, cards.Guard)
	h.player("a").Hand = h.player("a").Hand[:1]
	h.player("a").RankBonus = 2
	h.player("c").Active = false

	winners := h.round.DetermineWinners()
	require.Len(t, winners, 1)
	assert.Equal(t, "a", winners[0].ID)
}

func TestAdvanceToNextActive(t *testing.T) {
	h := newStackedRound(t, []string{"a", "b", "c", "d"}, "",
		cards.Guard, cards.Guard, cards.Guard, cards.Guard, cards.Guard, cards.Guard)
	h.player("b").Active = false
	h.player("c").Active = false

	next, ok := h.round.AdvanceToNextActive(0)
	assert.True(t, ok)
	assert.Equal(t, 3, next)
	next, ok = h.round.AdvanceToNextActive(3)
	assert.True(t, ok)
	assert.Equal(t, 0, next)

	h.player("d").Active = false
	_, ok = h.round.AdvanceToNextActive(0)
	assert.False(t, ok)
}

func TestPriestRevealsPrivately(t *testing.T) {
	h := newStackedRound(t, []string{"a", "b", "c"}, "",
		cards.Priest, cards.King, cards.Guard, cards.Guard, cards.Guard, cards.Guard)
	h.play(t, "a", cards.Priest, targeting.Target("b"))

	info := h.sink.privateTo("a", rules.EventPrivateInfo)
	require.Len(t, info, 1)
	assert.Equal(t, "King", info[0].Card)
	assert.Equal(t, "b", info[0].TargetID)
	assert.Empty(t, h.sink.privateTo("c", rules.EventPrivateInfo))
	assert.Empty(t, h.sink.privateTo("b", rules.EventPrivateInfo))
	assert.True(t, h.player("b").Active)
}

func TestBaron(t *testing.T) {
	t.Run("lower rank is eliminated", func(t *testing.T) {
		h := newStackedRound(t, []string{"a", "b", "c"}, "",
			cards.Baron, cards.Priest, cards.Guard, cards.Countess, cards.Guard, cards.Guard)
		result := h.play(t, "a", cards.Baron, targeting.Target("b"))
		assert.Equal(t, []string{"b"}, result.Eliminated)
		require.Len(t, h.sink.privateTo("a", rules.EventPrivateInfo), 1)
		assert.Equal(t, "Priest", h.sink.privateTo("a", rules.EventPrivateInfo)[0].Card)
		assert.Equal(t, "Countess", h.sink.privateTo("b", rules.EventPrivateInfo)[0].Card)
	})

	t.Run("actor can lose", func(t *testing.T) {
		h := newStackedRound(t, []string{"a", "b", "c"}, "",
			cards.Baron, cards.Priest, cards.Guard, cards.Guard, cards.Guard, cards.Guard)
		result := h.play(t, "a", cards.Baron, targeting.Target("b"))
		assert.Equal(t, []string{"a"}, result.Eliminated)
		assert.Equal(t, "b", h.round.CurrentSeatID())
	})

	t.Run("tie changes nothing", func(t *testing.T) {
		h := newStackedRound(t, []string{"a", "b"}, "",
			cards.Baron, cards.Guard, cards.Guard, cards.Guard, cards.Guard)
		result := h.play(t, "a", cards.Baron, targeting.Target("b"))
		assert.Empty(t, result.Eliminated)
		assert.True(t, h.player("a").Active)
		assert.True(t, h.player("b").Active)
		assert.Len(t, h.sink.privateTo("b", rules.EventPrivateInfo), 1)
		assert.Equal(t, "b", h.round.CurrentSeatID())
	})
}

func TestHandmaidProtectsUntilOwnTurn(t *testing.T) {
	h := newStackedRound(t, []string{"a", "b"}, "",
		cards.Handmaid, cards.Guard, cards.Guard, cards.Guard, cards.Guard, cards.Guard)
	h.play(t, "a", cards.Handmaid, targeting.TargetSpec{})
	assert.True(t, h.player("a").Protected)
	assert.Equal(t, "b", h.round.CurrentSeatID())
	assert.True(t, h.player("a").Protected)

	// b has nobody to aim at.
	result := h.play(t, "b", cards.Guard, targeting.TargetSpec{})
	assert.Equal(t, OutcomeNoEffect, result.Outcome)
	assert.Len(t, h.sink.public(rules.EventNoTarget), 1)

	assert.Equal(t, "a", h.round.CurrentSeatID())
	assert.False(t, h.player("a").Protected)
}

func TestPrince(t *testing.T) {
	t.Run("target discards and redraws", func(t *testing.T) {
		h := newStackedRound(t, []string{"a", "b"}, "",
			cards.Prince, cards.Priest, cards.Guard, cards.Baron, cards.Guard, cards.Guard)
		h.play(t, "a", cards.Prince, targeting.Target("b"))
		assert.Equal(t, names(cards.Baron), h.player("b").HandNames()[:1])
		snap := h.round.Snapshot()
		assert.Equal(t, names(cards.Prince, cards.Priest), snap.Discards)
		info := h.sink.privateTo("b", rules.EventPrivateInfo)
		require.Len(t, info, 1)
		assert.Equal(t, "Baron", info[0].Card)
	})

	t.Run("may target self", func(t *testing.T) {
		h := newStackedRound(t, []string{"a", "b"}, "",
			cards.Prince, cards.Guard, cards.Baron, cards.Countess, cards.Guard, cards.Guard)
		h.play(t, "a", cards.Prince, targeting.Target("a"))
		assert.Equal(t, names(cards.Countess), h.player("a").HandNames())
		assert.Equal(t, names(cards.Prince, cards.Baron), h.round.Snapshot().Discards)
	})

	t.Run("princess discard eliminates without redraw", func(t *testing.T) {
		h := newStackedRound(t, []string{"a", "b", "c"}, "",
			cards.Prince, cards.Princess, cards.Guard, cards.Guard, cards.Guard, cards.Guard)
		remaining := h.round.Snapshot().Pile
		result := h.play(t, "a", cards.Prince, targeting.Target("b"))
		assert.Equal(t, []string{"b"}, result.Eliminated)
		assert.Empty(t, h.player("b").Hand)
		snap := h.round.Snapshot()
		assert.Contains(t, snap.Discards, "Princess")
		// c drew one card for the next turn and nothing else left the pile.
		assert.Len(t, snap.Pile, len(remaining)-1)
	})

	t.Run("self with princess", func(t *testing.T) {
		h := newStackedRound(t, []string{"a", "b"}, "",
			cards.Princess, cards.Guard, cards.Prince, cards.Guard, cards.Guard)
		result := h.play(t, "a", cards.Prince, targeting.Target("a"))
		assert.Equal(t, []string{"a"}, result.Eliminated)
		assert.Equal(t, []string{"b"}, result.Winners)
	})

	t.Run("empty pile is a no-op", func(t *testing.T) {
		h := newStackedRound(t, []string{"a", "b"}, "",
			cards.Prince, cards.Guard, cards.Handmaid)
		result := h.play(t, "a", cards.Prince, targeting.Target("b"))
		assert.Equal(t, OutcomeNoEffect, result.Outcome)
		assert.Equal(t, names(cards.Guard), h.player("b").HandNames())
		// The pile is empty, so the round is settled on hand value.
		assert.True(t, result.RoundEnded)
		assert.Equal(t, []string{"a"}, result.Winners)
	})
}

func TestKingSwapsHands(t *testing.T) {
	h := newStackedRound(t, []string{"a", "b", "c"}, "",
		cards.King, cards.Priest, cards.Guard, cards.Baron, cards.Guard, cards.Guard)
	h.play(t, "a", cards.King, targeting.Target("b"))

	assert.Equal(t, names(cards.Priest), h.player("a").HandNames())
	// b has since drawn for their turn.
	assert.Equal(t, names(cards.Baron), h.player("b").HandNames()[:1])
	require.Len(t, h.sink.privateTo("a", rules.EventPrivateInfo), 1)
	assert.Equal(t, names(cards.Priest), h.sink.privateTo("a", rules.EventPrivateInfo)[0].Hand)
	require.Len(t, h.sink.privateTo("b", rules.EventPrivateInfo), 1)
	assert.Equal(t, names(cards.Baron), h.sink.privateTo("b", rules.EventPrivateInfo)[0].Hand)
}

func TestCountessHasNoEffect(t *testing.T) {
	h := newStackedRound(t, []string{"a", "b"}, "",
		cards.Countess, cards.Guard, cards.King, cards.Guard, cards.Guard)
	result := h.play(t, "a", cards.Countess, targeting.TargetSpec{})
	assert.Equal(t, OutcomeResolved, result.Outcome)
	assert.Len(t, h.sink.public(rules.EventCardEffect), 1)
	assert.Equal(t, "b", h.round.CurrentSeatID())
}

func TestPrincessEliminatesActor(t *testing.T) {
	h := newStackedRound(t, []string{"a", "b", "c"}, "",
		cards.Princess, cards.Guard, cards.Guard, cards.Baron, cards.Guard, cards.Guard)
	result := h.play(t, "a", cards.Princess, targeting.TargetSpec{})

	assert.Equal(t, []string{"a"}, result.Eliminated)
	assert.Equal(t, names(cards.Princess, cards.Baron), h.round.Snapshot().Discards)
	assert.Equal(t, "b", h.round.CurrentSeatID())
}

func TestGuardOnAssassinEliminatesGuesser(t *testing.T) {
	h := newStackedRound(t, []string{"a", "b"}, cards.VariantAssassin,
		cards.Guard, cards.Assassin, cards.Guard, cards.Guard, cards.Guard)
	result := h.play(t, "a", cards.Guard, targeting.Guess("b", 5))

	assert.Equal(t, []string{"a"}, result.Eliminated)
	assert.True(t, h.player("b").Active)
	assert.Equal(t, []string{"b"}, result.Winners)
}

func TestAssassinPlayedHasNoEffect(t *testing.T) {
	h := newStackedRound(t, []string{"a", "b"}, cards.VariantAssassin,
		cards.Assassin, cards.Guard, cards.Guard, cards.Guard, cards.Guard)
	result := h.play(t, "a", cards.Assassin, targeting.TargetSpec{})
	assert.Equal(t, OutcomeNoEffect, result.Outcome)
	assert.Equal(t, "b", h.round.CurrentSeatID())
}

func TestRejectedTargetStillSpendsCard(t *testing.T) {
	tests := []struct {
		name string
		spec targeting.TargetSpec
		want error
	}{
		{"unknown player", targeting.Guess("zed", 2), targeting.ErrInvalidTarget},
		{"self", targeting.Guess("a", 2), targeting.ErrInvalidTarget},
		{"missing target", targeting.TargetSpec{GuessedRank: rules.IntPtr(2)}, targeting.ErrInvalidTarget},
		{"guard guess", targeting.Guess("b", 1), targeting.ErrInvalidGuess},
		{"no guess", targeting.Target("b"), targeting.ErrInvalidGuess},
		{"unknown rank", targeting.Guess("b", 9), targeting.ErrInvalidGuess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newStackedRound(t, []string{"a", "b", "c"}, "",
				cards.Guard, cards.Priest, cards.Baron, cards.Handmaid, cards.Guard, cards.Guard)
			result := h.play(t, "a", cards.Guard, tt.spec)

			assert.Equal(t, OutcomeRejected, result.Outcome)
			assert.ErrorIs(t, result.Err, tt.want)
			assert.Equal(t, names(cards.Guard), h.round.Snapshot().Discards)
			assert.Len(t, h.sink.privateTo("a", rules.EventError), 1)
			assert.Empty(t, h.sink.privateTo("b", rules.EventError))
			assert.True(t, h.player("b").Active)
			assert.Equal(t, "b", h.round.CurrentSeatID())
		})
	}
}

func TestEliminatedTargetIsInvalid(t *testing.T) {
	h := newStackedRound(t, []string{"a", "b", "c"}, "",
		cards.Guard, cards.Priest, cards.Baron, cards.Handmaid, cards.Guard, cards.Guard, cards.Guard)
	h.play(t, "a", cards.Guard, targeting.Guess("b", 2))
	result := h.play(t, "c", cards.Guard, targeting.Guess("b", 3))
	assert.Equal(t, OutcomeRejected, result.Outcome)
	assert.ErrorIs(t, result.Err, targeting.ErrInvalidTarget)
}

func TestForfeit(t *testing.T) {
	h := newStackedRound(t, []string{"a", "b", "c"}, "",
		cards.Guard, cards.Priest, cards.Baron, cards.Handmaid, cards.Guard, cards.Guard)

	result, err := h.round.Forfeit("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, result.Eliminated)
	assert.Equal(t, "a", h.round.CurrentSeatID())
	assert.Equal(t, rules.PhaseAwaitingPlay, h.round.Phase())

	result, err = h.round.Forfeit("a")
	require.NoError(t, err)
	assert.True(t, result.RoundEnded)
	assert.Equal(t, []string{"c"}, result.Winners)
	assert.Equal(t, 6, h.round.Snapshot().CardCount())

	_, err = h.round.Forfeit("c")
	assert.ErrorIs(t, err, ErrRoundNotActive)
}

func TestForfeitOnTurnPassesTurn(t *testing.T) {
	h := newStackedRound(t, []string{"a", "b", "c"}, "",
		cards.Guard, cards.Priest, cards.Baron, cards.Handmaid, cards.Guard, cards.Guard)
	result, err := h.round.Forfeit("a")
	require.NoError(t, err)
	assert.Equal(t, "b", result.NextPlayer)
	assert.Len(t, h.player("b").Hand, 2)

	_, err = h.round.Forfeit("zed")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestSinkFailuresDoNotStopTheRound(t *testing.T) {
	h := newStackedRound(t, []string{"a", "b", "c"}, "",
		cards.Guard, cards.Priest, cards.Baron, cards.Handmaid, cards.Guard, cards.Guard)
	h.sink.fail = true

	result := h.play(t, "a", cards.Guard, targeting.Guess("b", 2))
	assert.Equal(t, []string{"b"}, result.Eliminated)
	assert.Equal(t, "c", h.round.CurrentSeatID())
}

func TestInvariantViolationAbortsRound(t *testing.T) {
	var ended RoundResult
	sink := newRecordingSink()
	round, err := NewRound(RoundConfig{
		Composition: stacked(cards.Guard, cards.Priest, cards.Baron, cards.Guard, cards.Guard),
		Shuffler:    deck.IdentityShuffler{},
		Sink:        sink,
		Logger:      zaptest.NewLogger(t),
		OnEnd:       func(r RoundResult) { ended = r },
	})
	require.NoError(t, err)
	players := []*Player{NewPlayer("a", ""), NewPlayer("b", "")}
	require.NoError(t, round.InitializeRound(players, nil))

	// Corrupt b's hand behind the engine's back.
	players[1].Hand = append(players[1].Hand, cards.MustLookup(cards.King))
	_, err = round.HandlePlayedCard("a", 0, targeting.Guess("b", 3))
	assert.ErrorIs(t, err, ErrInvariantViolation)
	assert.False(t, round.IsRoundActive())
	assert.True(t, round.Aborted())
	assert.True(t, ended.Aborted)
	assert.Empty(t, ended.Winners)

	end := sink.public(rules.EventRoundEnd)
	require.Len(t, end, 1)
	assert.True(t, end[0].Aborted)
	assert.Equal(t, 0, players[0].Score)
}

func TestEventBusSeesDeliveries(t *testing.T) {
	bus := rules.NewEventBus()
	var private, public int
	bus.Subscribe(func(d rules.Delivery) {
		if d.Private() {
			private++
		} else {
			public++
		}
	})
	round, err := NewRound(RoundConfig{Bus: bus, Shuffler: deck.NewSeededShuffler(1)})
	require.NoError(t, err)
	require.NoError(t, round.InitializeRound([]*Player{NewPlayer("a", ""), NewPlayer("b", "")}, nil))

	// deal x2 and the first draw are private; round start and next turn are public
	assert.Equal(t, 3, private)
	assert.Equal(t, 2, public)
}

func TestResolverCoversCatalog(t *testing.T) {
	for _, c := range cards.All() {
		_, ok := handlerFor(c.Kind)
		assert.True(t, ok, "no handler for %s", c.Name)
	}
}
