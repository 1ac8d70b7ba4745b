package rules

import (
	"testing"

	"github.com/letterbox/letterbox-server/internal/game/cards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hand(kinds ...cards.Kind) []cards.Card {
	out := make([]cards.Card, len(kinds))
	for i, k := range kinds {
		out[i] = cards.MustLookup(k)
	}
	return out
}

func TestCountessRule(t *testing.T) {
	checker := NewLegalityChecker(true)

	tests := []struct {
		name  string
		hand  []cards.Card
		index int
		legal bool
	}{
		{"king with countess", hand(cards.King, cards.Countess), 0, false},
		{"prince with countess", hand(cards.Countess, cards.Prince), 1, false},
		{"countess itself", hand(cards.King, cards.Countess), 1, true},
		{"countess without royals", hand(cards.Guard, cards.Countess), 0, true},
		{"no countess", hand(cards.King, cards.Prince), 0, true},
		{"out of range", hand(cards.Guard), 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := checker.CheckPlay(tt.hand, tt.index)
			assert.Equal(t, tt.legal, result.Legal, result.Reason)
		})
	}
}

func TestValidateWrapsCountessError(t *testing.T) {
	checker := NewLegalityChecker(true)
	err := checker.Validate(hand(cards.King, cards.Countess), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCountessRequired)

	assert.NoError(t, checker.Validate(hand(cards.King, cards.Countess), 1))
	assert.Error(t, checker.Validate(hand(cards.King), -1))
}

func TestCountessNotEnforced(t *testing.T) {
	checker := NewLegalityChecker(false)
	assert.True(t, checker.CheckPlay(hand(cards.King, cards.Countess), 0).Legal)

	var nilChecker *LegalityChecker
	assert.True(t, nilChecker.CheckPlay(hand(cards.Prince, cards.Countess), 0).Legal)
}
