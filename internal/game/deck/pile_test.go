package deck

import (
	"testing"

	"github.com/letterbox/letterbox-server/internal/game/cards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classic(t *testing.T) []cards.Card {
	t.Helper()
	composition, err := cards.Composition(cards.VariantClassic)
	require.NoError(t, err)
	return composition
}

func TestDrawUntilEmpty(t *testing.T) {
	pile := NewDrawPile(IdentityShuffler{})
	require.NoError(t, pile.Initialize(classic(t)))
	require.Equal(t, 16, pile.Remaining())

	// Identity order: the last composition entry is drawn first.
	first, ok := pile.Draw()
	require.True(t, ok)
	assert.Equal(t, cards.Princess, first.Kind)

	drawn := 1
	for !pile.IsEmpty() {
		_, ok := pile.Draw()
		require.True(t, ok)
		drawn++
	}
	assert.Equal(t, 16, drawn)

	card, ok := pile.Draw()
	assert.False(t, ok, "empty pile must signal rather than fail")
	assert.True(t, card.IsZero())
}

func TestInitializeOnlyOnce(t *testing.T) {
	pile := NewDrawPile(IdentityShuffler{})
	require.NoError(t, pile.Initialize(classic(t)))
	assert.ErrorIs(t, pile.Initialize(classic(t)), ErrAlreadyInitialized)
}

func TestDiscardDoesNotAffectDraws(t *testing.T) {
	pile := NewDrawPile(IdentityShuffler{})
	require.NoError(t, pile.Initialize(classic(t)))

	card, _ := pile.Draw()
	pile.Discard(card)
	assert.Equal(t, 15, pile.Remaining())
	assert.Equal(t, []cards.Card{card}, pile.Discards())

	// Returned slices are copies.
	discards := pile.Discards()
	discards[0] = cards.MustLookup(cards.Guard)
	assert.Equal(t, card, pile.Discards()[0])
}

func TestSeededShuffleIsDeterministic(t *testing.T) {
	a := NewDrawPile(NewSeededShuffler(42))
	b := NewDrawPile(NewSeededShuffler(42))
	c := NewDrawPile(NewSeededShuffler(7))
	require.NoError(t, a.Initialize(classic(t)))
	require.NoError(t, b.Initialize(classic(t)))
	require.NoError(t, c.Initialize(classic(t)))

	assert.Equal(t, a.RemainingCards(), b.RemainingCards())
	assert.NotEqual(t, a.RemainingCards(), c.RemainingCards())
	assert.ElementsMatch(t, classic(t), a.RemainingCards())
}

func TestNilShufflerStillPermutes(t *testing.T) {
	pile := NewDrawPile(nil)
	require.NoError(t, pile.Initialize(classic(t)))
	assert.ElementsMatch(t, classic(t), pile.RemainingCards())
}
