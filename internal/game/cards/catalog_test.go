package cards

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogRanks(t *testing.T) {
	expected := map[Kind]int{
		Assassin: 0,
		Guard:    1,
		Priest:   2,
		Baron:    3,
		Handmaid: 4,
		Prince:   5,
		King:     6,
		Countess: 7,
		Princess: 8,
	}
	for kind, rank := range expected {
		c, ok := Lookup(kind)
		require.True(t, ok, "missing catalog entry for %s", kind)
		assert.Equal(t, rank, c.Rank, kind.String())
		assert.Equal(t, kind, c.Kind)
		assert.NotEmpty(t, c.Description)
	}
	assert.Len(t, All(), len(expected))
}

func TestByNameIsCaseInsensitive(t *testing.T) {
	c, ok := ByName(" princess ")
	require.True(t, ok)
	assert.Equal(t, Princess, c.Kind)

	_, ok = ByName("Jester")
	assert.False(t, ok)
}

func TestUnknownKindString(t *testing.T) {
	assert.Equal(t, "KIND_42", Kind(42).String())
	assert.True(t, Card{}.IsZero())
	assert.Equal(t, "Baron(3)", MustLookup(Baron).String())
}

func TestCompositions(t *testing.T) {
	classic, err := Composition(VariantClassic)
	require.NoError(t, err)
	assert.Len(t, classic, 16)

	counts := make(map[Kind]int)
	for _, c := range classic {
		counts[c.Kind]++
	}
	assert.Equal(t, 5, counts[Guard])
	assert.Equal(t, 1, counts[Princess])
	assert.Zero(t, counts[Assassin])

	withAssassin, err := Composition(VariantAssassin)
	require.NoError(t, err)
	assert.Len(t, withAssassin, 17)

	_, err = Composition("expansion")
	assert.Error(t, err)
}

func TestRanksAndParseVariant(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, Ranks(VariantClassic))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8}, Ranks(VariantAssassin))
	assert.False(t, HasRank(VariantClassic, 0))
	assert.True(t, HasRank(VariantAssassin, 0))

	v, err := ParseVariant("")
	require.NoError(t, err)
	assert.Equal(t, VariantClassic, v)

	v, err = ParseVariant("Assassin")
	require.NoError(t, err)
	assert.Equal(t, VariantAssassin, v)

	_, err = ParseVariant("premium")
	assert.Error(t, err)
}
