package cards

import (
	"fmt"
	"sort"
	"strings"
)

// Variant names a fixed deck composition.
type Variant string

const (
	VariantClassic  Variant = "classic"
	VariantAssassin Variant = "assassin"
)

type entry struct {
	kind  Kind
	count int
}

var compositions = map[Variant][]entry{
	VariantClassic: {
		{Guard, 5},
		{Priest, 2},
		{Baron, 2},
		{Handmaid, 2},
		{Prince, 2},
		{King, 1},
		{Countess, 1},
		{Princess, 1},
	},
	VariantAssassin: {
		{Guard, 5},
		{Priest, 2},
		{Baron, 2},
		{Handmaid, 2},
		{Prince, 2},
		{King, 1},
		{Countess, 1},
		{Princess, 1},
		{Assassin, 1},
	},
}

// ParseVariant validates a variant name.
func ParseVariant(name string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(name)))
	if v == "" {
		return VariantClassic, nil
	}
	if _, ok := compositions[v]; !ok {
		return "", fmt.Errorf("unknown variant %q", name)
	}
	return v, nil
}

// Composition returns a fresh, unshuffled multiset of cards for the variant.
func Composition(v Variant) ([]Card, error) {
	entries, ok := compositions[v]
	if !ok {
		return nil, fmt.Errorf("unknown variant %q", v)
	}
	out := make([]Card, 0, 17)
	for _, e := range entries {
		c := MustLookup(e.kind)
		for i := 0; i < e.count; i++ {
			out = append(out, c)
		}
	}
	return out, nil
}

// Ranks returns the distinct ranks present in a variant, ascending.
func Ranks(v Variant) []int {
	seen := make(map[int]bool)
	var ranks []int
	for _, e := range compositions[v] {
		r := MustLookup(e.kind).Rank
		if !seen[r] {
			seen[r] = true
			ranks = append(ranks, r)
		}
	}
	sort.Ints(ranks)
	return ranks
}

// HasRank reports whether any card in the variant carries rank.
func HasRank(v Variant, rank int) bool {
	for _, e := range compositions[v] {
		if MustLookup(e.kind).Rank == rank {
			return true
		}
	}
	return false
}
