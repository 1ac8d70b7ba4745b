package cards

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies a card type. The set is closed; every Kind has exactly one
// catalog entry and one effect handler in the round engine.
type Kind int

const (
	KindUnknown Kind = iota
	Guard
	Priest
	Baron
	Handmaid
	Prince
	King
	Countess
	Princess
	Assassin
)

// Card is an immutable card descriptor. Two cards with the same Kind are
// interchangeable.
type Card struct {
	Kind        Kind
	Name        string
	Rank        int
	Description string
}

// TopRank is the rank of the card whose discard eliminates its holder.
const TopRank = 8

var catalog = map[Kind]Card{
	Guard: {
		Kind:        Guard,
		Name:        "Guard",
		Rank:        1,
		Description: "Name a non-Guard rank and choose another player. If that player holds that rank, they are out of the round.",
	},
	Priest: {
		Kind:        Priest,
		Name:        "Priest",
		Rank:        2,
		Description: "Look at another player's hand.",
	},
	Baron: {
		Kind:        Baron,
		Name:        "Baron",
		Rank:        3,
		Description: "Compare hands with another player. The player with the lower value is out of the round.",
	},
	Handmaid: {
		Kind:        Handmaid,
		Name:        "Handmaid",
		Rank:        4,
		Description: "Until your next turn, ignore all effects from other players' cards.",
	},
	Prince: {
		Kind:        Prince,
		Name:        "Prince",
		Rank:        5,
		Description: "Choose any player (including yourself) to discard their hand and draw a new card.",
	},
	King: {
		Kind:        King,
		Name:        "King",
		Rank:        6,
		Description: "Trade hands with another player of your choice.",
	},
	Countess: {
		Kind:        Countess,
		Name:        "Countess",
		Rank:        7,
		Description: "If you have this card and the King or Prince in your hand, you must discard this card.",
	},
	Princess: {
		Kind:        Princess,
		Name:        "Princess",
		Rank:        TopRank,
		Description: "If you discard this card, you are out of the round.",
	},
	Assassin: {
		Kind:        Assassin,
		Name:        "Assassin",
		Rank:        0,
		Description: "If another player targets you with a Guard, that player is out of the round.",
	},
}

// String returns the card name for k.
func (k Kind) String() string {
	if c, ok := catalog[k]; ok {
		return c.Name
	}
	return fmt.Sprintf("KIND_%d", int(k))
}

// Lookup returns the descriptor for a kind.
func Lookup(kind Kind) (Card, bool) {
	c, ok := catalog[kind]
	return c, ok
}

// MustLookup is Lookup for kinds known at compile time.
func MustLookup(kind Kind) Card {
	c, ok := catalog[kind]
	if !ok {
		panic(fmt.Sprintf("cards: unknown kind %d", int(kind)))
	}
	return c
}

// ByName resolves a card by its display name, case-insensitively.
func ByName(name string) (Card, bool) {
	name = strings.TrimSpace(name)
	for _, c := range catalog {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Card{}, false
}

// All returns every catalog entry ordered by rank.
func All() []Card {
	out := make([]Card, 0, len(catalog))
	for _, c := range catalog {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

func (c Card) String() string {
	return fmt.Sprintf("%s(%d)", c.Name, c.Rank)
}

// IsZero reports whether c is the zero Card.
func (c Card) IsZero() bool {
	return c.Kind == KindUnknown
}
