package deck

import (
	"errors"
	"math/rand/v2"

	"github.com/letterbox/letterbox-server/internal/game/cards"
)

// ErrAlreadyInitialized is returned when Initialize is called twice on a pile.
var ErrAlreadyInitialized = errors.New("draw pile already initialized")

// Shuffler produces a uniform permutation. *rand.Rand from math/rand and
// math/rand/v2 both satisfy it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// IdentityShuffler leaves the order untouched. Tests use it to stack a deck.
type IdentityShuffler struct{}

// Shuffle implements Shuffler.
func (IdentityShuffler) Shuffle(int, func(i, j int)) {}

// NewSeededShuffler returns a deterministic shuffler for the given seed.
func NewSeededShuffler(seed uint64) Shuffler {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// DrawPile is the round's face-down stack plus the face-up discard history.
// Draws come off the end of the slice.
type DrawPile struct {
	cards       []cards.Card
	discards    []cards.Card
	rng         Shuffler
	initialized bool
}

// NewDrawPile creates an empty pile. A nil shuffler uses a randomly seeded source.
func NewDrawPile(rng Shuffler) *DrawPile {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &DrawPile{rng: rng}
}

// Initialize loads the composition and shuffles it. It may be called once.
func (p *DrawPile) Initialize(composition []cards.Card) error {
	if p.initialized {
		return ErrAlreadyInitialized
	}
	p.cards = append(make([]cards.Card, 0, len(composition)), composition...)
	p.discards = make([]cards.Card, 0, len(composition))
	p.initialized = true
	p.Shuffle()
	return nil
}

// Shuffle permutes the remaining cards.
func (p *DrawPile) Shuffle() {
	p.rng.Shuffle(len(p.cards), func(i, j int) {
		p.cards[i], p.cards[j] = p.cards[j], p.cards[i]
	})
}

// Draw removes the top card. ok is false when the pile is empty.
func (p *DrawPile) Draw() (card cards.Card, ok bool) {
	n := len(p.cards)
	if n == 0 {
		return cards.Card{}, false
	}
	card = p.cards[n-1]
	p.cards = p.cards[:n-1]
	return card, true
}

// Discard appends a card to the discard history.
func (p *DrawPile) Discard(card cards.Card) {
	p.discards = append(p.discards, card)
}

// IsEmpty reports whether no cards remain to draw.
func (p *DrawPile) IsEmpty() bool {
	return len(p.cards) == 0
}

// Remaining returns the number of cards left to draw.
func (p *DrawPile) Remaining() int {
	return len(p.cards)
}

// Discards returns a copy of the discard history, oldest first.
func (p *DrawPile) Discards() []cards.Card {
	out := make([]cards.Card, len(p.discards))
	copy(out, p.discards)
	return out
}

// RemainingCards returns a copy of the undrawn cards, next draw last.
func (p *DrawPile) RemainingCards() []cards.Card {
	out := make([]cards.Card, len(p.cards))
	copy(out, p.cards)
	return out
}
