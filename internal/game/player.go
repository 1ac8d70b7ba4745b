package game

import (
	"github.com/letterbox/letterbox-server/internal/game/cards"
)

// Player is one seat at the table. Score survives across rounds; every other
// field is reset by InitializeRound.
type Player struct {
	ID   string
	Name string

	Hand      []cards.Card
	Active    bool
	Protected bool
	// Left marks a player who is gone from the table; they are not dealt in.
	Left bool

	Score int
	// RankBonus is added to the held rank when the round is settled on hand value.
	RankBonus int
}

// NewPlayer creates a seated player.
func NewPlayer(id, name string) *Player {
	if name == "" {
		name = id
	}
	return &Player{ID: id, Name: name}
}

// resetForRound clears per-round state, keeping identity and score.
func (p *Player) resetForRound() {
	p.Hand = nil
	p.Active = !p.Left
	p.Protected = false
	p.RankBonus = 0
}

// HeldCard returns the single card held between turns.
func (p *Player) HeldCard() (cards.Card, bool) {
	if len(p.Hand) == 0 {
		return cards.Card{}, false
	}
	return p.Hand[0], true
}

// HandValue is the rank of the held card, or -1 with an empty hand.
func (p *Player) HandValue() int {
	card, ok := p.HeldCard()
	if !ok {
		return -1
	}
	return card.Rank
}

// FinalValue is the value compared when the deck runs out.
func (p *Player) FinalValue() int {
	return p.HandValue() + p.RankBonus
}

// Holds reports whether kind is in the player's hand.
func (p *Player) Holds(kind cards.Kind) bool {
	for _, c := range p.Hand {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

// HandNames renders the hand for private notifications.
func (p *Player) HandNames() []string {
	names := make([]string, len(p.Hand))
	for i, c := range p.Hand {
		names[i] = c.Name
	}
	return names
}

func (p *Player) removeAt(index int) cards.Card {
	card := p.Hand[index]
	p.Hand = append(p.Hand[:index], p.Hand[index+1:]...)
	return card
}

// takeHand empties the hand and returns what was in it.
func (p *Player) takeHand() []cards.Card {
	out := p.Hand
	p.Hand = nil
	return out
}
