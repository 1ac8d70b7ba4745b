package table

import (
	"github.com/letterbox/letterbox-server/internal/game"
	"github.com/letterbox/letterbox-server/internal/game/cards"
	"github.com/letterbox/letterbox-server/internal/game/rules"
	"github.com/letterbox/letterbox-server/internal/game/targeting"
)

// ChooseAutoPlay picks a play for a player who ran out of time. It only uses
// what that player could know: their own hand and the discard pile.
//
// The Countess is played when it must be, the Princess never voluntarily,
// otherwise the lowest card goes. Targets are the first eligible opponent in
// seat order; Guard guesses name the most common rank still unseen.
func ChooseAutoPlay(round *game.Round, playerID string) (int, targeting.TargetSpec) {
	player, ok := round.Player(playerID)
	if !ok || len(player.Hand) == 0 {
		return 0, targeting.TargetSpec{}
	}
	index := chooseCard(player.Hand)
	card := player.Hand[index]
	req := targeting.RequirementFor(card.Kind)
	if req.Type == targeting.TargetTypeNone {
		return index, targeting.TargetSpec{}
	}

	targetID := ""
	for _, p := range round.Seats() {
		if p.ID != playerID && p.Active && !p.Protected {
			targetID = p.ID
			break
		}
	}
	if targetID == "" && req.AllowsSelf() {
		targetID = playerID
	}
	if targetID == "" {
		return index, targeting.TargetSpec{}
	}
	if req.NeedsGuess {
		return index, targeting.Guess(targetID, likelyRank(round, player, index))
	}
	return index, targeting.Target(targetID)
}

func chooseCard(hand []cards.Card) int {
	if rules.MustPlayCountess(hand) {
		for i, c := range hand {
			if c.Kind == cards.Countess {
				return i
			}
		}
	}
	best := -1
	for i, c := range hand {
		if c.Kind == cards.Princess {
			continue
		}
		if best < 0 || c.Rank < hand[best].Rank {
			best = i
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

// likelyRank counts the variant's cards minus the discards and the player's
// own hand, and returns the most frequent non-Guard rank. Ties go to the
// lower rank.
func likelyRank(round *game.Round, player *game.Player, playing int) int {
	unseen := make(map[int]int)
	composition, err := cards.Composition(round.Variant())
	if err != nil {
		return 2
	}
	for _, c := range composition {
		unseen[c.Rank]++
	}
	for _, name := range round.Snapshot().Discards {
		if c, ok := cards.ByName(name); ok {
			unseen[c.Rank]--
		}
	}
	for i, c := range player.Hand {
		if i != playing {
			unseen[c.Rank]--
		}
	}

	guardRank := cards.MustLookup(cards.Guard).Rank
	best, bestCount := 2, -1
	for _, rank := range cards.Ranks(round.Variant()) {
		if rank == guardRank {
			continue
		}
		if unseen[rank] > bestCount {
			best, bestCount = rank, unseen[rank]
		}
	}
	return best
}
