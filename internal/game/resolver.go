package game

import (
	"errors"
	"fmt"

	"github.com/letterbox/letterbox-server/internal/game/cards"
	"github.com/letterbox/letterbox-server/internal/game/rules"
	"github.com/letterbox/letterbox-server/internal/game/targeting"
	"go.uber.org/zap"
)

// Outcome describes how a played card's effect ended.
type Outcome int

const (
	// OutcomeResolved means the effect was applied.
	OutcomeResolved Outcome = iota
	// OutcomeBlocked means the target was protected.
	OutcomeBlocked
	// OutcomeRejected means the target spec was invalid; the card is still spent.
	OutcomeRejected
	// OutcomeNoEffect means the card resolved without changing anything.
	OutcomeNoEffect
)

var outcomeNames = map[Outcome]string{
	OutcomeResolved: "RESOLVED",
	OutcomeBlocked:  "BLOCKED",
	OutcomeRejected: "REJECTED",
	OutcomeNoEffect: "NO_EFFECT",
}

// String returns the outcome name, e.g. NO_EFFECT.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("OUTCOME_%d", int(o))
}

// effectContext carries one card resolution.
type effectContext struct {
	round  *Round
	actor  *Player
	card   cards.Card
	spec   targeting.TargetSpec
	req    targeting.TargetRequirement
	result *PlayResult
}

// effectHandler applies a card. A returned error is an invariant violation;
// every player-caused failure is recorded on the result instead.
type effectHandler func(ec *effectContext) error

var effectHandlers = map[cards.Kind]effectHandler{
	cards.Guard:    resolveGuard,
	cards.Priest:   resolvePriest,
	cards.Baron:    resolveBaron,
	cards.Handmaid: resolveHandmaid,
	cards.Prince:   resolvePrince,
	cards.King:     resolveKing,
	cards.Countess: resolveCountess,
	cards.Princess: resolvePrincess,
	cards.Assassin: resolveAssassin,
}

func handlerFor(kind cards.Kind) (effectHandler, bool) {
	h, ok := effectHandlers[kind]
	return h, ok
}

// reject records a soft failure and tells only the actor.
func (ec *effectContext) reject(err error) {
	ec.result.Outcome = OutcomeRejected
	ec.result.Err = err
	ec.round.logger.Warn("card effect rejected",
		zap.String("player_id", ec.actor.ID),
		zap.String("card", ec.card.Name),
		zap.Error(err),
	)
	ev := rules.NewEvent(rules.EventError, err.Error())
	ev.ActorID = ec.actor.ID
	ev.Card = ec.card.Name
	ec.round.notify.toPlayer(ec.actor.ID, ev)
}

// lookupTarget validates the named target. ok is false when resolution has
// already finished (rejected, or nobody could be targeted).
func (ec *effectContext) lookupTarget() (*Player, bool) {
	info, err := ec.round.targets.ValidateTarget(ec.actor.ID, ec.spec, ec.req)
	if errors.Is(err, targeting.ErrNoEligibleTarget) {
		ec.result.Outcome = OutcomeNoEffect
		ev := ec.effectEvent(rules.EventNoTarget,
			fmt.Sprintf("%s played %s but nobody could be targeted.", ec.actor.Name, ec.card.Name))
		ec.round.notify.broadcast(ev)
		return nil, false
	}
	if err != nil {
		ec.reject(err)
		return nil, false
	}
	ec.result.TargetID = info.PlayerID
	return ec.round.seats[info.Seat], true
}

// shielded emits the protection outcome when the target is protected.
func (ec *effectContext) shielded(target *Player) bool {
	if !target.Protected {
		return false
	}
	ec.result.Outcome = OutcomeBlocked
	ev := ec.effectEvent(rules.EventBlocked,
		fmt.Sprintf("%s played %s on %s, but they are protected.", ec.actor.Name, ec.card.Name, target.Name))
	ev.TargetID = target.ID
	ec.round.notify.broadcast(ev)
	return true
}

func (ec *effectContext) effectEvent(t rules.EventType, message string) rules.Event {
	ev := rules.NewEvent(t, message)
	ev.ActorID = ec.actor.ID
	ev.Card = ec.card.Name
	return ev
}

func (ec *effectContext) announce(target *Player, message string) {
	ev := ec.effectEvent(rules.EventCardEffect, message)
	if target != nil {
		ev.TargetID = target.ID
	}
	ec.round.notify.broadcast(ev)
}

func heldCard(p *Player) (cards.Card, error) {
	if len(p.Hand) != 1 {
		return cards.Card{}, fmt.Errorf("%s holds %d cards", p.ID, len(p.Hand))
	}
	return p.Hand[0], nil
}

func resolveGuard(ec *effectContext) error {
	target, ok := ec.lookupTarget()
	if !ok {
		return nil
	}
	if err := targeting.ValidateGuess(ec.spec.GuessedRank, ec.round.variant); err != nil {
		ec.reject(err)
		return nil
	}
	guess := *ec.spec.GuessedRank
	ec.result.Guess = &guess
	if ec.shielded(target) {
		return nil
	}

	held, err := heldCard(target)
	if err != nil {
		return err
	}
	if target.Holds(cards.Assassin) {
		ec.announce(target, fmt.Sprintf("%s aimed a Guard at %s and was assassinated.", ec.actor.Name, target.Name))
		ec.round.eliminate(ec.actor, ec.result, "assassinated by "+target.Name)
		return nil
	}

	if held.Rank == guess {
		ec.round.eliminate(target, ec.result,
			fmt.Sprintf("%s guessed %s correctly", ec.actor.Name, held.Name))
		return nil
	}
	ev := ec.effectEvent(rules.EventCardEffect,
		fmt.Sprintf("%s guessed %s holds rank %d, but was wrong.", ec.actor.Name, target.Name, guess))
	ev.TargetID = target.ID
	ev.Guess = rules.IntPtr(guess)
	ec.round.notify.broadcast(ev)
	return nil
}

func resolvePriest(ec *effectContext) error {
	target, ok := ec.lookupTarget()
	if !ok || ec.shielded(target) {
		return nil
	}
	held, err := heldCard(target)
	if err != nil {
		return err
	}
	ec.announce(target, fmt.Sprintf("%s looked at %s's hand.", ec.actor.Name, target.Name))

	ev := ec.effectEvent(rules.EventPrivateInfo, fmt.Sprintf("%s holds %s.", target.Name, held))
	ev.TargetID = target.ID
	ev.Card = held.Name
	ev.Rank = rules.IntPtr(held.Rank)
	ec.round.notify.toPlayer(ec.actor.ID, ev)
	return nil
}

func resolveBaron(ec *effectContext) error {
	target, ok := ec.lookupTarget()
	if !ok || ec.shielded(target) {
		return nil
	}
	mine, err := heldCard(ec.actor)
	if err != nil {
		return err
	}
	theirs, err := heldCard(target)
	if err != nil {
		return err
	}

	// Both sides see the other's card.
	ec.round.revealTo(ec.actor, target, theirs)
	ec.round.revealTo(target, ec.actor, mine)

	switch {
	case mine.Rank > theirs.Rank:
		ec.round.eliminate(target, ec.result,
			fmt.Sprintf("lost a Baron comparison to %s", ec.actor.Name))
	case mine.Rank < theirs.Rank:
		ec.round.eliminate(ec.actor, ec.result,
			fmt.Sprintf("lost a Baron comparison to %s", target.Name))
	default:
		ec.announce(target, fmt.Sprintf("%s and %s compared hands and tied.", ec.actor.Name, target.Name))
	}
	return nil
}

func resolveHandmaid(ec *effectContext) error {
	ec.actor.Protected = true
	ec.announce(nil, fmt.Sprintf("%s is protected until their next turn.", ec.actor.Name))
	return nil
}

func resolvePrince(ec *effectContext) error {
	target, ok := ec.lookupTarget()
	if !ok || ec.shielded(target) {
		return nil
	}
	pile := ec.round.pile
	if pile.IsEmpty() {
		ec.result.Outcome = OutcomeNoEffect
		ec.announce(target, fmt.Sprintf("%s played Prince on %s, but the deck is empty.", ec.actor.Name, target.Name))
		return nil
	}
	held, err := heldCard(target)
	if err != nil {
		return err
	}
	if held.Kind == cards.Princess {
		ec.announce(target, fmt.Sprintf("%s made %s discard the Princess.", ec.actor.Name, target.Name))
		ec.round.eliminate(target, ec.result, "discarded the Princess")
		return nil
	}

	target.removeAt(0)
	pile.Discard(held)
	drawn, _ := pile.Draw()
	target.Hand = append(target.Hand, drawn)

	ev := ec.effectEvent(rules.EventCardEffect,
		fmt.Sprintf("%s made %s discard %s and draw a new card.", ec.actor.Name, target.Name, held))
	ev.TargetID = target.ID
	ev.Rank = rules.IntPtr(held.Rank)
	ev.Remaining = rules.IntPtr(pile.Remaining())
	ec.round.notify.broadcast(ev)

	private := rules.NewEvent(rules.EventPrivateInfo,
		fmt.Sprintf("You discarded %s and drew %s.", held, drawn))
	private.ActorID = ec.actor.ID
	private.Card = drawn.Name
	private.Hand = target.HandNames()
	ec.round.notify.toPlayer(target.ID, private)
	return nil
}

func resolveKing(ec *effectContext) error {
	target, ok := ec.lookupTarget()
	if !ok || ec.shielded(target) {
		return nil
	}
	if _, err := heldCard(ec.actor); err != nil {
		return err
	}
	if _, err := heldCard(target); err != nil {
		return err
	}
	ec.actor.Hand, target.Hand = target.Hand, ec.actor.Hand
	ec.announce(target, fmt.Sprintf("%s swapped hands with %s.", ec.actor.Name, target.Name))

	for _, p := range []*Player{ec.actor, target} {
		ev := ec.effectEvent(rules.EventPrivateInfo, fmt.Sprintf("You now hold %s.", p.Hand[0]))
		ev.TargetID = target.ID
		ev.Hand = p.HandNames()
		ec.round.notify.toPlayer(p.ID, ev)
	}
	return nil
}

func resolveCountess(ec *effectContext) error {
	ec.announce(nil, fmt.Sprintf("%s played the Countess.", ec.actor.Name))
	return nil
}

func resolvePrincess(ec *effectContext) error {
	ec.round.eliminate(ec.actor, ec.result, "discarded the Princess")
	return nil
}

func resolveAssassin(ec *effectContext) error {
	ec.result.Outcome = OutcomeNoEffect
	ec.announce(nil, fmt.Sprintf("%s played the Assassin. It has no effect.", ec.actor.Name))
	return nil
}
