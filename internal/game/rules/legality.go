package rules

import (
	"errors"
	"fmt"

	"github.com/letterbox/letterbox-server/internal/game/cards"
)

// ErrCountessRequired is returned when a hand holds the Countess together with
// the King or a Prince and the player tries to play the other card.
var ErrCountessRequired = errors.New("countess must be played while holding king or prince")

// LegalityResult represents the result of a legality check.
type LegalityResult struct {
	Legal   bool
	Reason  string
	Details map[string]string
}

// LegalityChecker validates hand-level play restrictions. The round engine
// does not enforce these; a table may opt in before handing a play over.
type LegalityChecker struct {
	enforceCountess bool
}

// NewLegalityChecker creates a checker. With enforceCountess false every
// in-bounds index is legal.
func NewLegalityChecker(enforceCountess bool) *LegalityChecker {
	return &LegalityChecker{enforceCountess: enforceCountess}
}

// CheckPlay reports whether playing hand[index] is legal.
func (lc *LegalityChecker) CheckPlay(hand []cards.Card, index int) LegalityResult {
	if index < 0 || index >= len(hand) {
		return LegalityResult{
			Legal:  false,
			Reason: "Card index out of range",
			Details: map[string]string{
				"index":     fmt.Sprint(index),
				"hand_size": fmt.Sprint(len(hand)),
			},
		}
	}
	if lc == nil || !lc.enforceCountess {
		return LegalityResult{Legal: true}
	}

	played := hand[index]
	if played.Kind == cards.Countess {
		return LegalityResult{Legal: true}
	}
	if MustPlayCountess(hand) {
		return LegalityResult{
			Legal:  false,
			Reason: ErrCountessRequired.Error(),
			Details: map[string]string{
				"attempted": played.Name,
			},
		}
	}
	return LegalityResult{Legal: true}
}

// Validate is CheckPlay returning an error suitable for callers.
func (lc *LegalityChecker) Validate(hand []cards.Card, index int) error {
	result := lc.CheckPlay(hand, index)
	if result.Legal {
		return nil
	}
	if result.Reason == ErrCountessRequired.Error() {
		return fmt.Errorf("cannot play %s: %w", result.Details["attempted"], ErrCountessRequired)
	}
	return errors.New(result.Reason)
}

// MustPlayCountess reports whether the hand forces the Countess to be played.
func MustPlayCountess(hand []cards.Card) bool {
	hasCountess, hasRoyal := false, false
	for _, c := range hand {
		switch c.Kind {
		case cards.Countess:
			hasCountess = true
		case cards.King, cards.Prince:
			hasRoyal = true
		}
	}
	return hasCountess && hasRoyal
}
