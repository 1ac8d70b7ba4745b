package targeting

import (
	"errors"
	"fmt"
	"strings"

	"github.com/letterbox/letterbox-server/internal/game/cards"
)

var (
	// ErrInvalidTarget is returned when the named player is not a legal target.
	ErrInvalidTarget = errors.New("invalid target player")
	// ErrNoEligibleTarget is returned when no target was named and nobody could be.
	ErrNoEligibleTarget = errors.New("no eligible target")
	// ErrInvalidGuess is returned for a missing or illegal Guard guess.
	ErrInvalidGuess = errors.New("invalid guess")
)

// SeatInfo is the validator's read-only view of a seated player.
type SeatInfo struct {
	PlayerID  string
	Seat      int
	Active    bool
	Protected bool
}

// SeatAccessor provides the seat lookups needed for target validation.
type SeatAccessor interface {
	// FindSeat finds a seated player by ID
	FindSeat(playerID string) (SeatInfo, bool)
	// SeatInfos returns every seat in seating order
	SeatInfos() []SeatInfo
}

// TargetValidator validates that selected targets are legal.
type TargetValidator struct {
	seats SeatAccessor
}

// NewTargetValidator creates a new target validator.
func NewTargetValidator(seats SeatAccessor) *TargetValidator {
	return &TargetValidator{seats: seats}
}

// EligibleTargets lists the players the actor could aim req at right now:
// active, unprotected, and not the actor unless self-targeting is allowed.
func (tv *TargetValidator) EligibleTargets(actorID string, req TargetRequirement) []string {
	if tv == nil || tv.seats == nil || req.Type == TargetTypeNone {
		return nil
	}
	var out []string
	for _, info := range tv.seats.SeatInfos() {
		if !info.Active || info.Protected {
			continue
		}
		if info.PlayerID == actorID && !req.AllowsSelf() {
			continue
		}
		out = append(out, info.PlayerID)
	}
	return out
}

// ValidateTarget resolves spec.TargetPlayerID for req. Protection is not an
// error here; the caller decides what a protected target means.
func (tv *TargetValidator) ValidateTarget(actorID string, spec TargetSpec, req TargetRequirement) (SeatInfo, error) {
	if tv == nil || tv.seats == nil {
		return SeatInfo{}, fmt.Errorf("target validator not initialized")
	}
	if req.Type == TargetTypeNone {
		return SeatInfo{}, nil
	}

	targetID := strings.TrimSpace(spec.TargetPlayerID)
	if targetID == "" {
		if len(tv.EligibleTargets(actorID, req)) == 0 {
			return SeatInfo{}, ErrNoEligibleTarget
		}
		return SeatInfo{}, fmt.Errorf("%w: a target is required (%s)", ErrInvalidTarget, req.Description)
	}

	info, ok := tv.seats.FindSeat(targetID)
	if !ok {
		return SeatInfo{}, fmt.Errorf("%w: %s is not seated", ErrInvalidTarget, targetID)
	}
	if !info.Active {
		return SeatInfo{}, fmt.Errorf("%w: %s is out of the round", ErrInvalidTarget, targetID)
	}
	if info.PlayerID == actorID && !req.AllowsSelf() {
		return SeatInfo{}, fmt.Errorf("%w: cannot target yourself", ErrInvalidTarget)
	}
	return info, nil
}

// ValidateGuess checks a Guard guess against the ranks in play.
func ValidateGuess(guess *int, variant cards.Variant) error {
	if guess == nil {
		return fmt.Errorf("%w: a rank must be named", ErrInvalidGuess)
	}
	if *guess == cards.MustLookup(cards.Guard).Rank {
		return fmt.Errorf("%w: you cannot guess Guard", ErrInvalidGuess)
	}
	if !cards.HasRank(variant, *guess) {
		return fmt.Errorf("%w: no card has rank %d", ErrInvalidGuess, *guess)
	}
	return nil
}
