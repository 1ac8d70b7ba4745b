package targeting

import (
	"fmt"
	"strings"

	"github.com/letterbox/letterbox-server/internal/game/cards"
)

// TargetType describes who a card may be aimed at.
type TargetType string

const (
	// TargetTypeNone marks cards that resolve without a target.
	TargetTypeNone TargetType = "NONE"
	// TargetTypeOpponent requires another active player.
	TargetTypeOpponent TargetType = "OPPONENT"
	// TargetTypeAnyPlayer allows any active player, including the actor.
	TargetTypeAnyPlayer TargetType = "ANY_PLAYER"
)

// TargetRequirement defines what a card needs from the command payload.
type TargetRequirement struct {
	Type       TargetType
	NeedsGuess bool
	// Description is a human-readable description of the target requirement
	Description string
}

// AllowsSelf reports whether the actor may name themselves.
func (r TargetRequirement) AllowsSelf() bool {
	return r.Type == TargetTypeAnyPlayer
}

var requirements = map[cards.Kind]TargetRequirement{
	cards.Guard:    {Type: TargetTypeOpponent, NeedsGuess: true, Description: "another player and a non-Guard rank"},
	cards.Priest:   {Type: TargetTypeOpponent, Description: "another player"},
	cards.Baron:    {Type: TargetTypeOpponent, Description: "another player"},
	cards.Handmaid: {Type: TargetTypeNone, Description: "no target"},
	cards.Prince:   {Type: TargetTypeAnyPlayer, Description: "any player, including yourself"},
	cards.King:     {Type: TargetTypeOpponent, Description: "another player"},
	cards.Countess: {Type: TargetTypeNone, Description: "no target"},
	cards.Princess: {Type: TargetTypeNone, Description: "no target"},
	cards.Assassin: {Type: TargetTypeNone, Description: "no target"},
}

// RequirementFor returns the targeting requirement of a card kind.
func RequirementFor(kind cards.Kind) TargetRequirement {
	if req, ok := requirements[kind]; ok {
		return req
	}
	return TargetRequirement{Type: TargetTypeNone, Description: "no target"}
}

// TargetSpec is the target portion of a play command.
type TargetSpec struct {
	TargetPlayerID string `json:"target_player_id,omitempty"`
	GuessedRank    *int   `json:"guessed_rank,omitempty"`
}

// Target builds a spec naming only a player.
func Target(playerID string) TargetSpec {
	return TargetSpec{TargetPlayerID: playerID}
}

// Guess builds a Guard spec.
func Guess(playerID string, rank int) TargetSpec {
	return TargetSpec{TargetPlayerID: playerID, GuessedRank: &rank}
}

// HasTarget reports whether a player id was supplied.
func (s TargetSpec) HasTarget() bool {
	return strings.TrimSpace(s.TargetPlayerID) != ""
}

func (s TargetSpec) String() string {
	if s.GuessedRank != nil {
		return fmt.Sprintf("target=%s guess=%d", s.TargetPlayerID, *s.GuessedRank)
	}
	if s.HasTarget() {
		return "target=" + s.TargetPlayerID
	}
	return "no target"
}
