package rules

import (
	"fmt"
)

// Phase is the round engine's position in the turn state machine.
type Phase int

const (
	PhaseSetup Phase = iota
	PhaseAwaitingPlay
	PhaseResolvingEffect
	PhaseCheckingEnd
	PhaseRoundEnded
)

var phaseNames = map[Phase]string{
	PhaseSetup:           "SETUP",
	PhaseAwaitingPlay:    "AWAITING_PLAY",
	PhaseResolvingEffect: "RESOLVING_EFFECT",
	PhaseCheckingEnd:     "CHECKING_END_CONDITIONS",
	PhaseRoundEnded:      "ROUND_ENDED",
}

// String returns the phase name.
func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// allowed lists legal transitions of the turn state machine.
var allowed = map[Phase][]Phase{
	PhaseSetup:           {PhaseAwaitingPlay, PhaseRoundEnded},
	PhaseAwaitingPlay:    {PhaseResolvingEffect, PhaseCheckingEnd, PhaseRoundEnded},
	PhaseResolvingEffect: {PhaseCheckingEnd, PhaseRoundEnded},
	PhaseCheckingEnd:     {PhaseAwaitingPlay, PhaseRoundEnded},
	PhaseRoundEnded:      {PhaseSetup},
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to Phase) bool {
	for _, p := range allowed[from] {
		if p == to {
			return true
		}
	}
	return false
}

// TurnManager tracks the current seat, the turn counter and the phase.
// Seats are indices into a fixed seating order.
type TurnManager struct {
	seats      int
	current    int
	turnNumber int
	phase      Phase
	turnBegun  bool
}

// NewTurnManager creates a turn manager for a table of the given size,
// positioned at startSeat in the setup phase.
func NewTurnManager(seats, startSeat int) *TurnManager {
	if startSeat < 0 || startSeat >= seats {
		startSeat = 0
	}
	return &TurnManager{
		seats:   seats,
		current: startSeat,
		phase:   PhaseSetup,
	}
}

// CurrentSeat returns the seat whose turn it is.
func (tm *TurnManager) CurrentSeat() int {
	return tm.current
}

// TurnNumber returns how many turns have begun (1-based once play starts).
func (tm *TurnManager) TurnNumber() int {
	return tm.turnNumber
}

// Phase returns the current state machine phase.
func (tm *TurnManager) Phase() Phase {
	return tm.phase
}

// TurnBegun reports whether BeginTurn has run for the current seat.
func (tm *TurnManager) TurnBegun() bool {
	return tm.turnBegun
}

// SetPhase moves the state machine, rejecting illegal transitions.
func (tm *TurnManager) SetPhase(to Phase) error {
	if tm.phase == to {
		return nil
	}
	if !CanTransition(tm.phase, to) {
		return fmt.Errorf("illegal phase transition %s -> %s", tm.phase, to)
	}
	tm.phase = to
	return nil
}

// MarkTurnBegun records that the current seat has started its turn.
func (tm *TurnManager) MarkTurnBegun() {
	tm.turnBegun = true
	tm.turnNumber++
}

// NextActiveSeat scans forward from just after from, wrapping around, and
// returns the first seat for which active is true. from itself is only
// considered after every other seat.
func NextActiveSeat(seats, from int, active func(seat int) bool) (int, bool) {
	if seats <= 0 {
		return -1, false
	}
	for step := 1; step <= seats; step++ {
		seat := ((from+step)%seats + seats) % seats
		if seat == from {
			continue
		}
		if active(seat) {
			return seat, true
		}
	}
	return -1, false
}

// Advance moves to the next active seat after the current one. It returns
// false, leaving the seat unchanged, when no other active seat exists.
func (tm *TurnManager) Advance(active func(seat int) bool) (int, bool) {
	next, ok := NextActiveSeat(tm.seats, tm.current, active)
	if !ok {
		return tm.current, false
	}
	tm.current = next
	tm.turnBegun = false
	return next, true
}
