package game

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/letterbox/letterbox-server/internal/game/cards"
	"github.com/letterbox/letterbox-server/internal/game/deck"
	"github.com/letterbox/letterbox-server/internal/game/rules"
	"github.com/letterbox/letterbox-server/internal/game/targeting"
	"go.uber.org/zap"
)

var (
	// ErrNotPlayersTurn is returned when someone other than the current seat plays.
	ErrNotPlayersTurn = errors.New("not your turn")
	// ErrInvalidCardIndex is returned for a hand index out of bounds.
	ErrInvalidCardIndex = errors.New("invalid card index")
	// ErrRoundNotActive is returned when the round has not started or has ended.
	ErrRoundNotActive = errors.New("round is not active")
	// ErrRoundInProgress is returned when initializing a round that is still running.
	ErrRoundInProgress = errors.New("round already in progress")
	// ErrTurnAlreadyBegun is returned by a second BeginTurn for the same seat.
	ErrTurnAlreadyBegun = errors.New("turn already begun")
	// ErrNotEnoughPlayers is returned when fewer than two players can be dealt in.
	ErrNotEnoughPlayers = errors.New("not enough players")
	// ErrTooManyPlayers is returned when the deck cannot deal everyone a hand and a draw.
	ErrTooManyPlayers = errors.New("too many players for the deck")
	// ErrDuplicatePlayer is returned when a player id is seated twice.
	ErrDuplicatePlayer = errors.New("duplicate player")
	// ErrPlayerNotFound is returned for an id that is not seated.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrInvariantViolation is returned when the round had to be aborted.
	ErrInvariantViolation = errors.New("round invariant violated")
)

// RoundConfig configures a round engine.
type RoundConfig struct {
	ID      string
	Variant cards.Variant
	// Composition overrides the variant's deck when non-empty.
	Composition []cards.Card
	Shuffler    deck.Shuffler
	Sink        rules.Sink
	Bus         *rules.EventBus
	Logger      *zap.Logger
	// OnEnd is called synchronously once the round has ended.
	OnEnd func(RoundResult)
	// Now overrides the event clock.
	Now func() time.Time
	// Recorder, when set, keeps a snapshot after the deal and every action.
	Recorder *ReplayRecorder
}

// RoundResult summarizes a finished round.
type RoundResult struct {
	RoundID string
	Winners []string
	Scores  map[string]int
	Aborted bool
	Reason  string
}

// PlayResult reports what a played card did.
type PlayResult struct {
	ActorID  string
	Card     cards.Card
	Outcome  Outcome
	TargetID string
	Guess    *int
	// Err holds the targeting error of a rejected play.
	Err        error
	Eliminated []string
	RoundEnded bool
	Winners    []string
	NextPlayer string
}

// Round is the authoritative state of one round: seating, draw pile and the
// turn state machine. It is not safe for concurrent use; callers serialize
// every call for a given round.
type Round struct {
	id          string
	variant     cards.Variant
	composition []cards.Card
	shuffler    deck.Shuffler
	logger      *zap.Logger
	notify      *notifier
	onEnd       func(RoundResult)
	recorder    *ReplayRecorder

	seats   []*Player
	pile    *deck.DrawPile
	turns   *rules.TurnManager
	targets *targeting.TargetValidator

	active  bool
	aborted bool
	reason  string
	winners []*Player
}

// NewRound creates a round engine. The round does nothing until InitializeRound.
func NewRound(cfg RoundConfig) (*Round, error) {
	variant := cfg.Variant
	if variant == "" {
		variant = cards.VariantClassic
	}
	composition := cfg.Composition
	if len(composition) == 0 {
		var err error
		composition, err = cards.Composition(variant)
		if err != nil {
			return nil, err
		}
	}
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("round_id", id))
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	r := &Round{
		id:          id,
		variant:     variant,
		composition: append([]cards.Card(nil), composition...),
		shuffler:    cfg.Shuffler,
		logger:      logger,
		onEnd:       cfg.OnEnd,
		recorder:    cfg.Recorder,
		notify: &notifier{
			roundID: id,
			sink:    cfg.Sink,
			bus:     cfg.Bus,
			logger:  logger,
			now:     now,
		},
	}
	r.targets = targeting.NewTargetValidator(seatView{r})
	return r, nil
}

// ID returns the round id.
func (r *Round) ID() string {
	return r.id
}

// Variant returns the card set in play.
func (r *Round) Variant() cards.Variant {
	return r.variant
}

// InitializeRound seats players, deals one card to each and begins the first
// turn. The first seated entry of lastWinners starts; otherwise seat 0.
// Players marked Left keep their seat but are not dealt in.
func (r *Round) InitializeRound(players []*Player, lastWinners []string) error {
	if r.active {
		return ErrRoundInProgress
	}

	seen := make(map[string]bool, len(players))
	dealt := 0
	for _, p := range players {
		if p == nil || p.ID == "" {
			return fmt.Errorf("%w: empty player id", ErrPlayerNotFound)
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicatePlayer, p.ID)
		}
		seen[p.ID] = true
		if !p.Left {
			dealt++
		}
	}
	if dealt < 2 {
		return fmt.Errorf("%w: %d can be dealt in", ErrNotEnoughPlayers, dealt)
	}
	if dealt >= len(r.composition) {
		return fmt.Errorf("%w: %d players, %d cards", ErrTooManyPlayers, dealt, len(r.composition))
	}

	pile := deck.NewDrawPile(r.shuffler)
	if err := pile.Initialize(r.composition); err != nil {
		return err
	}

	r.pile = pile
	r.seats = append([]*Player(nil), players...)
	r.winners = nil
	r.aborted = false
	r.reason = ""
	for _, p := range r.seats {
		p.resetForRound()
	}
	r.turns = rules.NewTurnManager(len(r.seats), r.startingSeat(lastWinners))
	r.active = true
	if r.recorder != nil {
		r.recorder.StartRecording(r.id)
	}

	r.logger.Info("round started",
		zap.String("variant", string(r.variant)),
		zap.Int("players", dealt),
		zap.String("starting_player", r.seats[r.turns.CurrentSeat()].ID),
	)

	start := rules.NewEvent(rules.EventRoundStart,
		fmt.Sprintf("A new round begins. %s goes first.", r.seats[r.turns.CurrentSeat()].Name))
	start.PlayerID = r.seats[r.turns.CurrentSeat()].ID
	start.Scores = r.ScoresSnapshot()
	start.Remaining = rules.IntPtr(r.pile.Remaining())
	r.notify.broadcast(start)

	for _, p := range r.seats {
		if !p.Active {
			continue
		}
		card, ok := r.pile.Draw()
		if !ok {
			return r.abort("draw pile ran out while dealing")
		}
		p.Hand = append(p.Hand, card)
		ev := rules.NewEvent(rules.EventDealCard, fmt.Sprintf("You were dealt %s.", card))
		ev.PlayerID = p.ID
		ev.Card = card.Name
		ev.Hand = p.HandNames()
		r.notify.toPlayer(p.ID, ev)
	}

	if err := r.BeginTurn(); err != nil {
		return err
	}
	r.record()
	return nil
}

func (r *Round) startingSeat(lastWinners []string) int {
	for _, id := range lastWinners {
		for i, p := range r.seats {
			if p.ID == id && !p.Left {
				return i
			}
		}
	}
	if !r.seats[0].Left {
		return 0
	}
	seat, _ := rules.NextActiveSeat(len(r.seats), 0, func(s int) bool { return !r.seats[s].Left })
	return seat
}

// BeginTurn starts the current seat's turn: clears their protection and draws
// them a card when the pile is not empty.
func (r *Round) BeginTurn() error {
	if !r.active {
		return ErrRoundNotActive
	}
	if r.turns.TurnBegun() {
		return ErrTurnAlreadyBegun
	}
	p := r.seats[r.turns.CurrentSeat()]
	if !p.Active {
		return r.abort(fmt.Sprintf("turn began on inactive seat %d", r.turns.CurrentSeat()))
	}
	if len(p.Hand) != 1 {
		return r.abort(fmt.Sprintf("%s began a turn holding %d cards", p.ID, len(p.Hand)))
	}
	if err := r.turns.SetPhase(rules.PhaseAwaitingPlay); err != nil {
		return r.abort(err.Error())
	}

	p.Protected = false
	r.turns.MarkTurnBegun()

	ev := rules.NewEvent(rules.EventNextTurn, fmt.Sprintf("It is %s's turn.", p.Name))
	ev.PlayerID = p.ID
	ev.Remaining = rules.IntPtr(r.pile.Remaining())
	r.notify.broadcast(ev)

	card, ok := r.pile.Draw()
	if !ok {
		r.logger.Debug("turn began with an empty pile", zap.String("player_id", p.ID))
		return nil
	}
	p.Hand = append(p.Hand, card)

	drawn := rules.NewEvent(rules.EventDrawCard, fmt.Sprintf("You drew %s.", card))
	drawn.PlayerID = p.ID
	drawn.Card = card.Name
	drawn.Hand = p.HandNames()
	drawn.Remaining = rules.IntPtr(r.pile.Remaining())
	r.notify.toPlayer(p.ID, drawn)

	r.logger.Debug("turn begun",
		zap.String("player_id", p.ID),
		zap.Int("turn", r.turns.TurnNumber()),
		zap.Int("deck_remaining", r.pile.Remaining()),
	)
	return nil
}

// HandlePlayedCard plays hand[index] for actorID. Protocol violations return
// an error and leave the round untouched. Once the card leaves the hand the
// play runs to completion; a bad target is reported in PlayResult.Err.
func (r *Round) HandlePlayedCard(actorID string, index int, spec targeting.TargetSpec) (PlayResult, error) {
	if !r.active {
		r.protocolError(actorID, ErrRoundNotActive)
		return PlayResult{}, ErrRoundNotActive
	}
	actor := r.seats[r.turns.CurrentSeat()]
	if actor.ID != actorID {
		err := fmt.Errorf("%w: it is %s's turn", ErrNotPlayersTurn, actor.Name)
		r.protocolError(actorID, err)
		return PlayResult{}, err
	}
	if index < 0 || index >= len(actor.Hand) {
		err := fmt.Errorf("%w: %d with %d cards in hand", ErrInvalidCardIndex, index, len(actor.Hand))
		r.protocolError(actorID, err)
		return PlayResult{}, err
	}
	if err := r.turns.SetPhase(rules.PhaseResolvingEffect); err != nil {
		return PlayResult{}, r.abort(err.Error())
	}

	card := actor.removeAt(index)
	r.pile.Discard(card)

	played := rules.NewEvent(rules.EventCardPlayed, fmt.Sprintf("%s played %s.", actor.Name, card))
	played.ActorID = actor.ID
	played.Card = card.Name
	played.Rank = rules.IntPtr(card.Rank)
	r.notify.broadcast(played)

	result := PlayResult{ActorID: actor.ID, Card: card, Outcome: OutcomeResolved}
	handler, ok := handlerFor(card.Kind)
	if !ok {
		return result, r.abort(fmt.Sprintf("no handler for %s", card.Kind))
	}
	ec := &effectContext{
		round:  r,
		actor:  actor,
		card:   card,
		spec:   spec,
		req:    targeting.RequirementFor(card.Kind),
		result: &result,
	}
	if err := handler(ec); err != nil {
		return result, r.abort(err.Error())
	}
	if err := r.checkInvariants(); err != nil {
		return result, r.abort(err.Error())
	}

	r.logger.Debug("card resolved",
		zap.String("player_id", actor.ID),
		zap.String("card", card.Name),
		zap.Stringer("outcome", result.Outcome),
		zap.String("target_id", result.TargetID),
	)

	if err := r.afterAction(true, &result); err != nil {
		return result, err
	}
	if r.active {
		r.record()
	}
	return result, nil
}

// afterAction checks end conditions and, if the round goes on, hands the
// turn on when advance is set.
func (r *Round) afterAction(advance bool, result *PlayResult) error {
	if err := r.turns.SetPhase(rules.PhaseCheckingEnd); err != nil {
		return r.abort(err.Error())
	}
	if r.CheckEndConditions() {
		result.RoundEnded = true
		result.Winners = r.winnerIDs()
		return nil
	}
	if !advance {
		return r.turns.SetPhase(rules.PhaseAwaitingPlay)
	}
	if _, ok := r.turns.Advance(r.seatActive); !ok {
		return r.abort("no active seat to advance to")
	}
	if err := r.BeginTurn(); err != nil {
		return err
	}
	result.NextPlayer = r.seats[r.turns.CurrentSeat()].ID
	return nil
}

// AdvanceToNextActive returns the first active seat after from, wrapping
// around. ok is false when no other seat is active.
func (r *Round) AdvanceToNextActive(from int) (int, bool) {
	return rules.NextActiveSeat(len(r.seats), from, r.seatActive)
}

func (r *Round) seatActive(seat int) bool {
	return r.seats[seat].Active
}

// CheckEndConditions ends the round when at most one player is active or the
// draw pile is empty, and reports whether the round is over.
func (r *Round) CheckEndConditions() bool {
	if !r.active {
		return r.turns != nil && r.turns.Phase() == rules.PhaseRoundEnded
	}
	if r.activeCount() > 1 && !r.pile.IsEmpty() {
		return false
	}
	r.finish()
	return true
}

// DetermineWinners returns the sole active player, or every active player
// sharing the highest final hand value.
func (r *Round) DetermineWinners() []*Player {
	var active []*Player
	for _, p := range r.seats {
		if p.Active {
			active = append(active, p)
		}
	}
	if len(active) <= 1 {
		return active
	}

	best := active[0].FinalValue()
	for _, p := range active[1:] {
		if v := p.FinalValue(); v > best {
			best = v
		}
	}
	var winners []*Player
	for _, p := range active {
		if p.FinalValue() == best {
			winners = append(winners, p)
		}
	}
	return winners
}

// Forfeit eliminates a player outside the normal flow, for a player who left
// the table. If it was their turn the turn passes on.
func (r *Round) Forfeit(playerID string) (PlayResult, error) {
	if !r.active {
		return PlayResult{}, ErrRoundNotActive
	}
	p, seat := r.find(playerID)
	if p == nil {
		return PlayResult{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	result := PlayResult{ActorID: playerID, Outcome: OutcomeResolved}
	if !p.Active {
		result.Outcome = OutcomeNoEffect
		return result, nil
	}
	wasTurn := seat == r.turns.CurrentSeat()
	r.eliminate(p, &result, "forfeited")

	if err := r.afterAction(wasTurn, &result); err != nil {
		return result, err
	}
	if r.active {
		r.record()
	}
	return result, nil
}

func (r *Round) finish() {
	r.winners = r.DetermineWinners()
	for _, p := range r.winners {
		p.Score++
	}
	r.end(false, "")
}

// abort ends the round without winners.
func (r *Round) abort(reason string) error {
	r.logger.Error("round aborted", zap.String("reason", reason))
	if r.active {
		r.winners = nil
		r.end(true, reason)
	}
	return fmt.Errorf("%w: %s", ErrInvariantViolation, reason)
}

func (r *Round) end(aborted bool, reason string) {
	r.active = false
	r.aborted = aborted
	r.reason = reason
	if r.turns != nil {
		if err := r.turns.SetPhase(rules.PhaseRoundEnded); err != nil {
			r.logger.Warn("unexpected phase at round end", zap.Error(err))
		}
	}

	winners := r.winnerIDs()
	ev := rules.NewEvent(rules.EventRoundEnd, r.endMessage())
	ev.Winners = winners
	ev.Scores = r.ScoresSnapshot()
	ev.Aborted = aborted
	r.notify.broadcast(ev)

	r.logger.Info("round ended",
		zap.Strings("winners", winners),
		zap.Bool("aborted", aborted),
		zap.Int("deck_remaining", r.pile.Remaining()),
	)

	r.record()
	if r.recorder != nil {
		r.recorder.StopRecording(r.id)
	}

	if r.onEnd != nil {
		r.onEnd(RoundResult{
			RoundID: r.id,
			Winners: winners,
			Scores:  r.ScoresSnapshot(),
			Aborted: aborted,
			Reason:  reason,
		})
	}
}

func (r *Round) endMessage() string {
	if r.aborted {
		return "The round was aborted: " + r.reason
	}
	if len(r.winners) == 0 {
		return "The round ended with no winner."
	}
	var sb strings.Builder
	names := make([]string, len(r.winners))
	for i, p := range r.winners {
		names[i] = p.Name
	}
	sb.WriteString(strings.Join(names, " and "))
	if len(names) == 1 {
		sb.WriteString(" wins the round.")
	} else {
		sb.WriteString(" share the round.")
	}
	if r.activeCount() > 1 {
		sb.WriteString(" Final hands:")
		for _, p := range r.seats {
			if card, ok := p.HeldCard(); ok && p.Active {
				fmt.Fprintf(&sb, " %s %s;", p.Name, card)
			}
		}
	}
	return strings.TrimSuffix(sb.String(), ";")
}

func (r *Round) record() {
	if r.recorder != nil {
		r.recorder.RecordState(r.id, r.Snapshot())
	}
}

// eliminate knocks p out of the round and discards their hand face up.
func (r *Round) eliminate(p *Player, result *PlayResult, reason string) {
	hand := p.takeHand()
	for _, c := range hand {
		r.pile.Discard(c)
	}
	p.Active = false
	p.Protected = false
	result.Eliminated = append(result.Eliminated, p.ID)

	names := make([]string, len(hand))
	for i, c := range hand {
		names[i] = c.Name
	}
	ev := rules.NewEvent(rules.EventPlayerEliminated,
		fmt.Sprintf("%s is out of the round: %s.", p.Name, reason))
	ev.PlayerID = p.ID
	ev.ActorID = result.ActorID
	ev.Hand = names
	if len(hand) == 1 {
		ev.Card = hand[0].Name
		ev.Rank = rules.IntPtr(hand[0].Rank)
	}
	r.notify.broadcast(ev)

	r.logger.Info("player eliminated",
		zap.String("player_id", p.ID),
		zap.String("reason", reason),
	)
}

// revealTo privately shows viewer the card held by subject.
func (r *Round) revealTo(viewer, subject *Player, card cards.Card) {
	ev := rules.NewEvent(rules.EventPrivateInfo, fmt.Sprintf("%s holds %s.", subject.Name, card))
	ev.ActorID = viewer.ID
	ev.TargetID = subject.ID
	ev.Card = card.Name
	ev.Rank = rules.IntPtr(card.Rank)
	r.notify.toPlayer(viewer.ID, ev)
}

func (r *Round) protocolError(playerID string, err error) {
	r.logger.Warn("rejected play", zap.String("player_id", playerID), zap.Error(err))
	ev := rules.NewEvent(rules.EventError, err.Error())
	ev.PlayerID = playerID
	r.notify.toPlayer(playerID, ev)
}

// checkInvariants verifies hand sizes and card conservation between actions.
func (r *Round) checkInvariants() error {
	total := r.pile.Remaining() + len(r.pile.Discards())
	for _, p := range r.seats {
		total += len(p.Hand)
		switch {
		case p.Active && len(p.Hand) != 1:
			return fmt.Errorf("active player %s holds %d cards", p.ID, len(p.Hand))
		case !p.Active && len(p.Hand) != 0:
			return fmt.Errorf("eliminated player %s holds %d cards", p.ID, len(p.Hand))
		}
	}
	if total != len(r.composition) {
		return fmt.Errorf("card count %d, deck has %d", total, len(r.composition))
	}
	return nil
}

func (r *Round) activeCount() int {
	n := 0
	for _, p := range r.seats {
		if p.Active {
			n++
		}
	}
	return n
}

func (r *Round) find(playerID string) (*Player, int) {
	for i, p := range r.seats {
		if p.ID == playerID {
			return p, i
		}
	}
	return nil, -1
}

func (r *Round) winnerIDs() []string {
	ids := make([]string, len(r.winners))
	for i, p := range r.winners {
		ids[i] = p.ID
	}
	return ids
}

// CurrentSeatID returns the id of the player whose turn it is, or "" when
// the round is not running.
func (r *Round) CurrentSeatID() string {
	if !r.active {
		return ""
	}
	return r.seats[r.turns.CurrentSeat()].ID
}

// TurnNumber counts the turns begun this round.
func (r *Round) TurnNumber() int {
	if r.turns == nil {
		return 0
	}
	return r.turns.TurnNumber()
}

// IsRoundActive reports whether the round is in progress.
func (r *Round) IsRoundActive() bool {
	return r.active
}

// ScoresSnapshot returns a copy of every seated player's score.
func (r *Round) ScoresSnapshot() map[string]int {
	scores := make(map[string]int, len(r.seats))
	for _, p := range r.seats {
		scores[p.ID] = p.Score
	}
	return scores
}

// Player returns a seated player by id.
func (r *Round) Player(playerID string) (*Player, bool) {
	p, _ := r.find(playerID)
	return p, p != nil
}

// Seats returns the seating order.
func (r *Round) Seats() []*Player {
	return append([]*Player(nil), r.seats...)
}

// Phase returns the state machine phase.
func (r *Round) Phase() rules.Phase {
	if r.turns == nil {
		return rules.PhaseSetup
	}
	return r.turns.Phase()
}

// Winners returns the winners of a finished round.
func (r *Round) Winners() []*Player {
	return append([]*Player(nil), r.winners...)
}

// Aborted reports whether the round ended on an invariant violation.
func (r *Round) Aborted() bool {
	return r.aborted
}

// seatView exposes the seating to the target validator.
type seatView struct {
	r *Round
}

func (v seatView) FindSeat(playerID string) (targeting.SeatInfo, bool) {
	p, seat := v.r.find(playerID)
	if p == nil {
		return targeting.SeatInfo{}, false
	}
	return targeting.SeatInfo{PlayerID: p.ID, Seat: seat, Active: p.Active, Protected: p.Protected}, true
}

func (v seatView) SeatInfos() []targeting.SeatInfo {
	out := make([]targeting.SeatInfo, len(v.r.seats))
	for i, p := range v.r.seats {
		out[i] = targeting.SeatInfo{PlayerID: p.ID, Seat: i, Active: p.Active, Protected: p.Protected}
	}
	return out
}
