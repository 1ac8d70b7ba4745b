package table

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/letterbox/letterbox-server/internal/config"
	"github.com/letterbox/letterbox-server/internal/game"
	"github.com/letterbox/letterbox-server/internal/game/cards"
	"github.com/letterbox/letterbox-server/internal/game/deck"
	"github.com/letterbox/letterbox-server/internal/game/rules"
	"github.com/letterbox/letterbox-server/internal/game/targeting"
	"go.uber.org/zap"
)

var (
	// ErrTableFull is returned when every seat is taken.
	ErrTableFull = errors.New("table is full")
	// ErrAlreadySeated is returned when a player joins a table twice.
	ErrAlreadySeated = errors.New("player already seated")
	// ErrNotSeated is returned for commands from a player without a seat.
	ErrNotSeated = errors.New("player is not seated")
	// ErrAlreadyStarted is returned when joining or starting after the match began.
	ErrAlreadyStarted = errors.New("match already started")
	// ErrNotEnoughPlayers is returned by Start below the minimum seat count.
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	// ErrNotPlaying is returned for plays while no round is in progress.
	ErrNotPlaying = errors.New("no round in progress")
	// ErrTableClosed is returned once the command loop has stopped.
	ErrTableClosed = errors.New("table closed")
)

// State is the table lifecycle state.
type State int

const (
	// StateWaiting accepts joins until the match starts.
	StateWaiting State = iota
	// StatePlaying has a round in progress.
	StatePlaying
	// StateBetweenRounds waits out the round delay.
	StateBetweenRounds
	// StateFinished has a champion; no more rounds are dealt.
	StateFinished
)

var stateNames = map[State]string{
	StateWaiting:       "WAITING",
	StatePlaying:       "PLAYING",
	StateBetweenRounds: "BETWEEN_ROUNDS",
	StateFinished:      "FINISHED",
}

// String returns the wire name of the state, e.g. WAITING.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Options are the rules a table plays by.
type Options struct {
	Name            string
	Variant         cards.Variant
	MinPlayers      int
	MaxPlayers      int
	TurnTimeout     time.Duration // zero disables autoplay
	RoundDelay      time.Duration
	TokensToWin     int // zero picks by player count
	EnforceCountess bool
	Seed            uint64 // zero shuffles randomly
	ReplayDir       string // empty disables replays
}

// OptionsFromConfig maps the game section of the configuration.
func OptionsFromConfig(cfg config.GameConfig) Options {
	variant, err := cards.ParseVariant(cfg.Variant)
	if err != nil {
		variant = cards.VariantClassic
	}
	return Options{
		Variant:         variant,
		MinPlayers:      cfg.MinPlayers,
		MaxPlayers:      cfg.MaxPlayers,
		TurnTimeout:     cfg.TurnTimeout,
		RoundDelay:      cfg.RoundDelay,
		TokensToWin:     cfg.TokensToWin,
		EnforceCountess: cfg.EnforceCountess,
		Seed:            cfg.Seed,
		ReplayDir:       cfg.ReplayDir,
	}
}

func (o Options) withDefaults() Options {
	if o.Variant == "" {
		o.Variant = cards.VariantClassic
	}
	if o.MinPlayers < 2 {
		o.MinPlayers = 2
	}
	if o.MaxPlayers < o.MinPlayers {
		o.MaxPlayers = 4
		if o.MaxPlayers < o.MinPlayers {
			o.MaxPlayers = o.MinPlayers
		}
	}
	return o
}

// TargetTokens is the number of round wins that takes the match.
func TargetTokens(players, override int) int {
	if override > 0 {
		return override
	}
	switch {
	case players <= 2:
		return 7
	case players == 3:
		return 5
	case players == 4:
		return 4
	default:
		return 3
	}
}

// SeatInfo describes one seated player.
type SeatInfo struct {
	PlayerID string
	Name     string
	Score    int
	Left     bool
}

// Info is a point-in-time view of a table, safe to read from any goroutine.
type Info struct {
	ID            string
	Name          string
	State         State
	Variant       cards.Variant
	Players       []SeatInfo
	Round         int
	CurrentPlayer string
	TargetTokens  int
	Champions     []string
}

// Seated counts players who have not left.
func (i Info) Seated() int {
	n := 0
	for _, p := range i.Players {
		if !p.Left {
			n++
		}
	}
	return n
}

// Table runs a match for one group of players. Every mutation goes through a
// single command loop, so the round engine is never touched concurrently.
type Table struct {
	ID string

	opts     Options
	sink     rules.Sink
	bus      *rules.EventBus
	clock    quartz.Clock
	logger   *zap.Logger
	legality *rules.LegalityChecker
	shuffler deck.Shuffler
	replays  *game.ReplayRecorder
	// onEmpty runs on the command loop once the last seated player leaves.
	onEmpty func(tableID string)

	commands chan func()
	quit     chan struct{}
	done     chan struct{}
	closeMu  sync.Once

	// Owned by the command loop.
	state       State
	players     []*game.Player
	round       *game.Round
	roundNum    int
	lastWinners []string
	target      int
	champions   []string
	turnTimer   *quartz.Timer
	roundTimer  *quartz.Timer

	infoMu sync.RWMutex
	info   Info
}

// New creates a table. Call Run to start processing commands.
func New(opts Options, sink rules.Sink, clock quartz.Clock, logger *zap.Logger) *Table {
	return newTable(uuid.NewString(), opts, sink, clock, logger)
}

func newTable(id string, opts Options, sink rules.Sink, clock quartz.Clock, logger *zap.Logger) *Table {
	opts = opts.withDefaults()
	if clock == nil {
		clock = quartz.NewReal()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var shuffler deck.Shuffler
	if opts.Seed != 0 {
		shuffler = deck.NewSeededShuffler(opts.Seed)
	}
	logger = logger.With(zap.String("table_id", id))
	var replays *game.ReplayRecorder
	if opts.ReplayDir != "" {
		replays = game.NewReplayRecorder(logger, opts.ReplayDir)
	}
	t := &Table{
		ID:       id,
		opts:     opts,
		sink:     sink,
		bus:      rules.NewEventBus(),
		clock:    clock,
		logger:   logger,
		legality: rules.NewLegalityChecker(opts.EnforceCountess),
		shuffler: shuffler,
		replays:  replays,
		commands: make(chan func()),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		state:    StateWaiting,
	}
	t.publishInfo()
	return t
}

// Bus exposes every event the table's rounds emit.
func (t *Table) Bus() *rules.EventBus {
	return t.bus
}

// Run processes commands until ctx is cancelled or Close is called.
func (t *Table) Run(ctx context.Context) error {
	defer close(t.done)
	t.logger.Info("table loop started", zap.String("name", t.opts.Name))
	for {
		select {
		case <-ctx.Done():
			t.stopTimers()
			return ctx.Err()
		case <-t.quit:
			t.stopTimers()
			t.logger.Info("table closed")
			return nil
		case cmd := <-t.commands:
			cmd()
		}
	}
}

// Close stops the command loop.
func (t *Table) Close() {
	t.closeMu.Do(func() { close(t.quit) })
}

// Done is closed when the command loop has exited.
func (t *Table) Done() <-chan struct{} {
	return t.done
}

// do runs fn on the command loop and waits for it.
func (t *Table) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	cmd := func() {
		defer close(finished)
		fn()
	}
	select {
	case t.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return ErrTableClosed
	}
	select {
	case <-finished:
		return nil
	case <-t.done:
		return ErrTableClosed
	}
}

// enqueue hands fn to the loop from a timer goroutine.
func (t *Table) enqueue(fn func()) {
	select {
	case t.commands <- fn:
	case <-t.done:
	}
}

// Info returns the latest published view of the table.
func (t *Table) Info() Info {
	t.infoMu.RLock()
	defer t.infoMu.RUnlock()
	info := t.info
	info.Players = append([]SeatInfo(nil), t.info.Players...)
	info.Champions = append([]string(nil), t.info.Champions...)
	return info
}

func (t *Table) publishInfo() {
	info := Info{
		ID:           t.ID,
		Name:         t.opts.Name,
		State:        t.state,
		Variant:      t.opts.Variant,
		Round:        t.roundNum,
		TargetTokens: t.target,
		Champions:    append([]string(nil), t.champions...),
	}
	for _, p := range t.players {
		info.Players = append(info.Players, SeatInfo{PlayerID: p.ID, Name: p.Name, Score: p.Score, Left: p.Left})
	}
	if t.round != nil {
		info.CurrentPlayer = t.round.CurrentSeatID()
	}
	t.infoMu.Lock()
	t.info = info
	t.infoMu.Unlock()
}

// Join seats a player before the match starts.
func (t *Table) Join(ctx context.Context, playerID, name string) error {
	var err error
	if doErr := t.do(ctx, func() { err = t.join(playerID, name) }); doErr != nil {
		return doErr
	}
	return err
}

func (t *Table) join(playerID, name string) error {
	if t.state != StateWaiting {
		return ErrAlreadyStarted
	}
	if t.seated(playerID) != nil {
		return fmt.Errorf("%w: %s", ErrAlreadySeated, playerID)
	}
	if len(t.players) >= t.opts.MaxPlayers {
		return fmt.Errorf("%w: %d seats", ErrTableFull, t.opts.MaxPlayers)
	}
	p := game.NewPlayer(playerID, name)
	t.players = append(t.players, p)

	ev := t.tableEvent(rules.EventPlayerJoined, fmt.Sprintf("%s joined the table.", p.Name))
	ev.PlayerID = p.ID
	t.broadcast(ev)
	t.logger.Info("player joined", zap.String("player_id", playerID), zap.Int("seated", len(t.players)))
	t.publishInfo()
	return nil
}

// Leave removes a player. During a match they forfeit the current round and
// are not dealt in again.
func (t *Table) Leave(ctx context.Context, playerID string) error {
	var err error
	if doErr := t.do(ctx, func() { err = t.leave(playerID) }); doErr != nil {
		return doErr
	}
	return err
}

func (t *Table) leave(playerID string) error {
	p := t.seated(playerID)
	if p == nil || p.Left {
		return fmt.Errorf("%w: %s", ErrNotSeated, playerID)
	}
	defer t.publishInfo()

	ev := t.tableEvent(rules.EventPlayerLeft, fmt.Sprintf("%s left the table.", p.Name))
	ev.PlayerID = p.ID

	if t.state == StateWaiting || t.state == StateFinished {
		for i, seated := range t.players {
			if seated.ID == playerID {
				t.players = append(t.players[:i], t.players[i+1:]...)
				break
			}
		}
		t.broadcast(ev)
		t.logger.Info("player left", zap.String("player_id", playerID))
		t.releaseIfEmpty()
		return nil
	}

	p.Left = true
	t.broadcast(ev)
	t.logger.Info("player left mid-match", zap.String("player_id", playerID))

	if t.round != nil && t.round.IsRoundActive() {
		if _, err := t.round.Forfeit(playerID); err != nil {
			t.logger.Warn("forfeit failed", zap.String("player_id", playerID), zap.Error(err))
		}
		t.armTurnTimer()
	}
	if t.state != StateFinished && t.remaining() < 2 {
		var last []string
		for _, seated := range t.players {
			if !seated.Left {
				last = append(last, seated.ID)
			}
		}
		t.finishMatch(last, "not enough players remain")
	}
	t.releaseIfEmpty()
	return nil
}

func (t *Table) releaseIfEmpty() {
	if t.remaining() > 0 || t.onEmpty == nil {
		return
	}
	t.logger.Info("table abandoned", zap.String("state", t.state.String()))
	t.onEmpty(t.ID)
}

// Start begins the match.
func (t *Table) Start(ctx context.Context) error {
	var err error
	if doErr := t.do(ctx, func() { err = t.start() }); doErr != nil {
		return doErr
	}
	return err
}

func (t *Table) start() error {
	if t.state != StateWaiting {
		return ErrAlreadyStarted
	}
	if len(t.players) < t.opts.MinPlayers {
		return fmt.Errorf("%w: %d of %d", ErrNotEnoughPlayers, len(t.players), t.opts.MinPlayers)
	}
	t.target = TargetTokens(len(t.players), t.opts.TokensToWin)

	ev := t.tableEvent(rules.EventMatchStart,
		fmt.Sprintf("The match begins. First to %d tokens wins.", t.target))
	ev.Rank = rules.IntPtr(t.target)
	t.broadcast(ev)
	t.logger.Info("match started",
		zap.Int("players", len(t.players)),
		zap.Int("target_tokens", t.target),
		zap.String("variant", string(t.opts.Variant)),
	)
	return t.startRound()
}

func (t *Table) startRound() error {
	t.roundTimer = nil
	if t.state == StateFinished {
		return nil
	}
	round, err := game.NewRound(game.RoundConfig{
		Variant:  t.opts.Variant,
		Shuffler: t.shuffler,
		Sink:     t.sink,
		Bus:      t.bus,
		Logger:   t.logger,
		OnEnd:    t.onRoundEnd,
		Recorder: t.replays,
	})
	if err != nil {
		return err
	}
	t.roundNum++
	t.round = round
	t.state = StatePlaying
	if err := round.InitializeRound(t.players, t.lastWinners); err != nil {
		t.logger.Error("failed to start round", zap.Int("round", t.roundNum), zap.Error(err))
		t.state = StateBetweenRounds
		t.publishInfo()
		return err
	}
	t.armTurnTimer()
	t.publishInfo()
	return nil
}

// onRoundEnd runs inside the engine call that ended the round.
func (t *Table) onRoundEnd(result game.RoundResult) {
	t.stopTurnTimer()
	if t.replays != nil {
		if err := t.replays.SaveReplay(result.RoundID); err != nil {
			t.logger.Warn("failed to save replay", zap.String("round_id", result.RoundID), zap.Error(err))
		}
	}
	if len(result.Winners) > 0 {
		t.lastWinners = result.Winners
	}
	t.logger.Info("round finished",
		zap.Int("round", t.roundNum),
		zap.Strings("winners", result.Winners),
		zap.Bool("aborted", result.Aborted),
	)

	var champions []string
	for _, p := range t.players {
		if !p.Left && p.Score >= t.target {
			champions = append(champions, p.ID)
		}
	}
	if len(champions) > 0 {
		t.finishMatch(champions, "")
		return
	}

	t.state = StateBetweenRounds
	t.roundTimer = t.clock.AfterFunc(t.opts.RoundDelay, func() {
		t.enqueue(func() {
			if err := t.startRound(); err != nil {
				t.logger.Warn("next round did not start", zap.Error(err))
			}
		})
	}, "table", "round_delay")
	t.publishInfo()
}

func (t *Table) finishMatch(champions []string, reason string) {
	t.stopTimers()
	t.state = StateFinished
	t.champions = champions

	message := "The match is over."
	if reason != "" {
		message = "The match is over: " + reason + "."
	}
	ev := t.tableEvent(rules.EventMatchEnd, message)
	ev.Winners = champions
	ev.Scores = t.scores()
	t.broadcast(ev)
	t.logger.Info("match finished", zap.Strings("champions", champions), zap.String("reason", reason))
	t.publishInfo()
}

// PlayCard plays a card for playerID and waits for the engine's result.
func (t *Table) PlayCard(ctx context.Context, playerID string, index int, spec targeting.TargetSpec) (game.PlayResult, error) {
	var (
		result game.PlayResult
		err    error
	)
	if doErr := t.do(ctx, func() { result, err = t.playCard(playerID, index, spec) }); doErr != nil {
		return game.PlayResult{}, doErr
	}
	return result, err
}

func (t *Table) playCard(playerID string, index int, spec targeting.TargetSpec) (game.PlayResult, error) {
	if t.state != StatePlaying || t.round == nil || !t.round.IsRoundActive() {
		t.sendError(playerID, ErrNotPlaying)
		return game.PlayResult{}, ErrNotPlaying
	}
	if playerID == t.round.CurrentSeatID() {
		p, _ := t.round.Player(playerID)
		if err := t.legality.Validate(p.Hand, index); errors.Is(err, rules.ErrCountessRequired) {
			t.logger.Warn("illegal play", zap.String("player_id", playerID), zap.Error(err))
			t.sendError(playerID, err)
			return game.PlayResult{}, err
		}
	}

	result, err := t.round.HandlePlayedCard(playerID, index, spec)
	if err == nil {
		t.armTurnTimer()
	}
	t.publishInfo()
	return result, err
}

// Snapshot returns the current round's snapshot. ok is false before the
// first round.
func (t *Table) Snapshot(ctx context.Context) (game.Snapshot, bool, error) {
	var (
		snap game.Snapshot
		ok   bool
	)
	err := t.do(ctx, func() {
		if t.round != nil {
			snap, ok = t.round.Snapshot(), true
		}
	})
	return snap, ok, err
}

// armTurnTimer restarts the autoplay countdown for the current turn.
func (t *Table) armTurnTimer() {
	t.stopTurnTimer()
	if t.opts.TurnTimeout <= 0 || t.round == nil || !t.round.IsRoundActive() {
		return
	}
	roundID, turn := t.round.ID(), t.round.TurnNumber()
	t.turnTimer = t.clock.AfterFunc(t.opts.TurnTimeout, func() {
		t.enqueue(func() { t.onTurnTimeout(roundID, turn) })
	}, "table", "turn_timeout")
}

func (t *Table) onTurnTimeout(roundID string, turn int) {
	if t.round == nil || !t.round.IsRoundActive() || t.round.ID() != roundID || t.round.TurnNumber() != turn {
		return
	}
	playerID := t.round.CurrentSeatID()
	index, spec := ChooseAutoPlay(t.round, playerID)

	ev := t.tableEvent(rules.EventTurnTimeout, "Time is up; a card is played automatically.")
	ev.PlayerID = playerID
	t.broadcast(ev)
	t.logger.Warn("turn timed out",
		zap.String("player_id", playerID),
		zap.Int("turn", turn),
		zap.Duration("timeout", t.opts.TurnTimeout),
	)

	if _, err := t.playCard(playerID, index, spec); err != nil {
		t.logger.Error("autoplay failed", zap.String("player_id", playerID), zap.Error(err))
	}
}

func (t *Table) stopTurnTimer() {
	if t.turnTimer != nil {
		t.turnTimer.Stop()
		t.turnTimer = nil
	}
}

func (t *Table) stopTimers() {
	t.stopTurnTimer()
	if t.roundTimer != nil {
		t.roundTimer.Stop()
		t.roundTimer = nil
	}
}

func (t *Table) seated(playerID string) *game.Player {
	for _, p := range t.players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

func (t *Table) remaining() int {
	n := 0
	for _, p := range t.players {
		if !p.Left {
			n++
		}
	}
	return n
}

func (t *Table) scores() map[string]int {
	out := make(map[string]int, len(t.players))
	for _, p := range t.players {
		out[p.ID] = p.Score
	}
	return out
}

func (t *Table) tableEvent(eventType rules.EventType, message string) rules.Event {
	ev := rules.NewEvent(eventType, message)
	ev.TableID = t.ID
	ev.Timestamp = t.clock.Now()
	return ev
}

func (t *Table) broadcast(ev rules.Event) {
	if t.sink != nil {
		if err := t.sink.Broadcast(ev); err != nil {
			t.logger.Warn("failed to broadcast table event", zap.String("event", string(ev.Type)), zap.Error(err))
		}
	}
	t.bus.Publish(rules.Delivery{Event: ev})
}

func (t *Table) sendError(playerID string, err error) {
	ev := t.tableEvent(rules.EventError, err.Error())
	ev.PlayerID = playerID
	if t.sink != nil {
		if sendErr := t.sink.SendToPlayer(playerID, ev); sendErr != nil {
			t.logger.Warn("failed to deliver error", zap.String("player_id", playerID), zap.Error(sendErr))
		}
	}
	t.bus.Publish(rules.Delivery{Event: ev, Recipient: playerID})
}
