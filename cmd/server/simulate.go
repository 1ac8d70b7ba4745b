package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/letterbox/letterbox-server/internal/config"
	"github.com/letterbox/letterbox-server/internal/game"
	"github.com/letterbox/letterbox-server/internal/game/cards"
	"github.com/letterbox/letterbox-server/internal/game/deck"
	"github.com/letterbox/letterbox-server/internal/table"
	"go.uber.org/zap"
)

// SimulateCmd plays seeded rounds offline.
type SimulateCmd struct {
	Players   int    `default:"4" help:"Number of seats (2-6)"`
	Rounds    int    `default:"10" help:"Number of rounds to play"`
	Seed      uint64 `default:"1" help:"Shuffle seed"`
	Variant   string `default:"classic" enum:"classic,assassin" help:"Card set (classic, assassin)"`
	ReplayDir string `help:"Write one replay file per round to this directory" type:"path"`
	Debug     bool   `help:"Log engine activity"`
}

func (c *SimulateCmd) Run() error {
	logger := zap.NewNop()
	if c.Debug {
		var err error
		if logger, err = initLogger(config.LoggingConfig{Level: "debug"}); err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
	}
	_, err := simulate(os.Stdout, simulateOptions{
		Players:   c.Players,
		Rounds:    c.Rounds,
		Seed:      c.Seed,
		Variant:   c.Variant,
		ReplayDir: c.ReplayDir,
	}, logger)
	return err
}

type simulateOptions struct {
	Players   int
	Rounds    int
	Seed      uint64
	Variant   string
	ReplayDir string
}

// simulation is the outcome of a simulate run.
type simulation struct {
	Scores    map[string]int
	Checksums []string
}

// simulate plays rounds where every seat uses the auto-play policy. The same
// seed always produces the same rounds.
func simulate(w io.Writer, opts simulateOptions, logger *zap.Logger) (simulation, error) {
	variant, err := cards.ParseVariant(opts.Variant)
	if err != nil {
		return simulation{}, err
	}
	if opts.Players < 2 || opts.Players > 6 {
		return simulation{}, fmt.Errorf("players must be between 2 and 6, got %d", opts.Players)
	}

	var recorder *game.ReplayRecorder
	if opts.ReplayDir != "" {
		recorder = game.NewReplayRecorder(logger, opts.ReplayDir)
	}

	seats := make([]*game.Player, opts.Players)
	for i := range seats {
		id := fmt.Sprintf("p%d", i+1)
		seats[i] = game.NewPlayer(id, id)
	}
	shuffler := deck.NewSeededShuffler(opts.Seed)

	out := simulation{Scores: make(map[string]int, opts.Players)}
	var lastWinners []string
	for n := 1; n <= opts.Rounds; n++ {
		round, err := game.NewRound(game.RoundConfig{
			ID:       fmt.Sprintf("sim-%d", n),
			Variant:  variant,
			Shuffler: shuffler,
			Logger:   logger,
			Recorder: recorder,
		})
		if err != nil {
			return out, err
		}
		if err := round.InitializeRound(seats, lastWinners); err != nil {
			return out, fmt.Errorf("round %d: %w", n, err)
		}

		turns := 0
		for round.IsRoundActive() {
			actorID := round.CurrentSeatID()
			index, spec := table.ChooseAutoPlay(round, actorID)
			if _, err := round.HandlePlayedCard(actorID, index, spec); err != nil {
				return out, fmt.Errorf("round %d turn %d: %w", n, turns+1, err)
			}
			turns++
		}

		if recorder != nil {
			if err := recorder.SaveReplay(round.ID()); err != nil {
				return out, err
			}
		}

		snap := round.Snapshot()
		var winners []string
		for _, p := range round.Winners() {
			winners = append(winners, p.ID)
		}
		if len(winners) > 0 {
			lastWinners = winners
		}
		checksum := snap.Checksum()
		out.Checksums = append(out.Checksums, checksum)
		short := checksum
		if len(short) > 12 {
			short = short[:12]
		}
		fmt.Fprintf(w, "round %3d  turns %2d  winners %-12s  checksum %s\n",
			n, turns, strings.Join(winners, ","), short)
	}

	fmt.Fprintln(w, "final scores:")
	for _, p := range seats {
		out.Scores[p.ID] = p.Score
		fmt.Fprintf(w, "  %s  %d\n", p.ID, p.Score)
	}
	return out, nil
}
