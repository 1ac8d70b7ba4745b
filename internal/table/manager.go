package table

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/letterbox/letterbox-server/internal/game/rules"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SinkFactory builds the event sink for a new table.
type SinkFactory func(tableID string) rules.Sink

// Manager owns every running table.
type Manager struct {
	tables   map[string]*Table
	mu       sync.RWMutex
	defaults Options
	sinks    SinkFactory
	clock    quartz.Clock
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewManager creates a table manager. Tables it creates run until they are
// removed or the manager is closed.
func NewManager(defaults Options, sinks SinkFactory, clock quartz.Clock, logger *zap.Logger) *Manager {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	return &Manager{
		tables:   make(map[string]*Table),
		defaults: defaults,
		sinks:    sinks,
		clock:    clock,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		group:    group,
	}
}

// Defaults returns the options new tables start from.
func (m *Manager) Defaults() Options {
	return m.defaults
}

// CreateTable creates and starts a table. A zero field in opts takes the
// manager default.
func (m *Manager) CreateTable(opts Options) *Table {
	opts = m.merge(opts)

	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	var sink rules.Sink
	if m.sinks != nil {
		sink = m.sinks(id)
	}
	t := newTable(id, opts, sink, m.clock, m.logger)
	t.onEmpty = m.RemoveTable
	m.tables[t.ID] = t

	m.group.Go(func() error {
		if err := t.Run(m.ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("table loop failed", zap.String("table_id", t.ID), zap.Error(err))
		}
		return nil
	})

	m.logger.Info("table created",
		zap.String("table_id", t.ID),
		zap.String("name", opts.Name),
		zap.String("variant", string(opts.Variant)),
		zap.Int("max_players", opts.MaxPlayers),
	)
	return t
}

func (m *Manager) merge(opts Options) Options {
	d := m.defaults
	if opts.Variant == "" {
		opts.Variant = d.Variant
	}
	if opts.MinPlayers == 0 {
		opts.MinPlayers = d.MinPlayers
	}
	if opts.MaxPlayers == 0 {
		opts.MaxPlayers = d.MaxPlayers
	}
	if opts.TurnTimeout == 0 {
		opts.TurnTimeout = d.TurnTimeout
	}
	if opts.RoundDelay == 0 {
		opts.RoundDelay = d.RoundDelay
	}
	if opts.TokensToWin == 0 {
		opts.TokensToWin = d.TokensToWin
	}
	if opts.Seed == 0 {
		opts.Seed = d.Seed
	}
	if opts.ReplayDir == "" {
		opts.ReplayDir = d.ReplayDir
	}
	opts.EnforceCountess = opts.EnforceCountess || d.EnforceCountess
	return opts
}

// GetTable retrieves a table by ID.
func (m *Manager) GetTable(tableID string) (*Table, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[tableID]
	return t, ok
}

// RemoveTable stops a table and forgets it. Tables remove themselves once
// every player has left.
func (m *Manager) RemoveTable(tableID string) {
	m.mu.Lock()
	t, ok := m.tables[tableID]
	delete(m.tables, tableID)
	m.mu.Unlock()

	if !ok {
		return
	}
	t.Close()
	m.logger.Info("table removed", zap.String("table_id", tableID))
}

// ListTables returns a summary of every table, ordered by name then id.
func (m *Manager) ListTables() []Info {
	m.mu.RLock()
	tables := make([]*Table, 0, len(m.tables))
	for _, t := range m.tables {
		tables = append(tables, t)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(tables))
	for _, t := range tables {
		infos = append(infos, t.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Name != infos[j].Name {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// ActiveCount returns the number of tables whose match has not finished.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, t := range m.tables {
		if t.Info().State != StateFinished {
			count++
		}
	}
	return count
}

// Close stops every table and waits for their loops to exit.
func (m *Manager) Close() error {
	m.cancel()
	err := m.group.Wait()

	m.mu.Lock()
	m.tables = make(map[string]*Table)
	m.mu.Unlock()

	m.logger.Info("table manager stopped")
	return err
}
