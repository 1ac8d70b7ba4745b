package game

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Replay is a recorded round: one snapshot after the deal and one after
// every action, ending with the final state.
type Replay struct {
	RoundID      string
	States       []Snapshot
	CurrentIndex int
	mu           sync.RWMutex
}

// NewReplay creates an empty replay.
func NewReplay(roundID string) *Replay {
	return &Replay{RoundID: roundID}
}

// RecordState appends a snapshot.
func (r *Replay) RecordState(snapshot Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.States = append(r.States, snapshot)
}

// Start rewinds to the first state.
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.CurrentIndex = 0
}

// Next returns the state at the cursor and moves forward.
func (r *Replay) Next() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex < len(r.States) {
		state := r.States[r.CurrentIndex]
		r.CurrentIndex++
		return state, true
	}
	return Snapshot{}, false
}

// Previous moves back one state and returns it.
func (r *Replay) Previous() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex > 0 {
		r.CurrentIndex--
		return r.States[r.CurrentIndex], true
	}
	return Snapshot{}, false
}

// Skip moves the cursor by count, clamped to the recorded range.
func (r *Replay) Skip(count int) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.States) == 0 {
		return Snapshot{}, false
	}
	idx := r.CurrentIndex + count
	idx = max(0, min(idx, len(r.States)-1))
	r.CurrentIndex = idx
	return r.States[idx], true
}

// Size returns the number of recorded states.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.States)
}

// StateAt returns the state at index.
func (r *Replay) StateAt(index int) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index >= 0 && index < len(r.States) {
		return r.States[index], true
	}
	return Snapshot{}, false
}

// Last returns the final recorded state.
func (r *Replay) Last() (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.States) == 0 {
		return Snapshot{}, false
	}
	return r.States[len(r.States)-1], true
}

func replayPath(directory, roundID string) string {
	return filepath.Join(directory, roundID+".replay")
}

// SaveToFile writes the replay to <directory>/<round id>.replay as gzipped gob.
func (r *Replay) SaveToFile(directory string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(replayPath(directory, r.RoundID))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	encoder := gob.NewEncoder(gzipWriter)

	metadata := replayMetadata{
		RoundID:    r.RoundID,
		Timestamp:  time.Now(),
		Version:    1,
		StateCount: len(r.States),
	}
	if err := encoder.Encode(&metadata); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	for i := range r.States {
		if err := encoder.Encode(&r.States[i]); err != nil {
			return fmt.Errorf("failed to encode state %d: %w", i, err)
		}
	}
	if err := gzipWriter.Close(); err != nil {
		return fmt.Errorf("failed to flush replay: %w", err)
	}
	return nil
}

// LoadReplayFromFile reads a replay written by SaveToFile.
func LoadReplayFromFile(directory, roundID string) (*Replay, error) {
	file, err := os.Open(replayPath(directory, roundID))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	decoder := gob.NewDecoder(gzipReader)

	var metadata replayMetadata
	if err := decoder.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if metadata.Version != 1 {
		return nil, fmt.Errorf("unsupported replay version: %d", metadata.Version)
	}

	replay := NewReplay(metadata.RoundID)
	for i := 0; i < metadata.StateCount; i++ {
		var state Snapshot
		if err := decoder.Decode(&state); err != nil {
			return nil, fmt.Errorf("failed to decode state %d: %w", i, err)
		}
		replay.States = append(replay.States, state)
	}
	return replay, nil
}

type replayMetadata struct {
	RoundID    string
	Timestamp  time.Time
	Version    int
	StateCount int
}

// ReplayRecorder keeps replays for rounds in progress and writes finished
// ones to disk. An empty saveDir keeps replays in memory only.
type ReplayRecorder struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	replays map[string]*Replay
	enabled map[string]bool
	saveDir string
}

// NewReplayRecorder creates a recorder.
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayRecorder{
		logger:  logger,
		replays: make(map[string]*Replay),
		enabled: make(map[string]bool),
		saveDir: saveDir,
	}
}

// StartRecording begins a fresh replay for roundID.
func (rr *ReplayRecorder) StartRecording(roundID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	rr.replays[roundID] = NewReplay(roundID)
	rr.enabled[roundID] = true

	rr.logger.Debug("started replay recording", zap.String("round_id", roundID))
}

// StopRecording keeps the replay but ignores further states.
func (rr *ReplayRecorder) StopRecording(roundID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	rr.enabled[roundID] = false
}

// RecordState appends snapshot if roundID is being recorded.
func (rr *ReplayRecorder) RecordState(roundID string, snapshot Snapshot) {
	rr.mu.RLock()
	enabled := rr.enabled[roundID]
	replay := rr.replays[roundID]
	rr.mu.RUnlock()

	if !enabled || replay == nil {
		return
	}
	replay.RecordState(snapshot)
}

// GetReplay returns the in-memory replay for roundID.
func (rr *ReplayRecorder) GetReplay(roundID string) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	replay, ok := rr.replays[roundID]
	return replay, ok
}

// SaveReplay writes the replay to disk and drops it from memory.
func (rr *ReplayRecorder) SaveReplay(roundID string) error {
	if rr.saveDir == "" {
		return fmt.Errorf("no replay directory configured")
	}
	rr.mu.Lock()
	replay, ok := rr.replays[roundID]
	if !ok {
		rr.mu.Unlock()
		return fmt.Errorf("no replay found for round %s", roundID)
	}
	delete(rr.replays, roundID)
	delete(rr.enabled, roundID)
	rr.mu.Unlock()

	if err := replay.SaveToFile(rr.saveDir); err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}

	rr.logger.Info("saved replay to disk",
		zap.String("round_id", roundID),
		zap.Int("state_count", replay.Size()),
		zap.String("directory", rr.saveDir),
	)
	return nil
}

// LoadReplay reads a saved replay.
func (rr *ReplayRecorder) LoadReplay(roundID string) (*Replay, error) {
	return LoadReplayFromFile(rr.saveDir, roundID)
}

// ClearReplay drops a replay without saving it.
func (rr *ReplayRecorder) ClearReplay(roundID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	delete(rr.replays, roundID)
	delete(rr.enabled, roundID)
}

// IsRecording reports whether roundID is being recorded.
func (rr *ReplayRecorder) IsRecording(roundID string) bool {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	return rr.enabled[roundID]
}

// SaveDir returns the directory replays are written to.
func (rr *ReplayRecorder) SaveDir() string {
	return rr.saveDir
}
