package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// SeatSnapshot is one seat in a round snapshot.
type SeatSnapshot struct {
	Seat      int
	PlayerID  string
	Name      string
	Active    bool
	Protected bool
	Left      bool
	Hand      []string
	Score     int
	RankBonus int
}

// Snapshot is a full, authoritative copy of a round, hidden cards included.
// It is for tests, simulations and operators; never send it to players.
type Snapshot struct {
	RoundID       string
	Variant       string
	Phase         string
	Active        bool
	Aborted       bool
	CurrentSeat   int
	CurrentPlayer string
	TurnNumber    int
	Seats         []SeatSnapshot
	Pile          []string // next draw last
	Discards      []string // oldest first
	Winners       []string
}

// SerializationChecksum is a deterministic digest of a snapshot.
type SerializationChecksum struct {
	Hash    string // SHA-256 of the canonical rendering
	Version int
}

// Snapshot captures the round's current state.
func (r *Round) Snapshot() Snapshot {
	s := Snapshot{
		RoundID:     r.id,
		Variant:     string(r.variant),
		Phase:       r.Phase().String(),
		Active:      r.active,
		Aborted:     r.aborted,
		CurrentSeat: -1,
		Winners:     r.winnerIDs(),
	}
	if r.turns != nil {
		s.CurrentSeat = r.turns.CurrentSeat()
		s.CurrentPlayer = r.seats[s.CurrentSeat].ID
		s.TurnNumber = r.turns.TurnNumber()
	}
	if r.pile != nil {
		for _, c := range r.pile.RemainingCards() {
			s.Pile = append(s.Pile, c.Name)
		}
		for _, c := range r.pile.Discards() {
			s.Discards = append(s.Discards, c.Name)
		}
	}
	for i, p := range r.seats {
		s.Seats = append(s.Seats, SeatSnapshot{
			Seat:      i,
			PlayerID:  p.ID,
			Name:      p.Name,
			Active:    p.Active,
			Protected: p.Protected,
			Left:      p.Left,
			Hand:      p.HandNames(),
			Score:     p.Score,
			RankBonus: p.RankBonus,
		})
	}
	return s
}

// CardCount is the number of cards across pile, discards and hands.
func (s Snapshot) CardCount() int {
	n := len(s.Pile) + len(s.Discards)
	for _, seat := range s.Seats {
		n += len(seat.Hand)
	}
	return n
}

// Scores returns the score of every seat.
func (s Snapshot) Scores() map[string]int {
	out := make(map[string]int, len(s.Seats))
	for _, seat := range s.Seats {
		out[seat.PlayerID] = seat.Score
	}
	return out
}

// ComputeChecksum hashes a canonical rendering of the snapshot. The round id
// is left out so two rounds dealt from the same seed compare equal.
func (s Snapshot) ComputeChecksum() (*SerializationChecksum, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(s.canonical())); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}
	return &SerializationChecksum{
		Hash:    hex.EncodeToString(hash.Sum(nil)),
		Version: 1,
	}, nil
}

// Checksum is ComputeChecksum returning only the hash.
func (s Snapshot) Checksum() string {
	sum, err := s.ComputeChecksum()
	if err != nil {
		return ""
	}
	return sum.Hash
}

func (s Snapshot) canonical() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "ROUND:%s|%s|%t|%t|%d|%d\n",
		s.Variant, s.Phase, s.Active, s.Aborted, s.CurrentSeat, s.TurnNumber)

	// Seat order matters.
	for _, seat := range s.Seats {
		fmt.Fprintf(&buf, "SEAT:%d|%s|%t|%t|%t|%d|%d|%s\n",
			seat.Seat, seat.PlayerID, seat.Active, seat.Protected, seat.Left,
			seat.Score, seat.RankBonus, strings.Join(seat.Hand, ","))
	}
	buf.WriteString("PILE:" + strings.Join(s.Pile, ",") + "\n")
	buf.WriteString("DISCARDS:" + strings.Join(s.Discards, ",") + "\n")

	winners := append([]string(nil), s.Winners...)
	sort.Strings(winners)
	buf.WriteString("WINNERS:" + strings.Join(winners, ",") + "\n")
	return buf.String()
}

// VerifyChecksum reports whether the snapshot still matches expected.
func (s Snapshot) VerifyChecksum(expected *SerializationChecksum) (bool, error) {
	computed, err := s.ComputeChecksum()
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == expected.Hash, nil
}

// SerializeToBytes gob-encodes the snapshot.
func (s Snapshot) SerializeToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeSnapshot decodes bytes written by SerializeToBytes.
func DeserializeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return s, nil
}
