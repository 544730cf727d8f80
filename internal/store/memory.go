package store

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/i474232898/mosmix-forecast/internal/weather"
)

var (
	// ErrNotFound is returned when no snapshot was ever delivered for a station.
	ErrNotFound = errors.New("no forecast snapshot for station")
)

// MemoryStore is a concurrency-safe in-memory history of delivered forecast snapshots.
// Each station's history is ordered by GeneratedAt.
type MemoryStore struct {
	mu sync.RWMutex

	// key: station id
	history map[string][]weather.Snapshot

	// retention configuration
	maxHistory int           // max number of snapshots per station
	maxAge     time.Duration // optional max age for snapshots

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		history:    make(map[string][]weather.Snapshot),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

func byGeneratedAt(s weather.Snapshot, t time.Time) int {
	return s.GeneratedAt.Compare(t)
}

// SaveSnapshot inserts a snapshot into its station history and enforces retention.
// Snapshots arriving out of order are placed by GeneratedAt.
func (s *MemoryStore) SaveSnapshot(snapshot weather.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := s.history[snapshot.StationID]

	// Insert after any snapshot with the same timestamp.
	i, _ := slices.BinarySearchFunc(snaps, snapshot.GeneratedAt.Add(1), byGeneratedAt)
	snaps = slices.Insert(snaps, i, snapshot)

	if s.maxHistory > 0 && len(snaps) > s.maxHistory {
		snaps = slices.Delete(snaps, 0, len(snaps)-s.maxHistory)
	}

	// The newest snapshot always survives age retention.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		drop, _ := slices.BinarySearchFunc(snaps, cutoff, byGeneratedAt)
		snaps = slices.Delete(snaps, 0, min(drop, len(snaps)-1))
	}

	s.history[snapshot.StationID] = snaps
}

// GetLatest returns the most recent snapshot for a station.
func (s *MemoryStore) GetLatest(stationID string) (weather.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.history[stationID]
	if len(snaps) == 0 {
		return weather.Snapshot{}, ErrNotFound
	}
	return snaps[len(snaps)-1], nil
}

// GetRange returns a copy of the snapshots of a station generated between from
// and to (inclusive). A window without snapshots yields an empty slice; only a
// station without any history is ErrNotFound.
func (s *MemoryStore) GetRange(stationID string, from, to time.Time) ([]weather.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.history[stationID]
	if len(snaps) == 0 {
		return nil, ErrNotFound
	}
	if to.Before(from) {
		return []weather.Snapshot{}, nil
	}

	lo, _ := slices.BinarySearchFunc(snaps, from, byGeneratedAt)
	hi, _ := slices.BinarySearchFunc(snaps, to.Add(1), byGeneratedAt)
	return slices.Clone(snaps[lo:hi:hi]), nil
}
