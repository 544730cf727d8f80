package store

import (
	"sync"
	"time"

	"github.com/i474232898/mosmix-forecast/internal/weather"
)

// stationState is the per-station context owned by ForecastStore.
type stationState struct {
	series  *weather.Series
	nextDue time.Time
	fetched bool
}

// ForecastStore keeps the most recently fetched series and the refresh
// schedule of every station. Stations are independent; the map is guarded so
// distinct stations may be served from concurrent goroutines.
type ForecastStore struct {
	mu       sync.RWMutex
	stations map[string]*stationState
}

// NewForecastStore creates an empty ForecastStore.
func NewForecastStore() *ForecastStore {
	return &ForecastStore{stations: make(map[string]*stationState)}
}

func (s *ForecastStore) state(id string) *stationState {
	st, ok := s.stations[id]
	if !ok {
		st = &stationState{}
		s.stations[id] = st
	}
	return st
}

// Series returns the stored series of a station.
func (s *ForecastStore) Series(stationID string) (*weather.Series, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stations[stationID]
	if !ok || st.series == nil {
		return nil, false
	}
	return st.series, true
}

// PutSeries replaces the series of a station.
func (s *ForecastStore) PutSeries(stationID string, series *weather.Series) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state(stationID).series = series
}

// ResetSeries drops the series of a station.
func (s *ForecastStore) ResetSeries(stationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.stations[stationID]; ok {
		st.series = nil
	}
}

// NextDue returns when the station has to be refetched. ok is false before the first fetch.
func (s *ForecastStore) NextDue(stationID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stations[stationID]
	if !ok || !st.fetched {
		return time.Time{}, false
	}
	return st.nextDue, true
}

// SetNextDue schedules the next refresh of a station.
func (s *ForecastStore) SetNextDue(stationID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state(stationID)
	st.nextDue = at
	st.fetched = true
}
