package weather

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// MaxAge is how long a fetched series counts as fresh; MOSMIX_L is republished hourly.
	MaxAge = time.Hour

	// RetryInterval is the earliest refetch after a failed download.
	RetryInterval = 10 * time.Minute
)

// Service orchestrates the feed, the series store and query evaluation.
//
// Every evaluation consumes the stored series: afterwards the series is dropped
// and the next refresh is due immediately, so each query fetches the feed again.
type Service struct {
	store  SeriesStore
	feed   Feed
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a new Service.
func NewService(store SeriesStore, feed Feed, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		feed:   feed,
		logger: logger,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

// RefreshIfNeeded fetches the station feed when no fetch happened yet or the
// stored series is stale.
func (s *Service) RefreshIfNeeded(ctx context.Context, station Station) error {
	lock := s.stationLock(station.ID)
	lock.Lock()
	defer lock.Unlock()

	return s.refreshIfNeeded(ctx, station)
}

// Query evaluates the station forecast at now plus the station look-ahead.
func (s *Service) Query(ctx context.Context, station Station) (Snapshot, error) {
	return s.Evaluate(ctx, station, s.now().Add(station.LookAhead))
}

// Evaluate refreshes the station if needed and evaluates its series at target.
// Refresh failures are returned as-is and keep the retry schedule; otherwise the
// series is consumed whatever the outcome of the evaluation.
func (s *Service) Evaluate(ctx context.Context, station Station, target time.Time) (Snapshot, error) {
	lock := s.stationLock(station.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.refreshIfNeeded(ctx, station); err != nil {
		return Snapshot{}, err
	}

	defer func() {
		s.store.ResetSeries(station.ID)
		s.store.SetNextDue(station.ID, time.Time{})
	}()

	series, ok := s.store.Series(station.ID)
	if !ok {
		return Snapshot{}, ErrNoDataForStation
	}

	snap, err := AssembleSnapshot(series, station, target)
	if err != nil {
		return Snapshot{}, fmt.Errorf("station %s: %w", station.ID, err)
	}
	snap.GeneratedAt = s.now().UTC()
	return snap, nil
}

func (s *Service) refreshIfNeeded(ctx context.Context, station Station) error {
	due, ok := s.store.NextDue(station.ID)
	if ok && !s.now().After(due) {
		return nil
	}
	return s.refresh(ctx, station)
}

func (s *Service) refresh(ctx context.Context, station Station) error {
	s.store.SetNextDue(station.ID, s.now().Add(RetryInterval))

	s.logger.Debug("fetching forecast", "station", station.ID, "feed", s.feed.Name())

	b := &seriesBuilder{service: s, stationID: station.ID}
	if err := s.feed.Fetch(ctx, station, b); err != nil {
		s.logger.Warn("forecast fetch failed", "station", station.ID, "error", err)
		return fmt.Errorf("fetch station %s: %w", station.ID, err)
	}
	if b.series == nil {
		return fmt.Errorf("fetch station %s: empty document: %w", station.ID, ErrNoDataForStation)
	}
	if err := b.series.Validate(); err != nil {
		return fmt.Errorf("fetch station %s: %w", station.ID, err)
	}

	s.store.PutSeries(station.ID, b.series)
	s.logger.Debug("forecast fetched",
		"station", station.ID,
		"description", b.series.Description,
		"steps", len(b.series.Times),
		"elements", len(b.series.Elements),
	)
	return nil
}

func (s *Service) stationLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// seriesBuilder collects one fetch. The stored series is only replaced once the
// whole document parsed; a failure after Begin leaves the station without a series.
type seriesBuilder struct {
	service   *Service
	stationID string
	series    *Series
}

func (b *seriesBuilder) Begin() {
	b.service.store.ResetSeries(b.stationID)
	b.service.store.SetNextDue(b.stationID, b.service.now().Add(MaxAge))
	b.series = NewSeries()
}

func (b *seriesBuilder) SetDescription(text string) {
	b.series.Description = text
}

func (b *seriesBuilder) AppendTimeStep(t time.Time) {
	b.series.Times = append(b.series.Times, t)
}

func (b *seriesBuilder) AppendValues(code string, values []float64) {
	b.series.Elements[code] = append(b.series.Elements[code], values...)
}
