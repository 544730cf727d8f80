package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/mosmix-forecast/internal/weather"
)

// Querier evaluates the forecast of one station.
type Querier interface {
	Query(ctx context.Context, station weather.Station) (weather.Snapshot, error)
}

// Sink receives the outcome of every cycle. A nil snapshot means the cycle
// produced no forecast; the next cycle retries.
type Sink func(station weather.Station, snapshot *weather.Snapshot)

var errInvalidInterval = errors.New("poll interval must be positive")

// Scheduler polls stations on a fixed cadence.
type Scheduler struct {
	scheduler *gocron.Scheduler
	querier   Querier
	logger    *slog.Logger
	timeout   time.Duration

	mu      sync.Mutex
	handles map[*Handle]struct{}
}

// New creates a new Scheduler. timeout bounds each evaluation; zero disables it.
func New(querier Querier, logger *slog.Logger, timeout time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		querier:   querier,
		logger:    logger,
		timeout:   timeout,
		handles:   make(map[*Handle]struct{}),
	}
}

// Handle is one running station poll.
type Handle struct {
	station weather.Station
	job     *gocron.Job
	owner   *Scheduler
	sink    Sink

	results chan *weather.Snapshot
	done    chan struct{}
	once    sync.Once
}

// Start evaluates station immediately and then every interval, handing each
// result to sink on a dedicated goroutine. A slow or panicking sink never
// delays the timer.
func (s *Scheduler) Start(station weather.Station, interval time.Duration, sink Sink) (*Handle, error) {
	if interval <= 0 {
		return nil, errInvalidInterval
	}

	h := &Handle{
		station: station,
		owner:   s,
		sink:    sink,
		results: make(chan *weather.Snapshot, 1),
		done:    make(chan struct{}),
	}
	go h.deliverLoop()

	job, err := s.scheduler.Every(interval).
		Tag(station.ID).
		SingletonMode().
		StartImmediately().
		Do(h.run)
	if err != nil {
		close(h.done)
		return nil, fmt.Errorf("schedule station %s: %w", station.ID, err)
	}
	h.job = job

	s.mu.Lock()
	s.handles[h] = struct{}{}
	s.mu.Unlock()

	if !s.scheduler.IsRunning() {
		s.scheduler.StartAsync()
	}

	s.logger.Info("polling station", "station", station.ID, "interval", interval.String())
	return h, nil
}

// Stop cancels every poll and stops the underlying scheduler.
// In-flight evaluations finish but their results are discarded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	handles := make([]*Handle, 0, len(s.handles))
	for h := range s.handles {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// Cancel halts future evaluations of the station. It is safe to call more than once.
func (h *Handle) Cancel() {
	h.once.Do(func() {
		if h.job != nil {
			h.owner.scheduler.RemoveByReference(h.job)
		}
		close(h.done)

		h.owner.mu.Lock()
		delete(h.owner.handles, h)
		h.owner.mu.Unlock()
	})
}

func (h *Handle) run() {
	ctx := context.Background()
	if h.owner.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.owner.timeout)
		defer cancel()
	}

	var result *weather.Snapshot
	snap, err := h.owner.querier.Query(ctx, h.station)
	if err != nil {
		h.owner.logger.Warn("forecast query failed", "station", h.station.ID, "error", err)
	} else {
		result = &snap
	}

	select {
	case <-h.done:
	case h.results <- result:
	default:
		h.owner.logger.Warn("sink busy, dropping forecast", "station", h.station.ID)
	}
}

func (h *Handle) deliverLoop() {
	for {
		select {
		case <-h.done:
			return
		case r := <-h.results:
			h.deliver(r)
		}
	}
}

func (h *Handle) deliver(snapshot *weather.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			h.owner.logger.Error("forecast sink panicked", "station", h.station.ID, "panic", r)
		}
	}()
	h.sink(h.station, snapshot)
}
