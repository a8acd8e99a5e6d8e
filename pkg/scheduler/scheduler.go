// Package scheduler executes bulk removals one item at a time with a
// deliberately irregular cadence: randomized per-item delays, longer
// randomized pauses every batch, a single backoff-and-retry on
// throttling. The run is pausable, resumable and cancellable from
// outside; all suspension is cooperative and interruptible.
package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/connsweep/connection-sweeper/pkg/contact"
	"github.com/connsweep/connection-sweeper/pkg/logging"
	"github.com/connsweep/connection-sweeper/pkg/transport"
)

// Prometheus metrics for bulk runs.
var (
	bulkItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sweeper_bulk_items_total",
		Help: "Bulk-removal items by outcome",
	}, []string{"outcome"})

	bulkRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sweeper_bulk_runs_total",
		Help: "Bulk-removal runs by terminal state",
	}, []string{"state"})
)

// Status is the progress state reported for the current item or run.
type Status string

const (
	StatusRemoving    Status = "removing"
	StatusRemoved     Status = "removed"
	StatusRateLimited Status = "rate_limited"
	StatusBatchPause  Status = "batch_pause"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
	StatusDone        Status = "done"
)

// Event is one progress report.
type Event struct {
	RunID       string `json:"runId"`
	Completed   int    `json:"completed"`
	Total       int    `json:"total"`
	CurrentItem string `json:"currentItem,omitempty"`
	Status      Status `json:"status"`
}

// Progress receives events as the run advances.
type Progress func(Event)

// Failure records one item that could not be removed.
type Failure struct {
	Item   contact.Record `json:"item"`
	Reason string         `json:"reason"`
}

// BulkResult is the definite outcome of one bulk-removal invocation.
// It is produced even under partial failure: per-item failures accumulate
// here rather than aborting the run.
type BulkResult struct {
	Completed int       `json:"completed"`
	Failed    []Failure `json:"failed"`
	Cancelled bool      `json:"cancelled"`
}

// RemoveFunc removes a single connection.
type RemoveFunc func(ctx context.Context, rec contact.Record) error

// Config holds scheduler timing configuration.
type Config struct {
	// ItemDelayMin/Max bound the randomized delay between items.
	ItemDelayMin time.Duration
	ItemDelayMax time.Duration

	// BatchSize is the number of processed items between batch pauses.
	BatchSize int

	// BatchPauseMin/Max bound the randomized batch pause.
	BatchPauseMin time.Duration
	BatchPauseMax time.Duration

	// JitterFraction perturbs every drawn delay by up to this fraction in
	// either direction, floored at zero, to kill any fixed cadence.
	JitterFraction float64

	// RateLimitBackoff is slept after a 429 before the single retry of
	// the same item.
	RateLimitBackoff time.Duration
}

// DefaultConfig returns a cadence safe for large accounts.
func DefaultConfig() Config {
	return Config{
		ItemDelayMin:     1 * time.Second,
		ItemDelayMax:     3 * time.Second,
		BatchSize:        25,
		BatchPauseMin:    30 * time.Second,
		BatchPauseMax:    60 * time.Second,
		JitterFraction:   0.2,
		RateLimitBackoff: 60 * time.Second,
	}
}

// errCancelled marks cooperative cancellation inside the run loop.
var errCancelled = errors.New("run cancelled")

// Scheduler drives one bulk-removal invocation at a time.
type Scheduler struct {
	config Config
	logger zerolog.Logger

	mu        sync.Mutex
	paused    bool
	cancelled bool
	resumeCh  chan struct{}
	cancelCh  chan struct{}
}

// New creates a scheduler.
func New(cfg Config) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	return &Scheduler{
		config:   cfg,
		logger:   logging.NewLogger("scheduler"),
		cancelCh: make(chan struct{}),
	}
}

// Pause suspends the run before the next item. Idempotent.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		s.paused = true
		s.resumeCh = make(chan struct{})
	}
}

// Resume releases a pause. Idempotent, harmless when not paused.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		s.paused = false
		close(s.resumeCh)
	}
}

// Cancel stops the run at the next check point. It also releases any
// active pause so a paused run still observes the cancellation. Idempotent.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	s.cancelled = true
	close(s.cancelCh)
	if s.paused {
		s.paused = false
		close(s.resumeCh)
	}
}

// reset makes each invocation independent of leftover control state.
func (s *Scheduler) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	s.cancelled = false
	s.resumeCh = nil
	s.cancelCh = make(chan struct{})
}

// Run removes items strictly in input order, one in-flight mutation at a
// time, and always terminates with a definite BulkResult.
func (s *Scheduler) Run(ctx context.Context, items []contact.Record, removeOne RemoveFunc, progress Progress) BulkResult {
	s.reset()

	runID := uuid.NewString()
	logger := s.logger.With().Str("run_id", runID).Logger()
	logger.Info().Int("items", len(items)).Msg("Bulk removal started")

	result := BulkResult{}
	emit := func(status Status, label string) {
		if progress != nil {
			progress(Event{
				RunID:       runID,
				Completed:   result.Completed,
				Total:       len(items),
				CurrentItem: label,
				Status:      status,
			})
		}
	}
	cancelled := func() BulkResult {
		result.Cancelled = true
		bulkRunsTotal.WithLabelValues(string(StatusCancelled)).Inc()
		logger.Info().
			Int("completed", result.Completed).
			Int("failed", len(result.Failed)).
			Msg("Bulk removal cancelled")
		emit(StatusCancelled, "")
		return result
	}

	for i, item := range items {
		// Check point: pause gate and cancellation, before each item.
		if err := s.gate(ctx); err != nil {
			return cancelled()
		}

		label := item.DisplayName()
		emit(StatusRemoving, label)

		err := removeOne(ctx, item)
		if errors.Is(err, transport.ErrRateLimited) {
			bulkItemsTotal.WithLabelValues("rate_limited").Inc()
			emit(StatusRateLimited, label)
			logger.Warn().
				Str("contact", label).
				Dur("backoff", s.config.RateLimitBackoff).
				Msg("Rate limited; backing off before single retry")

			if sleepErr := s.sleep(ctx, s.config.RateLimitBackoff); sleepErr != nil {
				return cancelled()
			}
			if gateErr := s.gate(ctx); gateErr != nil {
				return cancelled()
			}
			// Exactly one retry of the same item; mutations must make
			// bounded progress, unlike page reads.
			err = removeOne(ctx, item)
		}

		switch {
		case err == nil:
			result.Completed++
			bulkItemsTotal.WithLabelValues("removed").Inc()
			emit(StatusRemoved, label)
		default:
			result.Failed = append(result.Failed, Failure{Item: item, Reason: err.Error()})
			bulkItemsTotal.WithLabelValues("failed").Inc()
			logger.Warn().Str("contact", label).Err(err).Msg("Removal failed")
			emit(StatusFailed, label)
		}

		// Delay between items, never after the last.
		if i < len(items)-1 {
			processed := i + 1
			var delay time.Duration
			if processed%s.config.BatchSize == 0 {
				delay = s.draw(s.config.BatchPauseMin, s.config.BatchPauseMax)
				emit(StatusBatchPause, "")
				logger.Debug().
					Int("processed", processed).
					Dur("pause", delay).
					Msg("Batch pause")
			} else {
				delay = s.draw(s.config.ItemDelayMin, s.config.ItemDelayMax)
			}
			if sleepErr := s.sleep(ctx, delay); sleepErr != nil {
				return cancelled()
			}
		}
	}

	bulkRunsTotal.WithLabelValues(string(StatusDone)).Inc()
	logger.Info().
		Int("completed", result.Completed).
		Int("failed", len(result.Failed)).
		Msg("Bulk removal finished")
	emit(StatusDone, "")
	return result
}

// gate blocks while paused and reports cancellation. The pause wait is
// event-driven: it parks on the resume channel, no polling.
func (s *Scheduler) gate(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.cancelled {
			s.mu.Unlock()
			return errCancelled
		}
		if !s.paused {
			s.mu.Unlock()
			return nil
		}
		resume := s.resumeCh
		cancel := s.cancelCh
		s.mu.Unlock()

		select {
		case <-resume:
			// Re-check: cancel-while-paused must still exit.
		case <-cancel:
			return errCancelled
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// sleep waits out d, returning early on cancellation.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	s.mu.Lock()
	cancel := s.cancelCh
	s.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-cancel:
		return errCancelled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// draw picks a duration uniformly in [min, max], then perturbs it by up
// to ±JitterFraction of the drawn value, floored at zero.
func (s *Scheduler) draw(min, max time.Duration) time.Duration {
	d := min
	if span := max - min; span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	if s.config.JitterFraction > 0 {
		jitter := (rand.Float64()*2 - 1) * s.config.JitterFraction * float64(d)
		d += time.Duration(jitter)
	}
	if d < 0 {
		d = 0
	}
	return d
}
