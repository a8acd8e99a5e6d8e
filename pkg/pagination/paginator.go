package pagination

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/connsweep/connection-sweeper/pkg/contact"
	"github.com/connsweep/connection-sweeper/pkg/discovery"
	"github.com/connsweep/connection-sweeper/pkg/logging"
	"github.com/connsweep/connection-sweeper/pkg/transport"
)

// TotalUnknown is the progress sentinel reported while the server has not
// yet supplied a nonzero total, so callers can render an indeterminate
// progress indicator.
const TotalUnknown = -1

// placeholderTotal is the working ceiling used until the server reports a
// real total. It only bounds the loop; it is never reported as progress.
const placeholderTotal = 10000

// Config holds paginator configuration.
type Config struct {
	// RateLimitCooldown is slept before retrying the same offset after a
	// 429. Retries are unbounded; the cooldown is what clears throttling.
	RateLimitCooldown time.Duration

	// TimeoutCooldown is slept before retrying the same offset after a
	// transport timeout.
	TimeoutCooldown time.Duration

	// PageDelayMin/Max bound the randomized delay between successful
	// page fetches.
	PageDelayMin time.Duration
	PageDelayMax time.Duration

	// PagesPerSecond caps the steady-state fetch rate underneath the
	// randomized delays.
	PagesPerSecond float64
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		RateLimitCooldown: 60 * time.Second,
		TimeoutCooldown:   10 * time.Second,
		PageDelayMin:      400 * time.Millisecond,
		PageDelayMax:      1200 * time.Millisecond,
		PagesPerSecond:    1,
	}
}

// PageSource supplies pages: discovery seeds page zero and commits the
// endpoint, FetchPage serves every later offset. Satisfied by
// *discovery.Discoverer.
type PageSource interface {
	Discover(ctx context.Context) (discovery.Page, error)
	FetchPage(ctx context.Context, offset int) (discovery.Page, error)
}

// Progress receives the running fetched count and the current total
// estimate (or TotalUnknown) after every page.
type Progress func(fetched, total int)

// Paginator accumulates the full connection list page by page.
type Paginator struct {
	source  PageSource
	config  Config
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// New creates a paginator over the given page source.
func New(source PageSource, cfg Config) *Paginator {
	def := DefaultConfig()
	if cfg.RateLimitCooldown <= 0 {
		cfg.RateLimitCooldown = def.RateLimitCooldown
	}
	if cfg.TimeoutCooldown <= 0 {
		cfg.TimeoutCooldown = def.TimeoutCooldown
	}
	if cfg.PageDelayMax <= 0 {
		cfg.PageDelayMin = def.PageDelayMin
		cfg.PageDelayMax = def.PageDelayMax
	}
	if cfg.PagesPerSecond <= 0 {
		cfg.PagesPerSecond = def.PagesPerSecond
	}
	return &Paginator{
		source:  source,
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.PagesPerSecond), 1),
		logger:  logging.NewLogger("paginator"),
	}
}

// FetchAll retrieves every page of the connection list. Partial results
// are returned on hard failure; only cancellation and a failed discovery
// surface an error.
func (p *Paginator) FetchAll(ctx context.Context, progress Progress) ([]contact.Record, error) {
	start := time.Now()

	first, err := p.source.Discover(ctx)
	if err != nil {
		return nil, err
	}

	// An empty first page on a committed endpoint means the account has
	// zero connections, not an error.
	if len(first.Records) == 0 {
		p.logger.Info().Msg("First page empty; account has no connections")
		emit(progress, 0, first.ReportedTotal)
		return nil, nil
	}

	records := first.Records
	total, known := placeholderTotal, false
	if first.ReportedTotal > 0 {
		total, known = first.ReportedTotal, true
	}
	emit(progress, len(records), reportable(total, known))

	offset := discovery.PageSize
	emptyStreak := 0

	for offset < total {
		if err := p.pause(ctx); err != nil {
			return records, err
		}

		page, err := p.source.FetchPage(ctx, offset)
		if errors.Is(err, transport.ErrRateLimited) {
			p.logger.Warn().
				Int("offset", offset).
				Dur("cooldown", p.config.RateLimitCooldown).
				Msg("Rate limited mid-pagination; retrying same offset after cooldown")
			if err := sleep(ctx, p.config.RateLimitCooldown); err != nil {
				return records, err
			}
			continue
		}
		if errors.Is(err, transport.ErrTimeout) {
			p.logger.Warn().
				Int("offset", offset).
				Dur("cooldown", p.config.TimeoutCooldown).
				Msg("Timeout mid-pagination; retrying same offset after cooldown")
			if err := sleep(ctx, p.config.TimeoutCooldown); err != nil {
				return records, err
			}
			continue
		}
		if err != nil {
			p.logger.Error().
				Int("offset", offset).
				Int("fetched", len(records)).
				Err(err).
				Msg("Pagination stopped; returning partial results")
			return records, nil
		}

		if reported := page.ReportedTotal; reported > 0 {
			switch {
			case !known:
				total, known = reported, true
			case reported > total:
				// The list grew under us; never shrink a real total.
				total = reported
			}
		}

		if len(page.Records) == 0 {
			emptyStreak++
			if emptyStreak >= 2 {
				p.logger.Info().
					Int("offset", offset).
					Msg("Two consecutive empty pages; stopping pagination")
				break
			}
		} else {
			emptyStreak = 0
			records = append(records, page.Records...)
		}

		emit(progress, len(records), reportable(total, known))
		offset += discovery.PageSize
	}

	p.logger.Info().
		Int("records", len(records)).
		Int("pages", offset/discovery.PageSize).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return records, nil
}

// pause enforces the steady-state rate cap plus a randomized inter-page
// delay so successful fetches never form a fixed cadence.
func (p *Paginator) pause(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	span := p.config.PageDelayMax - p.config.PageDelayMin
	delay := p.config.PageDelayMin
	if span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	return sleep(ctx, delay)
}

// sleep waits out d unless the context ends first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func reportable(total int, known bool) int {
	if !known {
		return TotalUnknown
	}
	return total
}

func emit(progress Progress, fetched, total int) {
	if progress != nil {
		progress(fetched, total)
	}
}
