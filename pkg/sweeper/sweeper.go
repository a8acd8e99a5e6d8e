// Package sweeper ties the client together behind one facade: fetch the
// full connection list, remove a single connection, or run a paced bulk
// removal. It owns the per-session discovery state, the shared rate-limit
// cooldown and the roster snapshot cache; callers hold one Sweeper per
// authenticated account.
package sweeper

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/connsweep/connection-sweeper/pkg/contact"
	"github.com/connsweep/connection-sweeper/pkg/discovery"
	"github.com/connsweep/connection-sweeper/pkg/logging"
	"github.com/connsweep/connection-sweeper/pkg/pagination"
	"github.com/connsweep/connection-sweeper/pkg/removal"
	"github.com/connsweep/connection-sweeper/pkg/roster"
	"github.com/connsweep/connection-sweeper/pkg/scheduler"
	"github.com/connsweep/connection-sweeper/pkg/session"
	"github.com/connsweep/connection-sweeper/pkg/throttle"
	"github.com/connsweep/connection-sweeper/pkg/transport"
)

// DefaultBaseURL is the private API root of the production site.
const DefaultBaseURL = "https://www.linkedin.com/voyager/api"

// Config holds sweeper configuration. Only Credentials is required.
type Config struct {
	// Credentials is the authenticated session material. Mandatory.
	Credentials session.Credentials

	// BaseURL overrides DefaultBaseURL, typically for testing.
	BaseURL string

	// Redis backs the cross-process rate-limit cooldown and the roster
	// snapshot cache. Nil keeps both purely in-process (the snapshot
	// cache is then disabled).
	Redis *redis.Client

	// Catalog overrides the default endpoint candidates.
	Catalog []discovery.EndpointConfig

	// Strategies overrides the default removal strategy set.
	Strategies []removal.Strategy

	// Transport, Pagination and Scheduler tune the respective layers;
	// zero values take each layer's defaults.
	Transport  transport.Config
	Pagination pagination.Config
	Scheduler  scheduler.Config

	// Cooldown is the throttle cooldown armed per observed 429; zero
	// takes throttle.DefaultCooldown.
	Cooldown time.Duration

	// SnapshotTTL bounds roster snapshot freshness; zero takes
	// roster.DefaultTTL.
	SnapshotTTL time.Duration

	// DisableSnapshot turns the roster cache off even when Redis is set,
	// forcing every FetchAll onto the network.
	DisableSnapshot bool
}

// Sweeper is the facade over discovery, pagination, removal and
// scheduling. Operations are serialized: one fetch or bulk removal runs
// at a time per instance.
type Sweeper struct {
	config    Config
	headers   http.Header
	account   string
	client    *transport.Client
	state     *discovery.State
	paginator *pagination.Paginator
	remover   *removal.Remover
	scheduler *scheduler.Scheduler
	throttle  *throttle.Store
	snapshots *roster.Cache
	logger    zerolog.Logger

	runMu sync.Mutex
}

// New creates a sweeper for one authenticated session. It fails with
// session.ErrNotAuthenticated when the credentials are incomplete.
func New(cfg Config) (*Sweeper, error) {
	if err := cfg.Credentials.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Catalog == nil {
		cfg.Catalog = discovery.DefaultCatalog()
	}
	if cfg.Strategies == nil {
		cfg.Strategies = removal.DefaultStrategies()
	}

	snapshotRedis := cfg.Redis
	if cfg.DisableSnapshot {
		snapshotRedis = nil
	}

	client := transport.New(cfg.Transport)
	state := discovery.NewState()
	headers := cfg.Credentials.Headers()
	discoverer := discovery.NewDiscoverer(client, cfg.BaseURL, headers, cfg.Catalog, state)

	return &Sweeper{
		config:    cfg,
		headers:   headers,
		account:   roster.AccountKey(cfg.Credentials.CookieHeader),
		client:    client,
		state:     state,
		paginator: pagination.New(discoverer, cfg.Pagination),
		remover:   removal.NewRemover(client, cfg.BaseURL, headers, cfg.Strategies, state),
		scheduler: scheduler.New(cfg.Scheduler),
		throttle:  throttle.NewStore(cfg.Redis, cfg.Cooldown),
		snapshots: roster.NewCache(snapshotRedis, cfg.SnapshotTTL),
		logger:    logging.NewLogger("sweeper"),
	}, nil
}

// SetHTTPClient sets a custom HTTP client on the underlying transport
// (for testing).
func (s *Sweeper) SetHTTPClient(client *http.Client) {
	s.client.SetHTTPClient(client)
}

// FetchAll retrieves the account's full connection list. A fresh roster
// snapshot is served without touching the network; otherwise any active
// rate-limit cooldown is waited out first and the list is paginated from
// the discovered endpoint. A 429 that aborts the fetch arms the shared
// cooldown before the error propagates.
func (s *Sweeper) FetchAll(ctx context.Context, progress pagination.Progress) ([]contact.Record, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if snapshot, err := s.snapshots.Get(ctx, s.account); err == nil {
		s.logger.Info().
			Int("records", len(snapshot.Records)).
			Time("fetched_at", snapshot.FetchedAt).
			Msg("Serving roster snapshot")
		if progress != nil {
			progress(len(snapshot.Records), snapshot.Total)
		}
		return snapshot.Records, nil
	}

	if err := s.throttle.Wait(ctx); err != nil {
		return nil, err
	}

	records, err := s.paginator.FetchAll(ctx, progress)
	if errors.Is(err, transport.ErrRateLimited) {
		s.throttle.RecordRateLimit(ctx)
	}
	if err != nil {
		return nil, err
	}

	if len(records) > 0 {
		snapshot := &roster.Snapshot{
			Records:   records,
			Total:     len(records),
			FetchedAt: time.Now().UTC(),
		}
		if storeErr := s.snapshots.Set(ctx, s.account, snapshot); storeErr != nil {
			s.logger.Warn().Err(storeErr).Msg("Failed to store roster snapshot")
		}
	}
	return records, nil
}

// Remove removes a single connection through the strategy chain, waiting
// out any active cooldown first. A 429 arms the shared cooldown.
func (s *Sweeper) Remove(ctx context.Context, rec contact.Record) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if err := s.throttle.Wait(ctx); err != nil {
		return err
	}
	return s.removeOne(ctx, rec)
}

// BulkRemove removes the given connections in order under the scheduler's
// pacing. It always returns a definite result; the error is non-nil only
// when the pre-run cooldown wait is cancelled. A successful run (any
// completed item) invalidates the roster snapshot.
func (s *Sweeper) BulkRemove(ctx context.Context, items []contact.Record, progress scheduler.Progress) (scheduler.BulkResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if err := s.throttle.Wait(ctx); err != nil {
		return scheduler.BulkResult{}, err
	}

	result := s.scheduler.Run(ctx, items, s.removeOne, progress)

	if result.Completed > 0 {
		if err := s.snapshots.Invalidate(ctx, s.account); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to invalidate roster snapshot")
		}
	}
	return result, nil
}

// Pause suspends an in-flight bulk removal before its next item.
func (s *Sweeper) Pause() { s.scheduler.Pause() }

// Resume releases a paused bulk removal.
func (s *Sweeper) Resume() { s.scheduler.Resume() }

// Cancel stops an in-flight bulk removal at its next check point.
func (s *Sweeper) Cancel() { s.scheduler.Cancel() }

func (s *Sweeper) removeOne(ctx context.Context, rec contact.Record) error {
	err := s.remover.Remove(ctx, rec)
	if errors.Is(err, transport.ErrRateLimited) {
		s.throttle.RecordRateLimit(ctx)
	}
	return err
}
