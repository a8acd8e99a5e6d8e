// Package roster caches the last fully fetched connection list in Redis.
// A complete fetch walks hundreds of paginated requests; when the UI
// collaborator reopens within the TTL it gets the cached snapshot instead
// of re-walking the list, which spends no request budget at all. Bulk
// removals invalidate the snapshot.
package roster

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/connsweep/connection-sweeper/pkg/contact"
	"github.com/connsweep/connection-sweeper/pkg/logging"
)

// Prometheus metrics for snapshot caching.
var (
	snapshotHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_roster_cache_hits_total",
		Help: "Roster snapshot cache hits",
	})

	snapshotMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_roster_cache_misses_total",
		Help: "Roster snapshot cache misses",
	})
)

// ErrCacheMiss indicates no fresh snapshot exists for the account.
var ErrCacheMiss = errors.New("roster cache miss")

// DefaultTTL bounds snapshot freshness.
const DefaultTTL = 15 * time.Minute

// Snapshot is one cached fetch result.
type Snapshot struct {
	Records   []contact.Record `json:"records"`
	Total     int              `json:"total"`
	FetchedAt time.Time        `json:"fetchedAt"`
}

// Cache stores per-account snapshots. A nil Redis client disables it:
// Get always misses and Set is a no-op.
type Cache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCache creates a snapshot cache.
func NewCache(redisClient *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		redis:  redisClient,
		ttl:    ttl,
		logger: logging.NewLogger("roster"),
	}
}

// AccountKey derives a stable, non-reversible cache key from session
// material. Raw cookies never reach Redis.
func AccountKey(cookieHeader string) string {
	sum := sha256.Sum256([]byte(cookieHeader))
	return hex.EncodeToString(sum[:8])
}

// Get returns the cached snapshot for an account, or ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, account string) (*Snapshot, error) {
	if c.redis == nil {
		return nil, ErrCacheMiss
	}

	data, err := c.redis.Get(ctx, redisKey(account)).Bytes()
	if err == redis.Nil {
		snapshotMisses.Inc()
		return nil, ErrCacheMiss
	}
	if err != nil {
		snapshotMisses.Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		// Corrupted entry: drop it and report a miss.
		_ = c.redis.Del(ctx, redisKey(account)).Err()
		snapshotMisses.Inc()
		return nil, ErrCacheMiss
	}

	snapshotHits.Inc()
	c.logger.Debug().
		Str("account", account).
		Int("records", len(snapshot.Records)).
		Time("fetched_at", snapshot.FetchedAt).
		Msg("Roster snapshot hit")
	return &snapshot, nil
}

// Set stores a snapshot under the cache TTL.
func (c *Cache) Set(ctx context.Context, account string, snapshot *Snapshot) error {
	if c.redis == nil || snapshot == nil {
		return nil
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := c.redis.Set(ctx, redisKey(account), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	c.logger.Debug().
		Str("account", account).
		Int("records", len(snapshot.Records)).
		Dur("ttl", c.ttl).
		Msg("Roster snapshot stored")
	return nil
}

// Invalidate drops the snapshot, typically after a bulk removal changed
// the remote list.
func (c *Cache) Invalidate(ctx context.Context, account string) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Del(ctx, redisKey(account)).Err()
}

func redisKey(account string) string {
	return "sweeper:roster:" + account
}
