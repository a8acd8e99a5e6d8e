// Package throttle remembers observed 429 responses across processes.
// The remote API throttles per account, not per process: a cooldown
// tripped by one invocation must hold back the next one too, or a
// restarted daemon immediately re-trips abuse detection. The deadline is
// kept in Redis when available and mirrored in memory so the library
// works standalone.
package throttle

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/connsweep/connection-sweeper/pkg/logging"
)

// Prometheus metrics for throttle state.
var (
	cooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_throttle_cooldowns_total",
		Help: "Number of rate-limit cooldowns recorded",
	})

	cooldownWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_throttle_waits_total",
		Help: "Number of operations that waited out an active cooldown",
	})
)

// redisKeyCooldownUntil stores the cooldown deadline as unix seconds.
const redisKeyCooldownUntil = "sweeper:throttle:cooldown_until"

// DefaultCooldown is applied per recorded 429.
const DefaultCooldown = 2 * time.Minute

// Store tracks the active cooldown deadline.
type Store struct {
	redis    *redis.Client
	cooldown time.Duration
	logger   zerolog.Logger

	mu          sync.Mutex
	memoryUntil time.Time
}

// NewStore creates a cooldown store. redisClient may be nil for purely
// in-process state.
func NewStore(redisClient *redis.Client, cooldown time.Duration) *Store {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Store{
		redis:    redisClient,
		cooldown: cooldown,
		logger:   logging.NewLogger("throttle"),
	}
}

// RecordRateLimit notes a 429 observation and arms the cooldown. Redis
// write failures degrade to the in-memory deadline.
func (s *Store) RecordRateLimit(ctx context.Context) {
	until := time.Now().Add(s.cooldown)

	s.mu.Lock()
	if until.After(s.memoryUntil) {
		s.memoryUntil = until
	}
	s.mu.Unlock()

	cooldownsTotal.Inc()
	s.logger.Warn().
		Time("until", until).
		Dur("cooldown", s.cooldown).
		Msg("Rate limit observed; cooldown armed")

	if s.redis == nil {
		return
	}
	err := s.redis.Set(ctx, redisKeyCooldownUntil, until.Unix(), s.cooldown).Err()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to store cooldown in redis; in-memory only")
	}
}

// Remaining returns how long the active cooldown still has to run, zero
// when clear. The larger of the shared and in-memory deadlines wins.
func (s *Store) Remaining(ctx context.Context) time.Duration {
	s.mu.Lock()
	until := s.memoryUntil
	s.mu.Unlock()

	if s.redis != nil {
		value, err := s.redis.Get(ctx, redisKeyCooldownUntil).Result()
		switch {
		case err == redis.Nil:
			// No shared cooldown.
		case err != nil:
			s.logger.Warn().Err(err).Msg("Failed to read cooldown from redis")
		default:
			if unix, parseErr := strconv.ParseInt(value, 10, 64); parseErr == nil {
				if shared := time.Unix(unix, 0); shared.After(until) {
					until = shared
				}
			}
		}
	}

	remaining := time.Until(until)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Wait blocks until the active cooldown expires or ctx ends.
func (s *Store) Wait(ctx context.Context) error {
	remaining := s.Remaining(ctx)
	if remaining == 0 {
		return nil
	}

	cooldownWaitsTotal.Inc()
	s.logger.Info().
		Dur("remaining", remaining).
		Msg("Waiting out active rate-limit cooldown")

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("cooldown wait: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
