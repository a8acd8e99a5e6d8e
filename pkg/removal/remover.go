package removal

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/connsweep/connection-sweeper/pkg/contact"
	"github.com/connsweep/connection-sweeper/pkg/discovery"
	"github.com/connsweep/connection-sweeper/pkg/logging"
	"github.com/connsweep/connection-sweeper/pkg/transport"
)

// Prometheus metrics for removal attempts.
var removalAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sweeper_removal_attempts_total",
	Help: "Removal strategy attempts by strategy name and outcome",
}, []string{"strategy", "outcome"})

// ErrAllStrategiesFailed is returned when every applicable strategy was
// attempted for a record and none succeeded. The wrapping error carries
// the record's display name.
var ErrAllStrategiesFailed = errors.New("all removal strategies failed")

// Mutator issues one mutation request. Satisfied by *transport.Client.
type Mutator interface {
	Mutate(ctx context.Context, method, url string, headers http.Header, body []byte) ([]byte, error)
}

// Remover removes single connections through the strategy set.
type Remover struct {
	mutator    Mutator
	baseURL    string
	headers    http.Header
	strategies []Strategy
	state      *discovery.State
	logger     zerolog.Logger
}

// NewRemover creates a remover sharing the session's discovery state, so
// the winning strategy carries across items and operations.
func NewRemover(mutator Mutator, baseURL string, headers http.Header, strategies []Strategy, state *discovery.State) *Remover {
	return &Remover{
		mutator:    mutator,
		baseURL:    baseURL,
		headers:    headers,
		strategies: strategies,
		state:      state,
		logger:     logging.NewLogger("removal"),
	}
}

// Remove attempts to remove one connection. The remembered winning
// strategy is tried first, then the remaining applicable strategies in
// priority order. Any 2xx answer counts as success. A 429 aborts the
// whole removal and propagates: throttling is global, not evidence
// against the strategy.
func (r *Remover) Remove(ctx context.Context, rec contact.Record) error {
	for _, index := range r.order() {
		strategy := r.strategies[index]
		if !strategy.Applicable(rec) {
			continue
		}

		method, requestURL, body := strategy.Request(r.baseURL, rec)
		_, err := r.mutator.Mutate(ctx, method, requestURL, r.headers, body)
		if err == nil {
			removalAttemptsTotal.WithLabelValues(strategy.Name, "success").Inc()
			if r.state.StrategyIndex() != index {
				r.state.CommitStrategy(index)
				r.logger.Info().
					Str("strategy", strategy.Name).
					Msg("Committed working removal strategy")
			}
			return nil
		}
		if errors.Is(err, transport.ErrRateLimited) {
			removalAttemptsTotal.WithLabelValues(strategy.Name, "rate_limited").Inc()
			return err
		}

		removalAttemptsTotal.WithLabelValues(strategy.Name, "failed").Inc()
		r.logger.Debug().
			Str("strategy", strategy.Name).
			Str("contact", rec.DisplayName()).
			Err(err).
			Msg("Removal strategy failed; trying next")
	}

	return fmt.Errorf("%w for %s", ErrAllStrategiesFailed, rec.DisplayName())
}

// order yields strategy indices with the remembered winner first.
func (r *Remover) order() []int {
	winner := r.state.StrategyIndex()
	order := make([]int, 0, len(r.strategies))
	if winner >= 0 && winner < len(r.strategies) {
		order = append(order, winner)
	}
	for i := range r.strategies {
		if i != winner {
			order = append(order, i)
		}
	}
	return order
}
