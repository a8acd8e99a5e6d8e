// Package transport performs single HTTP requests against the private API
// and normalizes the outcome: success with body, rate limited, timed out,
// or failed. It enforces a per-call wall-clock budget and carries no retry
// logic; retry policy belongs entirely to callers.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/connsweep/connection-sweeper/pkg/logging"
)

// Prometheus metrics for transport operations.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sweeper_api_requests_total",
		Help: "Total API requests by path and status",
	}, []string{"path", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sweeper_api_request_duration_seconds",
		Help:    "API request duration in seconds by path",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"path"})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sweeper_api_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})
)

// maxBodySnippet bounds the response body carried inside an APIError.
const maxBodySnippet = 512

// Config holds transport configuration.
type Config struct {
	// ListTimeout is the wall-clock budget for paginated list requests.
	ListTimeout time.Duration

	// MutationTimeout is the (shorter) budget for single-item mutations.
	MutationTimeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		ListTimeout:     20 * time.Second,
		MutationTimeout: 10 * time.Second,
	}
}

// Client performs individual HTTP requests with outcome classification.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a transport client.
func New(cfg Config) *Client {
	if cfg.ListTimeout <= 0 {
		cfg.ListTimeout = DefaultConfig().ListTimeout
	}
	if cfg.MutationTimeout <= 0 {
		cfg.MutationTimeout = DefaultConfig().MutationTimeout
	}
	return &Client{
		// Timeout is enforced per call via context; the client-level
		// timeout is a backstop only.
		httpClient: &http.Client{Timeout: cfg.ListTimeout + 5*time.Second},
		config:     cfg,
		logger:     logging.NewLogger("transport"),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Get fetches a list page. Returns the response body on 2xx,
// ErrRateLimited on 429, ErrTimeout on budget expiry, or an APIError /
// wrapped network error otherwise.
func (c *Client) Get(ctx context.Context, url string, headers http.Header) ([]byte, error) {
	return c.send(ctx, http.MethodGet, url, headers, nil, c.config.ListTimeout)
}

// Mutate issues a single mutation (POST or DELETE) under the shorter
// mutation budget. The body may be nil.
func (c *Client) Mutate(ctx context.Context, method, url string, headers http.Header, body []byte) ([]byte, error) {
	return c.send(ctx, method, url, headers, body, c.config.MutationTimeout)
}

func (c *Client) send(ctx context.Context, method, url string, headers http.Header, body []byte, timeout time.Duration) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if body != nil {
		req.Header.Set("content-type", "application/json; charset=UTF-8")
	}

	path := req.URL.Path
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	apiRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())

	if err != nil {
		outcome := fmt.Errorf("%s %s: %w", method, path, err)
		if reqCtx.Err() == context.DeadlineExceeded {
			outcome = fmt.Errorf("%w: %s %s after %s", ErrTimeout, method, path, timeout)
		}
		class := classify(outcome)
		apiErrorsTotal.WithLabelValues(class).Inc()
		apiRequestsTotal.WithLabelValues(path, class).Inc()
		c.logger.Warn().
			Str("method", method).
			Str("path", path).
			Str("error_class", class).
			Err(err).
			Msg("Request failed")
		return nil, outcome
	}
	defer resp.Body.Close()

	apiRequestsTotal.WithLabelValues(path, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	// 429 is distinguished regardless of body content.
	if resp.StatusCode == http.StatusTooManyRequests {
		apiErrorsTotal.WithLabelValues("rate_limited").Inc()
		c.logger.Warn().
			Str("method", method).
			Str("path", path).
			Msg("Rate limited")
		return nil, ErrRateLimited
	}

	respBody, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErrorsTotal.WithLabelValues("api").Inc()
		snippet := string(respBody)
		if len(snippet) > maxBodySnippet {
			snippet = snippet[:maxBodySnippet]
		}
		c.logger.Warn().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Msg("Request returned error status")
		return nil, &APIError{StatusCode: resp.StatusCode, Body: snippet}
	}

	if readErr != nil {
		apiErrorsTotal.WithLabelValues("network").Inc()
		return nil, fmt.Errorf("read response body: %w", readErr)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Int("bytes", len(respBody)).
		Dur("duration", time.Since(start)).
		Msg("Request completed")

	return respBody, nil
}

// IsTransient reports whether an error is a transient, recoverable
// condition (rate limiting or timeout) rather than a hard failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout)
}
