package transport

import (
	"errors"
	"fmt"
)

// Common conditions surfaced by the transport.
var (
	// ErrRateLimited indicates the server answered 429. It is a global
	// condition: callers back off, they never fail over to another
	// endpoint or strategy because of it.
	ErrRateLimited = errors.New("rate limited by server")

	// ErrTimeout indicates the per-request wall-clock budget expired
	// before the server answered.
	ErrTimeout = errors.New("request timed out")
)

// APIError represents a non-2xx response other than 429, carrying the
// status code and a truncated body snippet for diagnostics.
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Body)
}

// classify buckets an error for metrics and logging.
func classify(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return "api"
		}
		return "network"
	}
}
