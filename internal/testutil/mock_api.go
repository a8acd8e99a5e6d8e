// Package testutil provides testing utilities for the connection sweeper.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for one mocked endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock of the private network API for testing.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	MutationCount     int
	LastRequestHeader http.Header
	pathCounts        map[string]int
}

// NewMockAPI creates a new mock API server. Paths without a registered
// handler answer 404, which probing treats as a dead candidate.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.pathCounts[r.URL.Path]++
		mock.LastRequestHeader = r.Header.Clone()
		if r.Method != http.MethodGet {
			mock.MutationCount++
		}
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "Not found", "status": 404}`))
	}))

	return mock
}

// URL returns the mock server URL, usable as the client base URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.MutationCount = 0
	m.LastRequestHeader = nil
	m.pathCounts = make(map[string]int)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetMutationCount returns the number of non-GET requests.
func (m *MockAPI) GetMutationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.MutationCount
}

// RequestsTo returns the number of requests a single path received.
func (m *MockAPI) RequestsTo(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetPagedResponse configures a path that serves a different body per
// pagination offset, read from the start query parameter. Offsets without
// an entry answer an empty page, which terminates pagination.
func (m *MockAPI) SetPagedResponse(path string, pages map[int]string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		body, ok := pages[start]
		if !ok {
			body = EmptyPage(0)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	})
}

// ConnectionsPage builds a normalized-JSON list page: one profile and one
// relationship entity per name, cross-referenced the way the live API
// shapes them. Names are "First Last" strings; total is the server-side
// total the page reports.
func ConnectionsPage(start, total int, names ...string) string {
	included := make([]any, 0, 2*len(names))
	elements := make([]any, 0, len(names))

	for i, name := range names {
		first, last := splitName(name)
		idx := start + i
		profileURN := fmt.Sprintf("urn:li:fsd_profile:mock%d", idx)
		connectionURN := fmt.Sprintf("urn:li:fsd_connection:mock%d", idx)

		included = append(included,
			map[string]any{
				"$type":            "com.linkedin.voyager.dash.identity.profile.Profile",
				"entityUrn":        profileURN,
				"firstName":        first,
				"lastName":         last,
				"publicIdentifier": fmt.Sprintf("mock-contact-%d", idx),
				"headline":         "Mock headline",
			},
			map[string]any{
				"$type":           "com.linkedin.voyager.dash.relationships.Connection",
				"entityUrn":       connectionURN,
				"connectedMember": profileURN,
				"connectedAt":     1700000000000 + int64(idx),
			},
		)
		elements = append(elements, connectionURN)
	}

	return marshalPage(start, total, elements, included)
}

// EmptyPage builds a valid list page with no entries.
func EmptyPage(total int) string {
	return marshalPage(0, total, []any{}, []any{})
}

func marshalPage(start, total int, elements, included []any) string {
	payload := map[string]any{
		"data": map[string]any{
			"paging": map[string]any{
				"start": start,
				"count": 40,
				"total": total,
			},
			"*elements": elements,
		},
		"included": included,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return string(data)
}

func splitName(name string) (string, string) {
	parts := strings.SplitN(name, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

// NewPageResponse wraps a list-page body in a 200 response.
func NewPageResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewSuccessResponse creates the empty 200 a mutation endpoint answers.
func NewSuccessResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "Too many requests", "status": 429}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message": "Internal server error", "status": 500}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}
