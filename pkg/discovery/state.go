package discovery

import "sync"

// State memoizes the winning list endpoint and removal strategy for the
// lifetime of the process. It starts empty, is set on first success, and
// is never invalidated afterwards; only a restart clears it. A later hard
// failure on the memoized choice is counted (see memoFailuresTotal) but
// does not trigger re-discovery.
type State struct {
	mu       sync.Mutex
	endpoint *EndpointConfig
	strategy int
}

// NewState returns an empty discovery state.
func NewState() *State {
	return &State{strategy: -1}
}

// Endpoint returns the committed list endpoint, if any.
func (s *State) Endpoint() (EndpointConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endpoint == nil {
		return EndpointConfig{}, false
	}
	return *s.endpoint, true
}

// CommitEndpoint records the winning list endpoint.
func (s *State) CommitEndpoint(e EndpointConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoint = &e
}

// StrategyIndex returns the index of the last removal strategy that
// succeeded, or -1 when none has yet.
func (s *State) StrategyIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategy
}

// CommitStrategy records the winning removal strategy index.
func (s *State) CommitStrategy(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategy = index
}
