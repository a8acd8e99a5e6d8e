package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/connsweep/connection-sweeper/pkg/contact"
	"github.com/connsweep/connection-sweeper/pkg/logging"
	"github.com/connsweep/connection-sweeper/pkg/transport"
)

// Prometheus metrics for endpoint discovery.
var (
	discoveryProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sweeper_discovery_probes_total",
		Help: "Endpoint candidate probes by endpoint name and outcome",
	}, []string{"endpoint", "outcome"})

	memoFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_memo_failures_total",
		Help: "Failures of the memoized endpoint after commitment",
	})
)

// ErrNoWorkingEndpoint is returned when every catalog candidate has been
// probed without yielding data.
var ErrNoWorkingEndpoint = errors.New("no working endpoint for connection listing")

// snippetLen bounds the payload sample logged when no parse strategy
// matched a candidate's response.
const snippetLen = 300

// Fetcher performs one list-page request. Satisfied by *transport.Client.
type Fetcher interface {
	Get(ctx context.Context, url string, headers http.Header) ([]byte, error)
}

// Page is the parsed outcome of one list-page fetch.
type Page struct {
	Records       []contact.Record
	ReportedTotal int
}

// Discoverer probes the endpoint catalog and commits the first working
// candidate to the session's discovery state.
type Discoverer struct {
	fetcher Fetcher
	baseURL string
	headers http.Header
	catalog []EndpointConfig
	state   *State
	logger  zerolog.Logger
}

// NewDiscoverer creates a discoverer over the given catalog. The headers
// are sent unchanged on every probe.
func NewDiscoverer(fetcher Fetcher, baseURL string, headers http.Header, catalog []EndpointConfig, state *State) *Discoverer {
	return &Discoverer{
		fetcher: fetcher,
		baseURL: baseURL,
		headers: headers,
		catalog: catalog,
		state:   state,
		logger:  logging.NewLogger("discovery"),
	}
}

// Discover returns page zero from a working endpoint. On a warm state the
// memoized endpoint is used directly; otherwise candidates are probed in
// catalog order. A candidate works if its response parses into records or
// reports a nonzero total (a valid-but-empty first page on a filtered
// account still proves the endpoint exists). ErrRateLimited from any
// probe aborts discovery immediately: throttling is a global condition,
// not evidence against the candidate.
func (d *Discoverer) Discover(ctx context.Context) (Page, error) {
	if endpoint, ok := d.state.Endpoint(); ok {
		page, err := d.FetchPage(ctx, 0)
		if err != nil && !transport.IsTransient(err) {
			memoFailuresTotal.Inc()
			d.logger.Warn().
				Str("endpoint", endpoint.Name).
				Err(err).
				Msg("Memoized endpoint failed; keeping memo for the session")
		}
		return page, err
	}

	for _, endpoint := range d.catalog {
		body, err := d.fetcher.Get(ctx, endpoint.PageURL(d.baseURL, 0), d.headers)
		if errors.Is(err, transport.ErrRateLimited) {
			discoveryProbesTotal.WithLabelValues(endpoint.Name, "rate_limited").Inc()
			return Page{}, err
		}
		if err != nil {
			discoveryProbesTotal.WithLabelValues(endpoint.Name, "error").Inc()
			d.logger.Debug().
				Str("endpoint", endpoint.Name).
				Err(err).
				Msg("Candidate probe failed")
			continue
		}

		records := contact.Parse(body)
		total := contact.ReportedTotal(body)
		if len(records) == 0 && total == 0 {
			discoveryProbesTotal.WithLabelValues(endpoint.Name, "no_data").Inc()
			d.logger.Debug().
				Str("endpoint", endpoint.Name).
				Str("sample", contact.Snippet(body, snippetLen)).
				Msg("Candidate returned no parseable data")
			continue
		}

		discoveryProbesTotal.WithLabelValues(endpoint.Name, "working").Inc()
		d.state.CommitEndpoint(endpoint)
		d.logger.Info().
			Str("endpoint", endpoint.Name).
			Int("records", len(records)).
			Int("reported_total", total).
			Msg("Committed working endpoint")
		return Page{Records: records, ReportedTotal: total}, nil
	}

	return Page{}, ErrNoWorkingEndpoint
}

// FetchPage fetches and parses one page at the given offset from the
// committed endpoint. Discovery must have succeeded first.
func (d *Discoverer) FetchPage(ctx context.Context, offset int) (Page, error) {
	endpoint, ok := d.state.Endpoint()
	if !ok {
		return Page{}, fmt.Errorf("no endpoint committed: %w", ErrNoWorkingEndpoint)
	}

	body, err := d.fetcher.Get(ctx, endpoint.PageURL(d.baseURL, offset), d.headers)
	if err != nil {
		return Page{}, err
	}
	return Page{Records: contact.Parse(body), ReportedTotal: contact.ReportedTotal(body)}, nil
}
