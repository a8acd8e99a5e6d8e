package discovery

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/connsweep/connection-sweeper/pkg/transport"
)

const populatedPage = `{
	"paging": {"total": 2},
	"included": [
		{"entityUrn": "urn:li:fsd_profile:A", "firstName": "Jane", "lastName": "Doe"},
		{"entityUrn": "urn:li:fsd_profile:B", "firstName": "Bob", "lastName": "Ray"}
	]
}`

// stubFetcher answers by matching a path fragment against configured
// responses and records every requested URL.
type stubFetcher struct {
	responses map[string]stubResponse
	calls     []string
}

type stubResponse struct {
	body string
	err  error
}

func (f *stubFetcher) Get(_ context.Context, url string, _ http.Header) ([]byte, error) {
	f.calls = append(f.calls, url)
	for fragment, resp := range f.responses {
		if strings.Contains(url, fragment) {
			return []byte(resp.body), resp.err
		}
	}
	return []byte(`{}`), nil
}

func testCatalog() []EndpointConfig {
	return DefaultCatalog()
}

func TestDiscover_FirstWorkingCandidateWins(t *testing.T) {
	fetcher := &stubFetcher{responses: map[string]stubResponse{
		"relationships/dash/connections": {body: `{"elements": []}`},
		"relationships/connections":      {body: populatedPage},
	}}
	d := NewDiscoverer(fetcher, "https://api.example.com", nil, testCatalog(), NewState())

	page, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(page.Records) != 2 {
		t.Errorf("records = %d, want 2", len(page.Records))
	}
	if page.ReportedTotal != 2 {
		t.Errorf("reported total = %d, want 2", page.ReportedTotal)
	}

	endpoint, ok := d.state.Endpoint()
	if !ok || endpoint.Name != "legacy_connections" {
		t.Errorf("committed endpoint = %+v, want legacy_connections", endpoint)
	}
	// The dead first candidate was probed, the third never reached.
	if len(fetcher.calls) != 2 {
		t.Errorf("calls = %d, want 2", len(fetcher.calls))
	}
}

func TestDiscover_EmptyPageWithTotalIsWorking(t *testing.T) {
	// Valid-but-empty first page on a populated account (filters active)
	// still proves the endpoint exists.
	fetcher := &stubFetcher{responses: map[string]stubResponse{
		"relationships/dash/connections": {body: `{"paging": {"total": 57}, "elements": []}`},
	}}
	d := NewDiscoverer(fetcher, "https://api.example.com", nil, testCatalog(), NewState())

	page, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if page.ReportedTotal != 57 {
		t.Errorf("reported total = %d, want 57", page.ReportedTotal)
	}
	if endpoint, ok := d.state.Endpoint(); !ok || endpoint.Name != "dash_connections" {
		t.Errorf("committed endpoint = %+v, want dash_connections", endpoint)
	}
}

func TestDiscover_WarmStateSkipsProbing(t *testing.T) {
	fetcher := &stubFetcher{responses: map[string]stubResponse{
		"relationships/dash/connections": {body: `{"elements": []}`},
		"relationships/connections":      {body: populatedPage},
	}}
	state := NewState()
	d := NewDiscoverer(fetcher, "https://api.example.com", nil, testCatalog(), state)

	if _, err := d.Discover(context.Background()); err != nil {
		t.Fatalf("cold Discover() error = %v", err)
	}
	coldCalls := len(fetcher.calls)

	if _, err := d.Discover(context.Background()); err != nil {
		t.Fatalf("warm Discover() error = %v", err)
	}

	warmCalls := fetcher.calls[coldCalls:]
	if len(warmCalls) != 1 {
		t.Fatalf("warm calls = %d, want 1", len(warmCalls))
	}
	if !strings.Contains(warmCalls[0], "relationships/connections") {
		t.Errorf("warm call = %s, want committed endpoint", warmCalls[0])
	}
}

func TestDiscover_RateLimitedAbortsImmediately(t *testing.T) {
	fetcher := &stubFetcher{responses: map[string]stubResponse{
		"relationships/dash/connections": {err: transport.ErrRateLimited},
		"relationships/connections":      {body: populatedPage},
	}}
	d := NewDiscoverer(fetcher, "https://api.example.com", nil, testCatalog(), NewState())

	_, err := d.Discover(context.Background())
	if !errors.Is(err, transport.ErrRateLimited) {
		t.Fatalf("Discover() error = %v, want ErrRateLimited", err)
	}
	// Throttling is global: no further candidates probed.
	if len(fetcher.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(fetcher.calls))
	}
	if _, ok := d.state.Endpoint(); ok {
		t.Error("no endpoint should be committed after rate limit abort")
	}
}

func TestDiscover_ExhaustionFails(t *testing.T) {
	fetcher := &stubFetcher{responses: map[string]stubResponse{}}
	d := NewDiscoverer(fetcher, "https://api.example.com", nil, testCatalog(), NewState())

	_, err := d.Discover(context.Background())
	if !errors.Is(err, ErrNoWorkingEndpoint) {
		t.Fatalf("Discover() error = %v, want ErrNoWorkingEndpoint", err)
	}
	if len(fetcher.calls) != len(testCatalog()) {
		t.Errorf("calls = %d, want full catalog sweep", len(fetcher.calls))
	}
}

func TestFetchPage_RequiresCommittedEndpoint(t *testing.T) {
	d := NewDiscoverer(&stubFetcher{}, "https://api.example.com", nil, testCatalog(), NewState())

	_, err := d.FetchPage(context.Background(), 40)
	if !errors.Is(err, ErrNoWorkingEndpoint) {
		t.Errorf("FetchPage() error = %v, want ErrNoWorkingEndpoint", err)
	}
}

func TestEndpointConfig_PageURL(t *testing.T) {
	endpoint := testCatalog()[0]

	url := endpoint.PageURL("https://api.example.com/voyager/api/", 80)

	if !strings.HasPrefix(url, "https://api.example.com/voyager/api/relationships/dash/connections?") {
		t.Errorf("url = %s", url)
	}
	if !strings.Contains(url, "start=80") || !strings.Contains(url, "count=40") {
		t.Errorf("url missing pagination params: %s", url)
	}
	if !strings.Contains(url, "decorationId=") {
		t.Errorf("url missing decoration param: %s", url)
	}
}
