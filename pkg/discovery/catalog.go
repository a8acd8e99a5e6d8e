// Package discovery locates a working list endpoint among several
// parallel API revisions. The endpoint path, decoration parameters and
// response shape are not contractually stable, so candidates are probed
// in fixed priority order and the first one that yields data is committed
// for the remainder of the session.
package discovery

import (
	"net/url"
	"strconv"
	"strings"
)

// PageSize is the fixed page size for list requests.
const PageSize = 40

// EndpointConfig describes one candidate list endpoint: a name for
// logging, a path relative to the API base URL, and the static decoration
// parameters that revision expects. Immutable, defined at startup.
type EndpointConfig struct {
	Name   string
	Path   string
	Params url.Values
}

// PageURL builds the request URL for one page at the given offset.
func (e EndpointConfig) PageURL(baseURL string, offset int) string {
	q := url.Values{}
	for key, values := range e.Params {
		q[key] = values
	}
	q.Set("start", strconv.Itoa(offset))
	q.Set("count", strconv.Itoa(PageSize))
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(e.Path, "/") + "?" + q.Encode()
}

// DefaultCatalog returns the candidate list endpoints in priority order:
// the current dash revision first, the legacy relationships endpoint
// second, and the blended search endpoint as a last resort.
func DefaultCatalog() []EndpointConfig {
	return []EndpointConfig{
		{
			Name: "dash_connections",
			Path: "relationships/dash/connections",
			Params: url.Values{
				"decorationId": {"com.linkedin.voyager.dash.deco.web.mynetwork.ConnectionListCompact-16"},
				"q":            {"search"},
				"sortType":     {"RECENTLY_ADDED"},
			},
		},
		{
			Name: "legacy_connections",
			Path: "relationships/connections",
			Params: url.Values{
				"q":        {"search"},
				"sortType": {"RECENTLY_ADDED"},
			},
		},
		{
			Name: "blended_search",
			Path: "search/blended",
			Params: url.Values{
				"filters": {"List(network->F)"},
				"origin":  {"MEMBER_PROFILE"},
			},
		},
	}
}
