// Package session holds the authenticated-session credentials the client
// reuses for every request. Credential extraction (reading the cookie jar
// of a logged-in browser) happens outside this module; the credentials
// arrive fully formed via configuration.
package session

import (
	"errors"
	"net/http"
	"strings"
)

// ErrNotAuthenticated is returned when the session credentials required to
// talk to the API are missing or incomplete.
var ErrNotAuthenticated = errors.New("not authenticated: missing session credentials")

// DefaultUserAgent is sent when the caller does not supply one. The API
// rejects requests without a browser-like user agent.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Credentials carries the two values the private API requires on every
// call: the CSRF token and the session cookie header of an authenticated
// browsing session.
type Credentials struct {
	// CSRFToken is the value of the csrf-token request header. On the wire
	// it matches the JSESSIONID cookie value (quotes stripped).
	CSRFToken string

	// CookieHeader is the full Cookie header of the authenticated session.
	CookieHeader string

	// UserAgent overrides DefaultUserAgent when non-empty.
	UserAgent string
}

// Validate checks that both required credential values are present.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.CSRFToken) == "" || strings.TrimSpace(c.CookieHeader) == "" {
		return ErrNotAuthenticated
	}
	return nil
}

// Headers returns the header set every API request must carry: session
// credentials plus the API-revision headers the server expects from its
// own web client.
func (c Credentials) Headers() http.Header {
	h := http.Header{}
	h.Set("csrf-token", c.CSRFToken)
	h.Set("cookie", c.CookieHeader)
	h.Set("accept", "application/vnd.linkedin.normalized+json+2.1")
	h.Set("x-restli-protocol-version", "2.0.0")
	ua := c.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	h.Set("user-agent", ua)
	return h
}
