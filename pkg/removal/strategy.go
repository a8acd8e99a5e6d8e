// Package removal issues the "remove one connection" mutation. Like the
// list endpoint, the correct mutation shape is not contractually known;
// a fixed-priority list of candidate shapes is tried per item, each gated
// by which identifying fields the record actually carries, and the first
// shape that succeeds is remembered for the rest of the session.
package removal

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/connsweep/connection-sweeper/pkg/contact"
)

// Strategy is one candidate request shape for removing a connection.
type Strategy struct {
	Name string

	// Applicable reports whether the record carries the identifier this
	// shape needs. Inapplicable strategies are skipped, not attempted.
	Applicable func(rec contact.Record) bool

	// Request builds the mutation request against the given API base URL.
	Request func(baseURL string, rec contact.Record) (method, requestURL string, body []byte)
}

// DefaultStrategies returns the candidate shapes in priority order: the
// dash action endpoint first, its RESTful delete form second, then the
// two legacy shapes keyed on weaker identifiers.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{
			Name: "dash_remove_action",
			Applicable: func(rec contact.Record) bool {
				return rec.ConnectionURN != ""
			},
			Request: func(baseURL string, rec contact.Record) (string, string, []byte) {
				body, _ := json.Marshal(map[string]string{"connectionUrn": rec.ConnectionURN})
				return "POST", joinPath(baseURL, "relationships/dash/connections") + "?action=removeFromMyConnections", body
			},
		},
		{
			Name: "dash_delete",
			Applicable: func(rec contact.Record) bool {
				return rec.ConnectionURN != ""
			},
			Request: func(baseURL string, rec contact.Record) (string, string, []byte) {
				// The server expects the urn fully percent-encoded,
				// colons included, which PathEscape leaves alone.
				return "DELETE", joinPath(baseURL, "relationships/dash/connections", url.QueryEscape(rec.ConnectionURN)), nil
			},
		},
		{
			Name: "legacy_delete",
			Applicable: func(rec contact.Record) bool {
				return rec.EntityURN != ""
			},
			Request: func(baseURL string, rec contact.Record) (string, string, []byte) {
				return "DELETE", joinPath(baseURL, "relationships/connections", urnID(rec.EntityURN)), nil
			},
		},
		{
			Name: "legacy_remove_action",
			Applicable: func(rec contact.Record) bool {
				return rec.PublicIdentifier != ""
			},
			Request: func(baseURL string, rec contact.Record) (string, string, []byte) {
				return "POST", joinPath(baseURL, "relationships/connections", url.PathEscape(rec.PublicIdentifier)) + "?action=remove", nil
			},
		},
	}
}

// urnID returns the final segment of a URN ("urn:li:fsd_profile:X" -> "X").
func urnID(urn string) string {
	if idx := strings.LastIndex(urn, ":"); idx >= 0 {
		return urn[idx+1:]
	}
	return urn
}

func joinPath(baseURL string, segments ...string) string {
	parts := append([]string{strings.TrimRight(baseURL, "/")}, segments...)
	return strings.Join(parts, "/")
}
