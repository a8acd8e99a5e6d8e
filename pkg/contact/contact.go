// Package contact defines the normalized contact record and the
// shape-agnostic parser that extracts records from the API's paginated
// list responses. The response shape is not a stable contract across API
// revisions or account states, so parsing is heuristic rather than
// schema-bound.
package contact

import "strings"

// profileURLPrefix derives a public profile URL from a slug.
const profileURLPrefix = "https://www.linkedin.com/in/"

// Record is the normalized representation of one remote connection,
// independent of the API revision that produced it. Records are immutable
// once produced by the parser.
type Record struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`

	// Name is the trimmed concatenation of first and last name.
	Name string `json:"name"`

	// Headline is free text and may be empty.
	Headline string `json:"headline,omitempty"`

	// PublicIdentifier is the optional profile slug.
	PublicIdentifier string `json:"publicIdentifier,omitempty"`

	// ProfileURL is derived from the slug, empty when the slug is absent.
	ProfileURL string `json:"profileUrl,omitempty"`

	// EntityURN is the stable identifier of the person, may be empty.
	EntityURN string `json:"entityUrn,omitempty"`

	// ConnectionURN identifies the relationship rather than the person.
	// Most removal strategies need it; it falls back to EntityURN when the
	// response carries no separate relationship entity.
	ConnectionURN string `json:"connectionUrn,omitempty"`

	// ConnectedAt is the connection timestamp in epoch milliseconds,
	// zero when unknown.
	ConnectedAt int64 `json:"connectedAt,omitempty"`

	// ProfilePicture is an absolute image URL, may be empty.
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// newRecord builds a Record, deriving Name and ProfileURL.
func newRecord(firstName, lastName, headline, publicID, entityURN, connectionURN string, connectedAt int64, picture string) Record {
	name := strings.TrimSpace(strings.TrimSpace(firstName) + " " + strings.TrimSpace(lastName))
	profileURL := ""
	if publicID != "" {
		profileURL = profileURLPrefix + publicID
	}
	return Record{
		FirstName:        firstName,
		LastName:         lastName,
		Name:             name,
		Headline:         headline,
		PublicIdentifier: publicID,
		ProfileURL:       profileURL,
		EntityURN:        entityURN,
		ConnectionURN:    connectionURN,
		ConnectedAt:      connectedAt,
		ProfilePicture:   picture,
	}
}

// Removable reports whether at least one identifying field usable by a
// removal strategy is present.
func (r Record) Removable() bool {
	return r.ConnectionURN != "" || r.EntityURN != "" || r.PublicIdentifier != ""
}

// DisplayName returns a human-readable label for progress reporting and
// diagnostics, never empty.
func (r Record) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	if r.PublicIdentifier != "" {
		return r.PublicIdentifier
	}
	if r.EntityURN != "" {
		return r.EntityURN
	}
	return "unknown connection"
}

// identifier returns the best available unique identifier, used for
// deduplication during parsing.
func (r Record) identifier() string {
	if r.EntityURN != "" {
		return r.EntityURN
	}
	if r.ConnectionURN != "" {
		return r.ConnectionURN
	}
	return r.PublicIdentifier
}
