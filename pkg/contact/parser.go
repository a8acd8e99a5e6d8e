package contact

import (
	"encoding/json"
	"strings"

	"github.com/connsweep/connection-sweeper/pkg/logging"
)

// crossRefFields are the field names under which a relationship entity may
// reference its profile, in the order they appeared across API revisions.
var crossRefFields = []string{
	"connectedMember",
	"*connectedMember",
	"connectedMemberResolutionResult",
	"member",
	"*member",
	"miniProfile",
	"*miniProfile",
	"targetMember",
}

// Parse extracts a normalized record list from an arbitrary list-response
// payload. It applies an ordered fallback chain and returns the first
// strategy's output that yields at least one record; each strategy is
// strictly cheaper to satisfy than the one before it. On total failure it
// returns an empty slice, never an error: a parse miss is a diagnostic
// condition, not a fault.
func Parse(payload []byte) []Record {
	logger := logging.NewLogger("parser")

	var root any
	if err := json.Unmarshal(payload, &root); err != nil {
		logger.Debug().Err(err).Msg("Payload is not valid JSON")
		return nil
	}
	rootMap, ok := root.(map[string]any)
	if !ok {
		return nil
	}

	included := includedEntities(rootMap)

	if records := joinProfiles(included); len(records) > 0 {
		logger.Debug().Int("records", len(records)).Str("strategy", "profile_join").Msg("Parsed records")
		return records
	}
	if records := scanNames(included); len(records) > 0 {
		logger.Debug().Int("records", len(records)).Str("strategy", "name_scan").Msg("Parsed records")
		return records
	}
	if records := walkElements(rootMap, indexByURN(included)); len(records) > 0 {
		logger.Debug().Int("records", len(records)).Str("strategy", "element_walk").Msg("Parsed records")
		return records
	}

	logger.Debug().Int("included", len(included)).Msg("No parse strategy matched")
	return nil
}

// ReportedTotal extracts the server-reported total count from a list
// response, returning 0 when absent or unparseable.
func ReportedTotal(payload []byte) int {
	var root any
	if err := json.Unmarshal(payload, &root); err != nil {
		return 0
	}
	rootMap, ok := root.(map[string]any)
	if !ok {
		return 0
	}

	for _, container := range []map[string]any{rootMap, childMap(rootMap, "data"), childMap(childMap(rootMap, "data"), "paging")} {
		if container == nil {
			continue
		}
		if paging := childMap(container, "paging"); paging != nil {
			if total := intField(paging, "total"); total > 0 {
				return total
			}
		}
		if total := intField(container, "total"); total > 0 {
			return total
		}
	}
	if metadata := childMap(rootMap, "metadata"); metadata != nil {
		if total := intField(metadata, "totalResultCount"); total > 0 {
			return total
		}
	}
	return 0
}

// Snippet returns a truncated prefix of a payload for troubleshooting
// output when no parse strategy matched.
func Snippet(payload []byte, n int) string {
	if len(payload) <= n {
		return string(payload)
	}
	return string(payload[:n]) + "..."
}

// joinProfiles is the primary strategy: join relationship-shaped entities
// in the included collection to their profile-shaped entities via a
// cross-reference field. When no relationship carries a usable
// back-reference but profiles exist, each profile's own identifier serves
// as the relationship identifier.
func joinProfiles(included []map[string]any) []Record {
	profileOrder := make([]string, 0, len(included))
	profiles := make(map[string]map[string]any)
	var connections []map[string]any

	for _, entity := range included {
		if isProfileShaped(entity) {
			urn := stringField(entity, "entityUrn", "objectUrn")
			if urn != "" {
				if _, seen := profiles[urn]; !seen {
					profileOrder = append(profileOrder, urn)
				}
				profiles[urn] = entity
			}
			continue
		}
		if isConnectionShaped(entity) {
			connections = append(connections, entity)
		}
	}

	var records []Record
	for _, conn := range connections {
		profileURN := ""
		for _, field := range crossRefFields {
			if ref, ok := conn[field]; ok {
				if urn := refURN(ref); urn != "" {
					profileURN = urn
					break
				}
			}
		}
		profile, ok := profiles[profileURN]
		if !ok {
			continue
		}
		rec := recordFromProfile(profile, stringField(conn, "entityUrn", "objectUrn"))
		if connectedAt := intField64(conn, "connectedAt", "createdAt"); connectedAt != 0 && rec.ConnectedAt == 0 {
			rec.ConnectedAt = connectedAt
		}
		records = append(records, rec)
	}

	if len(records) == 0 && len(profiles) > 0 {
		for _, urn := range profileOrder {
			records = append(records, recordFromProfile(profiles[urn], urn))
		}
	}
	return records
}

// scanNames ignores type tags entirely: any included entity carrying a
// first or last name plus a unique identifier is treated as a contact.
func scanNames(included []map[string]any) []Record {
	var records []Record
	seen := make(map[string]bool)

	for _, entity := range included {
		first := stringField(entity, "firstName")
		last := stringField(entity, "lastName")
		if first == "" && last == "" {
			continue
		}
		if stringField(entity, "entityUrn", "objectUrn", "publicIdentifier") == "" {
			continue
		}
		rec := recordFromProfile(entity, "")
		id := rec.identifier()
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		records = append(records, rec)
	}
	return records
}

// walkElements resolves the separate result-elements collection: raw URN
// strings referencing the included collection, inline objects carrying a
// nested member reference, or inline objects that are themselves
// profile-shaped. Nested element clusters (search-style responses) are
// walked one level deep.
func walkElements(root map[string]any, index map[string]map[string]any) []Record {
	elements := elementList(root)
	if elements == nil {
		return nil
	}

	var records []Record
	seen := make(map[string]bool)

	var add = func(rec Record) {
		id := rec.identifier()
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		records = append(records, rec)
	}

	var walk func(items []any, depth int)
	walk = func(items []any, depth int) {
		for _, item := range items {
			switch el := item.(type) {
			case string:
				profile, ok := index[el]
				if ok && (isProfileShaped(profile) || stringField(profile, "publicIdentifier") != "") {
					add(recordFromProfile(profile, ""))
				}
			case map[string]any:
				resolved := false
				for _, field := range crossRefFields {
					ref, ok := el[field]
					if !ok {
						continue
					}
					urn := refURN(ref)
					if profile, found := index[urn]; found {
						add(recordFromProfile(profile, stringField(el, "entityUrn", "objectUrn")))
						resolved = true
						break
					}
					// The reference may inline the profile itself.
					if inline, isMap := ref.(map[string]any); isMap && isProfileShaped(inline) {
						add(recordFromProfile(inline, stringField(el, "entityUrn", "objectUrn")))
						resolved = true
						break
					}
				}
				if resolved {
					continue
				}
				if isProfileShaped(el) {
					add(recordFromProfile(el, ""))
					continue
				}
				if depth < 1 {
					if inner, ok := el["elements"].([]any); ok {
						walk(inner, depth+1)
					}
				}
			}
		}
	}
	walk(elements, 0)
	return records
}

// recordFromProfile normalizes a profile-shaped entity into a Record.
// An empty connectionURN falls back to the profile's own entity URN so the
// record stays removable by URN-based strategies.
func recordFromProfile(profile map[string]any, connectionURN string) Record {
	entityURN := stringField(profile, "entityUrn", "objectUrn")
	if connectionURN == "" {
		connectionURN = entityURN
	}

	picture := ""
	for _, key := range []string{"profilePicture", "picture", "image", "profilePictureDisplayImage"} {
		if v, ok := profile[key]; ok {
			if picture = PictureURL(v); picture != "" {
				break
			}
		}
	}

	return newRecord(
		stringField(profile, "firstName"),
		stringField(profile, "lastName"),
		stringField(profile, "headline", "occupation"),
		stringField(profile, "publicIdentifier"),
		entityURN,
		connectionURN,
		intField64(profile, "connectedAt", "createdAt"),
		picture,
	)
}

// includedEntities returns the normalized-JSON included collection, which
// may sit at the top level or under a data envelope.
func includedEntities(root map[string]any) []map[string]any {
	raw, ok := root["included"].([]any)
	if !ok {
		if data := childMap(root, "data"); data != nil {
			raw, _ = data["included"].([]any)
		}
	}
	entities := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, isMap := item.(map[string]any); isMap {
			entities = append(entities, m)
		}
	}
	return entities
}

// elementList locates the result-elements array across known envelopes.
func elementList(root map[string]any) []any {
	if elements, ok := root["elements"].([]any); ok {
		return elements
	}
	if data := childMap(root, "data"); data != nil {
		if elements, ok := data["elements"].([]any); ok {
			return elements
		}
		if elements, ok := data["*elements"].([]any); ok {
			return elements
		}
	}
	return nil
}

func indexByURN(included []map[string]any) map[string]map[string]any {
	index := make(map[string]map[string]any, len(included))
	for _, entity := range included {
		for _, key := range []string{"entityUrn", "objectUrn"} {
			if urn := stringField(entity, key); urn != "" {
				if _, seen := index[urn]; !seen {
					index[urn] = entity
				}
			}
		}
	}
	return index
}

// isProfileShaped heuristically detects person entities: a profile-ish
// type tag, or name fields present.
func isProfileShaped(m map[string]any) bool {
	entityType := strings.ToLower(stringField(m, "$type", "$recipeType"))
	if strings.Contains(entityType, "profile") {
		return true
	}
	return stringField(m, "firstName") != "" || stringField(m, "lastName") != ""
}

// isConnectionShaped heuristically detects relationship entities.
func isConnectionShaped(m map[string]any) bool {
	if isProfileShaped(m) {
		return false
	}
	entityType := strings.ToLower(stringField(m, "$type", "$recipeType"))
	if strings.Contains(entityType, "connection") {
		return true
	}
	for _, field := range crossRefFields {
		if _, ok := m[field]; ok {
			return true
		}
	}
	_, hasConnectedAt := m["connectedAt"]
	return hasConnectedAt
}

// refURN extracts a URN from a cross-reference value, which may be a bare
// URN string or an inline entity.
func refURN(v any) string {
	switch ref := v.(type) {
	case string:
		if strings.HasPrefix(ref, "urn:") {
			return ref
		}
	case map[string]any:
		return stringField(ref, "entityUrn", "objectUrn")
	}
	return ""
}

func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func intField(m map[string]any, keys ...string) int {
	return int(intField64(m, keys...))
}

func intField64(m map[string]any, keys ...string) int64 {
	for _, key := range keys {
		if n, ok := m[key].(float64); ok && n != 0 {
			return int64(n)
		}
	}
	return 0
}

func childMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	child, _ := m[key].(map[string]any)
	return child
}
