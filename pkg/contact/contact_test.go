package contact

import "testing"

func TestRecord_Removable(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{"connection urn only", Record{ConnectionURN: "urn:li:fsd_connection:1"}, true},
		{"entity urn only", Record{EntityURN: "urn:li:fsd_profile:1"}, true},
		{"public identifier only", Record{PublicIdentifier: "jane-doe"}, true},
		{"no identifiers", Record{Name: "Jane Doe", Headline: "Engineer"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Removable(); got != tt.want {
				t.Errorf("Removable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecord_DisplayName(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{"full name", Record{Name: "Jane Doe"}, "Jane Doe"},
		{"slug fallback", Record{PublicIdentifier: "jane-doe"}, "jane-doe"},
		{"urn fallback", Record{EntityURN: "urn:li:fsd_profile:1"}, "urn:li:fsd_profile:1"},
		{"empty", Record{}, "unknown connection"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewRecord_Derivations(t *testing.T) {
	rec := newRecord(" Jane ", " Doe ", "Engineer", "jane-doe", "urn:li:fsd_profile:1", "", 0, "")

	if rec.Name != "Jane Doe" {
		t.Errorf("Name = %q, want %q", rec.Name, "Jane Doe")
	}
	if rec.ProfileURL != "https://www.linkedin.com/in/jane-doe" {
		t.Errorf("ProfileURL = %q", rec.ProfileURL)
	}
}

func TestNewRecord_NoSlugNoProfileURL(t *testing.T) {
	rec := newRecord("Jane", "Doe", "", "", "urn:li:fsd_profile:1", "urn:li:fsd_connection:1", 0, "")
	if rec.ProfileURL != "" {
		t.Errorf("ProfileURL = %q, want empty", rec.ProfileURL)
	}
}
