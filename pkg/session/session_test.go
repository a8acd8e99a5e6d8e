package session

import (
	"errors"
	"testing"
)

func TestCredentials_Validate(t *testing.T) {
	tests := []struct {
		name        string
		creds       Credentials
		expectError bool
	}{
		{
			name: "valid credentials",
			creds: Credentials{
				CSRFToken:    "ajax:1234567890",
				CookieHeader: `li_at=AQED...; JSESSIONID="ajax:1234567890"`,
			},
			expectError: false,
		},
		{
			name: "missing csrf token",
			creds: Credentials{
				CookieHeader: "li_at=AQED...",
			},
			expectError: true,
		},
		{
			name: "missing cookie header",
			creds: Credentials{
				CSRFToken: "ajax:1234567890",
			},
			expectError: true,
		},
		{
			name: "whitespace only token",
			creds: Credentials{
				CSRFToken:    "   ",
				CookieHeader: "li_at=AQED...",
			},
			expectError: true,
		},
		{
			name:        "empty",
			creds:       Credentials{},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			if tt.expectError {
				if !errors.Is(err, ErrNotAuthenticated) {
					t.Errorf("Validate() = %v, want ErrNotAuthenticated", err)
				}
			} else if err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestCredentials_Headers(t *testing.T) {
	creds := Credentials{
		CSRFToken:    "ajax:42",
		CookieHeader: "li_at=token",
	}

	h := creds.Headers()

	if got := h.Get("csrf-token"); got != "ajax:42" {
		t.Errorf("csrf-token = %q, want %q", got, "ajax:42")
	}
	if got := h.Get("cookie"); got != "li_at=token" {
		t.Errorf("cookie = %q, want %q", got, "li_at=token")
	}
	if got := h.Get("x-restli-protocol-version"); got != "2.0.0" {
		t.Errorf("x-restli-protocol-version = %q, want 2.0.0", got)
	}
	if h.Get("accept") == "" {
		t.Error("accept header not set")
	}
	if h.Get("user-agent") != DefaultUserAgent {
		t.Error("expected default user agent when none configured")
	}
}

func TestCredentials_Headers_CustomUserAgent(t *testing.T) {
	creds := Credentials{
		CSRFToken:    "ajax:42",
		CookieHeader: "li_at=token",
		UserAgent:    "custom/1.0",
	}

	if got := creds.Headers().Get("user-agent"); got != "custom/1.0" {
		t.Errorf("user-agent = %q, want custom/1.0", got)
	}
}
