package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGet_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.Header.Get("csrf-token") != "ajax:42" {
			t.Errorf("csrf-token header missing")
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"elements":[]}`))
	}))
	defer server.Close()

	client := New(DefaultConfig())
	headers := http.Header{}
	headers.Set("csrf-token", "ajax:42")

	body, err := client.Get(context.Background(), server.URL+"/voyager/api/relationships/connections", headers)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(body) != `{"elements":[]}` {
		t.Errorf("body = %s", body)
	}
}

func TestGet_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"slow down"}`))
	}))
	defer server.Close()

	client := New(DefaultConfig())

	_, err := client.Get(context.Background(), server.URL+"/x", nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Get() error = %v, want ErrRateLimited", err)
	}
}

func TestGet_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(Config{ListTimeout: 50 * time.Millisecond, MutationTimeout: 50 * time.Millisecond})

	_, err := client.Get(context.Background(), server.URL+"/slow", nil)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Get() error = %v, want ErrTimeout", err)
	}
}

func TestGet_APIError(t *testing.T) {
	longBody := strings.Repeat("x", 2000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(longBody))
	}))
	defer server.Close()

	client := New(DefaultConfig())

	_, err := client.Get(context.Background(), server.URL+"/denied", nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Get() error = %v, want APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", apiErr.StatusCode)
	}
	if len(apiErr.Body) > maxBodySnippet {
		t.Errorf("body snippet not truncated: %d bytes", len(apiErr.Body))
	}
}

func TestMutate_PostBody(t *testing.T) {
	var gotBody string
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		gotContentType = r.Header.Get("content-type")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(DefaultConfig())

	_, err := client.Mutate(context.Background(), http.MethodPost, server.URL+"/remove", nil, []byte(`{"connectionUrn":"urn:li:fsd_connection:1"}`))
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}
	if gotBody != `{"connectionUrn":"urn:li:fsd_connection:1"}` {
		t.Errorf("body = %s", gotBody)
	}
	if !strings.HasPrefix(gotContentType, "application/json") {
		t.Errorf("content-type = %s", gotContentType)
	}
}

func TestMutate_NetworkError(t *testing.T) {
	client := New(DefaultConfig())

	// Closed port, connection refused.
	_, err := client.Mutate(context.Background(), http.MethodDelete, "http://127.0.0.1:1/x", nil, nil)
	if err == nil {
		t.Fatal("Mutate() expected error")
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout) {
		t.Errorf("network error misclassified: %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(ErrRateLimited) {
		t.Error("ErrRateLimited should be transient")
	}
	if !IsTransient(ErrTimeout) {
		t.Error("ErrTimeout should be transient")
	}
	if IsTransient(&APIError{StatusCode: 500}) {
		t.Error("APIError should not be transient")
	}
}
