// sweep-daemon exposes the sweeper as a small localhost control server:
// the browser-side collaborator starts a fetch or a bulk removal with one
// POST and polls GET /progress for the latest state. One operation runs
// at a time.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/connsweep/connection-sweeper/pkg/contact"
	"github.com/connsweep/connection-sweeper/pkg/logging"
	"github.com/connsweep/connection-sweeper/pkg/scheduler"
	"github.com/connsweep/connection-sweeper/pkg/session"
	"github.com/connsweep/connection-sweeper/pkg/sweeper"
)

func main() {
	logging.Setup(logging.DefaultConfig())

	// Configuration from environment
	csrfToken := os.Getenv("CSRF_TOKEN")
	cookieHeader := os.Getenv("COOKIE_HEADER")
	if csrfToken == "" || cookieHeader == "" {
		log.Fatal("CSRF_TOKEN and COOKIE_HEADER must be set")
	}
	baseURL := getEnv("BASE_URL", sweeper.DefaultBaseURL)
	redisURL := os.Getenv("REDIS_URL")
	port := getEnv("PORT", "8780")

	var redisClient *redis.Client
	if redisURL != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: redisURL})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		log.Printf("Connected to Redis at %s", redisURL)
	}

	s, err := sweeper.New(sweeper.Config{
		Credentials: session.Credentials{
			CSRFToken:    csrfToken,
			CookieHeader: cookieHeader,
			UserAgent:    os.Getenv("USER_AGENT"),
		},
		BaseURL: baseURL,
		Redis:   redisClient,
	})
	if err != nil {
		log.Fatalf("Failed to create sweeper: %v", err)
	}

	srv := newServer(s)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/fetch", srv.fetchHandler)
	mux.HandleFunc("/remove", srv.removeHandler)
	mux.HandleFunc("/pause", srv.controlHandler("paused", s.Pause))
	mux.HandleFunc("/resume", srv.controlHandler("resumed", s.Resume))
	mux.HandleFunc("/cancel", srv.controlHandler("cancelled", s.Cancel))
	mux.HandleFunc("/progress", srv.progressHandler)
	mux.HandleFunc("/connections", srv.connectionsHandler)

	// Control-plane only; bind to loopback.
	addr := "127.0.0.1:" + port
	httpServer := &http.Server{Addr: addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Starting sweep daemon on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Print("Shutting down")

	// Cancel any in-flight bulk run, then drain the control server.
	s.Cancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown: %v", err)
	}
}

// progressState is the poll-latest progress document served by /progress.
type progressState struct {
	Phase   string           `json:"phase"`
	Fetched int              `json:"fetched,omitempty"`
	Total   int              `json:"total,omitempty"`
	Event   *scheduler.Event `json:"event,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// server serializes operations and remembers the latest progress state.
type server struct {
	sweeper *sweeper.Sweeper

	mu       sync.Mutex
	running  bool
	fetched  []contact.Record
	progress progressState
}

func newServer(s *sweeper.Sweeper) *server {
	return &server{
		sweeper:  s,
		progress: progressState{Phase: "idle"},
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// fetchHandler starts a full list fetch in the background.
func (s *server) fetchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.begin("fetching") {
		http.Error(w, "an operation is already running", http.StatusConflict)
		return
	}

	go func() {
		records, err := s.sweeper.FetchAll(context.Background(), func(fetched, total int) {
			s.setProgress(progressState{Phase: "fetching", Fetched: fetched, Total: total})
		})

		s.mu.Lock()
		defer s.mu.Unlock()
		s.running = false
		if err != nil {
			s.progress = progressState{Phase: "error", Error: err.Error()}
			return
		}
		s.fetched = records
		s.progress = progressState{Phase: "done", Fetched: len(records), Total: len(records)}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// removeHandler starts a bulk removal. The body may carry an explicit
// item list; an empty body removes everything the last fetch returned.
func (s *server) removeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var items []contact.Record
	if r.Body != nil {
		// An empty or absent body is fine; anything else must be a list.
		if err := json.NewDecoder(r.Body).Decode(&items); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid item list: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	s.mu.Lock()
	if len(items) == 0 {
		items = s.fetched
	}
	s.mu.Unlock()
	if len(items) == 0 {
		http.Error(w, "nothing to remove: run /fetch first or post an item list", http.StatusBadRequest)
		return
	}

	if !s.begin("removing") {
		http.Error(w, "an operation is already running", http.StatusConflict)
		return
	}

	go func() {
		result, err := s.sweeper.BulkRemove(context.Background(), items, func(e scheduler.Event) {
			event := e
			s.setProgress(progressState{Phase: "removing", Fetched: e.Completed, Total: e.Total, Event: &event})
		})

		s.mu.Lock()
		defer s.mu.Unlock()
		s.running = false
		switch {
		case err != nil:
			s.progress = progressState{Phase: "error", Error: err.Error()}
		case result.Cancelled:
			s.progress = progressState{Phase: "cancelled", Fetched: result.Completed, Total: len(items)}
		default:
			s.progress = progressState{Phase: "done", Fetched: result.Completed, Total: len(items)}
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{"status": "started", "items": len(items)})
}

// controlHandler wraps the pause/resume/cancel passthroughs.
func (s *server) controlHandler(status string, control func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		control()
		writeJSON(w, http.StatusOK, map[string]string{"status": status})
	}
}

// progressHandler serves the latest progress state.
func (s *server) progressHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	progress := s.progress
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, progress)
}

// connectionsHandler serves the result of the last completed fetch.
func (s *server) connectionsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	fetched := s.fetched
	s.mu.Unlock()
	if fetched == nil {
		fetched = []contact.Record{}
	}
	writeJSON(w, http.StatusOK, fetched)
}

// begin marks an operation as running, refusing when one already is.
func (s *server) begin(phase string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	s.progress = progressState{Phase: phase}
	return true
}

func (s *server) setProgress(p progressState) {
	s.mu.Lock()
	s.progress = p
	s.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
