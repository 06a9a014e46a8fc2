// Package broker serves privileged filesystem reads over a local unix
// socket. Unprivileged callers query it instead of shelling out to an
// elevator binary for every read.
package broker

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dohr-michael/rootd/internal/events"
	"github.com/dohr-michael/rootd/internal/fsutil"
)

const authHeader = "X-Rootd-Key"

// Config carries the broker listen settings.
type Config struct {
	// Socket is the unix socket path to listen on.
	Socket string
	// Roots are the filesystem roots the broker may serve. A request
	// outside every root is rejected.
	Roots []string
	// Key, when non-empty, is required in the X-Rootd-Key header.
	Key string
}

// Server is the broker HTTP server.
type Server struct {
	httpServer *http.Server
	hub        *Hub
	bus        *events.Bus
	socket     string
	roots      []string
	key        string
}

// NewServer creates a broker server. At least one root is required.
func NewServer(cfg Config, bus *events.Bus) (*Server, error) {
	if cfg.Socket == "" {
		return nil, fmt.Errorf("broker: socket path is required")
	}
	if len(cfg.Roots) == 0 {
		return nil, fmt.Errorf("broker: at least one root is required")
	}

	s := &Server{
		bus:    bus,
		socket: cfg.Socket,
		roots:  cfg.Roots,
		key:    cfg.Key,
	}
	s.hub = NewHub(bus, s.resolve)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.auth)

	r.Get("/v1/health", s.handleHealth)
	r.Get("/v1/exists", s.handleExists)
	r.Get("/v1/file", s.handleFile)
	r.Get("/v1/events", s.handleEvents)
	r.Get("/v1/ws", s.hub.ServeWS)

	s.httpServer = &http.Server{Handler: r}
	return s, nil
}

// Start listens on the unix socket and blocks until the server stops.
// A stale socket file from a previous run is removed first.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socket), 0o755); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.Remove(s.socket); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.socket)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socket, err)
	}
	if err := os.Chmod(s.socket, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	slog.Info("broker listening", "socket", s.socket, "roots", s.roots)
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server and removes the socket file.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	err := s.httpServer.Shutdown(ctx)
	if rmErr := os.Remove(s.socket); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	return err
}

// resolve maps a requested absolute path onto one of the served roots,
// resolving symlinks and refusing anything that escapes.
func (s *Server) resolve(reqPath string) (string, error) {
	clean := filepath.Clean("/" + reqPath)
	for _, root := range s.roots {
		if !fsutil.Contains(root, clean) {
			continue
		}
		rel := strings.TrimPrefix(clean, filepath.Clean(root))
		return fsutil.JoinSecure(root, rel)
	}
	return "", fsutil.ErrPathTraversal
}

// auth rejects requests without the configured key. WS upgrades go
// through the same check since they arrive as plain GETs.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.key != "" {
			got := r.Header.Get(authHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.key)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleExists(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	resolved, err := s.resolve(path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_, statErr := os.Lstat(resolved)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"exists": statErr == nil})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	resolved, err := s.resolve(path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	limit := 50
	if limitStr != "" {
		fmt.Sscanf(limitStr, "%d", &limit)
	}

	history := s.bus.History(limit)

	type eventJSON struct {
		ID        string             `json:"id"`
		Type      string             `json:"type"`
		Timestamp string             `json:"timestamp"`
		Source    events.EventSource `json:"source"`
		Payload   map[string]any     `json:"payload"`
	}

	result := make([]eventJSON, len(history))
	for i, e := range history {
		result[i] = eventJSON{
			ID:        e.ID,
			Type:      string(e.Type),
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			Source:    e.Source,
			Payload:   e.Payload,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
