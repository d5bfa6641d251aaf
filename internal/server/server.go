package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/assisthub/assist-gateway/internal/archive"
	"github.com/assisthub/assist-gateway/internal/channel/webchat"
	"github.com/assisthub/assist-gateway/internal/config"
	"github.com/assisthub/assist-gateway/internal/confirm"
	"github.com/assisthub/assist-gateway/internal/state"
	"github.com/assisthub/assist-gateway/internal/tools"
	"github.com/assisthub/assist-gateway/internal/trace"
)

// Server is the operator HTTP surface: health, status, trace inspection,
// archive browsing and Prometheus metrics. It also mounts the webchat
// websocket endpoint when that channel is enabled.
type Server struct {
	cfg        *config.Config
	registry   *tools.Registry
	states     *state.Store
	confirms   *confirm.Store
	recorder   *trace.Recorder
	archiver   *archive.Archiver
	httpServer *http.Server
	startTime  time.Time
	logger     *slog.Logger
}

// HealthResponse is the /healthz payload
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

// StatusResponse is the /api/v1/status payload
type StatusResponse struct {
	Status        string               `json:"status"`
	Uptime        string               `json:"uptime"`
	Tools         []tools.CatalogEntry `json:"tools"`
	Traces        trace.Metrics        `json:"traces"`
	States        state.Stats          `json:"states"`
	Confirmations confirm.Stats        `json:"confirmations"`
	Timestamp     string               `json:"timestamp"`
}

// New creates the operator server and wires all routes
func New(cfg *config.Config, registry *tools.Registry, states *state.Store, confirms *confirm.Store, recorder *trace.Recorder, archiver *archive.Archiver, chat *webchat.Adapter, logger *slog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		registry:  registry,
		states:    states,
		confirms:  confirms,
		recorder:  recorder,
		archiver:  archiver,
		startTime: time.Now(),
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthHandler)
	mux.HandleFunc("/api/v1/status", s.statusHandler)
	mux.HandleFunc("/api/v1/traces", s.tracesHandler)
	mux.HandleFunc("/api/v1/traces/", s.traceHandler)
	mux.HandleFunc("/api/v1/archive/states", s.archiveHandler(s.recentStates))
	mux.HandleFunc("/api/v1/archive/confirmations", s.archiveHandler(s.recentConfirmations))
	mux.Handle("/metrics", promhttp.Handler())
	if chat != nil && chat.IsEnabled() {
		mux.HandleFunc(cfg.Channels.Webchat.Path, chat.Handler())
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   "1.0.0",
		Uptime:    time.Since(s.startTime).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:        "running",
		Uptime:        time.Since(s.startTime).String(),
		Tools:         s.registry.Catalog(),
		Traces:        s.recorder.Metrics(),
		States:        s.states.Stats(),
		Confirmations: s.confirms.Stats(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}

// tracesHandler lists recent traces for one user: /api/v1/traces?user=<id>
func (s *Server) tracesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("user")
	if userID == "" {
		http.Error(w, "user query parameter required", http.StatusBadRequest)
		return
	}
	limit := parseLimit(r, 20)
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"traces":  s.recorder.UserTraces(userID, limit),
	})
}

// traceHandler returns one trace by id: /api/v1/traces/{id}
func (s *Server) traceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/traces/")
	if id == "" {
		http.Error(w, "trace id required", http.StatusBadRequest)
		return
	}
	t := s.recorder.Get(id)
	if t == nil {
		http.Error(w, "trace not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) archiveHandler(fetch func(ctx context.Context, n int64) ([]json.RawMessage, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.archiver == nil {
			http.Error(w, "archive disabled", http.StatusNotImplemented)
			return
		}
		entries, err := fetch(r.Context(), int64(parseLimit(r, 50)))
		if err != nil {
			s.logger.Error("archive fetch failed", "error", err)
			http.Error(w, "archive unavailable", http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	}
}

func (s *Server) recentStates(ctx context.Context, n int64) ([]json.RawMessage, error) {
	return s.archiver.RecentStates(ctx, n)
}

func (s *Server) recentConfirmations(ctx context.Context, n int64) ([]json.RawMessage, error) {
	return s.archiver.RecentConfirmations(ctx, n)
}

func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
