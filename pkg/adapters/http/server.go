package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/rootcause"
	"github.com/aretw0/rootcause/internal/logging"
	"github.com/aretw0/rootcause/pkg/diagnosis"
	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/results"
	"github.com/aretw0/rootcause/pkg/rule"
	"github.com/aretw0/rootcause/pkg/trace"
)

// Engine defines what the server needs from the diagnosis engine.
type Engine interface {
	Diagnose(ctx context.Context, root *trace.Invocation, vars domain.SessionVariables) (*diagnosis.Report, error)
	Rules() []rule.Rule
	Stats() rootcause.Stats
}

// Server serves diagnoses over HTTP.
type Server struct {
	Engine  Engine
	Results *results.Manager
	Streams *StreamManager

	gatherer prometheus.Gatherer
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithMetrics exposes the gatherer on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler. Records are persisted only when
// manager is not nil.
func NewHandler(engine Engine, manager *results.Manager, opts ...Option) http.Handler {
	server := &Server{
		Engine:  engine,
		Results: manager,
		Streams: NewStreamManager(),
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", server.GetHealth)
	r.Get("/info", server.GetInfo)
	r.Get("/rules", server.GetRules)
	r.Get("/events", server.SubscribeEvents)
	r.Route("/diagnoses", func(r chi.Router) {
		r.Post("/", server.CreateDiagnosis)
		r.Get("/", server.ListDiagnoses)
		r.Get("/{id}", server.GetDiagnosis)
		r.Delete("/{id}", server.DeleteDiagnosis)
	})
	if server.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(server.gatherer, promhttp.HandlerOpts{}))
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateDiagnosis handles POST /diagnoses.
// The body is the trace (JSON, or YAML with a yaml content type); query
// parameters become session variables.
func (s *Server) CreateDiagnosis(w http.ResponseWriter, r *http.Request) {
	format := trace.FormatJSON
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		format = trace.FormatYAML
	}
	root, err := trace.Decode(r.Body, format)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid trace: %v", err), http.StatusBadRequest)
		s.logger.Warn("CreateDiagnosis: Invalid trace", "err", err)
		return
	}

	vars := domain.SessionVariables{}
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			vars[name] = values[len(values)-1]
		}
	}

	report, err := s.Engine.Diagnose(r.Context(), root, vars)
	switch {
	case rootcause.IsBusy(err):
		http.Error(w, "All diagnosis sessions are busy", http.StatusServiceUnavailable)
		return
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "Diagnosis timed out", http.StatusGatewayTimeout)
		return
	case errors.Is(err, context.Canceled):
		s.logger.Debug("CreateDiagnosis: Client went away", "trace_id", root.ID)
		return
	}

	record := &domain.Record{
		ID:        uuid.NewString(),
		CreatedAt: s.now().UTC(),
		Source:    root.ID,
	}
	status := http.StatusCreated
	if err != nil {
		s.logger.Error("Diagnosis failed", "trace_id", root.ID, "err", err)
		record.Error = err.Error()
		status = http.StatusUnprocessableEntity
	} else if record.Result, err = json.Marshal(report); err != nil {
		http.Error(w, fmt.Sprintf("Encode error: %v", err), http.StatusInternalServerError)
		return
	}

	if s.Results != nil {
		if err := s.Results.Save(r.Context(), record); err != nil {
			http.Error(w, fmt.Sprintf("Store error: %v", err), http.StatusInternalServerError)
			s.logger.Error("Failed to store diagnosis", "id", record.ID, "err", err)
			return
		}
	}
	if bytes, err := json.Marshal(record); err == nil {
		s.Streams.Broadcast(root.ID, string(bytes))
	}

	writeJSON(w, s.logger, status, record)
}

// ListDiagnoses handles GET /diagnoses.
func (s *Server) ListDiagnoses(w http.ResponseWriter, r *http.Request) {
	if s.Results == nil {
		writeJSON(w, s.logger, http.StatusOK, []string{})
		return
	}
	ids, err := s.Results.List(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("List error: %v", err), http.StatusInternalServerError)
		s.logger.Error("List failed", "err", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	sort.Strings(ids)
	writeJSON(w, s.logger, http.StatusOK, ids)
}

// GetDiagnosis handles GET /diagnoses/{id}.
func (s *Server) GetDiagnosis(w http.ResponseWriter, r *http.Request) {
	if s.Results == nil {
		http.Error(w, "Diagnosis not found", http.StatusNotFound)
		return
	}
	record, err := s.Results.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrResultNotFound) {
			http.Error(w, "Diagnosis not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Load error: %v", err), http.StatusInternalServerError)
		s.logger.Error("Load failed", "err", err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, record)
}

// DeleteDiagnosis handles DELETE /diagnoses/{id}.
func (s *Server) DeleteDiagnosis(w http.ResponseWriter, r *http.Request) {
	if s.Results == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := s.Results.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		http.Error(w, fmt.Sprintf("Delete error: %v", err), http.StatusInternalServerError)
		s.logger.Error("Delete failed", "err", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetRules handles GET /rules.
func (s *Server) GetRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, rule.DescribeAll(s.Engine.Rules()))
}

// GetHealth handles the GET /healthz request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"app":     "rootcause-http",
		"version": strings.TrimSpace(rootcause.Version),
		"pool":    s.Engine.Stats(),
		"rules":   len(s.Engine.Rules()),
	}
	writeJSON(w, s.logger, http.StatusOK, resp)
}

// StreamManager fans completed diagnoses out to SSE clients.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // Trace ID ("" for all) -> Set of Channels
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
	}
}

// Subscribe registers a client for the diagnoses of one trace, or of every
// trace when traceID is empty. The returned func unsubscribes.
func (sm *StreamManager) Subscribe(traceID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[traceID]; !ok {
		sm.subscribers[traceID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[traceID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[traceID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, traceID)
			}
		}
	}
}

// Broadcast sends msg to the subscribers of traceID and to those of every trace.
func (sm *StreamManager) Broadcast(traceID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	keys := []string{""}
	if traceID != "" {
		keys = append(keys, traceID)
	}
	for _, key := range keys {
		for ch := range sm.subscribers[key] {
			select {
			case ch <- msg:
			default:
				// Drop message if channel is full (slow client)
			}
		}
	}
}

// SubscribeEvents handles the GET /events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	traceID := r.URL.Query().Get("trace_id")
	ch, cancel := s.Streams.Subscribe(traceID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE Client Disconnected", "trace_id", traceID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: diagnosis\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// -- Helpers --

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Response encode failed", "err", err)
	}
}
