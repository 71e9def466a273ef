package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/machine"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// Engine defines the subset of *arbor.Engine the API exposes.
type Engine interface {
	Tree() *tree.Tree
	Entities(ctx context.Context) ([]domain.EntityID, error)
	Snapshot(ctx context.Context, entity domain.EntityID) (*machine.Instance, error)
	History(ctx context.Context, entity domain.EntityID) ([]domain.HistoryRecord, error)
	SetStationary(ctx context.Context, entity domain.EntityID, stationary bool) error
	Restart(ctx context.Context, entity domain.EntityID) error
}

// Server serves the introspection and control API of an engine.
type Server struct {
	Engine  Engine
	Streams *StreamManager
	Logger  *slog.Logger
	metrics http.Handler
	version string
}

// Option configures the Server.
type Option func(*Server)

// WithMetrics mounts h (typically promhttp.Handler()) at GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the request logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// WithVersion sets the application version reported by GET /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewServer creates a server for engine.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		Engine:  engine,
		Streams: NewStreamManager(),
		Logger:  slog.Default(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewHandler creates a new HTTP handler for the engine. Transition events are
// only streamed if the server's Hooks are installed on the engine; use
// NewServer and Server.Handler for that.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	return NewServer(engine, opts...).Handler()
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", s.GetOpenAPI)
	r.Get("/swagger", s.GetSwaggerUI)
	r.Get("/tree", s.GetTree)
	r.Get("/tree/mermaid", s.GetMermaid)
	r.Get("/events", s.SubscribeEvents)
	r.Route("/instances", func(r chi.Router) {
		r.Get("/", s.ListInstances)
		r.Route("/{entity}", func(r chi.Router) {
			r.Get("/", s.GetInstance)
			r.Get("/history", s.GetHistory)
			r.Get("/mermaid", s.GetMermaid)
			r.Get("/events", s.SubscribeEvents)
			r.Put("/stationary", s.PutStationary)
			r.Post("/restart", s.PostRestart)
		})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetTree handles the GET /tree request.
func (s *Server) GetTree(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Engine.Tree().Specs())
}

// GetMermaid handles GET /tree/mermaid and GET /instances/{entity}/mermaid.
// The latter overlays the instance's visited and current states.
func (s *Server) GetMermaid(w http.ResponseWriter, r *http.Request) {
	var overlay *graph.GraphOverlay
	if chi.URLParam(r, "entity") != "" {
		entity, ok := s.entityParam(w, r)
		if !ok {
			return
		}
		inst, err := s.Engine.Snapshot(r.Context(), entity)
		if err != nil {
			s.writeError(w, "Snapshot", err)
			return
		}
		overlay = graph.OverlayFromHistory(inst.History.Records(), inst.Current, inst.Terminated)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, graph.GenerateMermaid(s.Engine.Tree(), overlay))
}

// ListInstances handles the GET /instances request.
func (s *Server) ListInstances(w http.ResponseWriter, r *http.Request) {
	entities, err := s.Engine.Entities(r.Context())
	if err != nil {
		s.writeError(w, "Entities", err)
		return
	}
	s.writeJSON(w, http.StatusOK, entities)
}

// GetInstance handles the GET /instances/{entity} request.
func (s *Server) GetInstance(w http.ResponseWriter, r *http.Request) {
	entity, ok := s.entityParam(w, r)
	if !ok {
		return
	}
	inst, err := s.Engine.Snapshot(r.Context(), entity)
	if err != nil {
		s.writeError(w, "Snapshot", err)
		return
	}
	s.writeJSON(w, http.StatusOK, inst)
}

// GetHistory handles the GET /instances/{entity}/history request.
// The optional limit query parameter keeps only the most recent records.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	entity, ok := s.entityParam(w, r)
	if !ok {
		return
	}
	var limit *int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil || (limit != nil && *limit < 0) {
		http.Error(w, "Invalid format for parameter limit", http.StatusBadRequest)
		return
	}
	records, err := s.Engine.History(r.Context(), entity)
	if err != nil {
		s.writeError(w, "History", err)
		return
	}
	if limit != nil && len(records) > *limit {
		records = records[len(records)-*limit:]
	}
	if records == nil {
		records = []domain.HistoryRecord{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

// StationaryRequest is the body of PUT /instances/{entity}/stationary.
type StationaryRequest struct {
	Stationary bool `json:"stationary"`
}

// PutStationary handles the PUT /instances/{entity}/stationary request.
func (s *Server) PutStationary(w http.ResponseWriter, r *http.Request) {
	var body StationaryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.Logger.Warn("PutStationary: Invalid request body", "error", err)
		return
	}
	entity, ok := s.entityParam(w, r)
	if !ok {
		return
	}
	if err := s.Engine.SetStationary(r.Context(), entity, body.Stationary); err != nil {
		s.writeError(w, "SetStationary", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostRestart handles the POST /instances/{entity}/restart request.
func (s *Server) PostRestart(w http.ResponseWriter, r *http.Request) {
	entity, ok := s.entityParam(w, r)
	if !ok {
		return
	}
	if err := s.Engine.Restart(r.Context(), entity); err != nil {
		s.writeError(w, "Restart", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// entityParam binds the {entity} path segment, unescaping it. On failure it
// writes a 400 and reports false.
func (s *Server) entityParam(w http.ResponseWriter, r *http.Request) (domain.EntityID, bool) {
	var entity string
	err := runtime.BindStyledParameterWithOptions("simple", "entity", chi.URLParam(r, "entity"), &entity,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid format for parameter entity: %s", err), http.StatusBadRequest)
		return "", false
	}
	return domain.EntityID(entity), true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("Response encode failed", "error", err)
	}
}

// writeError maps engine errors to status codes: unknown entities are 404,
// misuse such as restarting a live instance is 409.
func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	var perr *domain.ProgrammingError
	switch {
	case errors.Is(err, domain.ErrInstanceNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &perr):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, fmt.Sprintf("%s error: %v", op, err), http.StatusInternalServerError)
		s.Logger.Error(op+" failed", "error", err)
	}
}
