package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aretw0/lattice/internal/presentation/graph"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// Engine is the compiled workflow served over HTTP.
type Engine interface {
	Program() string
	Tools(d domain.Dialect) []any
	Graph() *domain.Graph
	Internal() []string
	InternalTools() map[string]string
	External() []string
	Dispatch(ctx context.Context, call domain.ToolCall) (domain.State, error)
}

// ServerOption configures the handler.
type ServerOption func(*Server)

// WithRunFunc enables POST /v1/runs.
func WithRunFunc(fn ports.RunFunc) ServerOption {
	return func(s *Server) {
		s.run = fn
	}
}

// WithRunRecorder enables the run history endpoints.
func WithRunRecorder(r ports.RunRecorder) ServerOption {
	return func(s *Server) {
		s.recorder = r
	}
}

// WithMetricsHandler mounts h on /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithServerLogger sets a structured logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// Server exposes the compiled workflow for inspection, local dispatch and runs.
type Server struct {
	engine   Engine
	run      ports.RunFunc
	recorder ports.RunRecorder
	metrics  http.Handler
	logger   *slog.Logger
	version  string
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...ServerOption) http.Handler {
	s := &Server{
		engine: engine,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.Health)
	r.Get("/info", s.Info)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/program", s.Program)
		r.Get("/tools", s.Tools)
		r.Get("/graph", s.Graph)
		r.Post("/dispatch", s.Dispatch)
		r.Post("/runs", s.StartRun)
		r.Get("/runs", s.ListRuns)
		r.Get("/runs/{runID}", s.GetRun)
		r.Delete("/runs/{runID}", s.DeleteRun)
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Info handles GET /info.
func (s *Server) Info(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"graph":    s.engine.Graph().Name,
		"version":  s.version,
		"external": s.engine.External(),
		"internal": s.engine.Internal(),
	})
}

// Program handles GET /v1/program.
func (s *Server) Program(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := io.WriteString(w, s.engine.Program()); err != nil {
		s.logger.Error("Program response write failed", "error", err)
	}
}

// Tools handles GET /v1/tools?dialect=chat_completions|messages.
func (s *Server) Tools(w http.ResponseWriter, r *http.Request) {
	d := domain.Dialect(r.URL.Query().Get("dialect"))
	switch d {
	case "":
		d = domain.DialectChatCompletions
	case domain.DialectChatCompletions, domain.DialectMessages:
	default:
		s.writeError(w, http.StatusBadRequest, "unknown dialect: "+string(d))
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Tools(d))
}

type nodeView struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	InternalTool string `json:"internal_tool,omitempty"`
}

type branchView struct {
	Source  string   `json:"source"`
	Name    string   `json:"name"`
	Targets []string `json:"targets"`
}

type edgeView struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type graphView struct {
	Name     string       `json:"name"`
	Nodes    []nodeView   `json:"nodes"`
	Edges    []edgeView   `json:"edges"`
	Branches []branchView `json:"branches"`
}

// Graph handles GET /v1/graph. format=mermaid returns a flowchart instead of JSON.
func (s *Server) Graph(w http.ResponseWriter, r *http.Request) {
	g := s.engine.Graph()
	internal := s.engine.InternalTools()

	if r.URL.Query().Get("format") == "mermaid" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		out := graph.GenerateMermaid(g, &graph.GraphOverlay{Internal: internal})
		if _, err := io.WriteString(w, out); err != nil {
			s.logger.Error("Graph response write failed", "error", err)
		}
		return
	}

	view := graphView{
		Name:     g.Name,
		Nodes:    make([]nodeView, 0, len(g.Nodes)),
		Edges:    make([]edgeView, 0, len(g.Edges)),
		Branches: make([]branchView, 0, len(g.Branches)),
	}
	for _, n := range g.Nodes {
		view.Nodes = append(view.Nodes, nodeView{Name: n.Name, Description: n.Description, InternalTool: internal[n.Name]})
	}
	for _, e := range g.Edges {
		view.Edges = append(view.Edges, edgeView{Source: e.Source, Target: e.Target})
	}
	for _, b := range g.Branches {
		view.Branches = append(view.Branches, branchView{Source: b.Source, Name: b.Name, Targets: b.Targets})
	}
	s.writeJSON(w, http.StatusOK, view)
}

type dispatchRequest struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Dispatch handles POST /v1/dispatch: one tool call executed locally.
func (s *Server) Dispatch(w http.ResponseWriter, r *http.Request) {
	var body dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		s.logger.Warn("Dispatch: Invalid request body", "error", err)
		return
	}

	out, err := s.engine.Dispatch(r.Context(), domain.ToolCall{ID: body.ID, Name: body.Name, Arguments: body.Arguments})
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		s.logger.Warn("Dispatch failed", "tool", body.Name, "error", err)
		return
	}
	if out == nil {
		out = domain.State{}
	}
	s.writeJSON(w, http.StatusOK, out)
}

// StartRun handles POST /v1/runs.
func (s *Server) StartRun(w http.ResponseWriter, r *http.Request) {
	if s.run == nil {
		s.writeError(w, http.StatusNotImplemented, "runs are not enabled on this server")
		return
	}
	var body ports.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		s.logger.Warn("StartRun: Invalid request body", "error", err)
		return
	}

	resp, err := s.run(r.Context(), body)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		s.logger.Error("Run failed", "error", err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// ListRuns handles GET /v1/runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		s.writeError(w, http.StatusNotImplemented, "run history is not enabled on this server")
		return
	}
	ids, err := s.recorder.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"runs": ids})
}

// GetRun handles GET /v1/runs/{runID}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		s.writeError(w, http.StatusNotImplemented, "run history is not enabled on this server")
		return
	}
	rec, err := s.recorder.Load(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// DeleteRun handles DELETE /v1/runs/{runID}.
func (s *Server) DeleteRun(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		s.writeError(w, http.StatusNotImplemented, "run history is not enabled on this server")
		return
	}
	if err := s.recorder.Delete(r.Context(), chi.URLParam(r, "runID")); err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	var apiErr *domain.APIError
	switch {
	case errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDispatch), errors.Is(err, domain.ErrStepBudgetExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrProtocolViolation), errors.Is(err, domain.ErrConnection), errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
