package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/lattice/internal/presentation/graph"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

const (
	resourceProgram = "lattice://program"
	resourceGraph   = "lattice://graph"
	toolRunWorkflow = "run_workflow"
)

// Engine defines what the MCP server needs from a compiled workflow.
type Engine interface {
	Program() string
	ToolSchemas() []domain.ToolSchema
	Graph() *domain.Graph
	InternalTools() map[string]string
	Dispatch(ctx context.Context, call domain.ToolCall) (domain.State, error)
}

// Option configures a Server.
type Option func(*Server)

// WithRunFunc exposes the whole workflow as the run_workflow tool.
func WithRunFunc(fn ports.RunFunc) Option {
	return func(s *Server) {
		s.run = fn
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server exposes the external nodes of a workflow as MCP tools, so any MCP
// client can execute them one by one.
type Server struct {
	engine    Engine
	run       ports.RunFunc
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, version string, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mcpServer = server.NewMCPServer("lattice-mcp", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, e.g. to mount it on another transport.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops when ctx ends.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	for _, schema := range s.engine.ToolSchemas() {
		raw, err := json.Marshal(schema.Parameters)
		if err != nil {
			s.logger.Error("Skipping tool with unencodable schema", "tool", schema.Name, "error", err)
			continue
		}
		name := schema.Name
		s.mcpServer.AddTool(mcp.NewToolWithRawSchema(name, schema.Description, raw),
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return s.callNode(ctx, name, request.GetArguments()), nil
			})
	}

	if s.run == nil {
		return
	}
	s.mcpServer.AddTool(mcp.NewTool(toolRunWorkflow,
		mcp.WithDescription("Run the whole workflow through the remote orchestrator and return the final state."),
		mcp.WithString("model", mcp.Required(), mcp.Description("LLM identifier used by the orchestrator")),
		mcp.WithString("initial_state", mcp.Description("JSON object used as the initial state (default: {})")),
		mcp.WithNumber("max_steps", mcp.Description("Step budget of the run")),
	), s.handleRun)
}

// callNode executes one external node. Failures are reported as tool errors,
// not protocol errors, so the client can show them to its model.
func (s *Server) callNode(ctx context.Context, name string, args map[string]any) *mcp.CallToolResult {
	raw, err := json.Marshal(args)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err))
	}
	out, err := s.engine.Dispatch(ctx, domain.ToolCall{ID: name, Name: name, Arguments: raw})
	if err != nil {
		s.logger.Warn("MCP tool failed", "tool", name, "error", err)
		return mcp.NewToolResultError(err.Error())
	}
	if out == nil {
		out = domain.State{}
	}
	text, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("unencodable result: %v", err))
	}
	return mcp.NewToolResultText(string(text))
}

func (s *Server) handleRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	model, err := request.RequireString("model")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	initial := map[string]any{}
	if raw := request.GetString("initial_state", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &initial); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("initial_state must be a JSON object: %v", err)), nil
		}
	}

	resp, err := s.run(ctx, ports.RunRequest{
		Model:        model,
		InitialState: initial,
		MaxSteps:     request.GetInt("max_steps", 0),
	})
	if err != nil {
		s.logger.Error("MCP run failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := json.Marshal(resp)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("unencodable result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(text)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(resourceProgram, "Compiled Program",
		mcp.WithResourceDescription("Program text sent to the orchestrator"),
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: resourceProgram, MIMEType: "text/plain", Text: s.engine.Program()},
		}, nil
	})

	s.mcpServer.AddResource(mcp.NewResource(resourceGraph, "Workflow Graph",
		mcp.WithResourceDescription("Mermaid flowchart of the workflow"),
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		chart := graph.GenerateMermaid(s.engine.Graph(), &graph.GraphOverlay{Internal: s.engine.InternalTools()})
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: resourceGraph, MIMEType: "text/plain", Text: chart},
		}, nil
	})
}
