package lattice

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/lattice/internal/compiler"
	"github.com/aretw0/lattice/internal/runtime"
	lhttp "github.com/aretw0/lattice/pkg/adapters/http"
	"github.com/aretw0/lattice/pkg/control"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// Engine is the high-level entry point for the Lattice library.
// It compiles a workflow graph once and runs it any number of times.
type Engine struct {
	compiler    *compiler.Compiler
	runtime     *runtime.Engine
	config      control.Config
	transport   ports.Transport
	recorder    ports.RunRecorder
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	maxSteps    int
	compileOpts []compiler.Option
	Name        string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithNodeFunctions supplies the node functions explicitly instead of reading them from the graph.
func WithNodeFunctions(fns map[string]domain.NodeFunc) Option {
	return func(e *Engine) {
		e.compileOpts = append(e.compileOpts, compiler.WithNodeFunctions(fns))
	}
}

// WithInternalNodes maps node names to tools the remote side executes itself.
func WithInternalNodes(mapping map[string]string) Option {
	return func(e *Engine) {
		e.compileOpts = append(e.compileOpts, compiler.WithInternalNodes(mapping))
	}
}

// WithCyclePolicy selects how the program synthesizer treats back-edges.
func WithCyclePolicy(p compiler.CyclePolicy) Option {
	return func(e *Engine) {
		e.compileOpts = append(e.compileOpts, compiler.WithCyclePolicy(p))
	}
}

// WithConfig sets the connection and header configuration (default: control.DefaultConfig).
func WithConfig(cfg control.Config) Option {
	return func(e *Engine) {
		e.config = cfg
	}
}

// WithTransport replaces the HTTPS client, e.g. with a test double.
func WithTransport(t ports.Transport) Option {
	return func(e *Engine) {
		e.transport = t
	}
}

// WithRecorder stores an audit record of every run.
func WithRecorder(r ports.RunRecorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithMaxSteps sets the default step budget of a run.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.maxSteps = n
	}
}

// New compiles graph and prepares an engine for it.
// Compilation failures wrap domain.ErrConfiguration.
func New(graph *domain.Graph, opts ...Option) (*Engine, error) {
	eng := &Engine{config: control.DefaultConfig()}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if graph != nil && graph.Name != "" {
		eng.Name = graph.Name
		eng.logger = eng.logger.With("graph", eng.Name)
	}

	c, err := compiler.New(graph, append([]compiler.Option{compiler.WithLogger(eng.logger)}, eng.compileOpts...)...)
	if err != nil {
		return nil, err
	}
	eng.compiler = c

	if eng.transport == nil {
		eng.transport = lhttp.NewClient(
			lhttp.WithTimeout(eng.config.Timeout),
			lhttp.WithClientLogger(eng.logger),
		)
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	}
	if eng.recorder != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithRecorder(eng.recorder))
	}
	eng.runtime = runtime.NewEngine(c, eng.transport, eng.config, runtimeOpts...)
	return eng, nil
}

// RunOptions are the per-run parameters of Engine.Run.
type RunOptions struct {
	// Model is the LLM identifier; required.
	Model string
	// MaxSteps overrides the engine step budget.
	MaxSteps int
	// SessionID resumes an existing remote session.
	SessionID string
	// InitialStateMeta overrides the provenance sent with the initial state.
	InitialStateMeta *domain.MetaData
	// Config is overlaid on the engine configuration for this run only. A
	// non-zero Timeout bounds each request of the run.
	Config *control.Config
}

// RunResult is the outcome of a completed run.
type RunResult struct {
	RunID     string
	State     domain.State
	SessionID string
	Steps     int
}

// Run executes the graph remotely, dispatching requested nodes locally, and
// returns the final state. initial is not modified.
func (e *Engine) Run(ctx context.Context, initial domain.State, opts RunOptions) (*RunResult, error) {
	if opts.Model == "" {
		return nil, fmt.Errorf("%w: model is required", domain.ErrConfiguration)
	}
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = e.maxSteps
	}
	res, err := e.runtime.Run(ctx, initial, runtime.RunOptions{
		Model:            opts.Model,
		MaxSteps:         maxSteps,
		SessionID:        opts.SessionID,
		InitialStateMeta: opts.InitialStateMeta,
		Config:           opts.Config,
	})
	if err != nil {
		return nil, err
	}
	return &RunResult{
		RunID:     res.RunID,
		State:     res.State,
		SessionID: res.SessionID,
		Steps:     res.Steps,
	}, nil
}

// Program returns the synthesized program text.
func (e *Engine) Program() string {
	return e.compiler.Program()
}

// ToolSchemas returns the schemas of the locally executed nodes in stable order.
func (e *Engine) ToolSchemas() []domain.ToolSchema {
	return e.compiler.ToolSchemas()
}

// Tools returns the tool definitions in the shape of the given dialect.
func (e *Engine) Tools(d domain.Dialect) []any {
	return e.compiler.Tools(d)
}

// Internal returns the names of nodes executed by the remote side.
func (e *Engine) Internal() []string {
	return e.compiler.Internal()
}

// InternalTools maps internal nodes to the remote tools that implement them.
func (e *Engine) InternalTools() map[string]string {
	return e.compiler.InternalTools()
}

// External returns the names of nodes executed locally.
func (e *Engine) External() []string {
	return e.compiler.External()
}

// Graph returns the compiled graph.
func (e *Engine) Graph() *domain.Graph {
	return e.compiler.Graph()
}

// Dispatch runs one tool call locally, as the run loop would.
func (e *Engine) Dispatch(ctx context.Context, call domain.ToolCall) (domain.State, error) {
	return e.compiler.Dispatch(ctx, call)
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() control.Config {
	return e.config.Clone()
}

// Recorder returns the run recorder, or nil.
func (e *Engine) Recorder() ports.RunRecorder {
	return e.recorder
}
