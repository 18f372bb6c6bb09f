package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/lattice/internal/compiler"
	"github.com/aretw0/lattice/pkg/control"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// DefaultMaxSteps bounds a run when the caller does not set a budget.
const DefaultMaxSteps = 20

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithRecorder stores the outcome of every run.
func WithRecorder(r ports.RunRecorder) EngineOption {
	return func(e *Engine) {
		e.recorder = r
	}
}

// Engine drives runs of one compiled graph against the remote orchestrator.
// It holds no per-run state and is safe for concurrent runs.
type Engine struct {
	compiler  *compiler.Compiler
	transport ports.Transport
	config    control.Config
	hooks     domain.LifecycleHooks
	recorder  ports.RunRecorder
	logger    *slog.Logger
}

// NewEngine creates an engine. cfg is copied; later changes by the caller are not seen.
func NewEngine(c *compiler.Compiler, t ports.Transport, cfg control.Config, opts ...EngineOption) *Engine {
	e := &Engine{
		compiler:  c,
		transport: t,
		config:    cfg.Clone(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunOptions are the per-run parameters.
type RunOptions struct {
	// Model is the LLM identifier sent with every request.
	Model string
	// MaxSteps is the step budget; DefaultMaxSteps when zero or negative.
	MaxSteps int
	// SessionID seeds the session token, e.g. to resume a remote session.
	SessionID string
	// InitialStateMeta overrides the metadata of the initial_state context variable.
	InitialStateMeta *domain.MetaData
	// Config is overlaid on the engine configuration for this run only. A
	// non-zero Timeout bounds each request of the run.
	Config *control.Config
}

// Result is the outcome of a successful run.
type Result struct {
	RunID     string
	State     domain.State
	SessionID string
	Steps     int
	Status    domain.RunStatus
}

// run is the state owned by one execution.
type run struct {
	id       string
	dialect  dialect
	config   control.Config
	url      string
	model    string
	tools    []any
	program  string
	ctxVars  map[string]domain.ValueWithMeta
	messages []any
	state    domain.State
	session  string
	status   domain.RunStatus
	steps    int
	timeout  time.Duration

	dispatched []string
}

// Run executes the workflow until the remote side stops asking for tools.
func (e *Engine) Run(ctx context.Context, initial domain.State, opts RunOptions) (*Result, error) {
	cfg := e.config
	if opts.Config != nil {
		var err error
		if cfg, err = cfg.Overlay(*opts.Config); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
		}
	}
	cfg, err := Preflight(cfg)
	if err != nil {
		return nil, err
	}

	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	meta := domain.DefaultInitialStateMeta()
	if opts.InitialStateMeta != nil {
		meta = *opts.InitialStateMeta
	}

	d := dialectFor(cfg.Provider.Dialect())
	r := &run{
		id:      uuid.NewString(),
		dialect: d,
		config:  cfg,
		url:     cfg.URL(d.kind()),
		model:   opts.Model,
		tools:   e.compiler.Tools(d.kind()),
		program: e.compiler.Program(),
		ctxVars: map[string]domain.ValueWithMeta{
			domain.ContextVarInitialState: {Value: initial.Clone(), Meta: meta},
		},
		state:   initial.Clone(),
		session: opts.SessionID,
		status:  domain.StatusAwaitingPlan,
	}
	if opts.Config != nil {
		r.timeout = opts.Config.Timeout
	}
	r.messages = []any{userMessage{
		Role:    "user",
		Content: fmt.Sprintf("Execute the LangGraph StateGraph with initial_state: %s.", jsonString(initial)),
	}}

	logger := e.logger.With("run_id", r.id, "dialect", string(d.kind()))
	started := time.Now()
	e.emitRun(ctx, domain.EventRunStart, r, nil)
	logger.Info("Run started", "model", r.model, "max_steps", maxSteps, "tools", len(r.tools))

	err = e.loop(ctx, r, maxSteps, logger)
	if err != nil {
		r.status = domain.StatusFailed
		logger.Error("Run failed", "step", r.steps, "err", err)
	} else {
		r.status = domain.StatusDone
		logger.Info("Run finished", "steps", r.steps, "session_id", r.session)
	}
	e.emitRun(ctx, domain.EventRunEnd, r, err)
	e.record(ctx, r, started, err, logger)

	if err != nil {
		return nil, err
	}
	return &Result{
		RunID:     r.id,
		State:     r.state,
		SessionID: r.session,
		Steps:     r.steps,
		Status:    r.status,
	}, nil
}

func (e *Engine) loop(ctx context.Context, r *run, maxSteps int, logger *slog.Logger) error {
	for step := 0; step < maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.steps = step + 1

		headers, err := r.config.Headers(r.session)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
		}

		start := time.Now()
		resp, err := e.post(ctx, r, ports.Request{
			URL:     r.url,
			Headers: headers,
			Body:    r.dialect.request(r),
		})
		if err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}
		if resp.SessionID != "" {
			r.session = resp.SessionID
		}

		t, err := r.dialect.decode(resp.Body, step)
		if err != nil {
			return err
		}

		if e.hooks.OnStep != nil {
			e.hooks.OnStep(ctx, &domain.StepEvent{
				EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventStep, RunID: r.id},
				Step:       step,
				StopReason: t.stopReason,
				ToolCalls:  len(t.calls),
				Latency:    time.Since(start),
			})
		}
		logger.Debug("Turn received", "step", step, "stop_reason", t.stopReason, "tool_calls", len(t.calls))

		if !t.wantsTools {
			return nil
		}
		if len(t.calls) == 0 {
			return t.violation(step)
		}

		r.status = domain.StatusExecutingTools
		r.messages = append(r.messages, t.assistant)

		results := make([]toolResult, 0, len(t.calls))
		for _, call := range t.calls {
			out, err := e.dispatch(ctx, r, step, call)
			if err != nil {
				return fmt.Errorf("step %d: %w", step, err)
			}
			r.dispatched = append(r.dispatched, call.Name)
			if out != nil {
				r.state.Merge(out)
			}
			results = append(results, toolResult{callID: call.ID, content: jsonString(out)})
		}
		r.messages = append(r.messages, r.dialect.results(results)...)
	}
	return fmt.Errorf("%w: graph did not complete within %d steps", domain.ErrStepBudgetExceeded, maxSteps)
}

// post sends one request, under the per-run timeout when one is set.
func (e *Engine) post(ctx context.Context, r *run, req ports.Request) (*ports.Response, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return e.transport.Post(ctx, req)
}

func (e *Engine) dispatch(ctx context.Context, r *run, step int, call domain.ToolCall) (domain.State, error) {
	base := domain.EventBase{Timestamp: time.Now(), Type: domain.EventToolCall, RunID: r.id}
	if e.hooks.OnToolCall != nil {
		e.hooks.OnToolCall(ctx, &domain.ToolEvent{
			EventBase: base, Step: step, CallID: call.ID, ToolName: call.Name, Input: call.Arguments,
		})
	}

	out, err := e.compiler.Dispatch(ctx, call)

	if e.hooks.OnToolReturn != nil {
		ev := &domain.ToolEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventToolReturn, RunID: r.id},
			Step:      step, CallID: call.ID, ToolName: call.Name, Output: out, IsError: err != nil,
		}
		if err != nil {
			ev.Output = err.Error()
		}
		e.hooks.OnToolReturn(ctx, ev)
	}
	return out, err
}

func (e *Engine) emitRun(ctx context.Context, typ domain.EventType, r *run, err error) {
	hook := e.hooks.OnRunStart
	if typ == domain.EventRunEnd {
		hook = e.hooks.OnRunEnd
	}
	if hook == nil {
		return
	}
	hook(ctx, &domain.RunEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: typ, RunID: r.id},
		Model:     r.model,
		Dialect:   r.dialect.kind(),
		Status:    r.status,
		Steps:     r.steps,
		Err:       err,
	})
}

// record stores the run outcome. Recorder failures never fail the run.
func (e *Engine) record(ctx context.Context, r *run, started time.Time, runErr error, logger *slog.Logger) {
	if e.recorder == nil {
		return
	}
	rec := &domain.RunRecord{
		RunID:      r.id,
		Graph:      e.compiler.Graph().Name,
		Model:      r.model,
		Dialect:    r.dialect.kind(),
		Status:     r.status,
		Steps:      r.steps,
		State:      r.state.Clone(),
		Dispatched: r.dispatched,
		StartedAt:  started.UTC(),
		FinishedAt: time.Now().UTC(),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	// The run context may already be cancelled; the record is still worth keeping.
	if err := e.recorder.Save(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("Failed to record run", "err", err)
	}
}

// IsFatal reports whether err came from the run itself rather than the caller's context.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
