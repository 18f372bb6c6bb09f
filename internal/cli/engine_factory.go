package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/adapters/process"
	"github.com/aretw0/lattice/pkg/adapters/redis"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/observability"
	"github.com/aretw0/lattice/pkg/persistence/middleware"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/session"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "lattice"

// App is a workflow loaded with CLI conventions, ready to compile, serve or run.
type App struct {
	Settings Settings
	Workflow *process.Workflow
	Engine   *lattice.Engine
	Recorder ports.RunRecorder
	Sessions *session.Manager
	Registry *prometheus.Registry
	Logger   *slog.Logger

	closers []func() error
}

// NewApp loads the workflow named by s and builds its engine. Logging and
// metrics hooks are always installed; the recorder is Redis when a recorder URL
// is configured and in-memory otherwise. With Redis, runs resuming the same
// session are also serialized across processes. extra options are applied last.
func NewApp(s Settings, logger *slog.Logger, extra ...lattice.Option) (*App, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	wf, err := LoadWorkflow(s)
	if err != nil {
		return nil, err
	}

	app := &App{
		Settings: s,
		Workflow: wf,
		Registry: prometheus.NewRegistry(),
		Logger:   logger,
	}

	if err := app.createRecorder(); err != nil {
		_ = app.Close()
		return nil, err
	}

	metrics := observability.NewMetrics(MetricsNamespace, app.Registry)
	opts := []lattice.Option{
		lattice.WithConfig(s.Config),
		lattice.WithLogger(logger),
		lattice.WithNodeFunctions(wf.Functions.Map()),
		lattice.WithInternalNodes(wf.Internal),
		lattice.WithRecorder(app.Recorder),
		lattice.WithMaxSteps(s.MaxSteps),
		lattice.WithLifecycleHooks(domain.Combine(
			observability.LogHooks(logger),
			metrics.Hooks(),
		)),
	}
	engine, err := lattice.New(wf.Graph, append(opts, extra...)...)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	app.Engine = engine
	return app, nil
}

// LoadWorkflow reads the workflow file and the shared tools file named by s.
func LoadWorkflow(s Settings) (*process.Workflow, error) {
	if s.Workflow == "" {
		return nil, fmt.Errorf("%w: no workflow file given (use --workflow)", domain.ErrConfiguration)
	}
	tools, err := process.LoadTools(resolveTools(s))
	if err != nil {
		return nil, fmt.Errorf("error loading tools: %w", err)
	}
	wf, err := process.LoadWorkflow(s.Workflow, tools)
	if err != nil {
		return nil, fmt.Errorf("error loading workflow: %w", err)
	}
	return wf, nil
}

// createRecorder sets up the recorder, its middlewares and the session manager.
func (a *App) createRecorder() error {
	rs := a.Settings.Recorder
	sessionOpts := []session.Option{session.WithLogger(a.Logger)}

	var base ports.RunRecorder
	if rs.URL == "" {
		base = memory.NewRecorder()
	} else {
		var opts []redis.Option
		if rs.TTL > 0 {
			opts = append(opts, redis.WithTTL(rs.TTL))
		}
		if rs.Prefix != "" {
			opts = append(opts, redis.WithPrefix(rs.Prefix))
		}
		rec, err := redis.NewFromURL(rs.URL, opts...)
		if err != nil {
			return fmt.Errorf("error creating run recorder: %w", err)
		}
		a.closers = append(a.closers, rec.Close)
		sessionOpts = append(sessionOpts, session.WithLocker(redis.NewLocker(rec.Client(), MetricsNamespace+":")))
		a.Logger.Debug("recording runs in redis", "prefix", rs.Prefix)
		base = rec
	}

	mws, err := recorderMiddlewares(rs)
	if err != nil {
		return err
	}
	a.Recorder = middleware.Chain(base, mws...)
	a.Sessions = session.NewManager(sessionOpts...)
	return nil
}

// recorderMiddlewares masks before it encrypts, so masked values never reach
// the ciphertext.
func recorderMiddlewares(rs RecorderSettings) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(rs.MaskKeys) > 0 {
		mask, err := middleware.NewPIIMiddleware(rs.MaskKeys)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mask)
	}
	if rs.EncryptionKey != "" {
		cfg := middleware.EncryptionConfig{}
		var err error
		if cfg.ActiveKey, err = decodeKey(rs.EncryptionKey); err != nil {
			return nil, err
		}
		for _, k := range rs.FallbackKeys {
			key, err := decodeKey(k)
			if err != nil {
				return nil, err
			}
			cfg.FallbackKeys = append(cfg.FallbackKeys, key)
		}
		seal, err := middleware.NewEncryptionMiddleware(cfg)
		if err != nil {
			return nil, err
		}
		mws = append(mws, seal)
	}
	return mws, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid recorder key: %w", err)
	}
	return key, nil
}

// MetricsHandler serves the App registry in the Prometheus exposition format.
func (a *App) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
}

// Run executes the workflow with the configured model and step budget unless
// req overrides them.
func (a *App) Run(ctx context.Context, req ports.RunRequest) (*ports.RunResponse, error) {
	model := req.Model
	if model == "" {
		model = a.Settings.Model
	}
	var res *lattice.RunResult
	err := a.Sessions.WithLock(ctx, req.SessionID, func(ctx context.Context) error {
		var err error
		res, err = a.Engine.Run(ctx, domain.State(req.InitialState), lattice.RunOptions{
			Model:     model,
			MaxSteps:  req.MaxSteps,
			SessionID: req.SessionID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &ports.RunResponse{
		RunID:     res.RunID,
		State:     res.State,
		SessionID: res.SessionID,
		Steps:     res.Steps,
	}, nil
}

// Close releases the recorder connection, if any.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// resolveTools prefers a tools file next to the workflow when the default
// name is used and no such file exists in the working directory.
func resolveTools(s Settings) string {
	if s.Tools != "tools.yaml" {
		return s.Tools
	}
	if _, err := os.Stat(s.Tools); err == nil {
		return s.Tools
	}
	return filepath.Join(filepath.Dir(s.Workflow), "tools.yaml")
}
