package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
)

// EnvNode names the node being executed in the environment of the process.
const EnvNode = "LATTICE_NODE"

// Runner turns registered commands into node and branch functions.
// It follows a Strict Registry pattern for security (Allow-Listing): only
// registered commands can be executed.
type Runner struct {
	registry map[string]ProcessConfig
	baseDir  string
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(tools map[string]ProcessConfig) RunnerOption {
	return func(r *Runner) {
		for name, tool := range tools {
			tool.Name = name
			r.registry[name] = tool
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]ProcessConfig),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted script/command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = ProcessConfig{Name: name, Command: command, Args: args}
}

// NodeFunc returns a node function backed by the registered command tool.
// The process receives the state as JSON on stdin and must print a JSON
// object, the partial state. Empty output means no update.
func (r *Runner) NodeFunc(node, tool string) (domain.NodeFunc, error) {
	proc, ok := r.registry[tool]
	if !ok {
		return nil, fmt.Errorf("process tool not registered: %s", tool)
	}
	return func(ctx context.Context, state domain.State) (domain.State, error) {
		out, err := r.exec(ctx, proc, node, state)
		if err != nil {
			return nil, err
		}
		if len(out) == 0 {
			return nil, nil
		}
		var partial domain.State
		if err := json.Unmarshal(out, &partial); err != nil {
			return nil, fmt.Errorf("process %s printed no JSON object: %w", proc.Name, err)
		}
		return partial, nil
	}, nil
}

// BranchFunc returns a decision function backed by the registered command tool.
// The process prints the name of the next node, bare or as a JSON string.
func (r *Runner) BranchFunc(node, tool string) (domain.BranchFunc, error) {
	proc, ok := r.registry[tool]
	if !ok {
		return nil, fmt.Errorf("process tool not registered: %s", tool)
	}
	return func(ctx context.Context, state domain.State) (string, error) {
		out, err := r.exec(ctx, proc, node, state)
		if err != nil {
			return "", err
		}
		var target string
		if err := json.Unmarshal(out, &target); err == nil {
			return target, nil
		}
		return string(out), nil
	}, nil
}

// exec runs proc and returns its trimmed stdout.
func (r *Runner) exec(ctx context.Context, proc ProcessConfig, node string, state domain.State) ([]byte, error) {
	if proc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, proc.Timeout)
		defer cancel()
	}

	input, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state for %s: %w", proc.Name, err)
	}

	// Security: state travels on stdin, never as command flags.
	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = r.baseDir
	cmd.Stdin = bytes.NewReader(input)

	env := cmd.Environ()
	for k, v := range proc.Environment {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = append(env, fmt.Sprintf("%s=%s", EnvNode, node))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("process %s interrupted: %w", proc.Name, ctx.Err())
		}
		return nil, fmt.Errorf("process %s failed: %w. Stderr: %s", proc.Name, err, strings.TrimSpace(stderr.String()))
	}
	return bytes.TrimSpace(stdout.Bytes()), nil
}
