package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/internal/runtime"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// Unlike signal.NotifyContext it keeps the signal for Signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// CreateLogger returns the stderr logger for a --log-level value. An empty
// level disables logging.
func CreateLogger(level, format string) (*slog.Logger, error) {
	if level == "" {
		return logging.NewNop(), nil
	}
	l, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return logging.NewWithFormat(os.Stderr, l, format), nil
}

// ParseInitialState reads the initial state of a run. raw is inline JSON, or
// @path to read it from a file, or "-" for stdin. Empty input is an empty state.
func ParseInitialState(raw string, stdin io.Reader) (map[string]any, error) {
	var data []byte
	switch {
	case raw == "":
		return map[string]any{}, nil
	case raw == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read state from stdin: %w", err)
		}
		data = b
	case strings.HasPrefix(raw, "@"):
		b, err := os.ReadFile(strings.TrimPrefix(raw, "@"))
		if err != nil {
			return nil, fmt.Errorf("failed to read state file: %w", err)
		}
		data = b
	default:
		data = []byte(raw)
	}

	state := map[string]any{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("error parsing initial state JSON: %w", err)
	}
	if state == nil {
		state = map[string]any{}
	}
	return state, nil
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// handleExecutionError reports err and turns a user interruption into a clean
// exit. Deadlines still fail the command.
func handleExecutionError(w io.Writer, err error) error {
	if err == nil {
		return nil
	}
	if !runtime.IsFatal(err) {
		printSystemMessage(w, "Run stopped: %v", err)
	}
	if isInterrupted(err) {
		return nil
	}
	return err
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}
