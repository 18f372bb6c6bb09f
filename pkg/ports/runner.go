package ports

import "context"

// RunRequest asks an adapter to start a run of the served workflow.
type RunRequest struct {
	Model        string         `json:"model"`
	InitialState map[string]any `json:"initial_state"`
	MaxSteps     int            `json:"max_steps,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
}

// RunResponse is the outcome of a completed run.
type RunResponse struct {
	RunID     string         `json:"run_id"`
	State     map[string]any `json:"state"`
	SessionID string         `json:"session_id,omitempty"`
	Steps     int            `json:"steps"`
}

// RunFunc starts a run and blocks until it ends. Adapters receive it from the
// composition root so they do not depend on the engine package.
type RunFunc func(ctx context.Context, req RunRequest) (*RunResponse, error)
