package domain

import "time"

// RunStatus is the position of a run in its state machine.
type RunStatus string

const (
	StatusAwaitingPlan   RunStatus = "awaiting_plan"   // Initial, no response received yet
	StatusExecutingTools RunStatus = "executing_tools" // The planner asked for local tools
	StatusDone           RunStatus = "done"            // Terminal, success
	StatusFailed         RunStatus = "failed"          // Terminal, error
)

// Terminal reports whether no further transition is possible.
func (s RunStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// RunRecord is the audit record of a run. The session token is never part of it.
type RunRecord struct {
	RunID      string         `json:"run_id"`
	Graph      string         `json:"graph,omitempty"`
	Model      string         `json:"model"`
	Dialect    Dialect        `json:"dialect"`
	Status     RunStatus      `json:"status"`
	Steps      int            `json:"steps"`
	Error      string         `json:"error,omitempty"`
	State      map[string]any `json:"state,omitempty"`
	Dispatched []string       `json:"dispatched,omitempty"` // local calls, in order
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}
