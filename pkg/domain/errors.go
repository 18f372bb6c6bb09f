package domain

import (
	"errors"
	"fmt"
)

// ErrConfiguration is returned when a run cannot start because the compiler or the
// remote configuration is unusable. It is raised before any network call.
var ErrConfiguration = errors.New("configuration error")

// ErrInvalidGraph is returned when a graph breaks a structural rule.
var ErrInvalidGraph = errors.New("invalid graph")

// ErrCyclicGraph is returned by the compiler when cycles are rejected and one is found.
var ErrCyclicGraph = errors.New("cyclic graph")

// ErrProtocolViolation is returned when the remote side answers with a shape the loop
// cannot interpret, such as a tool-call stop signal without any tool call.
var ErrProtocolViolation = errors.New("protocol violation")

// ErrDispatch is returned when a tool call names no tool or an unknown tool.
var ErrDispatch = errors.New("dispatch failure")

// ErrStepBudgetExceeded is returned when a run does not finish within its step budget.
var ErrStepBudgetExceeded = errors.New("step budget exceeded")

// ErrConnection wraps network failures talking to the remote orchestrator.
var ErrConnection = errors.New("connection error")

// ErrRunNotFound is returned when a run ID cannot be found in a recorder.
var ErrRunNotFound = errors.New("run not found")

// APIError is an HTTP error answered by the remote orchestrator.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%d] %s", e.StatusCode, e.Message)
}

// ProtocolError carries the details of a protocol violation.
// Code and Message are filled when the remote side reported its own failure.
type ProtocolError struct {
	Step    int
	Reason  string
	Code    string
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Code != "" || e.Message != "" {
		return fmt.Sprintf("step %d: %s: remote error %s: %s", e.Step, e.Reason, e.Code, e.Message)
	}
	return fmt.Sprintf("step %d: %s", e.Step, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return ErrProtocolViolation }
