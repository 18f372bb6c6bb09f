package domain

// Keys and literals shared by the compiler and the execution loop.
const (
	// KeyState is the single argument every external tool receives.
	KeyState = "state"

	// KeyResult is the state field the compiled program extracts as the final value.
	KeyResult = "result"

	// ContextVarInitialState names the context variable seeded with the initial state.
	ContextVarInitialState = "initial_state"
)

// MetaData is the provenance attached to a context variable.
type MetaData struct {
	Producers []string `json:"producers"`
	Consumers []string `json:"consumers"`
	Tags      []string `json:"tags"`
}

// ValueWithMeta is a context variable as sent to the remote orchestrator.
type ValueWithMeta struct {
	Value any      `json:"value"`
	Meta  MetaData `json:"meta"`
}

// DefaultInitialStateMeta lets every consumer read the initial state.
func DefaultInitialStateMeta() MetaData {
	return MetaData{Producers: []string{}, Consumers: []string{"*"}, Tags: []string{}}
}
