package control

import (
	"encoding/json"

	"github.com/aretw0/lattice/pkg/domain"
)

// ContentStatus is the outcome reported in a dual-LLM response.
type ContentStatus string

const (
	ContentSuccess ContentStatus = "success"
	ContentFailure ContentStatus = "failure"
	ContentUnknown ContentStatus = "unknown"
)

// ErrorInfo is the flattened remote execution error.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseContent is the JSON document carried in the assistant content of a
// dual-LLM response.
type ResponseContent struct {
	Status                         ContentStatus                   `json:"status"`
	FinalReturnValue               *domain.ValueWithMeta           `json:"final_return_value,omitempty"`
	Error                          *ErrorInfo                      `json:"error,omitempty"`
	Program                        string                          `json:"program,omitempty"`
	NamespaceSnapshot              map[string]domain.ValueWithMeta `json:"namespace_snapshot,omitempty"`
	PolicyCheckHistory             []map[string]any                `json:"policy_check_history,omitempty"`
	MessageHistoryMismatchDetected *bool                           `json:"message_history_mismatch_detected,omitempty"`
	Raw                            string                          `json:"raw,omitempty"`
}

// ParseResponseContent decodes data leniently. Anything that is not a document
// with a known status yields ContentUnknown with Raw set to the input.
func ParseResponseContent(data string) ResponseContent {
	var rc ResponseContent
	if err := json.Unmarshal([]byte(data), &rc); err != nil {
		return ResponseContent{Status: ContentUnknown, Raw: data}
	}
	switch rc.Status {
	case ContentSuccess, ContentFailure, ContentUnknown:
		return rc
	default:
		return ResponseContent{Status: ContentUnknown, Raw: data}
	}
}
