package ports

import "context"

// Request is one call to the remote orchestrator.
type Request struct {
	URL     string
	Headers map[string]string
	Body    any
}

// Response is the raw answer of the remote orchestrator.
type Response struct {
	StatusCode int
	Body       []byte
	// SessionID is the value of the X-Session-ID response header, if any.
	SessionID string
}

// Transport sends requests to the remote orchestrator.
type Transport interface {
	// Post sends the JSON-encoded body and returns the response.
	// HTTP errors are returned as *domain.APIError, network failures wrap
	// domain.ErrConnection.
	Post(ctx context.Context, req Request) (*Response, error)
}
