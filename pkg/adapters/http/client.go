package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/aretw0/lattice/pkg/control"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// Client implements ports.Transport over HTTPS with resty.
type Client struct {
	rc     *resty.Client
	logger *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.rc.SetTimeout(d)
		}
	}
}

// WithRetries retries failed requests up to n times with backoff.
func WithRetries(n int) ClientOption {
	return func(c *Client) {
		c.rc.SetRetryCount(n).
			SetRetryWaitTime(500 * time.Millisecond).
			SetRetryMaxWaitTime(5 * time.Second)
	}
}

// WithHTTPClient swaps the underlying *http.Client, e.g. for custom TLS.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.rc = resty.NewWithClient(hc).
			SetHeader("Content-Type", "application/json").
			SetTimeout(control.DefaultTimeout)
	}
}

// WithClientLogger sets a structured logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a transport with the default timeout and no retries.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		rc: resty.New().
			SetHeader("Content-Type", "application/json").
			SetTimeout(control.DefaultTimeout),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ ports.Transport = (*Client)(nil)

// Post sends req.Body as JSON and returns the raw response.
func (c *Client) Post(ctx context.Context, req ports.Request) (*ports.Response, error) {
	start := time.Now()
	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeaders(req.Headers).
		SetBody(req.Body).
		Post(req.URL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrConnection, err)
	}

	c.logger.Debug("Remote call",
		"url", req.URL,
		"status", resp.StatusCode(),
		"duration", time.Since(start))

	if resp.StatusCode() >= 400 {
		return nil, newAPIError(resp.StatusCode(), resp.Body())
	}

	return &ports.Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
		SessionID:  resp.Header().Get(control.HeaderSessionID),
	}, nil
}

// newAPIError extracts the message from a "detail" or "message" JSON field,
// falling back to the body text.
func newAPIError(status int, body []byte) *domain.APIError {
	msg := strings.TrimSpace(string(body))
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"detail", "message"} {
			v, ok := payload[key]
			if !ok {
				continue
			}
			if s, ok := v.(string); ok {
				msg = s
			} else if raw, err := json.Marshal(v); err == nil {
				msg = string(raw)
			}
			break
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}
	return &domain.APIError{StatusCode: status, Message: msg}
}
