// Package client talks to the drawing-translation backend over its HTTP
// contract: upload, job status, artifact download, job listing and health.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/valpere/dwgtran/internal/logger"
)

const (
	// DefaultBaseURL is where the backend listens in a local setup.
	DefaultBaseURL = "http://localhost:8000"

	// FileField is the multipart field the backend reads the drawing from.
	FileField = "file"

	// RequestIDHeader correlates client log lines with backend requests.
	RequestIDHeader = "X-Request-ID"

	// maxErrorBody bounds how much of a JSON body is read into memory.
	maxErrorBody = 1 << 20
)

// Client is a thin typed wrapper over the backend endpoints.
type Client struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// New creates a Client for baseURL. timeout bounds each JSON request and the
// wait for an artifact's response headers; reading the artifact body itself
// is not capped.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	c := NewWithHTTPClient(baseURL, &http.Client{Transport: transport})
	c.timeout = timeout
	return c
}

// NewWithHTTPClient creates a Client using hc for transport.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  hc,
	}
}

// BaseURL returns the backend root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// withTimeout bounds a request whose response is read before returning.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// newRequest builds a request tagged with a fresh request ID. The returned
// context carries the same ID for logging.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, context.Context, error) {
	reqID := uuid.New().String()
	ctx = logger.WithRequestID(ctx, reqID)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, ctx, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	return req, ctx, nil
}

func readBody(r io.Reader) []byte {
	body, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return body
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
