package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 1 << 20 // 1MB

// connection pooling limits to prevent resource exhaustion when many
// pollers share one process
const (
	maxIdleConns        = 100
	maxIdleConnsPerHost = 10
	maxConnsPerHost     = 10
	idleConnTimeout     = 60 * time.Second
)

// defaultTimeout applies when a request specifies none.
const defaultTimeout = 10 * time.Second

// Response is the outcome of a completed HTTP request.
type Response struct {
	// Body is the response body, capped at 1MB.
	Body []byte

	// StatusCode is the HTTP status code.
	StatusCode int

	// Latency is the total time the request took.
	Latency time.Duration
}

// Request describes one HTTP request to perform.
type Request struct {
	// URL is the target URL.
	URL string

	// Method is the HTTP method. Empty defaults to GET.
	Method string

	// Headers are set on the outgoing request.
	Headers map[string]string

	// Timeout bounds the whole request. Zero defaults to 10s.
	Timeout time.Duration
}

// Client is a pooled HTTP client for polling operations.
//
// Timeouts are applied per request via context, so operations sharing a
// client can use different timeouts.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a polling [Client] with pooling limits suitable for
// many concurrent pollers.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			// no global timeout; per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        maxIdleConns,
				MaxIdleConnsPerHost: maxIdleConnsPerHost,
				MaxConnsPerHost:     maxConnsPerHost,
				IdleConnTimeout:     idleConnTimeout,
			},
		},
	}
}

// Do performs the request and returns the response.
//
// Transport failures, timeouts, and body-read failures are returned as
// errors. An HTTP error status is not an error here; callers decide how
// to interpret status codes.
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, nil)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Response{}, fmt.Errorf("read response body: %w", err)
	}

	return Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}, nil
}

// Close closes idle connections in the pool. The client remains usable;
// new connections are established as needed. Safe on a nil client and
// idempotent.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
