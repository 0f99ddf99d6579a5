package hookloop

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/tfield/hookloop/internal/fetch"
)

// FetchResult is the value produced by an [Operation] built with
// [NewHTTPOperation].
type FetchResult struct {
	// Body is the response body, capped at 1MB.
	Body []byte

	// StatusCode is the HTTP status code.
	StatusCode int

	// Latency is the total time the request took.
	Latency time.Duration
}

// httpOpConfig holds mutable state during HTTP operation construction.
type httpOpConfig struct {
	method         string
	headers        map[string]string
	timeout        time.Duration
	requireSuccess bool
}

// HTTPOption configures an operation built by [NewHTTPOperation].
type HTTPOption func(*httpOpConfig) error

// WithHTTPMethod sets the request method. GET, HEAD, and POST are
// accepted; GET is the default.
func WithHTTPMethod(method string) HTTPOption {
	return func(cfg *httpOpConfig) error {
		switch method {
		case "GET", "HEAD", "POST":
			cfg.method = method
			return nil
		default:
			return errors.New("method must be GET, HEAD, or POST")
		}
	}
}

// WithHTTPHeaders adds headers to every request. Accepts variadic
// key-value pairs; the number of arguments must be even.
func WithHTTPHeaders(keyValues ...string) HTTPOption {
	return func(cfg *httpOpConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHTTPHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithHTTPTimeout bounds each request. Defaults to 10 seconds. Returns
// an error if the duration is not positive.
func WithHTTPTimeout(d time.Duration) HTTPOption {
	return func(cfg *httpOpConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithRequireSuccess makes non-2xx responses count as operation
// failures, so a poller's retry machinery engages on HTTP error statuses
// rather than only on transport errors.
func WithRequireSuccess() HTTPOption {
	return func(cfg *httpOpConfig) error {
		cfg.requireSuccess = true
		return nil
	}
}

// NewHTTPOperation builds an [Operation] that performs an HTTP request
// against rawURL on each invocation.
//
// By default only transport-level failures (connection errors, timeouts)
// fail the operation; the HTTP status code is data in the [FetchResult].
// Use [WithRequireSuccess] to also fail on non-2xx statuses.
//
// Returns an error if the URL is invalid or lacks a scheme, or if any
// option is invalid.
func NewHTTPOperation(rawURL string, opts ...HTTPOption) (Operation[FetchResult], error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, errors.New("URL must have a scheme (http:// or https://)")
	}

	cfg := &httpOpConfig{
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	client := fetch.NewClient()
	req := fetch.Request{
		URL:     rawURL,
		Method:  cfg.method,
		Headers: cfg.headers,
		Timeout: cfg.timeout,
	}
	requireSuccess := cfg.requireSuccess

	return func(ctx context.Context) (FetchResult, error) {
		resp, err := client.Do(ctx, req)
		if err != nil {
			return FetchResult{}, err
		}
		result := FetchResult{
			Body:       resp.Body,
			StatusCode: resp.StatusCode,
			Latency:    resp.Latency,
		}
		if requireSuccess && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
			return result, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return result, nil
	}, nil
}
