// Package fetch provides the pooled HTTP client backing hookloop's HTTP
// operations.
//
// The client applies per-request timeouts via context rather than a
// global client timeout, caps response bodies at 1MB, and limits
// connection pooling to stay friendly when many pollers share one
// process. It is internal; library users go through
// hookloop.NewHTTPOperation.
package fetch
