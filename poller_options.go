package hookloop

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	defaultPollInterval = time.Second
	defaultMaxRetries   = 3
	defaultRetryDelay   = time.Second
)

// pollerConfig holds mutable state during Poller construction.
//
// The success callback is stored untyped so that PollerOption can stay
// non-generic; [NewPoller] asserts it against func(T) and rejects a
// mismatch with a descriptive error.
type pollerConfig struct {
	mode         Mode
	interval     time.Duration
	maxRetries   int
	retryDelay   time.Duration
	onSuccess    any
	onError      func(error, int)
	logger       *slog.Logger
	autoStart    bool
	autoStartCtx context.Context
}

// PollerOption configures a [Poller] during construction.
//
// Options return an error if validation fails. Built-in options:
// [WithMode], [WithPollInterval], [WithMaxRetries], [WithRetryDelay],
// [WithOnSuccess], [WithOnError], [WithPollerLogger], [WithAutoStart].
type PollerOption func(*pollerConfig) error

// WithMode selects the scheduling mode. Defaults to [ModeFixedInterval].
func WithMode(m Mode) PollerOption {
	return func(cfg *pollerConfig) error {
		if m != ModeFixedInterval && m != ModeContinuous {
			return errors.New("mode must be ModeFixedInterval or ModeContinuous")
		}
		cfg.mode = m
		return nil
	}
}

// WithPollInterval sets the time between scheduled invocations.
//
// In [ModeFixedInterval] this is the tick period. In [ModeContinuous] it
// only bounds the pacing delay between back-to-back attempts (the
// effective pacing is the smaller of the interval and 100ms).
// Defaults to 1 second. Returns an error if the duration is not positive.
func WithPollInterval(d time.Duration) PollerOption {
	return func(cfg *pollerConfig) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		cfg.interval = d
		return nil
	}
}

// WithMaxRetries sets how many times a failing logical invocation is
// retried before its error is surfaced. Zero means failures surface
// immediately. Defaults to 3. Returns an error if n is negative.
func WithMaxRetries(n int) PollerOption {
	return func(cfg *pollerConfig) error {
		if n < 0 {
			return errors.New("max retries cannot be negative")
		}
		cfg.maxRetries = n
		return nil
	}
}

// WithRetryDelay sets the delay between a failed attempt and its retry.
// Defaults to 1 second. Returns an error if the duration is not positive.
func WithRetryDelay(d time.Duration) PollerOption {
	return func(cfg *pollerConfig) error {
		if d <= 0 {
			return errors.New("retry delay must be positive")
		}
		cfg.retryDelay = d
		return nil
	}
}

// WithOnSuccess registers a callback invoked with each successful result,
// after the poller's state has been updated.
//
// The callback's parameter type must match the poller's result type;
// [NewPoller] returns an error on a mismatch. Callbacks run on the
// polling goroutine and must not block; a panicking callback propagates.
// A nil callback is silently ignored.
func WithOnSuccess[T any](fn func(T)) PollerOption {
	return func(cfg *pollerConfig) error {
		if fn == nil {
			return nil
		}
		cfg.onSuccess = fn
		return nil
	}
}

// WithOnError registers a callback invoked after each failed attempt with
// the error and the attempt count (1-based; maxRetries+1 marks the final,
// surfaced failure).
//
// Callbacks run on the polling goroutine and must not block; a panicking
// callback propagates. A nil callback is silently ignored.
func WithOnError(fn func(err error, attempt int)) PollerOption {
	return func(cfg *pollerConfig) error {
		if fn == nil {
			return nil
		}
		cfg.onError = fn
		return nil
	}
}

// WithPollerLogger sets a custom [slog.Logger]. Defaults to
// [slog.Default]. Returns an error if the logger is nil.
func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(cfg *pollerConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithAutoStart starts the session before [NewPoller] returns, using ctx
// as the schedule's parent context. A nil ctx is treated as
// context.Background.
func WithAutoStart(ctx context.Context) PollerOption {
	return func(cfg *pollerConfig) error {
		cfg.autoStart = true
		cfg.autoStartCtx = ctx
		return nil
	}
}
