package hookloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxContinuousPacing caps the delay between back-to-back invocations in
// [ModeContinuous]. The effective pacing is the smaller of this cap and
// the configured poll interval.
const maxContinuousPacing = 100 * time.Millisecond

// Poller executes an [Operation] on a schedule with bounded retries.
//
// A Poller owns one polling session. At most one operation attempt is in
// flight at any time: scheduled ticks that fire while an attempt is still
// running are skipped, and manual [Poller.Poll] calls wait for the
// in-flight attempt to settle before starting.
//
// A failing attempt is retried after the retry delay, up to the configured
// maximum. Retries belong to the same logical invocation: they do not
// count as new ticks and the error is not surfaced until the budget is
// exhausted. On exhaustion the error becomes visible via [Poller.Err] and
// the error callback fires a final time; a fixed-interval session then
// stops, while a continuous session keeps looping with a fresh budget.
// The asymmetry is deliberate: continuous polling is meant to survive
// extended outages.
//
// All methods are safe for concurrent use. Sessions are restartable:
// Start after Stop begins a new schedule.
type Poller[T any] struct {
	op         Operation[T]
	mode       Mode
	interval   time.Duration
	maxRetries int
	retryDelay time.Duration
	onSuccess  func(T)
	onError    func(error, int)
	logger     *slog.Logger

	// flight is a capacity-1 gate enforcing the single in-flight
	// invariant across scheduled ticks and manual polls.
	flight chan struct{}

	mu         sync.Mutex
	running    bool
	loading    bool
	lastResult T
	hasResult  bool
	lastErr    error
	failures   int
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewPoller creates a [Poller] for the given operation.
//
// Defaults: [ModeFixedInterval], 1s poll interval, 3 retries, 1s retry
// delay, [slog.Default] logging. Returns an error if op is nil or any
// option is invalid.
//
// With [WithAutoStart] the session begins polling before NewPoller
// returns; otherwise call [Poller.Start].
func NewPoller[T any](op Operation[T], opts ...PollerOption) (*Poller[T], error) {
	if op == nil {
		return nil, errors.New("operation cannot be nil")
	}

	cfg := &pollerConfig{
		mode:       ModeFixedInterval,
		interval:   defaultPollInterval,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	var onSuccess func(T)
	if cfg.onSuccess != nil {
		fn, ok := cfg.onSuccess.(func(T))
		if !ok {
			return nil, fmt.Errorf("success callback has type %T, want func(%T)", cfg.onSuccess, *new(T))
		}
		onSuccess = fn
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Poller[T]{
		op:         op,
		mode:       cfg.mode,
		interval:   cfg.interval,
		maxRetries: cfg.maxRetries,
		retryDelay: cfg.retryDelay,
		onSuccess:  onSuccess,
		onError:    cfg.onError,
		logger:     logger.With("poller_id", uuid.NewString(), "mode", cfg.mode.String()),
		flight:     make(chan struct{}, 1),
	}

	if cfg.autoStart {
		p.Start(cfg.autoStartCtx)
	}
	return p, nil
}

// Start begins the polling schedule.
//
// In [ModeFixedInterval] the operation is invoked once immediately, then
// on every interval tick. In [ModeContinuous] attempts run back to back
// with the pacing delay between them. Start is non-blocking; the schedule
// runs until [Poller.Stop] or until ctx is cancelled. A nil ctx is
// treated as context.Background. Starting an already running session is a
// no-op.
func (p *Poller[T]) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.running = true
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	p.logger.Debug("poller starting", "interval", p.interval.String())

	go func() {
		defer close(done)
		if p.mode == ModeContinuous {
			p.runContinuous(runCtx)
		} else {
			p.runFixed(runCtx)
		}
	}()
}

// Stop halts the schedule and aborts any in-flight attempt.
//
// Pending ticks and retry timers are cancelled, the in-flight operation's
// context is cancelled, and its eventual settlement is discarded without
// mutating state or firing callbacks. Stop blocks until the run goroutine
// it observed has exited. Idempotent; safe to call before Start.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	p.running = false
	p.loading = false
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Poll invokes the operation once, independent of the running schedule.
//
// The call behaves exactly like a scheduled logical invocation: it waits
// for any in-flight attempt to settle (preserving the single-flight
// invariant), retries on failure up to the configured maximum, and
// updates the poller's state identically. It returns the resolved value
// or the final error. A nil ctx is treated as context.Background.
func (p *Poller[T]) Poll(ctx context.Context) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case p.flight <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	defer func() { <-p.flight }()
	return p.execute(ctx)
}

// Reset clears the surfaced error and the consecutive failure counter.
// The last successful result and the running state are untouched.
func (p *Poller[T]) Reset() {
	p.mu.Lock()
	p.lastErr = nil
	p.failures = 0
	p.mu.Unlock()
}

// Snapshot returns a consistent view of the poller's observable state.
func (p *Poller[T]) Snapshot() State[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State[T]{
		Data:     p.lastResult,
		HasData:  p.hasResult,
		Err:      p.lastErr,
		Loading:  p.loading,
		Running:  p.running,
		Failures: p.failures,
	}
}

// Running reports whether the polling schedule is active.
func (p *Poller[T]) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Loading reports whether a logical invocation is in progress.
func (p *Poller[T]) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// Data returns the last successful result and whether one exists.
func (p *Poller[T]) Data() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastResult, p.hasResult
}

// Err returns the last surfaced error, or nil.
func (p *Poller[T]) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Failures returns the consecutive failure count of the current logical
// invocation.
func (p *Poller[T]) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

// runFixed drives the fixed-interval schedule: one immediate invocation,
// then one per tick. A terminal failure (retry budget exhausted) halts
// the session.
func (p *Poller[T]) runFixed(ctx context.Context) {
	if halted := p.tick(ctx); halted {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if halted := p.tick(ctx); halted {
				return
			}
		}
	}
}

// tick performs one scheduled logical invocation. Ticks that find an
// attempt already in flight are skipped rather than queued. Returns true
// when the session halted due to retry exhaustion.
func (p *Poller[T]) tick(ctx context.Context) bool {
	select {
	case p.flight <- struct{}{}:
	default:
		p.logger.Debug("tick skipped, attempt in flight")
		return false
	}
	_, err := p.execute(ctx)
	<-p.flight

	if err == nil || ctx.Err() != nil {
		return false
	}

	// retry budget exhausted in fixed-interval mode: stop scheduling
	p.logger.Warn("polling halted after exhausting retries", "error", err)
	p.mu.Lock()
	p.running = false
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return true
}

// runContinuous drives the back-to-back schedule. Failures never halt
// the loop; each logical invocation gets a fresh retry budget.
func (p *Poller[T]) runContinuous(ctx context.Context) {
	pacing := p.interval
	if pacing > maxContinuousPacing {
		pacing = maxContinuousPacing
	}

	for {
		select {
		case p.flight <- struct{}{}:
		case <-ctx.Done():
			return
		}
		_, err := p.execute(ctx)
		<-p.flight

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.logger.Warn("continuous poll exhausted retries, looping", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(pacing):
		}
	}
}

// execute runs one logical invocation: the initial attempt plus up to
// maxRetries retries with retryDelay between them. The caller must hold
// the flight slot. A cancelled context discards whatever the operation
// eventually settles with; no state is mutated and no callback fires.
func (p *Poller[T]) execute(ctx context.Context) (T, error) {
	var zero T

	p.mu.Lock()
	p.loading = true
	p.mu.Unlock()

	for {
		res, err := p.op(ctx)

		if ctx.Err() != nil {
			// cancelled while in flight: discard the settlement
			p.mu.Lock()
			p.loading = false
			p.mu.Unlock()
			return zero, ctx.Err()
		}

		if err == nil {
			p.mu.Lock()
			p.lastResult = res
			p.hasResult = true
			p.lastErr = nil
			p.failures = 0
			p.loading = false
			p.mu.Unlock()
			if p.onSuccess != nil {
				p.onSuccess(res)
			}
			return res, nil
		}

		p.mu.Lock()
		if p.failures < p.maxRetries {
			p.failures++
			attempt := p.failures
			p.mu.Unlock()

			p.logger.Debug("attempt failed, retrying",
				"attempt", attempt,
				"retry_delay", p.retryDelay.String(),
				"error", err,
			)
			if p.onError != nil {
				p.onError(err, attempt)
			}

			select {
			case <-ctx.Done():
				p.mu.Lock()
				p.loading = false
				p.mu.Unlock()
				return zero, ctx.Err()
			case <-time.After(p.retryDelay):
			}
			continue
		}

		// budget exhausted: surface the error and reset the counter
		p.lastErr = err
		p.failures = 0
		p.loading = false
		p.mu.Unlock()

		if p.onError != nil {
			p.onError(err, p.maxRetries+1)
		}
		return zero, err
	}
}
