package hookloop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// eventually polls cond until it holds or the timeout expires.
func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s: %s", timeout, msg)
}

func TestNewPoller_NilOperation(t *testing.T) {
	_, err := NewPoller[int](nil)
	if err == nil {
		t.Error("NewPoller() expected error for nil operation, got nil")
	}
}

func TestNewPoller_Defaults(t *testing.T) {
	p, err := NewPoller(func(ctx context.Context) (int, error) { return 1, nil },
		WithPollerLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("NewPoller() error = %v", err)
	}

	s := p.Snapshot()
	if s.Running {
		t.Error("Snapshot().Running = true before Start")
	}
	if s.HasData {
		t.Error("Snapshot().HasData = true before any poll")
	}
	if s.Err != nil {
		t.Errorf("Snapshot().Err = %v, want nil", s.Err)
	}
}

// TestPoller_SingleFlight verifies that no second operation invocation
// begins while one is in flight, across scheduled ticks and manual polls.
func TestPoller_SingleFlight(t *testing.T) {
	var current, peak atomic.Int32

	op := func(ctx context.Context) (int, error) {
		n := current.Add(1)
		if n > peak.Load() {
			peak.Store(n)
		}
		time.Sleep(30 * time.Millisecond)
		current.Add(-1)
		return 0, nil
	}

	p, err := NewPoller(op,
		WithPollInterval(10*time.Millisecond),
		WithPollerLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("NewPoller() error = %v", err)
	}

	p.Start(context.Background())

	// issue manual polls concurrently with the schedule
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Poll(context.Background())
		}()
	}
	wg.Wait()

	time.Sleep(50 * time.Millisecond)
	p.Stop()

	if peak.Load() != 1 {
		t.Errorf("peak concurrent invocations = %d, want 1", peak.Load())
	}
}

// TestPoller_RetryBound verifies that with maxRetries = N an always
// failing fixed-interval session performs exactly N+1 attempts, surfaces
// the error only then, and stops.
func TestPoller_RetryBound(t *testing.T) {
	var attempts atomic.Int32
	opErr := errors.New("boom")

	op := func(ctx context.Context) (int, error) {
		attempts.Add(1)
		return 0, opErr
	}

	var attemptCounts []int
	var mu sync.Mutex

	p, err := NewPoller(op,
		WithMaxRetries(2),
		WithRetryDelay(5*time.Millisecond),
		WithPollInterval(time.Minute),
		WithOnError(func(err error, attempt int) {
			mu.Lock()
			attemptCounts = append(attemptCounts, attempt)
			mu.Unlock()
		}),
		WithPollerLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("NewPoller() error = %v", err)
	}

	p.Start(context.Background())

	eventually(t, 2*time.Second, func() bool { return !p.Running() },
		"session did not halt after exhausting retries")

	if got := attempts.Load(); got != 3 {
		t.Errorf("total attempts = %d, want 3", got)
	}
	if !errors.Is(p.Err(), opErr) {
		t.Errorf("Err() = %v, want %v", p.Err(), opErr)
	}
	if p.Failures() != 0 {
		t.Errorf("Failures() = %d, want 0 after exhaustion", p.Failures())
	}
	if p.Loading() {
		t.Error("Loading() = true after halt")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []int{1, 2, 3}
	if len(attemptCounts) != len(want) {
		t.Fatalf("error callback fired %d times, want %d", len(attemptCounts), len(want))
	}
	for i, n := range want {
		if attemptCounts[i] != n {
			t.Errorf("error callback attempt[%d] = %d, want %d", i, attemptCounts[i], n)
		}
	}
}

// TestPoller_ErrorNotSurfacedDuringRetries verifies the error stays
// hidden from Err() until the retry budget is exhausted.
func TestPoller_ErrorNotSurfacedDuringRetries(t *testing.T) {
	release := make(chan struct{})
	var attempts atomic.Int32

	op := func(ctx context.Context) (int, error) {
		if attempts.Add(1) == 2 {
			<-release
		}
		return 0, errors.New("boom")
	}

	p, err := NewPoller(op,
		WithMaxRetries(3),
		WithRetryDelay(5*time.Millisecond),
		WithPollInterval(time.Minute),
		WithPollerLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("NewPoller() error = %v", err)
	}

	p.Start(context.Background())

	// second attempt is parked inside the operation: one failure recorded
	eventually(t, time.Second, func() bool { return attempts.Load() == 2 },
		"second attempt did not start")

	if p.Err() != nil {
		t.Errorf("Err() = %v during retries, want nil", p.Err())
	}
	if p.Failures() != 1 {
		t.Errorf("Failures() = %d, want 1", p.Failures())
	}
	if !p.Loading() {
		t.Error("Loading() = false during retries, want true")
	}

	close(release)
	p.Stop()
}

// TestPoller_StopDiscardsInFlightResult verifies that a result settling
// after Stop does not update state and fires no success callback.
func TestPoller_StopDiscardsInFlightResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var successes atomic.Int32

	op := func(ctx context.Context) (int, error) {
		close(started)
		<-release // ignores ctx: settles successfully after the stop
		return 42, nil
	}

	p, err := NewPoller(op,
		WithPollInterval(time.Minute),
		WithOnSuccess(func(int) { successes.Add(1) }),
		WithPollerLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("NewPoller() error = %v", err)
	}

	p.Start(context.Background())
	<-started

	stopDone := make(chan struct{})
	go func() {
		p.Stop()
		close(stopDone)
	}()

	// let the cancellation propagate before the operation settles
	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case <-stopDone:
	case <-time.After(time.Second):
		t.Fatal("Stop() did not return")
	}

	if _, ok := p.Data(); ok {
		t.Error("Data() set from a discarded in-flight result")
	}
	if successes.Load() != 0 {
		t.Errorf("success callback fired %d times after stop, want 0", successes.Load())
	}
	if p.Loading() {
		t.Error("Loading() = true after Stop")
	}
}

// TestPoller_ResetKeepsData verifies Reset clears the error and counter
// but leaves the last successful result untouched.
func TestPoller_ResetKeepsData(t *testing.T) {
	var fail atomic.Bool

	op := func(ctx context.Context) (string, error) {
		if fail.Load() {
			return "", errors.New("boom")
		}
		return "ok", nil
	}

	p, err := NewPoller(op,
		WithMaxRetries(0),
		WithPollerLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("NewPoller() error = %v", err)
	}

	if _, err := p.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}

	fail.Store(true)
	if _, err := p.Poll(context.Background()); err == nil {
		t.Fatal("Poll() expected error, got nil")
	}
	if p.Err() == nil {
		t.Fatal("Err() = nil after surfaced failure")
	}

	p.Reset()

	if p.Err() != nil {
		t.Errorf("Err() = %v after Reset, want nil", p.Err())
	}
	if p.Failures() != 0 {
		t.Errorf("Failures() = %d after Reset, want 0", p.Failures())
	}
	data, ok := p.Data()
	if !ok || data != "ok" {
		t.Errorf("Data() = (%q, %v) after Reset, want (%q, true)", data, ok, "ok")
	}
}

// TestPoller_FailThenRecover exercises the retry path end to end: two
// failures then a success within one logical invocation.
func TestPoller_FailThenRecover(t *testing.T) {
	var attempts atomic.Int32

	op := func(ctx context.Context) (int, error) {
		if attempts.Add(1) <= 2 {
			return 0, errors.New("transient")
		}
		return 7, nil
	}

	p, err := NewPoller(op,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
		WithPollerLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("NewPoller() error = %v", err)
	}

	start := time.Now()
	got, err := p.Poll(context.Background())
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if got != 7 {
		t.Errorf("Poll() = %d, want 7", got)
	}
	if elapsed < 20*time.Millisecond {
		t.Errorf("elapsed = %s, want >= 20ms (two retry delays)", elapsed)
	}
	if p.Failures() != 0 {
		t.Errorf("Failures() = %d, want 0 after success", p.Failures())
	}
	if p.Err() != nil {
		t.Errorf("Err() = %v, want nil after success", p.Err())
	}
	if data, ok := p.Data(); !ok || data != 7 {
		t.Errorf("Data() = (%d, %v), want (7, true)", data, ok)
	}
}

// TestPoller_ContinuousPacing verifies that continuous mode re-invokes
// back to back with the 100ms pacing floor.
func TestPoller_ContinuousPacing(t *testing.T) {
	var invocations atomic.Int32

	op := func(ctx context.Context) (int, error) {
		invocations.Add(1)
		return 0, nil
	}

	p, err := NewPoller(op,
		WithMode(ModeContinuous),
		WithPollerLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("NewPoller() error = %v", err)
	}

	p.Start(context.Background())
	time.Sleep(550 * time.Millisecond)
	p.Stop()

	if n := invocations.Load(); n < 4 {
		t.Errorf("invocations in ~500ms = %d, want >= 4", n)
	}
}

// TestPoller_ContinuousSurvivesExhaustion verifies that continuous mode
// surfaces the error but keeps looping with a fresh retry budget.
func TestPoller_ContinuousSurvivesExhaustion(t *testing.T) {
	var attempts atomic.Int32

	op := func(ctx context.Context) (int, error) {
		attempts.Add(1)
		return 0, errors.New("down")
	}

	p, err := NewPoller(op,
		WithMode(ModeContinuous),
		WithMaxRetries(1),
		WithRetryDelay(5*time.Millisecond),
		WithPollInterval(20*time.Millisecond),
		WithPollerLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("NewPoller() error = %v", err)
	}

	p.Start(context.Background())

	// more than one logical invocation's worth of attempts (budget is 2)
	eventually(t, 2*time.Second, func() bool { return attempts.Load() >= 4 },
		"continuous session stopped retrying after exhaustion")

	if !p.Running() {
		t.Error("Running() = false, continuous mode must not halt on failure")
	}
	if p.Err() == nil {
		t.Error("Err() = nil, want surfaced error after exhaustion")
	}
	p.Stop()
}

func TestPoller_StartTwice(t *testing.T) {
	var invocations atomic.Int32

	op := func(ctx context.Context) (int, error) {
		invocations.Add(1)
		return 0, nil
	}

	p, err := NewPoller(op,
		WithPollInterval(time.Hour),
		WithPollerLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("NewPoller() error = %v", err)
	}

	p.Start(context.Background())
	p.Start(context.Background()) // no-op

	eventually(t, time.Second, func() bool { return invocations.Load() >= 1 },
		"immediate invocation did not run")
	time.Sleep(30 * time.Millisecond)
	p.Stop()

	if n := invocations.Load(); n != 1 {
		t.Errorf("invocations = %d, want 1 (second Start must not double the schedule)", n)
	}
}

func TestPoller_StopBeforeStart(t *testing.T) {
	p, err := NewPoller(func(ctx context.Context) (int, error) { return 0, nil },
		WithPollerLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("NewPoller() error = %v", err)
	}

	// must not panic or block
	p.Stop()
	p.Stop()
}

func TestPoller_RestartAfterStop(t *testing.T) {
	var invocations atomic.Int32

	op := func(ctx context.Context) (int, error) {
		invocations.Add(1)
		return 0, nil
	}

	p, err := NewPoller(op,
		WithPollInterval(time.Hour),
		WithPollerLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("NewPoller() error = %v", err)
	}

	p.Start(context.Background())
	eventually(t, time.Second, func() bool { return invocations.Load() == 1 },
		"first session did not poll")
	p.Stop()

	p.Start(context.Background())
	eventually(t, time.Second, func() bool { return invocations.Load() == 2 },
		"restarted session did not poll")
	p.Stop()
}

func TestPoller_ConcurrentStartStop(t *testing.T) {
	op := func(ctx context.Context) (int, error) { return 0, nil }

	for i := 0; i < 50; i++ {
		p, err := NewPoller(op,
			WithPollInterval(10*time.Millisecond),
			WithPollerLogger(testLogger()),
		)
		if err != nil {
			t.Fatalf("NewPoller() error = %v", err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.Start(context.Background())
		}()
		go func() {
			defer wg.Done()
			p.Stop()
		}()
		wg.Wait()
		p.Stop()
	}
}

func TestPoller_AutoStart(t *testing.T) {
	var invocations atomic.Int32

	op := func(ctx context.Context) (int, error) {
		invocations.Add(1)
		return 0, nil
	}

	p, err := NewPoller(op,
		WithAutoStart(context.Background()),
		WithPollInterval(time.Hour),
		WithPollerLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("NewPoller() error = %v", err)
	}
	defer p.Stop()

	if !p.Running() {
		t.Error("Running() = false with WithAutoStart")
	}
	eventually(t, time.Second, func() bool { return invocations.Load() >= 1 },
		"auto-started session did not poll")
}

func TestPoller_PollCancelledContext(t *testing.T) {
	p, err := NewPoller(func(ctx context.Context) (int, error) { return 1, nil },
		WithPollerLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("NewPoller() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Poll(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Poll() error = %v, want context.Canceled", err)
	}
	if _, ok := p.Data(); ok {
		t.Error("Data() set from a cancelled poll")
	}
}
