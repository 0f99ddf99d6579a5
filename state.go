package hookloop

import "context"

// Operation is a caller-supplied asynchronous operation executed by a
// [Poller]. It should honor ctx cancellation; if it does not, any result
// that settles after the poller was stopped is discarded.
type Operation[T any] func(ctx context.Context) (T, error)

// Mode selects the scheduling strategy of a [Poller].
type Mode int

const (
	// ModeFixedInterval re-invokes the operation every poll interval.
	// Ticks that fire while an attempt is still in flight are skipped, so
	// overlapping invocations are never started. Exhausting the retry
	// budget stops the session.
	ModeFixedInterval Mode = iota

	// ModeContinuous re-invokes the operation immediately after the prior
	// attempt settles, with a small pacing delay (100ms or the configured
	// interval, whichever is smaller). Exhausting the retry budget
	// surfaces the error but the session keeps looping with a fresh
	// budget per logical tick.
	ModeContinuous
)

// String returns the mode's name. Implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeFixedInterval:
		return "fixed-interval"
	case ModeContinuous:
		return "continuous"
	default:
		return "unknown"
	}
}

// State is a consistent snapshot of a [Poller]'s observable state.
//
// All fields are read under the poller's lock, so a single snapshot is
// internally consistent even while the session is running.
type State[T any] struct {
	// Data is the last successful result. Only meaningful when HasData
	// is true.
	Data T

	// HasData reports whether any attempt has succeeded yet.
	HasData bool

	// Err is the last surfaced error. It is set only once a logical
	// invocation has exhausted its retry budget, and cleared by the next
	// success or by [Poller.Reset].
	Err error

	// Loading reports whether a logical invocation (including its
	// retries) is currently in progress.
	Loading bool

	// Running reports whether the session's schedule is active.
	Running bool

	// Failures is the consecutive failure count of the current logical
	// invocation. Reset to zero on success and on budget exhaustion.
	Failures int
}
