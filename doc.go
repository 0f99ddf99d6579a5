// Package hookloop provides lifecycle-aware state utilities for host UI
// code: a retrying polling engine and a delegated event multiplexer.
//
// Both components are independent leaf libraries. A host instantiates one
// or more of each, supplies callbacks and configuration, and reacts to the
// returned state (for polling) or to callback invocations (for the event
// multiplexer, which is side-effect only).
//
// # Polling Engine
//
// [Poller] runs a caller-supplied asynchronous [Operation] on a schedule,
// with bounded retry-with-delay on failure and full cancellation on stop:
//
//	op, _ := hookloop.NewHTTPOperation("https://api.example.com/health")
//	p, _ := hookloop.NewPoller(op,
//	    hookloop.WithPollInterval(5*time.Second),
//	    hookloop.WithMaxRetries(3),
//	    hookloop.WithOnError(func(err error, attempt int) {
//	        log.Printf("attempt %d failed: %v", attempt, err)
//	    }),
//	)
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT)
//	defer cancel()
//	p.Start(ctx)
//	defer p.Stop()
//
// Two scheduling modes are supported. [ModeFixedInterval] re-invokes the
// operation every interval; [ModeContinuous] re-invokes back to back with
// a small pacing delay and never halts on failure.
//
// # Event Multiplexer
//
// [EventMux] takes a declarative list of (event, selector) bindings,
// resolves target elements against a [Document], and keeps native
// listeners attached in sync with configuration changes:
//
//	mux, err := hookloop.NewEventMux(doc,
//	    hookloop.WithDefaultCallback(onClick),
//	    hookloop.WithBinding(hookloop.Binding{Event: "click", Tags: []string{"button"}}),
//	)
//	defer mux.Close()
//
// Every reconfiguration fully detaches the previous listener set before
// re-resolving and re-attaching; no listener survives [EventMux.Close].
//
// # Supporting pieces
//
// [Cache] and [Cached] provide an injectable memoizing store for
// operations. [NewHTTPOperation] adapts an HTTP endpoint into an
// [Operation] suitable for polling. The cmd/hookloop CLI runs pollers
// defined in a YAML file (see the config package).
package hookloop
