package config

import (
	"fmt"
	"log/slog"

	"github.com/tfield/hookloop"
)

// Runner pairs a configured name with its constructed poller.
type Runner struct {
	Name   string
	Poller *hookloop.Poller[hookloop.FetchResult]
}

// Hooks carries the callbacks wired into every built poller. Either
// field may be nil.
type Hooks struct {
	// OnSuccess is invoked with the poller's name and each successful
	// result.
	OnSuccess func(name string, result hookloop.FetchResult)

	// OnError is invoked with the poller's name, the error, and the
	// attempt count after each failed attempt.
	OnError func(name string, err error, attempt int)

	// Logger is passed to every poller. Nil uses slog.Default.
	Logger *slog.Logger
}

// BuildPollers converts parsed configuration into SDK pollers.
//
// The returned pollers are not started; callers start and stop them.
func BuildPollers(cfg *Config, hooks Hooks) ([]Runner, error) {
	runners := make([]Runner, 0, len(cfg.Pollers))
	for _, pc := range cfg.Pollers {
		runner, err := buildPoller(cfg, pc, hooks)
		if err != nil {
			return nil, err
		}
		runners = append(runners, runner)
	}
	return runners, nil
}

// buildPoller converts a single PollerConfig into a Runner.
func buildPoller(cfg *Config, pc PollerConfig, hooks Hooks) (Runner, error) {
	var httpOpts []hookloop.HTTPOption
	if pc.Method != "" {
		httpOpts = append(httpOpts, hookloop.WithHTTPMethod(pc.Method))
	}
	if pc.Timeout != 0 {
		httpOpts = append(httpOpts, hookloop.WithHTTPTimeout(pc.Timeout.Duration()))
	}
	for k, v := range pc.Headers {
		httpOpts = append(httpOpts, hookloop.WithHTTPHeaders(k, v))
	}
	if pc.RequireSuccess {
		httpOpts = append(httpOpts, hookloop.WithRequireSuccess())
	}

	op, err := hookloop.NewHTTPOperation(pc.URL, httpOpts...)
	if err != nil {
		return Runner{}, fmt.Errorf("poller %q: %w", pc.Name, err)
	}

	interval := cfg.PollInterval.Duration()
	if pc.Interval != 0 {
		interval = pc.Interval.Duration()
	}

	pollerOpts := []hookloop.PollerOption{
		hookloop.WithPollInterval(interval),
	}
	if pc.Mode == "continuous" {
		pollerOpts = append(pollerOpts, hookloop.WithMode(hookloop.ModeContinuous))
	}
	if pc.MaxRetries != nil {
		pollerOpts = append(pollerOpts, hookloop.WithMaxRetries(*pc.MaxRetries))
	}
	if pc.RetryDelay != 0 {
		pollerOpts = append(pollerOpts, hookloop.WithRetryDelay(pc.RetryDelay.Duration()))
	}
	if hooks.Logger != nil {
		pollerOpts = append(pollerOpts, hookloop.WithPollerLogger(hooks.Logger))
	}

	name := pc.Name
	if hooks.OnSuccess != nil {
		onSuccess := hooks.OnSuccess
		pollerOpts = append(pollerOpts, hookloop.WithOnSuccess(func(r hookloop.FetchResult) {
			onSuccess(name, r)
		}))
	}
	if hooks.OnError != nil {
		onError := hooks.OnError
		pollerOpts = append(pollerOpts, hookloop.WithOnError(func(err error, attempt int) {
			onError(name, err, attempt)
		}))
	}

	p, err := hookloop.NewPoller(op, pollerOpts...)
	if err != nil {
		return Runner{}, fmt.Errorf("poller %q: %w", pc.Name, err)
	}
	return Runner{Name: name, Poller: p}, nil
}
