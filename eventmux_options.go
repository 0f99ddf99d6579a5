package hookloop

import (
	"errors"
	"log/slog"
)

// muxConfig holds mutable state during EventMux construction and
// reconfiguration.
type muxConfig struct {
	defaultCallback func(Event)
	bindings        []Binding
	globalIDs       []string
	globalTags      []string
	globalOptions   *ListenerOptions
	logger          *slog.Logger
}

// clone returns a copy safe to mutate without affecting the original.
func (c muxConfig) clone() muxConfig {
	cp := c
	cp.bindings = append([]Binding(nil), c.bindings...)
	cp.globalIDs = append([]string(nil), c.globalIDs...)
	cp.globalTags = append([]string(nil), c.globalTags...)
	if c.globalOptions != nil {
		o := *c.globalOptions
		cp.globalOptions = &o
	}
	return cp
}

// MuxOption configures an [EventMux], either at construction via
// [NewEventMux] or later via [EventMux.Reconfigure].
//
// Options return an error if validation fails. Built-in options:
// [WithDefaultCallback], [WithBinding], [WithBindings], [WithGlobalIDs],
// [WithGlobalTags], [WithGlobalOptions], [WithMuxLogger].
type MuxOption func(*muxConfig) error

// WithDefaultCallback sets the callback used by bindings that do not
// carry their own. A per-binding callback always wins.
func WithDefaultCallback(fn func(Event)) MuxOption {
	return func(cfg *muxConfig) error {
		cfg.defaultCallback = fn
		return nil
	}
}

// WithBinding appends a single [Binding]. Returns an error if the
// binding's event type is empty.
func WithBinding(b Binding) MuxOption {
	return func(cfg *muxConfig) error {
		if b.Event == "" {
			return errors.New("binding event type cannot be empty")
		}
		cfg.bindings = append(cfg.bindings, b)
		return nil
	}
}

// WithBindings replaces the binding list wholesale.
//
// Use with [EventMux.Reconfigure] to swap the declarative configuration;
// the previous listener set is fully detached before the new list is
// resolved. Returns an error if any binding's event type is empty.
func WithBindings(bindings ...Binding) MuxOption {
	return func(cfg *muxConfig) error {
		for _, b := range bindings {
			if b.Event == "" {
				return errors.New("binding event type cannot be empty")
			}
		}
		cfg.bindings = append([]Binding(nil), bindings...)
		return nil
	}
}

// WithGlobalIDs sets the default id selectors applied when a binding
// has none of its own.
func WithGlobalIDs(ids ...string) MuxOption {
	return func(cfg *muxConfig) error {
		cfg.globalIDs = append([]string(nil), ids...)
		return nil
	}
}

// WithGlobalTags sets the default tag selectors applied when a binding
// has none of its own.
func WithGlobalTags(tags ...string) MuxOption {
	return func(cfg *muxConfig) error {
		cfg.globalTags = append([]string(nil), tags...)
		return nil
	}
}

// WithGlobalOptions sets the default [ListenerOptions] applied when a
// binding does not carry its own. A binding's non-nil Options field wins
// wholesale.
func WithGlobalOptions(opts ListenerOptions) MuxOption {
	return func(cfg *muxConfig) error {
		cfg.globalOptions = &opts
		return nil
	}
}

// WithMuxLogger sets a custom [slog.Logger]. Defaults to [slog.Default].
// Returns an error if the logger is nil.
func WithMuxLogger(logger *slog.Logger) MuxOption {
	return func(cfg *muxConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}
