package hookloop

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ErrMuxClosed is returned by [EventMux.Reconfigure] and
// [EventMux.Refresh] after [EventMux.Close].
var ErrMuxClosed = errors.New("event mux is closed")

// Binding is one declarative (event type, target selector) entry.
//
// Target elements are resolved from IDs and Tags: with only IDs the
// elements matching those ids, with only Tags the elements matching those
// tag names, and with both the intersection: only elements satisfying
// both selectors get a listener. A binding with neither selector (and no
// usable global default) is silently inert.
type Binding struct {
	// Event is the event type to listen for (e.g. "click").
	Event string

	// IDs selects target elements by id. Empty falls back to the
	// mux-wide default ids.
	IDs []string

	// Tags selects target elements by tag name. Empty falls back to the
	// mux-wide default tags.
	Tags []string

	// Callback overrides the mux-wide default callback for this binding.
	Callback func(Event)

	// Options overrides the mux-wide default listener options wholesale
	// when non-nil.
	Options *ListenerOptions
}

// attachment records one live listener for teardown bookkeeping.
type attachment struct {
	event  string
	elem   Element
	remove func()
}

// EventMux attaches native event listeners per a declarative binding
// list and keeps the attachment set in sync with configuration changes.
//
// The mux is side-effect only: it exposes nothing beyond invoking the
// configured callbacks when matching events fire. Any configuration
// change ([EventMux.Reconfigure]) or document change signalled via
// [EventMux.Refresh] fully detaches every previously attached listener,
// in reverse attachment order, before re-resolving and re-attaching.
// There is deliberately no incremental diffing; configuration changes are
// expected to be rare relative to event traffic.
//
// All methods are safe for concurrent use.
type EventMux struct {
	doc    Document
	logger *slog.Logger

	mu       sync.Mutex
	cfg      muxConfig
	attached []attachment
	closed   bool
}

// NewEventMux creates an [EventMux] against doc and immediately resolves
// and attaches the configured bindings.
//
// Listener-registration failures surface as the returned error; any
// listeners attached before the failure are removed again, so a non-nil
// error means no listeners are live. Returns an error if doc is nil or
// any option is invalid.
func NewEventMux(doc Document, opts ...MuxOption) (*EventMux, error) {
	if doc == nil {
		return nil, errors.New("document cannot be nil")
	}

	var cfg muxConfig
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &EventMux{
		doc:    doc,
		logger: logger.With("mux_id", uuid.NewString()),
		cfg:    cfg,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.attachLocked(); err != nil {
		return nil, err
	}
	return m, nil
}

// Reconfigure replaces parts of the configuration and rebinds.
//
// The given options are applied on top of the current configuration.
// Every previously attached listener is removed first; the new
// configuration is then resolved and attached from scratch. On a
// registration failure the partial attachment set is rolled back and the
// mux is left with no live listeners.
func (m *EventMux) Reconfigure(opts ...MuxOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrMuxClosed
	}

	// validate the new configuration before tearing anything down
	next := m.cfg.clone()
	for _, opt := range opts {
		if err := opt(&next); err != nil {
			return err
		}
	}

	m.teardownLocked()
	m.cfg = next
	return m.attachLocked()
}

// Refresh re-resolves the current configuration against the document.
//
// Use after document mutations (elements added or removed) to bring the
// attachment set back in sync. Equivalent to Reconfigure with no changes.
func (m *EventMux) Refresh() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrMuxClosed
	}
	m.teardownLocked()
	return m.attachLocked()
}

// Close removes every attached listener, in reverse attachment order,
// and marks the mux closed. Idempotent.
func (m *EventMux) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
	m.closed = true
}

// ListenerCount returns the number of currently attached listeners.
func (m *EventMux) ListenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attached)
}

// attachLocked resolves every binding and attaches its listeners.
// On error the partial set is rolled back. Caller holds m.mu.
func (m *EventMux) attachLocked() error {
	for _, b := range m.cfg.bindings {
		callback := b.Callback
		if callback == nil {
			callback = m.cfg.defaultCallback
		}
		if callback == nil {
			m.logger.Debug("binding has no callback, skipping", "event", b.Event)
			continue
		}

		ids := b.IDs
		if len(ids) == 0 {
			ids = m.cfg.globalIDs
		}
		tags := b.Tags
		if len(tags) == 0 {
			tags = m.cfg.globalTags
		}

		var opts ListenerOptions
		switch {
		case b.Options != nil:
			opts = *b.Options
		case m.cfg.globalOptions != nil:
			opts = *m.cfg.globalOptions
		}

		targets := resolveTargets(m.doc, ids, tags)
		for _, el := range targets {
			remove, err := el.AddEventListener(b.Event, opts, callback)
			if err != nil {
				m.teardownLocked()
				return fmt.Errorf("attach %q listener to element %q: %w", b.Event, elementLabel(el), err)
			}
			m.attached = append(m.attached, attachment{event: b.Event, elem: el, remove: remove})
		}
	}

	m.logger.Debug("bindings attached",
		"bindings", len(m.cfg.bindings),
		"listeners", len(m.attached),
	)
	return nil
}

// teardownLocked removes all attached listeners in reverse attachment
// order. Caller holds m.mu.
func (m *EventMux) teardownLocked() {
	for i := len(m.attached) - 1; i >= 0; i-- {
		m.attached[i].remove()
	}
	m.attached = nil
}

// resolveTargets computes the element set for one binding.
//
// With only ids: the elements matching those ids. With only tags: the
// union of elements matching each tag. With both: the intersection,
// id-resolved elements whose tag name is in the tag set. With neither:
// nil. Duplicate selectors are ignored; order follows the selector lists.
func resolveTargets(doc Document, ids, tags []string) []Element {
	switch {
	case len(ids) > 0 && len(tags) > 0:
		tagSet := make(map[string]struct{}, len(tags))
		for _, t := range tags {
			tagSet[t] = struct{}{}
		}
		var out []Element
		for _, id := range dedupe(ids) {
			el, ok := doc.ElementByID(id)
			if !ok {
				continue
			}
			if _, match := tagSet[el.TagName()]; match {
				out = append(out, el)
			}
		}
		return out

	case len(ids) > 0:
		var out []Element
		for _, id := range dedupe(ids) {
			if el, ok := doc.ElementByID(id); ok {
				out = append(out, el)
			}
		}
		return out

	case len(tags) > 0:
		var out []Element
		for _, tag := range dedupe(tags) {
			out = append(out, doc.ElementsByTag(tag)...)
		}
		return out

	default:
		return nil
	}
}

// dedupe returns s with duplicates removed, preserving first-seen order.
func dedupe(s []string) []string {
	seen := make(map[string]struct{}, len(s))
	out := make([]string, 0, len(s))
	for _, v := range s {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// elementLabel describes an element for error messages.
func elementLabel(el Element) string {
	if id := el.ID(); id != "" {
		return "#" + id
	}
	return "<" + el.TagName() + ">"
}
