package hookloop

// ListenerOptions carries the capture/passive/once flags passed through
// to [Element.AddEventListener]. The zero value requests a plain
// bubbling-phase listener.
type ListenerOptions struct {
	// Capture attaches the listener for the capture phase.
	Capture bool

	// Passive promises the callback will not cancel the event's default
	// action, allowing the platform to optimize dispatch.
	Passive bool

	// Once removes the listener automatically after its first invocation.
	Once bool
}

// Event is the value delivered to listener callbacks.
type Event interface {
	// Type returns the event's type name (e.g. "click").
	Type() string

	// Target returns the element the listener was attached to.
	Target() Element
}

// Element is a single node of the host document that listeners can be
// attached to.
//
// AddEventListener registers fn for events of the given type and returns
// a remove function that detaches exactly that registration. Registration
// failures (for example, an event type the platform rejects) are returned
// as an error and are not retried.
type Element interface {
	// ID returns the element's identifier, or "" if it has none.
	ID() string

	// TagName returns the element's tag name (e.g. "button").
	TagName() string

	// AddEventListener attaches fn for the given event type with the
	// given options.
	AddEventListener(eventType string, opts ListenerOptions, fn func(Event)) (remove func(), err error)
}

// Document is the minimal live-document surface the [EventMux] resolves
// selectors against.
type Document interface {
	// ElementByID returns the element with the given id, if any.
	ElementByID(id string) (Element, bool)

	// ElementsByTag returns all elements with the given tag name.
	ElementsByTag(tag string) []Element
}
