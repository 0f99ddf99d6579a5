// Package domtest provides an in-memory fake document implementing
// hookloop's Document/Element interfaces, with bookkeeping for
// listener-attachment assertions in tests.
package domtest

import (
	"sync"

	"github.com/tfield/hookloop"
)

// Doc is a fake [hookloop.Document] holding a flat element list.
//
// It counts AddEventListener calls and remove-func invocations across all
// its elements, so tests can verify attach/detach pairing.
type Doc struct {
	mu        sync.Mutex
	elements  []*Elem
	adds      int
	removes   int
	removeLog []string
}

// NewDoc creates a document containing the given elements.
func NewDoc(elems ...*Elem) *Doc {
	d := &Doc{}
	for _, e := range elems {
		d.Append(e)
	}
	return d
}

// Append adds an element to the document.
func (d *Doc) Append(e *Elem) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e.doc = d
	d.elements = append(d.elements, e)
}

// Detach removes the element with the given id from the document. Live
// listeners on the element are unaffected; the element simply stops
// resolving.
func (d *Doc) Detach(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, e := range d.elements {
		if e.id == id {
			d.elements = append(d.elements[:i], d.elements[i+1:]...)
			return
		}
	}
}

// ElementByID implements [hookloop.Document].
func (d *Doc) ElementByID(id string) (hookloop.Element, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.elements {
		if e.id == id && id != "" {
			return e, true
		}
	}
	return nil, false
}

// ElementsByTag implements [hookloop.Document].
func (d *Doc) ElementsByTag(tag string) []hookloop.Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []hookloop.Element
	for _, e := range d.elements {
		if e.tag == tag {
			out = append(out, e)
		}
	}
	return out
}

// AddCalls returns how many AddEventListener calls have been made.
func (d *Doc) AddCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.adds
}

// RemoveCalls returns how many listener removals have been issued.
func (d *Doc) RemoveCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.removes
}

// TotalListeners returns the number of live listeners across all
// elements, including detached ones.
func (d *Doc) TotalListeners() int {
	d.mu.Lock()
	elems := append([]*Elem(nil), d.elements...)
	d.mu.Unlock()

	total := 0
	for _, e := range elems {
		total += e.ListenerCount()
	}
	return total
}

func (d *Doc) countAdd() {
	d.mu.Lock()
	d.adds++
	d.mu.Unlock()
}

func (d *Doc) countRemove(label string) {
	d.mu.Lock()
	d.removes++
	d.removeLog = append(d.removeLog, label)
	d.mu.Unlock()
}

// RemoveLog returns the labels of issued removals ("event@id" or
// "event@<tag>") in the order they happened.
func (d *Doc) RemoveLog() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.removeLog...)
}

// listenerReg is one live registration on an element.
type listenerReg struct {
	event string
	opts  hookloop.ListenerOptions
	fn    func(hookloop.Event)
}

// Elem is a fake [hookloop.Element].
type Elem struct {
	id  string
	tag string
	doc *Doc

	mu        sync.Mutex
	listeners map[int]listenerReg
	nextReg   int
	failWith  map[string]error
}

// NewElem creates an element with the given id (may be empty) and tag.
func NewElem(id, tag string) *Elem {
	return &Elem{
		id:        id,
		tag:       tag,
		listeners: make(map[int]listenerReg),
		failWith:  make(map[string]error),
	}
}

// FailWith makes AddEventListener return err for the given event type.
func (e *Elem) FailWith(event string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failWith[event] = err
}

// ID implements [hookloop.Element].
func (e *Elem) ID() string { return e.id }

// TagName implements [hookloop.Element].
func (e *Elem) TagName() string { return e.tag }

// AddEventListener implements [hookloop.Element]. The returned remove
// func is idempotent.
func (e *Elem) AddEventListener(eventType string, opts hookloop.ListenerOptions, fn func(hookloop.Event)) (func(), error) {
	e.mu.Lock()
	if err, ok := e.failWith[eventType]; ok {
		e.mu.Unlock()
		return nil, err
	}
	reg := e.nextReg
	e.nextReg++
	e.listeners[reg] = listenerReg{event: eventType, opts: opts, fn: fn}
	e.mu.Unlock()

	if e.doc != nil {
		e.doc.countAdd()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.removeReg(reg)
		})
	}, nil
}

func (e *Elem) removeReg(reg int) {
	e.mu.Lock()
	l, ok := e.listeners[reg]
	if ok {
		delete(e.listeners, reg)
	}
	e.mu.Unlock()
	if ok && e.doc != nil {
		e.doc.countRemove(l.event + "@" + e.label())
	}
}

func (e *Elem) label() string {
	if e.id != "" {
		return e.id
	}
	return "<" + e.tag + ">"
}

// Options returns the listener options of every live listener for the
// given event type on this element.
func (e *Elem) Options(event string) []hookloop.ListenerOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []hookloop.ListenerOptions
	for _, l := range e.listeners {
		if l.event == event {
			out = append(out, l.opts)
		}
	}
	return out
}

// ListenerCount returns the number of live listeners on this element.
func (e *Elem) ListenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// Dispatch synthesizes an event of the given type and invokes every
// matching listener. Listeners registered with Once are removed after
// firing. Returns the number of listeners invoked.
func (e *Elem) Dispatch(eventType string) int {
	e.mu.Lock()
	var fire []int
	for reg, l := range e.listeners {
		if l.event == eventType {
			fire = append(fire, reg)
		}
	}
	regs := make([]listenerReg, 0, len(fire))
	var onceRegs []int
	for _, reg := range fire {
		l := e.listeners[reg]
		regs = append(regs, l)
		if l.opts.Once {
			onceRegs = append(onceRegs, reg)
		}
	}
	e.mu.Unlock()

	ev := &event{typ: eventType, target: e}
	for _, l := range regs {
		l.fn(ev)
	}
	for _, reg := range onceRegs {
		e.removeReg(reg)
	}
	return len(regs)
}

// event is the fake [hookloop.Event].
type event struct {
	typ    string
	target hookloop.Element
}

func (ev *event) Type() string             { return ev.typ }
func (ev *event) Target() hookloop.Element { return ev.target }
