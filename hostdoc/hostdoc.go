// Package hostdoc is the capability boundary between the capture engine and
// the live document it observes. The engine never sees markup: it sees nodes
// that can report text, geometry, visibility and attributes, and a document
// that can be queried by CSS selector and emits submission and insertion
// events.
//
// Two bindings exist: hostdoc/roddoc drives a real page over CDP, and
// hostdoc/memdoc is an in-process tree parsed from HTML.
package hostdoc

import (
	"context"
	"strings"
	"time"
)

// Attributes the engine writes into the host document.
const (
	// AttrIdentity carries a node's identity tag.
	AttrIdentity = "data-gj-id"
	// AttrListening marks an element already instrumented with a listener.
	AttrListening = "data-gj-listen"
	// HighlightClass is toggled on a relocated node.
	HighlightClass = "gj-highlight"
)

// Rect is an element's bounding box in viewport coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Top is the distance from the top of the viewport.
func (r Rect) Top() float64 { return r.Y }

// Node is one element of the host document. Getters never fail: a node that
// has been detached, or whose binding call errors, reports zero values.
type Node interface {
	// Tag is the lower-case element name.
	Tag() string
	// Attr returns an attribute value, "" when absent.
	Attr(name string) string
	// SetAttr sets an attribute on the live element.
	SetAttr(name, value string) error
	// Text is the rendered text (innerText).
	Text() string
	// Value is the editable content: the value of inputs and text areas,
	// the rendered text of contenteditable elements.
	Value() string
	// Box is the bounding client rect.
	Box() Rect
	// Visible is false when the computed visibility is hidden.
	Visible() bool
	// Parent is the parent element, nil at the root.
	Parent() Node
	// HTML is the serialised outer HTML.
	HTML() string
}

// EventKind identifies a host event.
type EventKind string

const (
	EventKey    EventKind = "key"    // keydown on an instrumented composer
	EventClick  EventKind = "click"  // click on an instrumented trigger
	EventInsert EventKind = "insert" // element inserted under body
	EventUnload EventKind = "unload" // page about to be discarded
)

// Event is one notification from the host document.
type Event struct {
	Kind  EventKind
	Node  Node
	Key   string // EventKey: KeyboardEvent.key
	Shift bool   // EventKey: line-break modifier held
	At    time.Time
}

// Document is a live host document.
type Document interface {
	// QueryAll returns matching elements in document order.
	QueryAll(ctx context.Context, selector string) ([]Node, error)
	// Sample reads every match of selector that passes f, with its text
	// and geometry, in a single pass over the document.
	Sample(ctx context.Context, selector string, f Filter) ([]Sample, error)
	// Viewport is the visible area; only Height is used by the engine.
	Viewport(ctx context.Context) (Rect, error)
	// Listen attaches a listener of the given kind (EventKey or EventClick)
	// to n. Events flow through Events.
	Listen(ctx context.Context, n Node, kind EventKind) error
	// Events is the host event feed. It is closed when the document goes away.
	Events() <-chan Event
	// ScrollIntoView centres n in the viewport.
	ScrollIntoView(ctx context.Context, n Node) error
	// SetHighlight toggles HighlightClass on n.
	SetHighlight(ctx context.Context, n Node, on bool) error
	// Notify shows a user-visible notice without blocking the caller.
	Notify(ctx context.Context, msg string) error
}

// HasClass reports whether n's class attribute contains class as a token.
func HasClass(n Node, class string) bool {
	for _, c := range strings.Fields(n.Attr("class")) {
		if c == class {
			return true
		}
	}
	return false
}

// ToggleClass returns the class attribute value with class added or removed.
func ToggleClass(current, class string, on bool) string {
	fields := strings.Fields(current)
	out := fields[:0]
	for _, c := range fields {
		if c != class {
			out = append(out, c)
		}
	}
	if on {
		out = append(out, class)
	}
	return strings.Join(out, " ")
}
