// CLAUDE:SUMMARY In-process host document over an x/net/html tree with cascadia selectors; drives engine tests and snapshot replay.
// Package memdoc is an in-memory hostdoc.Document built from HTML.
//
// Layout is declared, not computed: an element's box comes from its
// data-rect="x y width height" attribute, falling back to the document's
// default box. Visibility honours the hidden attribute and inline
// visibility:hidden / display:none on the element or any ancestor.
//
// The mutation helpers (Append, Remove, Press, Click, Unload) emit the same
// events a browser binding would, which makes memdoc the harness for the
// capture engine and a replay target for saved page snapshots.
package memdoc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/gjump/hostdoc"
)

// Document is an in-memory host document. It is safe for concurrent use.
type Document struct {
	mu         sync.Mutex
	root       *html.Node
	viewport   hostdoc.Rect
	defaultBox hostdoc.Rect
	listeners  map[*html.Node]map[hostdoc.EventKind]bool
	events     chan hostdoc.Event
	notices    []string
	scrolled   []*html.Node
	closed     bool
}

// Option configures a Document.
type Option func(*Document)

// WithViewport sets the viewport. Default: 1280x800.
func WithViewport(r hostdoc.Rect) Option { return func(d *Document) { d.viewport = r } }

// WithDefaultBox sets the box of elements without data-rect.
// Default: x=0 y=400 600x24.
func WithDefaultBox(r hostdoc.Rect) Option { return func(d *Document) { d.defaultBox = r } }

// Parse builds a Document from a full HTML document.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("memdoc: parse: %w", err)
	}
	d := &Document{
		root:       root,
		viewport:   hostdoc.Rect{Width: 1280, Height: 800},
		defaultBox: hostdoc.Rect{X: 0, Y: 400, Width: 600, Height: 24},
		listeners:  make(map[*html.Node]map[hostdoc.EventKind]bool),
		events:     make(chan hostdoc.Event, 1024),
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// MustParseString is Parse for literals in tests and fixtures.
func MustParseString(s string, opts ...Option) *Document {
	d, err := Parse(strings.NewReader(s), opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// QueryAll implements hostdoc.Document.
func (d *Document) QueryAll(_ context.Context, selector string) ([]hostdoc.Node, error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("memdoc: selector %q: %w", selector, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	matches := cascadia.QueryAll(d.root, sel)
	out := make([]hostdoc.Node, len(matches))
	for i, m := range matches {
		out[i] = node{doc: d, n: m}
	}
	return out, nil
}

// Sample implements hostdoc.Document.
func (d *Document) Sample(ctx context.Context, selector string, f hostdoc.Filter) ([]hostdoc.Sample, error) {
	nodes, err := d.QueryAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	out := make([]hostdoc.Sample, len(nodes))
	for i, n := range nodes {
		text := n.Text()
		label := strings.TrimSpace(text)
		if label == "" {
			label = n.Attr("aria-label")
		}
		out[i] = hostdoc.Sample{
			Node:    n,
			Text:    text,
			Value:   n.Value(),
			Label:   label,
			Box:     n.Box(),
			Visible: n.Visible(),
		}
	}
	return f.Apply(out), nil
}

// Query returns the first match, or nil.
func (d *Document) Query(selector string) hostdoc.Node {
	nodes, err := d.QueryAll(context.Background(), selector)
	if err != nil || len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// Viewport implements hostdoc.Document.
func (d *Document) Viewport(context.Context) (hostdoc.Rect, error) {
	return d.viewport, nil
}

// Listen implements hostdoc.Document.
func (d *Document) Listen(_ context.Context, n hostdoc.Node, kind hostdoc.EventKind) error {
	hn, err := d.unwrap(n)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listeners[hn] == nil {
		d.listeners[hn] = make(map[hostdoc.EventKind]bool)
	}
	d.listeners[hn][kind] = true
	return nil
}

// Events implements hostdoc.Document.
func (d *Document) Events() <-chan hostdoc.Event { return d.events }

// ScrollIntoView implements hostdoc.Document by recording the target.
func (d *Document) ScrollIntoView(_ context.Context, n hostdoc.Node) error {
	hn, err := d.unwrap(n)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.scrolled = append(d.scrolled, hn)
	d.mu.Unlock()
	return nil
}

// SetHighlight implements hostdoc.Document.
func (d *Document) SetHighlight(_ context.Context, n hostdoc.Node, on bool) error {
	return n.SetAttr("class", hostdoc.ToggleClass(n.Attr("class"), hostdoc.HighlightClass, on))
}

// Notify implements hostdoc.Document by recording the notice.
func (d *Document) Notify(_ context.Context, msg string) error {
	d.mu.Lock()
	d.notices = append(d.notices, msg)
	d.mu.Unlock()
	return nil
}

// Notices returns the notices shown so far.
func (d *Document) Notices() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.notices...)
}

// LastScrolled returns the most recent ScrollIntoView target, or nil.
func (d *Document) LastScrolled() hostdoc.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.scrolled) == 0 {
		return nil
	}
	return node{doc: d, n: d.scrolled[len(d.scrolled)-1]}
}

// Append parses fragment in the context of parent, appends the resulting
// nodes, and emits one EventInsert per top-level element added.
func (d *Document) Append(parent hostdoc.Node, fragment string) ([]hostdoc.Node, error) {
	pn, err := d.unwrap(parent)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	nodes, err := html.ParseFragment(strings.NewReader(fragment), pn)
	if err != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("memdoc: parse fragment: %w", err)
	}
	var added []hostdoc.Node
	for _, c := range nodes {
		pn.AppendChild(c)
		if c.Type == html.ElementNode {
			added = append(added, node{doc: d, n: c})
		}
	}
	d.mu.Unlock()

	for _, n := range added {
		d.emit(hostdoc.Event{Kind: hostdoc.EventInsert, Node: n})
	}
	return added, nil
}

// Remove detaches n from the tree.
func (d *Document) Remove(n hostdoc.Node) error {
	hn, err := d.unwrap(n)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if hn.Parent != nil {
		hn.Parent.RemoveChild(hn)
	}
	delete(d.listeners, hn)
	return nil
}

// SetValue replaces the editable content of an input, text area or
// contenteditable element.
func (d *Document) SetValue(n hostdoc.Node, value string) error {
	hn, err := d.unwrap(n)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if hn.DataAtom == atom.Input {
		setAttr(hn, "value", value)
		return nil
	}
	for c := hn.FirstChild; c != nil; {
		next := c.NextSibling
		hn.RemoveChild(c)
		c = next
	}
	hn.AppendChild(&html.Node{Type: html.TextNode, Data: value})
	return nil
}

// Press emits an EventKey when n has a key listener, as a browser would only
// deliver to instrumented elements.
func (d *Document) Press(n hostdoc.Node, key string, shift bool) bool {
	if !d.listening(n, hostdoc.EventKey) {
		return false
	}
	d.emit(hostdoc.Event{Kind: hostdoc.EventKey, Node: n, Key: key, Shift: shift})
	return true
}

// Click emits an EventClick when n has a click listener.
func (d *Document) Click(n hostdoc.Node) bool {
	if !d.listening(n, hostdoc.EventClick) {
		return false
	}
	d.emit(hostdoc.Event{Kind: hostdoc.EventClick, Node: n})
	return true
}

// Unload emits EventUnload.
func (d *Document) Unload() {
	d.emit(hostdoc.Event{Kind: hostdoc.EventUnload})
}

// Close ends the event feed.
func (d *Document) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
}

func (d *Document) listening(n hostdoc.Node, kind hostdoc.EventKind) bool {
	hn, err := d.unwrap(n)
	if err != nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listeners[hn][kind]
}

// ListenerCount returns the number of listeners attached to n.
func (d *Document) ListenerCount(n hostdoc.Node) int {
	hn, err := d.unwrap(n)
	if err != nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners[hn])
}

// emit queues ev. A full feed drops the event, as a saturated binding would.
func (d *Document) emit(ev hostdoc.Event) {
	ev.At = time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.events <- ev:
	default:
	}
}

func (d *Document) unwrap(n hostdoc.Node) (*html.Node, error) {
	mn, ok := n.(node)
	if !ok || mn.doc != d {
		return nil, fmt.Errorf("memdoc: node %T does not belong to this document", n)
	}
	return mn.n, nil
}

// node is a comparable handle: two handles on the same element are ==.
type node struct {
	doc *Document
	n   *html.Node
}

func (n node) Tag() string { return n.n.Data }

func (n node) Attr(name string) string {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return getAttr(n.n, name)
}

func (n node) SetAttr(name, value string) error {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	setAttr(n.n, name, value)
	return nil
}

func (n node) Text() string {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return innerText(n.n)
}

func (n node) Value() string {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	switch n.n.DataAtom {
	case atom.Input:
		return getAttr(n.n, "value")
	case atom.Textarea:
		return textContent(n.n)
	}
	return innerText(n.n)
}

func (n node) Box() hostdoc.Rect {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	if r, ok := parseRect(getAttr(n.n, "data-rect")); ok {
		return r
	}
	return n.doc.defaultBox
}

func (n node) Visible() bool {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	for p := n.n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if p.DataAtom == atom.Head {
			return false
		}
		if hasAttr(p, "hidden") {
			return false
		}
		style := strings.ReplaceAll(strings.ToLower(getAttr(p, "style")), " ", "")
		if strings.Contains(style, "visibility:hidden") || strings.Contains(style, "display:none") {
			return false
		}
	}
	return attached(n.n)
}

func (n node) Parent() hostdoc.Node {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	p := n.n.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return node{doc: n.doc, n: p}
}

func (n node) HTML() string {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, n.n); err != nil {
		return ""
	}
	return buf.String()
}

func attached(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.DocumentNode {
			return true
		}
	}
	return false
}

func getAttr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

// parseRect reads "x y width height".
func parseRect(s string) (hostdoc.Rect, bool) {
	f := strings.Fields(strings.ReplaceAll(s, ",", " "))
	if len(f) != 4 {
		return hostdoc.Rect{}, false
	}
	var v [4]float64
	for i, p := range f {
		x, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return hostdoc.Rect{}, false
		}
		v[i] = x
	}
	return hostdoc.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, true
}
