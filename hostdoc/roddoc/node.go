package roddoc

import (
	"fmt"
	"strconv"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/gjump/hostdoc"
)

// node is a hostdoc.Node over a remote element. Nodes built from a bridge
// ref resolve their element handle on first use. Getters report zero values
// when the element is detached or the call fails.
type node struct {
	doc *Document
	el  *rod.Element
	ref string

	// snap holds what the bridge read when the node was reported; getters
	// answer from it without a round trip.
	snap *snapshot
}

// snapshot is the text, geometry and identifying attributes of an element
// as read in the page.
type snapshot struct {
	text  string
	box   hostdoc.Rect
	attrs map[string]string
}

func (n *node) element() (*rod.Element, error) {
	if n.el != nil {
		return n.el, nil
	}
	if n.ref == "" {
		return nil, fmt.Errorf("roddoc: node has neither handle nor ref")
	}
	els, err := n.doc.page.Context(n.doc.ctx).Elements("[" + refAttr + "=" + strconv.Quote(n.ref) + "]")
	if err != nil {
		return nil, fmt.Errorf("roddoc: resolve %s: %w", n.ref, err)
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("roddoc: element %s is gone", n.ref)
	}
	n.el = els[0]
	return n.el, nil
}

func (n *node) eval(js string, args ...interface{}) *proto.RuntimeRemoteObject {
	el, err := n.element()
	if err != nil {
		n.doc.logger.Debug("roddoc: element unavailable", "error", err)
		return nil
	}
	res, err := el.Context(n.doc.ctx).Eval(js, args...)
	if err != nil {
		n.doc.logger.Debug("roddoc: element eval failed", "error", err)
		return nil
	}
	return res
}

func (n *node) str(js string, args ...interface{}) string {
	if res := n.eval(js, args...); res != nil {
		return res.Value.Str()
	}
	return ""
}

func (n *node) Tag() string {
	return n.str(`function () { return this.tagName.toLowerCase(); }`)
}

func (n *node) Attr(name string) string {
	if n.snap != nil {
		if v, ok := n.snap.attrs[name]; ok {
			return v
		}
	}
	el, err := n.element()
	if err != nil {
		return ""
	}
	v, err := el.Context(n.doc.ctx).Attribute(name)
	if err != nil || v == nil {
		return ""
	}
	return *v
}

func (n *node) SetAttr(name, value string) error {
	el, err := n.element()
	if err != nil {
		return err
	}
	if _, err := el.Context(n.doc.ctx).Eval(`function (k, v) { this.setAttribute(k, v); }`, name, value); err != nil {
		return err
	}
	if n.snap != nil {
		n.snap.attrs[name] = value
	}
	return nil
}

func (n *node) Text() string {
	if n.snap != nil {
		return n.snap.text
	}
	return n.str(`function () { return this.innerText || ''; }`)
}

func (n *node) Value() string {
	return n.str(`function () {
		if (this.tagName === 'INPUT' || this.tagName === 'TEXTAREA') return this.value || '';
		return this.innerText || '';
	}`)
}

func (n *node) Box() hostdoc.Rect {
	if n.snap != nil {
		return n.snap.box
	}
	res := n.eval(`function () {
		const r = this.getBoundingClientRect();
		return {x: r.x, y: r.y, width: r.width, height: r.height};
	}`)
	if res == nil {
		return hostdoc.Rect{}
	}
	return hostdoc.Rect{
		X:      res.Value.Get("x").Num(),
		Y:      res.Value.Get("y").Num(),
		Width:  res.Value.Get("width").Num(),
		Height: res.Value.Get("height").Num(),
	}
}

func (n *node) Visible() bool {
	res := n.eval(`function () { return this.isConnected && getComputedStyle(this).visibility !== 'hidden'; }`)
	return res != nil && res.Value.Bool()
}

func (n *node) Parent() hostdoc.Node {
	el, err := n.element()
	if err != nil {
		return nil
	}
	p, err := el.Context(n.doc.ctx).Parent()
	if err != nil || p == nil {
		return nil
	}
	return &node{doc: n.doc, el: p}
}

func (n *node) HTML() string {
	el, err := n.element()
	if err != nil {
		return ""
	}
	html, err := el.Context(n.doc.ctx).HTML()
	if err != nil {
		return ""
	}
	return html
}

// forget drops a cached attribute after the page changed it behind SetAttr.
func (n *node) forget(name string) {
	if n.snap != nil {
		delete(n.snap.attrs, name)
	}
}
