// CLAUDE:SUMMARY Live hostdoc binding over go-rod: injected bridge script, CDP binding feed, element handles per node.
// Package roddoc binds a live Chrome page to hostdoc.Document.
//
// A bridge script is installed on the page (and on every future document of
// the page via Page.addScriptToEvaluateOnNewDocument). It watches insertions
// with a MutationObserver, runs the key and click listeners the engine asks
// for, and reports everything through a Runtime binding. Element identity
// across the boundary is a data-gj-ref attribute set by the bridge.
package roddoc

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/gjump/hostdoc"
)

//go:embed bridge.js
var bridgeJS string

const (
	bindingName = "__gj_binding"
	refAttr     = "data-gj-ref"
)

// Document is a hostdoc.Document over a rod page.
type Document struct {
	page     *rod.Page
	logger   *slog.Logger
	events   chan hostdoc.Event
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
	scriptID proto.PageScriptIdentifier
}

// Option configures a Document.
type Option func(*Document)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option { return func(d *Document) { d.logger = l } }

// Bind installs the bridge on page and starts forwarding its events. The
// binding lives until ctx is cancelled or Close is called.
func Bind(ctx context.Context, page *rod.Page, opts ...Option) (*Document, error) {
	d := &Document{
		page:   page,
		logger: slog.Default(),
		events: make(chan hostdoc.Event, 1024),
	}
	for _, o := range opts {
		o(d)
	}
	d.ctx, d.cancel = context.WithCancel(ctx)

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		d.logger.Warn("roddoc: addBinding failed (may already exist)", "error", err)
	}

	res, err := proto.PageAddScriptToEvaluateOnNewDocument{Source: "(" + bridgeJS + ")()"}.Call(page)
	if err != nil {
		d.cancel()
		return nil, fmt.Errorf("roddoc: register bridge: %w", err)
	}
	d.scriptID = res.Identifier

	go d.listen()

	if _, err := page.Context(d.ctx).Eval(bridgeJS); err != nil {
		d.Close()
		return nil, fmt.Errorf("roddoc: inject bridge: %w", err)
	}
	d.logger.Debug("roddoc: bridge injected")
	return d, nil
}

// Close stops the event feed and removes the bridge from future documents.
func (d *Document) Close() {
	d.once.Do(func() {
		if d.scriptID != "" {
			_ = proto.PageRemoveScriptToEvaluateOnNewDocument{Identifier: d.scriptID}.Call(d.page)
		}
		d.cancel()
	})
}

// listen forwards binding calls and main-frame navigations until the
// document context ends, then closes the event feed.
func (d *Document) listen() {
	defer close(d.events)
	d.page.Context(d.ctx).EachEvent(
		func(e *proto.RuntimeBindingCalled) {
			if e.Name != bindingName {
				return
			}
			d.dispatch(e.Payload)
		},
		func(e *proto.PageFrameNavigated) {
			if e.Frame == nil || e.Frame.ParentID != "" {
				return
			}
			d.logger.Info("roddoc: main frame navigated", "url", e.Frame.URL)
			d.emit(hostdoc.Event{Kind: hostdoc.EventUnload})
		},
	)()
}

// wireEvent is one record of a bridge payload. Insertions carry what the
// bridge read from the element when the observer saw it.
type wireEvent struct {
	Kind  string       `json:"kind"`
	Ref   string       `json:"ref"`
	Key   string       `json:"key"`
	Shift bool         `json:"shift"`
	Text  string       `json:"text"`
	Box   hostdoc.Rect `json:"box"`
	Class string       `json:"class"`
	ID    string       `json:"id"`
}

func decodeBatch(payload string) ([]wireEvent, error) {
	var batch []wireEvent
	if err := json.Unmarshal([]byte(payload), &batch); err != nil {
		return nil, fmt.Errorf("roddoc: decode payload: %w", err)
	}
	return batch, nil
}

func (d *Document) dispatch(payload string) {
	batch, err := decodeBatch(payload)
	if err != nil {
		d.logger.Warn("roddoc: bad binding payload", "error", err)
		return
	}
	now := time.Now()
	for _, w := range batch {
		ev := hostdoc.Event{Kind: hostdoc.EventKind(w.Kind), Key: w.Key, Shift: w.Shift, At: now}
		switch ev.Kind {
		case hostdoc.EventKey, hostdoc.EventClick:
			if w.Ref == "" {
				continue
			}
			ev.Node = &node{doc: d, ref: w.Ref}
		case hostdoc.EventInsert:
			if w.Ref == "" {
				continue
			}
			ev.Node = &node{doc: d, ref: w.Ref, snap: &snapshot{
				text:  w.Text,
				box:   w.Box,
				attrs: map[string]string{"class": w.Class, "id": w.ID},
			}}
		case hostdoc.EventUnload:
		default:
			continue
		}
		d.emit(ev)
	}
}

func (d *Document) emit(ev hostdoc.Event) {
	select {
	case d.events <- ev:
	case <-d.ctx.Done():
	}
}

// QueryAll implements hostdoc.Document.
func (d *Document) QueryAll(ctx context.Context, selector string) ([]hostdoc.Node, error) {
	els, err := d.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("roddoc: query %q: %w", selector, err)
	}
	out := make([]hostdoc.Node, len(els))
	for i, el := range els {
		out[i] = &node{doc: d, el: el}
	}
	return out, nil
}

// wireFilter is hostdoc.Filter as the bridge reads it.
type wireFilter struct {
	Contains  string  `json:"contains"`
	NonEmpty  bool    `json:"nonEmpty"`
	MinWidth  float64 `json:"minWidth"`
	MinHeight float64 `json:"minHeight"`
	Visible   bool    `json:"visible"`
	Rank      string  `json:"rank"`
}

// wireSample is one element as returned by the bridge's sample call.
type wireSample struct {
	Ref     string       `json:"ref"`
	Text    string       `json:"text"`
	Value   string       `json:"value"`
	Label   string       `json:"label"`
	Box     hostdoc.Rect `json:"box"`
	Visible bool         `json:"visible"`
}

// Sample implements hostdoc.Document. Filtering and ranking run inside the
// page, so one call returns only the surviving elements; their handles are
// resolved lazily from the bridge ref.
func (d *Document) Sample(ctx context.Context, selector string, f hostdoc.Filter) ([]hostdoc.Sample, error) {
	wf := wireFilter{
		Contains:  f.Contains,
		NonEmpty:  f.NonEmpty,
		MinWidth:  f.MinWidth,
		MinHeight: f.MinHeight,
		Visible:   f.Visible,
		Rank:      f.Rank,
	}
	res, err := d.page.Context(ctx).Eval(`(sel, f) => window.__gj ? window.__gj.sample(sel, f) : []`, selector, wf)
	if err != nil {
		return nil, fmt.Errorf("roddoc: sample %q: %w", selector, err)
	}
	var wire []wireSample
	if err := json.Unmarshal([]byte(res.Value.JSON("", "")), &wire); err != nil {
		return nil, fmt.Errorf("roddoc: decode sample: %w", err)
	}
	return f.Apply(d.samples(wire)), nil
}

func (d *Document) samples(wire []wireSample) []hostdoc.Sample {
	out := make([]hostdoc.Sample, 0, len(wire))
	for _, w := range wire {
		if w.Ref == "" {
			continue
		}
		out = append(out, hostdoc.Sample{
			Node:    &node{doc: d, ref: w.Ref, snap: &snapshot{text: w.Text, box: w.Box, attrs: map[string]string{}}},
			Text:    w.Text,
			Value:   w.Value,
			Label:   w.Label,
			Box:     w.Box,
			Visible: w.Visible,
		})
	}
	return out
}

// Viewport implements hostdoc.Document.
func (d *Document) Viewport(ctx context.Context) (hostdoc.Rect, error) {
	res, err := d.page.Context(ctx).Eval(`() => ({width: window.innerWidth, height: window.innerHeight})`)
	if err != nil {
		return hostdoc.Rect{}, fmt.Errorf("roddoc: viewport: %w", err)
	}
	return hostdoc.Rect{
		Width:  res.Value.Get("width").Num(),
		Height: res.Value.Get("height").Num(),
	}, nil
}

// Listen implements hostdoc.Document.
func (d *Document) Listen(ctx context.Context, n hostdoc.Node, kind hostdoc.EventKind) error {
	el, err := d.element(n)
	if err != nil {
		return err
	}
	_, err = el.Context(ctx).Eval(`function (kind) { return window.__gj && window.__gj.listen(this, kind); }`, string(kind))
	if err != nil {
		return fmt.Errorf("roddoc: listen: %w", err)
	}
	return nil
}

// Events implements hostdoc.Document.
func (d *Document) Events() <-chan hostdoc.Event { return d.events }

// ScrollIntoView implements hostdoc.Document.
func (d *Document) ScrollIntoView(ctx context.Context, n hostdoc.Node) error {
	el, err := d.element(n)
	if err != nil {
		return err
	}
	_, err = el.Context(ctx).Eval(`function () { this.scrollIntoView({behavior: 'smooth', block: 'center'}); }`)
	return err
}

// SetHighlight implements hostdoc.Document.
func (d *Document) SetHighlight(ctx context.Context, n hostdoc.Node, on bool) error {
	el, err := d.element(n)
	if err != nil {
		return err
	}
	_, err = el.Context(ctx).Eval(`function (cls, on) { this.classList.toggle(cls, on); }`, hostdoc.HighlightClass, on)
	n.(*node).forget("class")
	return err
}

// Notify shows a transient notice in the page.
func (d *Document) Notify(ctx context.Context, msg string) error {
	_, err := d.page.Context(ctx).Eval(`(msg) => { if (window.__gj) window.__gj.notify(msg); }`, msg)
	if err != nil {
		return fmt.Errorf("roddoc: notify: %w", err)
	}
	return nil
}

func (d *Document) element(n hostdoc.Node) (*rod.Element, error) {
	rn, ok := n.(*node)
	if !ok || rn.doc != d {
		return nil, fmt.Errorf("roddoc: node %T does not belong to this document", n)
	}
	return rn.element()
}
