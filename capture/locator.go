package capture

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/hazyhaar/gjump/hostdoc"
)

// Selectors scanned by the locator.
const (
	ComposerSelector = `textarea, input[type="text"], [contenteditable="true"], [role="textbox"]`
	TriggerSelector  = `button, [role="button"], a`
)

// Locator finds the surfaces a user submits through and instruments them.
type Locator struct {
	doc     hostdoc.Document
	trigger *regexp.Regexp
	logger  *slog.Logger
}

// NewLocator creates a Locator matching trigger labels against vocabulary.
func NewLocator(doc hostdoc.Document, vocabulary string, logger *slog.Logger) (*Locator, error) {
	if vocabulary == "" {
		vocabulary = DefaultTriggerVocabulary
	}
	re, err := compileVocab("trigger", vocabulary)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{doc: doc, trigger: re, logger: logger}, nil
}

// composerFilter keeps text-entry surfaces of usable size that are shown.
var composerFilter = hostdoc.Filter{MinWidth: 20, MinHeight: 10, Visible: true}

// Composers returns the visible text-entry surfaces in document order.
func (l *Locator) Composers(ctx context.Context) []hostdoc.Node {
	return nodesOf(l.sample(ctx, ComposerSelector, composerFilter))
}

// ComposerText is the trimmed text of the first composer, or "".
func (l *Locator) ComposerText(ctx context.Context) string {
	cs := l.sample(ctx, ComposerSelector, composerFilter)
	if len(cs) == 0 {
		return ""
	}
	return strings.TrimSpace(cs[0].Value)
}

// Triggers returns interactive elements whose label reads like a submit
// action. The visible text is the label; aria-label is used when it is empty.
func (l *Locator) Triggers(ctx context.Context) []hostdoc.Node {
	return nodesOf(l.triggers(ctx, TriggerSelector))
}

func (l *Locator) triggers(ctx context.Context, selector string) []hostdoc.Sample {
	samples := l.sample(ctx, selector, hostdoc.Filter{})
	out := samples[:0]
	for _, s := range samples {
		if s.Label != "" && l.trigger.MatchString(s.Label) {
			out = append(out, s)
		}
	}
	return out
}

func (l *Locator) sample(ctx context.Context, selector string, f hostdoc.Filter) []hostdoc.Sample {
	samples, err := l.doc.Sample(ctx, selector, f)
	if err != nil {
		l.logger.Debug("capture: sample failed", "selector", selector, "error", err)
		return nil
	}
	return samples
}

// Attach instruments every composer and trigger not yet marked as listening.
// It returns the number of newly instrumented elements and is safe to call
// repeatedly.
func (l *Locator) Attach(ctx context.Context) int {
	added := 0
	for _, s := range l.sample(ctx, unmarked(ComposerSelector), composerFilter) {
		if l.instrument(ctx, s.Node, hostdoc.EventKey) {
			added++
		}
	}
	for _, s := range l.triggers(ctx, unmarked(TriggerSelector)) {
		if l.instrument(ctx, s.Node, hostdoc.EventClick) {
			added++
		}
	}
	if added > 0 {
		l.logger.Debug("capture: listeners attached", "count", added)
	}
	return added
}

// unmarked narrows each alternative of a selector group to elements without
// the listening mark.
func unmarked(group string) string {
	parts := strings.Split(group, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p) + ":not([" + hostdoc.AttrListening + "])"
	}
	return strings.Join(parts, ", ")
}

func nodesOf(samples []hostdoc.Sample) []hostdoc.Node {
	out := make([]hostdoc.Node, len(samples))
	for i, s := range samples {
		out[i] = s.Node
	}
	return out
}

func (l *Locator) instrument(ctx context.Context, n hostdoc.Node, kind hostdoc.EventKind) bool {
	if err := l.doc.Listen(ctx, n, kind); err != nil {
		l.logger.Debug("capture: listen failed", "kind", kind, "error", err)
		return false
	}
	if err := n.SetAttr(hostdoc.AttrListening, string(kind)); err != nil {
		l.logger.Debug("capture: mark listener failed", "error", err)
	}
	return true
}
