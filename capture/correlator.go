package capture

import (
	"context"
	"strings"

	"github.com/hazyhaar/gjump/hostdoc"
)

// CorrelationSelector lists the element kinds searched for a submission's
// rendered counterpart.
const CorrelationSelector = `div, p, span, li, article`

// onKey schedules a capture after the key settle delay for Enter without
// the line-break modifier. A newer key submission supersedes a pending one.
func (e *Engine) onKey(ev hostdoc.Event) {
	if ev.Key != "Enter" || ev.Shift || ev.Node == nil {
		return
	}
	composer := ev.Node
	e.deferred.schedule(taskKey, e.set.KeySettle, func(ctx context.Context) {
		text := strings.TrimSpace(composer.Value())
		if text == "" {
			return
		}
		e.capture(ctx, text, PathKey)
	})
}

// onClick schedules a capture of the first composer's text after the click
// settle delay.
func (e *Engine) onClick() {
	e.deferred.schedule(taskClick, e.set.ClickSettle, func(ctx context.Context) {
		text := e.locator.ComposerText(ctx)
		if text == "" {
			return
		}
		e.capture(ctx, text, PathClick)
	})
}

// capture finds the node rendering text, tags it and appends the entry.
func (e *Engine) capture(ctx context.Context, text, path string) {
	node := e.counterpart(ctx, text)
	e.record(ctx, text, node, path)
}

// record tags node (if any) and appends text under its identity.
func (e *Engine) record(ctx context.Context, text string, node hostdoc.Node, path string) {
	id := e.tagger.EnsureIdentity(node)
	entry, added := e.log.Append(ctx, text, id)
	if !added {
		if entry.ID != "" {
			e.metrics.duplicate()
			e.logger.Debug("capture: duplicate dropped", "path", path)
		}
		return
	}
	e.metrics.captured(path)
	e.logger.Info("capture: entry recorded", "id", entry.ID, "path", path, "chars", len(entry.Text))
}

// counterpart returns the node most likely to be the freshly rendered copy
// of text, or nil. Candidates must be of meaningful size and contain the
// first word's prefix. Among equal scores the tightest node wins, then the
// latest in document order.
func (e *Engine) counterpart(ctx context.Context, text string) hostdoc.Node {
	samples, err := e.doc.Sample(ctx, CorrelationSelector, hostdoc.Filter{
		Contains:  firstWordPrefix(text, e.set.WordPrefix),
		NonEmpty:  true,
		MinWidth:  40,
		MinHeight: 12,
		Rank:      text,
	})
	if err != nil {
		e.logger.Debug("capture: correlation sample failed", "error", err)
		return nil
	}
	best, ok := bestTightest(candidates(samples))
	if !ok {
		return nil
	}
	return best.node
}
