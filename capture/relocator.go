package capture

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hazyhaar/gjump/entrylog"
	"github.com/hazyhaar/gjump/hostdoc"
)

// RelocationSelector lists the element kinds searched when an entry's
// identity tag is gone.
const RelocationSelector = `div, p, span, li, article, section, blockquote, pre`

// Relocation results, used as the "result" label.
const (
	ResultIdentity = "identity"
	ResultFuzzy    = "fuzzy"
	ResultNotFound = "not_found"
)

// Relocate resolves a logged entry back to a live node.
func (e *Engine) Relocate(ctx context.Context, id string) (hostdoc.Node, error) {
	var (
		node hostdoc.Node
		rerr error
	)
	if err := e.do(ctx, func(lctx context.Context) {
		entry, ok := e.log.Get(id)
		if !ok {
			rerr = fmt.Errorf("%w: %s", ErrUnknownEntry, id)
			return
		}
		node, rerr = e.relocate(lctx, entry)
	}); err != nil {
		return nil, err
	}
	return node, rerr
}

// Jump relocates an entry, scrolls it into view and highlights it for the
// configured duration. When the node cannot be found the user is notified
// in the host document and ErrNotFound is returned.
func (e *Engine) Jump(ctx context.Context, id string) error {
	var jerr error
	if err := e.do(ctx, func(lctx context.Context) { jerr = e.jump(lctx, id) }); err != nil {
		return err
	}
	return jerr
}

// EntryHTML returns the outer HTML of an entry's relocated node.
func (e *Engine) EntryHTML(ctx context.Context, id string) (entrylog.Entry, string, error) {
	var (
		entry entrylog.Entry
		html  string
		herr  error
	)
	if err := e.do(ctx, func(lctx context.Context) {
		var ok bool
		entry, ok = e.log.Get(id)
		if !ok {
			herr = fmt.Errorf("%w: %s", ErrUnknownEntry, id)
			return
		}
		n, err := e.relocate(lctx, entry)
		if err != nil {
			herr = err
			return
		}
		html = n.HTML()
	}); err != nil {
		return entrylog.Entry{}, "", err
	}
	return entry, html, herr
}

func (e *Engine) jump(ctx context.Context, id string) error {
	entry, ok := e.log.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntry, id)
	}
	n, err := e.relocate(ctx, entry)
	if err != nil {
		if nerr := e.doc.Notify(ctx, e.set.NotFoundNotice); nerr != nil {
			e.logger.Debug("capture: notify failed", "error", nerr)
		}
		return err
	}

	// A previous highlight is cleared before the new one is applied.
	e.deferred.flush(ctx, taskHighlight)

	if err := e.doc.ScrollIntoView(ctx, n); err != nil {
		e.logger.Debug("capture: scroll failed", "id", id, "error", err)
	}
	if err := e.doc.SetHighlight(ctx, n, true); err != nil {
		e.logger.Debug("capture: highlight failed", "id", id, "error", err)
		return nil
	}
	e.deferred.schedule(taskHighlight, e.set.HighlightDuration, func(ctx context.Context) {
		if err := e.doc.SetHighlight(ctx, n, false); err != nil {
			e.logger.Debug("capture: unhighlight failed", "id", id, "error", err)
		}
	})
	return nil
}

// relocate looks the entry up by identity tag, then falls back to the
// best-scoring text match. Ties keep the first node in document order.
func (e *Engine) relocate(ctx context.Context, entry entrylog.Entry) (hostdoc.Node, error) {
	nodes, err := e.doc.QueryAll(ctx, "["+hostdoc.AttrIdentity+"="+strconv.Quote(entry.ID)+"]")
	if err != nil {
		e.logger.Debug("capture: identity query failed", "id", entry.ID, "error", err)
	}
	if len(nodes) > 0 {
		e.metrics.relocated(ResultIdentity)
		return nodes[0], nil
	}

	samples, err := e.doc.Sample(ctx, RelocationSelector, hostdoc.Filter{NonEmpty: true, Rank: entry.Text})
	if err != nil {
		e.logger.Debug("capture: fallback sample failed", "error", err)
	}
	if best, ok := bestFirst(candidates(samples)); ok {
		e.metrics.relocated(ResultFuzzy)
		e.logger.Debug("capture: relocated by text", "id", entry.ID, "score", best.score)
		return best.node, nil
	}
	e.metrics.relocated(ResultNotFound)
	return nil, fmt.Errorf("%w: %s", ErrNotFound, entry.ID)
}
