package capture

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/hazyhaar/gjump/hostdoc"
)

// onInsert inspects one inserted element. Work is bounded to that node and
// the composer lookup; the rest of the document is never rescanned.
func (e *Engine) onInsert(ctx context.Context, n hostdoc.Node) {
	if n == nil {
		return
	}
	text := strings.TrimSpace(n.Text())
	if text == "" || utf8.RuneCountInString(text) > e.set.MaxInsertChars {
		return
	}
	b := n.Box()
	if b.Top() <= e.viewport.Height*e.set.TopFraction || b.Width <= e.set.MinInsertWidth {
		return
	}

	if composer := e.locator.ComposerText(ctx); composer != "" &&
		strings.Contains(text, prefix(composer, e.set.ComposerPrefix)) {
		e.record(ctx, composer, n, PathInsert)
		return
	}
	if e.isAuthored(n) {
		e.record(ctx, text, n, PathAuthor)
	}
}

// isAuthored reports whether n's class or id hints it was written by the
// local user.
func (e *Engine) isAuthored(n hostdoc.Node) bool {
	for _, v := range []string{n.Attr("class"), n.Attr("id")} {
		if v != "" && e.authored.MatchString(v) {
			return true
		}
	}
	return false
}
