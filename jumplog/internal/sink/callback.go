// CLAUDE:SUMMARY In-process callback sink delivering entry lists via Go function calls with zero serialization.
package sink

import (
	"context"

	"github.com/hazyhaar/gjump/entrylog"
)

// Callback delivers entry lists via a Go function call, for panels living
// in the same binary.
type Callback struct {
	fn entrylog.RenderFunc
}

// NewCallback creates a Callback sink. fn may be nil.
func NewCallback(fn entrylog.RenderFunc) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Render(ctx context.Context, entries []entrylog.Entry) error {
	if c.fn == nil {
		return nil
	}
	return c.fn(ctx, entries)
}

func (c *Callback) Close() error { return nil }
