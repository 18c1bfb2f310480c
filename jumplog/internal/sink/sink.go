// Package sink defines output backends for the rendered entry list.
package sink

import (
	"context"

	"github.com/hazyhaar/gjump/entrylog"
)

// Sink receives the full ordered entry list after every log mutation.
// Implementations deliver it to different panels (stdout, webhook,
// in-process callback).
type Sink interface {
	Render(ctx context.Context, entries []entrylog.Entry) error
	Close() error
}

// Snapshot is the payload emitted by serialising sinks.
type Snapshot struct {
	Entries   []entrylog.Entry `json:"entries"`
	Timestamp int64            `json:"timestamp"` // epoch milliseconds
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
