// CLAUDE:SUMMARY Writes entry-list snapshots as JSON lines to an io.Writer (defaults to stdout).
package sink

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/hazyhaar/gjump/entrylog"
)

// Stdout writes JSON lines to an io.Writer (default os.Stdout).
type Stdout struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewStdout creates a Stdout sink. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{enc: json.NewEncoder(w)}
}

func (s *Stdout) Render(_ context.Context, entries []entrylog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(envelope{Type: "entries", Data: newSnapshot(entries)})
}

func (s *Stdout) Close() error { return nil }

func newSnapshot(entries []entrylog.Entry) Snapshot {
	if entries == nil {
		entries = []entrylog.Entry{}
	}
	return Snapshot{Entries: entries, Timestamp: time.Now().UnixMilli()}
}
