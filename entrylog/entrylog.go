// Package entrylog is the bounded, deduplicated, time-ordered record of
// captured queries.
//
// A Log is owned by a single goroutine (the capture engine loop). Every
// mutation runs in a fixed order: change the slice, persist, render.
// Persistence and render failures are logged and otherwise ignored so the
// in-memory log always proceeds.
package entrylog

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/gjump/idgen"
)

// DefaultMaxEntries bounds the log when no WithMaxEntries option is given.
const DefaultMaxEntries = 200

// Entry is one captured submission.
type Entry struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Time int64  `json:"time"` // epoch milliseconds
}

// Renderer receives the full ordered log after every mutation.
type Renderer interface {
	Render(ctx context.Context, entries []Entry) error
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(ctx context.Context, entries []Entry) error

func (f RenderFunc) Render(ctx context.Context, entries []Entry) error { return f(ctx, entries) }

// Log holds the captured entries. It is not safe for concurrent use.
type Log struct {
	entries  []Entry
	max      int
	store    Store
	renderer Renderer
	newID    idgen.Generator
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithMaxEntries sets the FIFO bound. Values <= 0 keep the default.
func WithMaxEntries(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.max = n
		}
	}
}

// WithStore sets the persisted snapshot store.
func WithStore(s Store) Option { return func(l *Log) { l.store = s } }

// WithRenderer sets the panel renderer.
func WithRenderer(r Renderer) Option { return func(l *Log) { l.renderer = r } }

// WithIDGenerator sets the generator used for entries captured without a
// node identity.
func WithIDGenerator(gen idgen.Generator) Option { return func(l *Log) { l.newID = gen } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(l *Log) { l.now = now } }

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option { return func(l *Log) { l.logger = logger } }

// New creates an empty Log.
func New(opts ...Option) *Log {
	l := &Log{
		max:    DefaultMaxEntries,
		newID:  idgen.Prefixed("gj_text_", idgen.UUIDv7()),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Hydrate replaces the in-memory log with the persisted snapshot, keeping the
// newest entries up to the bound.
func (l *Log) Hydrate(ctx context.Context) {
	if l.store == nil {
		return
	}
	entries, err := l.store.Load(ctx)
	if err != nil {
		l.logger.Warn("entrylog: load snapshot failed", "error", err)
		return
	}
	if len(entries) > l.max {
		entries = entries[len(entries)-l.max:]
	}
	l.entries = append(l.entries[:0], entries...)
	l.logger.Debug("entrylog: hydrated", "entries", len(l.entries))
	l.render(ctx)
}

// Append records text under identity. It returns false without touching the
// log when the trimmed text is empty or equals the last entry's text. An empty
// identity, or one already held by an entry, gets a generated ID.
func (l *Log) Append(ctx context.Context, text, identity string) (Entry, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Entry{}, false
	}
	if n := len(l.entries); n > 0 && l.entries[n-1].Text == text {
		return l.entries[n-1], false
	}

	ts := l.now().UnixMilli()
	if n := len(l.entries); n > 0 && ts < l.entries[n-1].Time {
		ts = l.entries[n-1].Time
	}
	if identity == "" || l.holds(identity) {
		identity = l.newID()
	}

	e := Entry{ID: identity, Text: text, Time: ts}
	l.entries = append(l.entries, e)
	if over := len(l.entries) - l.max; over > 0 {
		l.entries = append(l.entries[:0:0], l.entries[over:]...)
	}

	l.persist(ctx)
	l.render(ctx)
	return e, true
}

func (l *Log) holds(id string) bool {
	for _, e := range l.entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

// Clear empties the log.
func (l *Log) Clear(ctx context.Context) {
	l.entries = nil
	l.persist(ctx)
	l.render(ctx)
}

// Discard is the page-teardown wipe: the log and the persisted snapshot are
// both emptied, so nothing survives a reload.
func (l *Log) Discard(ctx context.Context) {
	l.entries = nil
	if l.store != nil {
		if err := l.store.Save(ctx, []Entry{}); err != nil {
			l.logger.Warn("entrylog: wipe snapshot failed", "error", err)
		}
	}
	l.render(ctx)
}

// Query returns the entries whose text contains filter, case-insensitively,
// in log order. An empty filter returns the whole log.
func (l *Log) Query(filter string) []Entry {
	f := strings.ToLower(strings.TrimSpace(filter))
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if f == "" || strings.Contains(strings.ToLower(e.Text), f) {
			out = append(out, e)
		}
	}
	return out
}

// Get returns the entry with the given ID.
func (l *Log) Get(id string) (Entry, bool) {
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].ID == id {
			return l.entries[i], true
		}
	}
	return Entry{}, false
}

// Len reports the number of entries.
func (l *Log) Len() int { return len(l.entries) }

// Max reports the FIFO bound.
func (l *Log) Max() int { return l.max }

// Entries returns a copy of the whole log.
func (l *Log) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

func (l *Log) persist(ctx context.Context) {
	if l.store == nil {
		return
	}
	if err := l.store.Save(ctx, l.Entries()); err != nil {
		l.logger.Warn("entrylog: persist failed", "error", err)
	}
}

func (l *Log) render(ctx context.Context) {
	if l.renderer == nil {
		return
	}
	if err := l.renderer.Render(ctx, l.Entries()); err != nil {
		l.logger.Warn("entrylog: render failed", "error", err)
	}
}
