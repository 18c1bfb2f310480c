package entrylog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hazyhaar/gjump/idgen"
	"github.com/hazyhaar/gjump/kvstore"
)

type failingStore struct{}

func (failingStore) Load(context.Context) ([]Entry, error) { return nil, errors.New("boom") }
func (failingStore) Save(context.Context, []Entry) error   { return errors.New("boom") }

type renderSpy struct{ calls [][]Entry }

func (r *renderSpy) Render(_ context.Context, entries []Entry) error {
	r.calls = append(r.calls, entries)
	return nil
}

func newTestLog(opts ...Option) *Log {
	base := []Option{WithIDGenerator(idgen.Sequence("gj_text_"))}
	return New(append(base, opts...)...)
}

func TestAppend_SuppressesImmediateRepeat(t *testing.T) {
	ctx := context.Background()
	l := newTestLog()

	l.Append(ctx, "What is X?", "a")
	if _, ok := l.Append(ctx, "  What is X?  ", "b"); ok {
		t.Fatal("second identical append should be a no-op")
	}
	if l.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", l.Len())
	}

	l.Append(ctx, "What is Y?", "c")
	if l.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", l.Len())
	}
	entries := l.Entries()
	if entries[1].Text != "What is Y?" {
		t.Errorf("second entry: got %q, want %q", entries[1].Text, "What is Y?")
	}

	got := l.Query("y")
	if len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("Query(y): got %+v, want only entry c", got)
	}
}

func TestAppend_DedupOnlyAgainstLastEntry(t *testing.T) {
	ctx := context.Background()
	l := newTestLog()
	l.Append(ctx, "a", "")
	l.Append(ctx, "b", "")
	l.Append(ctx, "a", "")
	if l.Len() != 3 {
		t.Fatalf("Len: got %d, want 3 (dedup is adjacent only)", l.Len())
	}
}

func TestAppend_EmptyTextIgnored(t *testing.T) {
	l := newTestLog()
	if _, ok := l.Append(context.Background(), "   ", "x"); ok {
		t.Fatal("blank text should not be appended")
	}
	if l.Len() != 0 {
		t.Fatalf("Len: got %d, want 0", l.Len())
	}
}

func TestAppend_GeneratesIDWithoutIdentity(t *testing.T) {
	l := newTestLog()
	e, _ := l.Append(context.Background(), "hello", "")
	if e.ID != "gj_text_1" {
		t.Errorf("ID: got %q, want %q", e.ID, "gj_text_1")
	}
}

func TestAppend_HeldIdentityGetsFreshID(t *testing.T) {
	ctx := context.Background()
	l := newTestLog()

	first, _ := l.Append(ctx, "What is X?", "gj_1")
	second, ok := l.Append(ctx, "What is Z?", "gj_1")
	if !ok {
		t.Fatal("second append should be recorded")
	}
	if first.ID != "gj_1" {
		t.Errorf("first ID: got %q, want gj_1", first.ID)
	}
	if second.ID != "gj_text_1" {
		t.Errorf("second ID: got %q, want gj_text_1", second.ID)
	}
	if got, _ := l.Get("gj_1"); got.Text != "What is X?" {
		t.Errorf("Get(gj_1): got %q, want %q", got.Text, "What is X?")
	}
}

func TestAppend_BoundedFIFO(t *testing.T) {
	ctx := context.Background()
	l := newTestLog()
	for i := 0; i < DefaultMaxEntries; i++ {
		l.Append(ctx, fmt.Sprintf("q%d", i), "")
		if l.Len() > DefaultMaxEntries {
			t.Fatalf("Len %d exceeds bound after append %d", l.Len(), i)
		}
	}
	if l.Len() != DefaultMaxEntries {
		t.Fatalf("Len: got %d, want %d", l.Len(), DefaultMaxEntries)
	}

	l.Append(ctx, "newest", "")
	entries := l.Entries()
	if len(entries) != DefaultMaxEntries {
		t.Fatalf("Len: got %d, want %d", len(entries), DefaultMaxEntries)
	}
	if entries[0].Text != "q1" {
		t.Errorf("oldest: got %q, want %q (q0 evicted)", entries[0].Text, "q1")
	}
	if entries[len(entries)-1].Text != "newest" {
		t.Errorf("newest: got %q", entries[len(entries)-1].Text)
	}
}

func TestAppend_TimeNonDecreasing(t *testing.T) {
	ctx := context.Background()
	clock := time.UnixMilli(5000)
	l := newTestLog(WithClock(func() time.Time { return clock }))

	l.Append(ctx, "first", "")
	clock = time.UnixMilli(1000) // wall clock stepped back
	e, _ := l.Append(ctx, "second", "")
	if e.Time != 5000 {
		t.Errorf("Time: got %d, want 5000", e.Time)
	}
}

func TestQuery_PreservesOrder(t *testing.T) {
	ctx := context.Background()
	l := newTestLog()
	for _, s := range []string{"Alpha", "beta", "ALPHABET", "gamma"} {
		l.Append(ctx, s, "")
	}

	all := l.Query("")
	if len(all) != 4 {
		t.Fatalf("Query(\"\"): got %d, want 4", len(all))
	}

	got := l.Query("alpha")
	if len(got) != 2 || got[0].Text != "Alpha" || got[1].Text != "ALPHABET" {
		t.Fatalf("Query(alpha): got %+v", got)
	}
}

func TestClear_EmptiesLogAndSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(kvstore.NewMemory())
	l := newTestLog(WithStore(store))
	l.Append(ctx, "one", "")
	l.Append(ctx, "two", "")

	l.Clear(ctx)
	if got := l.Query(""); len(got) != 0 {
		t.Fatalf("Query after Clear: got %d entries", len(got))
	}
	persisted, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(persisted) != 0 {
		t.Fatalf("snapshot after Clear: got %d entries", len(persisted))
	}
}

func TestHydrate_CapsToBound(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(kvstore.NewMemory())
	seed := make([]Entry, 5)
	for i := range seed {
		seed[i] = Entry{ID: fmt.Sprint(i), Text: fmt.Sprint("t", i), Time: int64(i)}
	}
	if err := store.Save(ctx, seed); err != nil {
		t.Fatal(err)
	}

	l := newTestLog(WithStore(store), WithMaxEntries(3))
	l.Hydrate(ctx)
	entries := l.Entries()
	if len(entries) != 3 || entries[0].ID != "2" {
		t.Fatalf("Hydrate: got %+v, want newest 3 starting at id 2", entries)
	}
}

func TestDiscard_WipesSnapshot(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	l := newTestLog(WithStore(NewKVStore(kv)))
	l.Append(ctx, "one", "")

	l.Discard(ctx)
	if l.Len() != 0 {
		t.Fatalf("Len after Discard: got %d", l.Len())
	}
	raw, err := kv.Get(ctx, SnapshotKey)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "[]" {
		t.Errorf("snapshot: got %q, want []", raw)
	}
}

func TestPersistenceFailureIgnored(t *testing.T) {
	ctx := context.Background()
	l := newTestLog(WithStore(failingStore{}))
	l.Hydrate(ctx)
	if _, ok := l.Append(ctx, "still recorded", ""); !ok {
		t.Fatal("append should succeed in memory when the store fails")
	}
	if l.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", l.Len())
	}
}

func TestRenderAfterEachMutation(t *testing.T) {
	ctx := context.Background()
	spy := &renderSpy{}
	l := newTestLog(WithRenderer(spy))

	l.Append(ctx, "a", "")
	l.Append(ctx, "a", "") // suppressed, no render
	l.Clear(ctx)

	if len(spy.calls) != 2 {
		t.Fatalf("render calls: got %d, want 2", len(spy.calls))
	}
	if len(spy.calls[0]) != 1 || len(spy.calls[1]) != 0 {
		t.Errorf("render payloads: got %d then %d entries", len(spy.calls[0]), len(spy.calls[1]))
	}
}

func TestGet(t *testing.T) {
	l := newTestLog()
	l.Append(context.Background(), "a", "id-a")
	if e, ok := l.Get("id-a"); !ok || e.Text != "a" {
		t.Fatalf("Get: got %+v, %v", e, ok)
	}
	if _, ok := l.Get("nope"); ok {
		t.Fatal("Get(nope) should miss")
	}
}
