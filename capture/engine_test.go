package capture

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hazyhaar/gjump/entrylog"
	"github.com/hazyhaar/gjump/hostdoc"
	"github.com/hazyhaar/gjump/hostdoc/memdoc"
	"github.com/hazyhaar/gjump/idgen"
	"github.com/hazyhaar/gjump/kvstore"
)

const chatPage = `<html><body>
<div id="thread" data-rect="0 0 800 600">
  <div class="turn" data-rect="0 400 600 40"><p data-rect="0 400 500 30">What is X?</p></div>
</div>
<textarea id="composer" data-rect="0 700 600 40"></textarea>
<button id="send">Send</button>
<button id="menu">Menu</button>
</body></html>`

type harness struct {
	t       *testing.T
	doc     *memdoc.Document
	eng     *Engine
	kv      *kvstore.Memory
	metrics *Metrics
	cancel  context.CancelFunc
	errc    chan error
}

func startEngine(t *testing.T, page string, seed []entrylog.Entry) *harness {
	t.Helper()
	doc := memdoc.MustParseString(page)
	kv := kvstore.NewMemory()
	store := entrylog.NewKVStore(kv)
	if seed != nil {
		if err := store.Save(context.Background(), seed); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	h := &harness{t: t, doc: doc, kv: kv, metrics: NewMetrics(nil), errc: make(chan error, 1)}
	eng, err := New(Config{
		Document: doc,
		Log: entrylog.New(
			entrylog.WithStore(store),
			entrylog.WithIDGenerator(idgen.Sequence("gj_text_")),
		),
		Settings: Settings{
			KeySettle:         20 * time.Millisecond,
			ClickSettle:       20 * time.Millisecond,
			RescanInterval:    20 * time.Millisecond,
			HighlightDuration: 50 * time.Millisecond,
		},
		Metrics:     h.metrics,
		IdentityGen: idgen.Sequence("gj_"),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.eng = eng

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.errc <- eng.Run(ctx) }()
	t.Cleanup(h.stop)

	// The first round trip completes once Run has attached listeners.
	if _, err := eng.Entries(context.Background(), ""); err != nil {
		t.Fatalf("engine not running: %v", err)
	}
	return h
}

func (h *harness) stop() {
	h.cancel()
	select {
	case <-h.errc:
	case <-time.After(time.Second):
		h.t.Error("engine did not stop")
	}
}

func (h *harness) entries() []entrylog.Entry {
	h.t.Helper()
	out, err := h.eng.Entries(context.Background(), "")
	if err != nil {
		h.t.Fatalf("Entries: %v", err)
	}
	return out
}

func (h *harness) waitEntries(n int) []entrylog.Entry {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		got := h.entries()
		if len(got) == n {
			return got
		}
		if time.Now().After(deadline) {
			h.t.Fatalf("got %d entries %+v, want %d", len(got), got, n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// settle waits past every settle delay so pending captures have run.
func (h *harness) settle() { time.Sleep(80 * time.Millisecond) }

func (h *harness) submit(text string) {
	h.t.Helper()
	composer := h.doc.Query("#composer")
	if err := h.doc.SetValue(composer, text); err != nil {
		h.t.Fatal(err)
	}
	if !h.doc.Press(composer, "Enter", false) {
		h.t.Fatal("composer not instrumented")
	}
}

func TestEngine_KeyPathTagsRenderedNode(t *testing.T) {
	h := startEngine(t, chatPage, nil)
	h.submit("What is X?")

	got := h.waitEntries(1)
	if got[0].Text != "What is X?" {
		t.Errorf("Text = %q", got[0].Text)
	}
	turn := h.doc.Query(".turn")
	if id := turn.Attr(hostdoc.AttrIdentity); id == "" || id != got[0].ID {
		t.Errorf("turn tag = %q, entry id = %q", id, got[0].ID)
	}
	if v := testutil.ToFloat64(h.metrics.captures.WithLabelValues(PathKey)); v != 1 {
		t.Errorf("key captures = %v, want 1", v)
	}
}

func TestEngine_DedupAndQueryScenario(t *testing.T) {
	h := startEngine(t, chatPage, nil)
	h.submit("What is X?")
	h.waitEntries(1)

	h.submit("What is X?")
	h.settle()
	h.waitEntries(1)
	if v := testutil.ToFloat64(h.metrics.duplicates); v != 1 {
		t.Errorf("duplicates = %v, want 1", v)
	}

	if _, err := h.doc.Append(h.doc.Query("#thread"),
		`<div class="turn" data-rect="0 450 600 40"><p>What is Y?</p></div>`); err != nil {
		t.Fatal(err)
	}
	h.submit("What is Y?")
	got := h.waitEntries(2)
	if got[1].Text != "What is Y?" {
		t.Errorf("second = %q", got[1].Text)
	}

	ys, err := h.eng.Entries(context.Background(), "y")
	if err != nil {
		t.Fatal(err)
	}
	if len(ys) != 1 || ys[0].ID != got[1].ID {
		t.Errorf("query(y) = %+v", ys)
	}
}

func TestEngine_ShiftEnterIgnored(t *testing.T) {
	h := startEngine(t, chatPage, nil)
	composer := h.doc.Query("#composer")
	h.doc.SetValue(composer, "line one")
	h.doc.Press(composer, "Enter", true)
	h.doc.Press(composer, "a", false)
	h.settle()
	h.waitEntries(0)
}

func TestEngine_StaleReadDropped(t *testing.T) {
	h := startEngine(t, chatPage, nil)
	h.submit("gone soon")
	h.doc.SetValue(h.doc.Query("#composer"), "")
	h.settle()
	h.waitEntries(0)
}

func TestEngine_ClickPath(t *testing.T) {
	h := startEngine(t, chatPage, nil)
	h.doc.SetValue(h.doc.Query("#composer"), "  What is X?  ")
	if !h.doc.Click(h.doc.Query("#send")) {
		t.Fatal("send button not instrumented")
	}
	if h.doc.Click(h.doc.Query("#menu")) {
		t.Fatal("menu button instrumented")
	}
	got := h.waitEntries(1)
	if got[0].Text != "What is X?" || !strings.HasPrefix(got[0].ID, "gj_") {
		t.Errorf("entry = %+v", got[0])
	}
	if v := testutil.ToFloat64(h.metrics.captures.WithLabelValues(PathClick)); v != 1 {
		t.Errorf("click captures = %v, want 1", v)
	}
}

func TestEngine_FallbackIDWithoutRenderedNode(t *testing.T) {
	h := startEngine(t, chatPage, nil)
	h.submit("Nothing renders this")
	got := h.waitEntries(1)
	if got[0].ID != "gj_text_1" {
		t.Errorf("ID = %q, want gj_text_1", got[0].ID)
	}
}

func TestEngine_UnrenderedSubmissionKeepsDistinctID(t *testing.T) {
	h := startEngine(t, chatPage, nil)
	h.submit("What is X?")
	first := h.waitEntries(1)[0]

	// Nothing new renders, so the best match is the earlier turn.
	h.submit("What is Z?")
	got := h.waitEntries(2)
	if got[1].ID == first.ID {
		t.Fatalf("both entries share id %q", first.ID)
	}
	if got[1].ID != "gj_text_1" {
		t.Errorf("second ID = %q, want gj_text_1", got[1].ID)
	}
	if id := h.doc.Query(".turn").Attr(hostdoc.AttrIdentity); id != first.ID {
		t.Errorf("turn tag = %q, want %q", id, first.ID)
	}

	if err := h.eng.Jump(context.Background(), first.ID); err != nil {
		t.Fatalf("Jump: %v", err)
	}
	if h.doc.LastScrolled() != h.doc.Query(".turn") {
		t.Error("first entry no longer reaches its turn")
	}
}

func TestEngine_InsertRecordsComposerText(t *testing.T) {
	h := startEngine(t, chatPage, nil)
	h.doc.SetValue(h.doc.Query("#composer"), "Explain recursion")

	added, err := h.doc.Append(h.doc.Query("#thread"),
		`<div class="turn" data-rect="0 500 600 40">Explain recursion<span class="badge">edited</span></div>`)
	if err != nil {
		t.Fatal(err)
	}
	got := h.waitEntries(1)
	if got[0].Text != "Explain recursion" {
		t.Errorf("Text = %q, want composer text", got[0].Text)
	}
	if id := added[0].Attr(hostdoc.AttrIdentity); id != got[0].ID {
		t.Errorf("inserted node tag = %q, entry id = %q", id, got[0].ID)
	}

	// The key path fires for the same submission and is deduplicated.
	h.doc.Press(h.doc.Query("#composer"), "Enter", false)
	h.settle()
	h.waitEntries(1)
}

func TestEngine_InsertAuthoredAndSkips(t *testing.T) {
	h := startEngine(t, chatPage, nil)
	thread := h.doc.Query("#thread")
	skipped := []string{
		`<div class="user" data-rect="0 100 600 30">in the top bar</div>`,
		`<div class="user" data-rect="0 500 50 30">too narrow</div>`,
		`<div class="user" data-rect="0 500 600 30">` + strings.Repeat("long ", 101) + `</div>`,
		`<div class="user" data-rect="0 500 600 30">   </div>`,
		`<div class="assistant" data-rect="0 500 600 30">a reply</div>`,
	}
	for _, frag := range skipped {
		if _, err := h.doc.Append(thread, frag); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := h.doc.Append(thread, `<div id="me" class="from-User" data-rect="0 500 600 30"> hello there </div>`); err != nil {
		t.Fatal(err)
	}

	got := h.waitEntries(1)
	if got[0].Text != "hello there" {
		t.Errorf("Text = %q", got[0].Text)
	}
	if v := testutil.ToFloat64(h.metrics.captures.WithLabelValues(PathAuthor)); v != 1 {
		t.Errorf("authored captures = %v, want 1", v)
	}
}

func TestEngine_JumpByIdentity(t *testing.T) {
	h := startEngine(t, chatPage, nil)
	h.submit("What is X?")
	entry := h.waitEntries(1)[0]

	if err := h.eng.Jump(context.Background(), entry.ID); err != nil {
		t.Fatalf("Jump: %v", err)
	}
	turn := h.doc.Query(".turn")
	if h.doc.LastScrolled() != turn {
		t.Error("tagged node not scrolled into view")
	}
	if !hostdoc.HasClass(turn, hostdoc.HighlightClass) {
		t.Fatalf("class = %q, want highlight", turn.Attr("class"))
	}

	deadline := time.Now().Add(time.Second)
	for hostdoc.HasClass(turn, hostdoc.HighlightClass) {
		if time.Now().After(deadline) {
			t.Fatal("highlight never cleared")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !hostdoc.HasClass(turn, "turn") {
		t.Errorf("original class lost: %q", turn.Attr("class"))
	}
	if v := testutil.ToFloat64(h.metrics.relocations.WithLabelValues(ResultIdentity)); v != 1 {
		t.Errorf("identity relocations = %v, want 1", v)
	}
}

func TestEngine_RelocateFallsBackToText(t *testing.T) {
	h := startEngine(t, chatPage, nil)
	h.submit("What is X?")
	entry := h.waitEntries(1)[0]

	// The host re-renders the turn without our tag.
	if err := h.doc.Remove(h.doc.Query(".turn")); err != nil {
		t.Fatal(err)
	}
	h.doc.Append(h.doc.Query("#thread"), `<div class="turn" data-rect="0 400 600 40"><p>What is X?</p></div>`)

	n, err := h.eng.Relocate(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("Relocate: %v", err)
	}
	if !strings.Contains(n.Text(), "What is X?") {
		t.Errorf("relocated text = %q", n.Text())
	}
	if v := testutil.ToFloat64(h.metrics.relocations.WithLabelValues(ResultFuzzy)); v != 1 {
		t.Errorf("fuzzy relocations = %v, want 1", v)
	}
}

func TestEngine_JumpNotFoundNotifies(t *testing.T) {
	page := `<html><body><div id="thread" data-rect="0 0 800 600"></div>
		<textarea id="composer" data-rect="0 700 600 40"></textarea></body></html>`
	h := startEngine(t, page, nil)
	added, _ := h.doc.Append(h.doc.Query("#thread"), `<div class="sender" data-rect="0 500 600 30">hello there</div>`)
	entry := h.waitEntries(1)[0]

	h.doc.Remove(added[0])
	err := h.eng.Jump(context.Background(), entry.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Jump err = %v, want ErrNotFound", err)
	}
	if n := h.doc.Notices(); len(n) != 1 || n[0] != DefaultNotFoundNotice {
		t.Errorf("notices = %v", n)
	}
}

func TestEngine_UnknownEntry(t *testing.T) {
	h := startEngine(t, chatPage, nil)
	if err := h.eng.Jump(context.Background(), "nope"); !errors.Is(err, ErrUnknownEntry) {
		t.Errorf("Jump err = %v", err)
	}
	if _, _, err := h.eng.EntryHTML(context.Background(), "nope"); !errors.Is(err, ErrUnknownEntry) {
		t.Errorf("EntryHTML err = %v", err)
	}
	if len(h.doc.Notices()) != 0 {
		t.Error("unknown entry must not notify")
	}
}

func TestEngine_EntryHTML(t *testing.T) {
	h := startEngine(t, chatPage, nil)
	h.submit("What is X?")
	entry := h.waitEntries(1)[0]
	got, html, err := h.eng.EntryHTML(context.Background(), entry.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != entry.ID || !strings.Contains(html, "What is X?") || !strings.Contains(html, `class="turn"`) {
		t.Errorf("entry = %+v html = %q", got, html)
	}
}

func TestEngine_HydrateAndClear(t *testing.T) {
	seed := []entrylog.Entry{{ID: "a", Text: "first", Time: 1}, {ID: "b", Text: "second", Time: 2}}
	h := startEngine(t, chatPage, seed)
	if got := h.entries(); len(got) != 2 || got[1].ID != "b" {
		t.Fatalf("hydrated = %+v", got)
	}
	if err := h.eng.Clear(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.waitEntries(0)
	raw, err := h.kv.Get(context.Background(), entrylog.SnapshotKey)
	if err != nil || string(raw) != "[]" {
		t.Errorf("snapshot = %q, %v", raw, err)
	}
}

func TestEngine_UnloadDiscards(t *testing.T) {
	h := startEngine(t, chatPage, nil)
	h.submit("What is X?")
	h.waitEntries(1)

	h.doc.Unload()
	h.waitEntries(0)
	raw, _ := h.kv.Get(context.Background(), entrylog.SnapshotKey)
	if string(raw) != "[]" {
		t.Errorf("snapshot = %q, want []", raw)
	}
}

func TestEngine_RescanInstrumentsLateComposer(t *testing.T) {
	h := startEngine(t, chatPage, nil)
	added, err := h.doc.Append(h.doc.Query("body"), `<textarea id="late" data-rect="0 700 600 40"></textarea>`)
	if err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(time.Second)
	for h.doc.ListenerCount(added[0]) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("late composer never instrumented")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEngine_StoppedAndRunOnce(t *testing.T) {
	h := startEngine(t, chatPage, nil)
	if err := h.eng.Run(context.Background()); err == nil {
		t.Error("second Run should fail")
	}
	h.cancel()
	if err := <-h.errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Run err = %v", err)
	}
	h.errc <- nil // let cleanup finish
	if _, err := h.eng.Entries(context.Background(), ""); !errors.Is(err, ErrStopped) {
		t.Errorf("Entries after stop = %v, want ErrStopped", err)
	}
}

func TestEngine_DocumentClosed(t *testing.T) {
	doc := memdoc.MustParseString(chatPage)
	eng, err := New(Config{Document: doc})
	if err != nil {
		t.Fatal(err)
	}
	doc.Close()
	if err := eng.Run(context.Background()); err != nil {
		t.Errorf("Run = %v, want nil on closed feed", err)
	}
	<-eng.Done()
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("nil document accepted")
	}
	doc := memdoc.MustParseString(chatPage)
	if _, err := New(Config{Document: doc, Settings: Settings{TriggerVocabulary: "("}}); err == nil {
		t.Error("bad vocabulary accepted")
	}
}
