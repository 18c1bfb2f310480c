package memdoc

import (
	"context"
	"testing"
	"time"

	"github.com/hazyhaar/gjump/hostdoc"
)

const page = `<html><head><title>t</title></head><body>
<div id="thread">
  <div class="msg" data-rect="0 300 500 40"><p>Hello <b>there</b></p><p>second line</p></div>
  <div class="msg" hidden>ghost</div>
  <div style="visibility: hidden"><span id="inner">also hidden</span></div>
</div>
<textarea id="box" data-rect="0 700 400 30">draft</textarea>
<input id="field" type="text" value="v1">
<button id="send">Send</button>
</body></html>`

func TestQueryAll_DocumentOrder(t *testing.T) {
	d := MustParseString(page)
	nodes, err := d.QueryAll(context.Background(), "div.msg, textarea")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("got %d nodes, want 3", len(nodes))
	}
	if nodes[2].Tag() != "textarea" {
		t.Errorf("last = %s, want textarea", nodes[2].Tag())
	}
}

func TestQueryAll_BadSelector(t *testing.T) {
	d := MustParseString(page)
	if _, err := d.QueryAll(context.Background(), "div[["); err == nil {
		t.Fatal("expected selector error")
	}
}

func TestNode_TextAndValue(t *testing.T) {
	d := MustParseString(page)
	msg := d.Query("div.msg")
	if got := msg.Text(); got != "Hello there\nsecond line" {
		t.Errorf("Text = %q", got)
	}
	if got := d.Query("#box").Value(); got != "draft" {
		t.Errorf("textarea Value = %q", got)
	}
	if got := d.Query("#field").Value(); got != "v1" {
		t.Errorf("input Value = %q", got)
	}
	if err := d.SetValue(d.Query("#box"), ""); err != nil {
		t.Fatal(err)
	}
	if got := d.Query("#box").Value(); got != "" {
		t.Errorf("after SetValue = %q", got)
	}
}

func TestNode_BoxAndVisibility(t *testing.T) {
	d := MustParseString(page)
	msg := d.Query("div.msg")
	if b := msg.Box(); b.Y != 300 || b.Width != 500 || b.Height != 40 {
		t.Errorf("Box = %+v", b)
	}
	if b := d.Query("#send").Box(); b != (hostdoc.Rect{X: 0, Y: 400, Width: 600, Height: 24}) {
		t.Errorf("default Box = %+v", b)
	}
	if !msg.Visible() {
		t.Error("msg should be visible")
	}
	if d.Query("div[hidden]").Visible() {
		t.Error("hidden attribute ignored")
	}
	if d.Query("#inner").Visible() {
		t.Error("ancestor visibility:hidden ignored")
	}
}

func TestNode_Equality(t *testing.T) {
	d := MustParseString(page)
	a := d.Query("#send")
	b := d.Query("button")
	if a != b {
		t.Error("handles on the same element should compare equal")
	}
	if a.Parent() == nil || a.Parent().Tag() != "body" {
		t.Errorf("Parent = %v", a.Parent())
	}
}

func TestPressAndClick_RequireListener(t *testing.T) {
	d := MustParseString(page)
	box := d.Query("#box")
	if d.Press(box, "Enter", false) {
		t.Fatal("press delivered without listener")
	}
	if err := d.Listen(context.Background(), box, hostdoc.EventKey); err != nil {
		t.Fatal(err)
	}
	if !d.Press(box, "Enter", true) {
		t.Fatal("press not delivered")
	}
	ev := next(t, d)
	if ev.Kind != hostdoc.EventKey || ev.Key != "Enter" || !ev.Shift || ev.Node != box {
		t.Errorf("event = %+v", ev)
	}

	send := d.Query("#send")
	d.Listen(context.Background(), send, hostdoc.EventClick)
	d.Click(send)
	if ev := next(t, d); ev.Kind != hostdoc.EventClick || ev.Node != send {
		t.Errorf("event = %+v", ev)
	}
}

func TestAppend_EmitsInsert(t *testing.T) {
	d := MustParseString(page)
	thread := d.Query("#thread")
	added, err := d.Append(thread, `<div class="msg">new reply</div> text <p>tail</p>`)
	if err != nil {
		t.Fatal(err)
	}
	if len(added) != 2 {
		t.Fatalf("added %d elements, want 2", len(added))
	}
	for _, want := range added {
		if ev := next(t, d); ev.Kind != hostdoc.EventInsert || ev.Node != want {
			t.Errorf("event = %+v", ev)
		}
	}
	nodes, _ := d.QueryAll(context.Background(), "div.msg")
	if len(nodes) != 3 {
		t.Errorf("div.msg count = %d, want 3", len(nodes))
	}
}

func TestRemove_DetachesAndHides(t *testing.T) {
	d := MustParseString(page)
	msg := d.Query("div.msg")
	if err := d.Remove(msg); err != nil {
		t.Fatal(err)
	}
	if msg.Visible() {
		t.Error("detached node reported visible")
	}
	if d.Query("div.msg[data-rect]") != nil {
		t.Error("removed node still matched")
	}
}

func TestHighlightScrollNotify(t *testing.T) {
	d := MustParseString(page)
	ctx := context.Background()
	msg := d.Query("div.msg")
	d.SetHighlight(ctx, msg, true)
	if !hostdoc.HasClass(msg, hostdoc.HighlightClass) || !hostdoc.HasClass(msg, "msg") {
		t.Errorf("class = %q", msg.Attr("class"))
	}
	d.SetHighlight(ctx, msg, false)
	if hostdoc.HasClass(msg, hostdoc.HighlightClass) {
		t.Errorf("class = %q", msg.Attr("class"))
	}
	d.ScrollIntoView(ctx, msg)
	if d.LastScrolled() != msg {
		t.Error("scroll target not recorded")
	}
	d.Notify(ctx, "gone")
	if n := d.Notices(); len(n) != 1 || n[0] != "gone" {
		t.Errorf("notices = %v", n)
	}
}

func TestForeignNodeRejected(t *testing.T) {
	a := MustParseString(page)
	b := MustParseString(page)
	if err := a.Listen(context.Background(), b.Query("#box"), hostdoc.EventKey); err == nil {
		t.Fatal("expected error for node of another document")
	}
}

func next(t *testing.T, d *Document) hostdoc.Event {
	t.Helper()
	select {
	case ev := <-d.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
	return hostdoc.Event{}
}

func TestSample_FiltersAndRanks(t *testing.T) {
	d := MustParseString(page)
	ctx := context.Background()

	got, err := d.Sample(ctx, "div.msg, textarea", hostdoc.Filter{Visible: true})
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d samples, want 2", len(got))
	}
	if got[1].Value != "draft" || got[1].Box.Width != 400 {
		t.Errorf("textarea sample = %+v", got[1])
	}

	ranked, err := d.Sample(ctx, "p", hostdoc.Filter{Rank: "hello there friend"})
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(ranked) != 1 || ranked[0].Score != 2 {
		t.Fatalf("ranked = %+v", ranked)
	}

	send, _ := d.Sample(ctx, "#send", hostdoc.Filter{})
	if len(send) != 1 || send[0].Label != "Send" {
		t.Errorf("button label = %+v", send)
	}
}
