package jumplog

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hazyhaar/gjump/entrylog"
)

func do(t *testing.T, method, u string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, u, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestHTTP_Health(t *testing.T) {
	svc, _, _ := testService(t)
	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	code, body := do(t, http.MethodGet, srv.URL+"/health")
	if code != http.StatusOK || !strings.Contains(body, `"status":"ok"`) {
		t.Errorf("health: %d %s", code, body)
	}
}

func TestHTTP_EntriesAndFilter(t *testing.T) {
	svc, doc, _ := testService(t)
	submit(t, svc, doc, "What is X?")
	submit(t, svc, doc, "Explain Y")

	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	code, body := do(t, http.MethodGet, srv.URL+"/api/entries")
	if code != http.StatusOK {
		t.Fatalf("list: %d %s", code, body)
	}
	var all []entrylog.Entry
	if err := json.Unmarshal([]byte(body), &all); err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Text != "What is X?" || all[1].Text != "Explain Y" {
		t.Errorf("entries = %+v", all)
	}

	_, body = do(t, http.MethodGet, srv.URL+"/api/entries?q="+url.QueryEscape("explain"))
	var filtered []entrylog.Entry
	json.Unmarshal([]byte(body), &filtered)
	if len(filtered) != 1 || filtered[0].Text != "Explain Y" {
		t.Errorf("filtered = %+v", filtered)
	}

	_, body = do(t, http.MethodGet, srv.URL+"/api/entries?q=zzz")
	if strings.TrimSpace(body) != "[]" {
		t.Errorf("no match: got %s, want []", body)
	}
}

func TestHTTP_Jump(t *testing.T) {
	svc, doc, _ := testService(t)
	e := submit(t, svc, doc, "What is X?")

	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	code, body := do(t, http.MethodPost, srv.URL+"/api/entries/"+e.ID+"/jump")
	if code != http.StatusOK {
		t.Fatalf("jump: %d %s", code, body)
	}
	scrolled := doc.LastScrolled()
	if scrolled == nil || scrolled.Attr("data-gj-id") != e.ID {
		t.Errorf("scrolled to %v, want tagged node", scrolled)
	}

	code, _ = do(t, http.MethodPost, srv.URL+"/api/entries/missing/jump")
	if code != http.StatusNotFound {
		t.Errorf("unknown jump: %d, want 404", code)
	}
}

func TestHTTP_ExcerptAndClear(t *testing.T) {
	svc, doc, _ := testService(t)
	e := submit(t, svc, doc, "What is X?")

	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	code, body := do(t, http.MethodGet, srv.URL+"/api/entries/"+e.ID+"/excerpt")
	if code != http.StatusOK {
		t.Fatalf("excerpt: %d %s", code, body)
	}
	var ex Excerpt
	if err := json.Unmarshal([]byte(body), &ex); err != nil {
		t.Fatal(err)
	}
	if ex.ID != e.ID || ex.Markdown != "What is X?" {
		t.Errorf("excerpt = %+v", ex)
	}

	code, _ = do(t, http.MethodDelete, srv.URL+"/api/entries")
	if code != http.StatusNoContent {
		t.Errorf("clear: %d, want 204", code)
	}
	_, body = do(t, http.MethodGet, srv.URL+"/api/entries")
	if strings.TrimSpace(body) != "[]" {
		t.Errorf("after clear: %s", body)
	}
}

func TestHTTP_PanelEscapes(t *testing.T) {
	svc, doc, _ := testService(t)
	submit(t, svc, doc, "is a < b <script>")

	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	code, body := do(t, http.MethodGet, srv.URL+"/")
	if code != http.StatusOK {
		t.Fatalf("panel: %d", code)
	}
	if !strings.Contains(body, "is a &lt; b &lt;script&gt;") {
		t.Errorf("panel did not escape entry text:\n%s", body)
	}
	if !strings.Contains(body, "confirm(") {
		t.Error("clear is not guarded by a confirmation")
	}
}

func TestHTTP_Metrics(t *testing.T) {
	svc, doc, _ := testService(t)
	submit(t, svc, doc, "What is X?")

	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	_, body := do(t, http.MethodGet, srv.URL+"/metrics")
	if !strings.Contains(body, `gjump_captures_total{path="key"} 1`) {
		t.Errorf("metrics missing key capture:\n%s", body)
	}
}

func TestHTTP_Unavailable(t *testing.T) {
	svc, err := New(t.Context(), testConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Stop()

	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	code, _ := do(t, http.MethodGet, srv.URL+"/api/entries")
	if code != http.StatusServiceUnavailable {
		t.Errorf("detached: %d, want 503", code)
	}
}
