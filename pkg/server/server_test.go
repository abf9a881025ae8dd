package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/statesync/pkg/storage"
	"github.com/vango-dev/statesync/pkg/value"
)

func testDefinition() Definition {
	return Definition{
		Name:       "thread",
		StorageKey: "calc-thread",
		Path:       "/calc/thread",
		Template: value.NewObject().
			Set("diameter", value.Number(10)).
			Set("metric", value.Bool(true)).
			Set("label", value.String("")),
	}
}

func newTestServer(t *testing.T) (*Server, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	srv, err := New(&Config{
		Store:          store,
		PublicURL:      "https://tools.example.com",
		MetricsEnabled: true,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, testDefinition())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return srv, store
}

type apiResponse struct {
	State        json.RawMessage `json:"state"`
	ShareableURL string          `json:"shareableUrl"`
	Skipped      []string        `json:"skipped"`
	Error        string          `json:"error"`
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp apiResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
		}
	}
	return rec, resp
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, _ := doRequest(t, srv.Handler(), "GET", "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	doRequest(t, srv.Handler(), "GET", "/api/thread/state?thread_evil=1", "")

	rec, _ := doRequest(t, srv.Handler(), "GET", "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "statesync_active_sessions") {
		t.Errorf("metrics output lacks statesync_active_sessions:\n%s", rec.Body.String())
	}
}

func TestClientScript(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, _ := doRequest(t, srv.Handler(), "GET", "/statesync.js", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "history.replaceState") {
		t.Errorf("unexpected script response %d", rec.Code)
	}
}

func TestStateEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := doRequest(t, srv.Handler(), "GET", "/api/thread/state?thread_diameter=8&thread_metric=false&thread_evil=1&other_diameter=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if got := string(resp.State); got != `{"diameter":8,"metric":false,"label":""}` {
		t.Errorf("state = %s", got)
	}
	if want := "https://tools.example.com/calc/thread?thread_diameter=8&thread_metric=false"; resp.ShareableURL != want {
		t.Errorf("shareableUrl = %q, want %q", resp.ShareableURL, want)
	}
	if len(resp.Skipped) != 1 || resp.Skipped[0] != "evil" {
		t.Errorf("skipped = %v, want [evil]", resp.Skipped)
	}

	rec, _ = doRequest(t, srv.Handler(), "GET", "/api/nope/state", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown consumer status = %d, want 404", rec.Code)
	}
}

func TestShareEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := doRequest(t, srv.Handler(), "POST", "/api/thread/share", `{"diameter":12,"label":"","evil":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if want := "https://tools.example.com/calc/thread?thread_diameter=12&thread_metric=true"; resp.ShareableURL != want {
		t.Errorf("shareableUrl = %q, want %q", resp.ShareableURL, want)
	}
	if strings.Contains(string(resp.State), "evil") {
		t.Errorf("state carries an unknown field: %s", resp.State)
	}

	for _, body := range []string{`[1,2]`, `not json`} {
		rec, resp := doRequest(t, srv.Handler(), "POST", "/api/thread/share", body)
		if rec.Code != http.StatusBadRequest || resp.Error == "" {
			t.Errorf("body %q: status = %d, error = %q", body, rec.Code, resp.Error)
		}
	}
}

func TestWebSocketRejectsBadPageURL(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, target := range []string{
		"/ws/thread",
		"/ws/thread?url=" + url.QueryEscape("/relative"),
		"/ws/thread?url=" + url.QueryEscape("ftp://example.com/"),
	} {
		rec, _ := doRequest(t, srv.Handler(), "GET", target, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
	rec, _ := doRequest(t, srv.Handler(), "GET", "/ws/nope?url=https://example.com/", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown consumer status = %d, want 404", rec.Code)
	}
}

func dial(t *testing.T, ts *httptest.Server, pageURL string, header http.Header) (*websocket.Conn, *http.Response) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/thread?url=" + url.QueryEscape(pageURL)
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, resp
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var f Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame failed: %v", err)
	}
	return f
}

func expectState(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	f := readFrame(t, conn)
	if f.Type != FrameState {
		t.Fatalf("frame type = %s, want state (%+v)", f.Type, f)
	}
	return f
}

func TestWebSocketFlow(t *testing.T) {
	srv, store := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, resp := dial(t, ts, "https://tools.example.com/calc/thread?thread_diameter=8&other=1", nil)

	var clientCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "statesync_client" {
			clientCookie = c
		}
	}
	if clientCookie == nil {
		t.Fatal("upgrade response did not set the client cookie")
	}

	// Hydration from the page URL, no URL write.
	f := expectState(t, conn)
	if f.Status != "url-hydrated" {
		t.Errorf("status = %s, want url-hydrated", f.Status)
	}
	if v, _ := f.State.Get("diameter"); v != value.Number(8) {
		t.Errorf("diameter = %v, want 8", v)
	}

	// A change is stored, then the URL is replaced, then state is sent.
	conn.WriteJSON(Frame{Type: FrameUpdate, Partial: value.NewObject().Set("diameter", value.Number(12))})

	f = readFrame(t, conn)
	if f.Type != FrameURLReplace {
		t.Fatalf("frame type = %s, want url_replace", f.Type)
	}
	u, err := url.Parse(f.URL)
	if err != nil {
		t.Fatal(err)
	}
	if u.Query().Get("thread_diameter") != "12" || u.Query().Get("other") != "1" {
		t.Errorf("replaced URL = %s", f.URL)
	}
	f = expectState(t, conn)
	if v, _ := f.State.Get("diameter"); v != value.Number(12) {
		t.Errorf("diameter = %v, want 12", v)
	}
	if !strings.Contains(f.ShareableURL, "thread_diameter=12") {
		t.Errorf("shareableUrl = %q", f.ShareableURL)
	}

	key := "calc-thread:" + clientCookie.Value
	text, ok, _ := store.Get(context.Background(), key)
	if !ok || !strings.Contains(text, `"diameter":12`) {
		t.Errorf("stored %q = %q, %v", key, text, ok)
	}

	// The same value again publishes nothing.
	conn.WriteJSON(Frame{Type: FrameUpdate, Partial: value.NewObject().Set("diameter", value.Number(12))})
	expectState(t, conn)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`))
	if f := readFrame(t, conn); f.Type != FrameError {
		t.Errorf("frame type = %s, want error", f.Type)
	}
	conn.WriteMessage(websocket.TextMessage, []byte(`{{{`))
	if f := readFrame(t, conn); f.Type != FrameError {
		t.Errorf("frame type = %s, want error", f.Type)
	}
	conn.Close()

	// A new page for the same client hydrates from the store.
	header := http.Header{}
	header.Set("Cookie", (&http.Cookie{Name: clientCookie.Name, Value: clientCookie.Value}).String())
	conn2, resp2 := dial(t, ts, "https://tools.example.com/calc/thread", header)
	if len(resp2.Cookies()) != 0 {
		t.Error("known client should not get a new cookie")
	}
	f = expectState(t, conn2)
	if v, _ := f.State.Get("diameter"); v != value.Number(12) {
		t.Errorf("diameter = %v, want 12 from store", v)
	}

	conn2.WriteJSON(Frame{Type: FrameReset})
	f = expectState(t, conn2)
	if v, _ := f.State.Get("diameter"); v != value.Number(10) {
		t.Errorf("diameter after reset = %v, want 10", v)
	}
	if _, ok, _ := store.Get(context.Background(), key); ok {
		t.Error("reset should remove the stored state")
	}
}

func TestWebSocketClientsAreIsolated(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	a, _ := dial(t, ts, "https://tools.example.com/calc/thread", nil)
	expectState(t, a)
	a.WriteJSON(Frame{Type: FrameUpdate, Partial: value.NewObject().Set("diameter", value.Number(20))})
	readFrame(t, a)
	expectState(t, a)

	b, _ := dial(t, ts, "https://tools.example.com/calc/thread", nil)
	f := expectState(t, b)
	if v, _ := f.State.Get("diameter"); v != value.Number(10) {
		t.Errorf("second client sees diameter %v, want default 10", v)
	}
	if n := srv.SessionCount(); n != 2 {
		t.Errorf("SessionCount() = %d, want 2", n)
	}
}

func TestNewRejectsBadDefinitions(t *testing.T) {
	tmpl := value.NewObject().Set("x", value.Number(0))
	tests := []struct {
		name string
		defs []Definition
	}{
		{"NoName", []Definition{{Template: tmpl}}},
		{"NoTemplate", []Definition{{Name: "a"}}},
		{"SeparatorInNamespace", []Definition{{Name: "a", Namespace: "a_b", Template: tmpl}}},
		{"DuplicateName", []Definition{{Name: "a", Template: tmpl}, {Name: "a", Namespace: "b", Template: tmpl}}},
		{"SharedNamespace", []Definition{{Name: "a", Namespace: "n", Template: tmpl}, {Name: "b", Namespace: "n", Template: tmpl}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(nil, tt.defs...); err == nil {
				t.Error("New should fail")
			}
		})
	}
}

func TestPatchLocation(t *testing.T) {
	start, _ := url.Parse("https://example.com/calc?a=1")
	var sent []Frame
	loc := NewPatchLocation(start, func(f Frame) error {
		sent = append(sent, f)
		return nil
	})

	next, _ := url.Parse("https://example.com/calc?a=1&ns_x=2")
	if err := loc.ReplaceURL(next); err != nil {
		t.Fatal(err)
	}

	if len(sent) != 1 || sent[0].Type != FrameURLReplace || sent[0].URL != next.String() {
		t.Errorf("sent = %+v", sent)
	}
	cur, _ := loc.URL()
	if cur.String() != next.String() {
		t.Errorf("URL() = %s, want %s", cur, next)
	}
	if start.RawQuery != "a=1" {
		t.Error("NewPatchLocation should copy its URL")
	}
}

func TestOriginCheck(t *testing.T) {
	check := OriginCheck([]string{"https://allowed.example"})
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://host.example", true},
		{"https://allowed.example", true},
		{"https://evil.example", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "http://host.example/ws/thread", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := check(r); got != tt.want {
			t.Errorf("origin %q: got %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestPaletteEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	get := func(target string) []map[string]any {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d", target, rec.Code)
		}
		var body struct {
			Results []map[string]any `json:"results"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("bad JSON: %v", err)
		}
		return body.Results
	}

	all := get("/api/palette")
	if len(all) != 2 {
		t.Fatalf("got %d results, want 2", len(all))
	}
	action := all[1]["action"].(map[string]any)
	if action["type"] != "copy" || action["payload"] != "https://tools.example.com/calc/thread?thread_diameter=10&thread_metric=true" {
		t.Errorf("copy action = %v", action)
	}

	hits := get("/api/palette?q=THR")
	if len(hits) != 2 {
		t.Fatalf("got %d results for THR, want 2", len(hits))
	}
	if hits[0]["titleHtml"] != "<mark>thr</mark>ead" {
		t.Errorf("titleHtml = %v", hits[0]["titleHtml"])
	}

	if got := get("/api/palette?q=nothing-matches"); len(got) != 0 {
		t.Errorf("got %d results, want 0", len(got))
	}
}

type failingWriter struct {
	header http.Header
	status int
}

func (f *failingWriter) Header() http.Header {
	if f.header == nil {
		f.header = http.Header{}
	}
	return f.header
}

func (f *failingWriter) WriteHeader(status int) { f.status = status }

func (f *failingWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestResponseFailuresAreLogged(t *testing.T) {
	var logs bytes.Buffer
	srv, err := New(&Config{
		Store:  storage.NewMemoryStore(),
		Logger: slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}, testDefinition())
	if err != nil {
		t.Fatal(err)
	}

	t.Run("EncodeFailure", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.writeJSON(rec, http.StatusOK, map[string]any{"bad": make(chan int)})
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "internal error") {
			t.Errorf("body = %s", rec.Body.String())
		}
		if !strings.Contains(logs.String(), "response encode failed") {
			t.Errorf("encode failure not logged:\n%s", logs.String())
		}
	})

	t.Run("WriteFailure", func(t *testing.T) {
		logs.Reset()
		srv.writeJSON(&failingWriter{}, http.StatusOK, map[string]string{"ok": "1"})
		if !strings.Contains(logs.String(), "response write failed") {
			t.Errorf("write failure not logged:\n%s", logs.String())
		}
	})

	t.Run("ClientScriptWriteFailure", func(t *testing.T) {
		logs.Reset()
		srv.handleClientScript(&failingWriter{}, httptest.NewRequest(http.MethodGet, "/statesync.js", nil))
		if !strings.Contains(logs.String(), "client script write failed") {
			t.Errorf("write failure not logged:\n%s", logs.String())
		}
	})
}
