package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/streamsentry/streamsentry/internal/account"
	"github.com/streamsentry/streamsentry/internal/probe"
	"github.com/streamsentry/streamsentry/internal/store"
)

type fakeTrigger struct{ fired int }

func (f *fakeTrigger) TriggerNow() { f.fired++ }

// stubInspector satisfies probe.MediaInspector for deep-probe routing tests.
type stubInspector struct{}

func (stubInspector) Inspect(ctx context.Context, streamURL string) ([]byte, error) {
	return []byte(`{"format":{"format_long_name":"MPEG-TS"},"streams":[]}`), nil
}

func newTestServer(t *testing.T) (*Server, *store.SQLite, *fakeTrigger) {
	t.Helper()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	tr := &fakeTrigger{}
	srv := New(st,
		probe.New(nil, time.Second, nil),
		probe.NewDeep(stubInspector{}, time.Second),
		account.New(nil, time.Second, "test"),
		tr)
	return srv, st, tr
}

func doJSON(t *testing.T, h http.Handler, method, path string, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if ct := rec.Header().Get("Content-Type"); strings.HasPrefix(ct, "application/json") && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: bad JSON body %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec, body := doJSON(t, srv, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestPlaylistCRUD(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec, created := doJSON(t, srv, http.MethodPost, "/api/playlists",
		`{"name":"Provider A","url":"http://a.example/list.m3u","tenant_id":"t1","content":"#EXTM3U\n"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body = %v", rec.Code, created)
	}
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("no id in %v", created)
	}

	rec, got := doJSON(t, srv, http.MethodGet, "/api/playlists/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if got["name"] != "Provider A" {
		t.Errorf("name = %v", got["name"])
	}

	rec, updated := doJSON(t, srv, http.MethodPut, "/api/playlists/"+id, `{"name":"Provider B"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}
	if updated["name"] != "Provider B" {
		t.Errorf("updated name = %v", updated["name"])
	}
	if updated["url"] != "http://a.example/list.m3u" {
		t.Errorf("url changed: %v", updated["url"])
	}

	req := httptest.NewRequest(http.MethodGet, "/api/playlists?tenant_id=t1", nil)
	rec2 := httptest.NewRecorder()
	srv.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec2.Code)
	}
	var arr []map[string]any
	if err := json.Unmarshal(rec2.Body.Bytes(), &arr); err != nil {
		t.Fatal(err)
	}
	if len(arr) != 1 {
		t.Fatalf("list len = %d", len(arr))
	}
	if _, ok := arr[0]["content"]; ok {
		t.Error("listing must omit raw content")
	}

	rec, _ = doJSON(t, srv, http.MethodDelete, "/api/playlists/"+id, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec, _ = doJSON(t, srv, http.MethodGet, "/api/playlists/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", rec.Code)
	}
}

func TestCreatePlaylist_validation(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec, _ := doJSON(t, srv, http.MethodPost, "/api/playlists", `{"name":"NoURL"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
	rec, _ = doJSON(t, srv, http.MethodPost, "/api/playlists", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestSearchAndCategories(t *testing.T) {
	srv, _, _ := newTestServer(t)
	content := `#EXTM3U
#EXTINF:-1 group-title="News",CNN
http://x/cnn
#EXTINF:-1 group-title="Sports",ESPN
http://x/espn
`
	rec, _ := doJSON(t, srv, http.MethodPost, "/api/playlists",
		`{"name":"P","url":"http://p.example/l.m3u","tenant_id":"t1","content":`+mustJSON(content)+`}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	rec, body := doJSON(t, srv, http.MethodGet, "/api/channels/search?q=cnn", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d", rec.Code)
	}
	if body["count"].(float64) != 1 {
		t.Errorf("count = %v", body["count"])
	}

	rec, body = doJSON(t, srv, http.MethodGet, "/api/categories?tenant_id=t1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("categories status = %d", rec.Code)
	}
	if body["count"].(float64) != 2 {
		t.Errorf("categories = %v", body)
	}

	// Empty store scoped to an unknown tenant still returns valid JSON.
	rec, body = doJSON(t, srv, http.MethodGet, "/api/channels/search?tenant_id=nobody&q=x", "")
	if rec.Code != http.StatusOK || body["count"].(float64) != 0 {
		t.Errorf("empty search: status = %d body = %v", rec.Code, body)
	}
}

func TestProbeEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec, _ := doJSON(t, srv, http.MethodGet, "/api/probe", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing url: status = %d", rec.Code)
	}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer upstream.Close()

	rec, body := doJSON(t, srv, http.MethodGet, "/api/probe?url="+upstream.URL, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("probe status = %d", rec.Code)
	}
	if body["online"] != false || body["error"] != "HTTP 404" {
		t.Errorf("probe body = %v", body)
	}

	rec, body = doJSON(t, srv, http.MethodGet, "/api/probe/deep?url=http://x/s", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("deep status = %d", rec.Code)
	}
	if body["status"] != "online" || body["container"] != "MPEG-TS" {
		t.Errorf("deep body = %v", body)
	}
}

func TestRefreshTrigger(t *testing.T) {
	srv, _, tr := newTestServer(t)
	rec, _ := doJSON(t, srv, http.MethodPost, "/api/refresh", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if tr.fired != 1 {
		t.Errorf("trigger fired %d times", tr.fired)
	}
}

func TestAccountRefresh(t *testing.T) {
	srv, st, _ := newTestServer(t)

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user_info":{"max_connections":3,"active_cons":1,"exp_date":1893456000}}`))
	}))
	defer api.Close()

	rec, created := doJSON(t, srv, http.MethodPost, "/api/playlists",
		`{"name":"P","url":"http://p.example/l.m3u","tenant_id":"t1","account_api_url":"`+api.URL+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	id := created["id"].(string)
	// Creation fetched metrics eagerly.
	if created["max_connections"].(float64) != 3 {
		t.Errorf("created metrics = %v", created)
	}

	rec, body := doJSON(t, srv, http.MethodPost, "/api/playlists/"+id+"/account", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("account refresh status = %d", rec.Code)
	}
	if body["max_connections"].(float64) != 3 || body["expiration"] != "01/01/2030" {
		t.Errorf("metrics = %v", body)
	}

	p, err := st.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if p.MetricsCheckedAt == nil {
		t.Error("metrics_checked_at not stamped")
	}

	// Playlist without an account API URL is a bad request.
	rec, created = doJSON(t, srv, http.MethodPost, "/api/playlists", `{"name":"Q","url":"http://q"}`)
	if rec.Code != http.StatusCreated {
		t.Fatal("create failed")
	}
	rec, _ = doJSON(t, srv, http.MethodPost, "/api/playlists/"+created["id"].(string)+"/account", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_") {
		t.Error("expected default collectors in scrape output")
	}
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
