package refresh

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/streamsentry/streamsentry/internal/catalog"
	"github.com/streamsentry/streamsentry/internal/store"
)

// fakeStore records content updates in memory.
type fakeStore struct {
	mu        sync.Mutex
	playlists []catalog.PlaylistSource
	updated   map[string]string
}

func (f *fakeStore) ListAll(ctx context.Context) ([]catalog.PlaylistSource, error) {
	return f.playlists, nil
}

func (f *fakeStore) UpdateContentAndTimestamps(ctx context.Context, id, content string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updated == nil {
		f.updated = make(map[string]string)
	}
	f.updated[id] = content
	return nil
}

func (f *fakeStore) contentFor(id string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.updated[id]
	return c, ok
}

func (f *fakeStore) Create(ctx context.Context, p catalog.PlaylistSource) (catalog.PlaylistSource, error) {
	return p, nil
}
func (f *fakeStore) ListByTenant(ctx context.Context, tenantID string) ([]catalog.PlaylistSource, error) {
	return nil, nil
}
func (f *fakeStore) Get(ctx context.Context, id string) (*catalog.PlaylistSource, error) {
	return nil, store.ErrNotFound
}
func (f *fakeStore) Update(ctx context.Context, id string, fields store.Update) error { return nil }
func (f *fakeStore) Delete(ctx context.Context, id string) error                      { return nil }
func (f *fakeStore) UpdateAccountMetrics(ctx context.Context, id string, m catalog.AccountMetrics, now time.Time) error {
	return nil
}

func TestRefreshAll_failureIsolation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/good.m3u":
			w.Write([]byte("#EXTM3U\n#EXTINF:-1,OK\nhttp://x/ok\n"))
		case "/gone.m3u":
			w.WriteHeader(http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fs := &fakeStore{playlists: []catalog.PlaylistSource{
		{ID: "good", Name: "Good", URL: srv.URL + "/good.m3u"},
		{ID: "gone", Name: "Gone", URL: srv.URL + "/gone.m3u"},
		{ID: "dead", Name: "Dead", URL: "http://127.0.0.1:1/dead.m3u"},
	}}
	o := NewOrchestrator(fs, Options{
		FetchTimeout: 2 * time.Second,
		Concurrency:  2,
		RatePerSec:   100,
		Client:       srv.Client(),
	})
	o.RefreshAll(context.Background())

	content, ok := fs.contentFor("good")
	if !ok {
		t.Fatal("reachable playlist was not updated")
	}
	if content != "#EXTM3U\n#EXTINF:-1,OK\nhttp://x/ok\n" {
		t.Errorf("content = %q", content)
	}
	if _, ok := fs.contentFor("gone"); ok {
		t.Error("non-200 playlist must not be updated")
	}
	if _, ok := fs.contentFor("dead"); ok {
		t.Error("unreachable playlist must not be updated")
	}
}

func TestRefreshAll_emptyStore(t *testing.T) {
	o := NewOrchestrator(&fakeStore{}, Options{RatePerSec: 100})
	// Must return promptly and without panicking.
	o.RefreshAll(context.Background())
}

func TestRefreshAll_cancelledContext(t *testing.T) {
	fs := &fakeStore{playlists: []catalog.PlaylistSource{
		{ID: "a", Name: "A", URL: "http://127.0.0.1:1/a.m3u"},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := NewOrchestrator(fs, Options{RatePerSec: 100})
	o.RefreshAll(ctx)
	if _, ok := fs.contentFor("a"); ok {
		t.Error("cancelled batch must not update")
	}
}

// countingRunner counts RefreshAll invocations.
type countingRunner struct {
	mu   sync.Mutex
	n    int
	seen chan struct{}
}

func (c *countingRunner) RefreshAll(ctx context.Context) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	select {
	case c.seen <- struct{}{}:
	default:
	}
}

func (c *countingRunner) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func waitRun(t *testing.T, r *countingRunner) {
	t.Helper()
	select {
	case <-r.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a run")
	}
}

func TestScheduler_immediateRunAndTrigger(t *testing.T) {
	r := &countingRunner{seen: make(chan struct{}, 1)}
	s := NewScheduler(r, time.Hour)
	s.Start(context.Background())
	defer s.Stop()

	waitRun(t, r) // run on start, before the first tick

	s.TriggerNow()
	waitRun(t, r)
	if got := r.count(); got < 2 {
		t.Errorf("runs = %d, want >= 2", got)
	}
}

func TestScheduler_interval(t *testing.T) {
	r := &countingRunner{seen: make(chan struct{}, 1)}
	s := NewScheduler(r, 30*time.Millisecond)
	s.Start(context.Background())
	defer s.Stop()

	waitRun(t, r) // immediate
	waitRun(t, r) // first tick
}

func TestScheduler_startIdempotentAndRestartable(t *testing.T) {
	r := &countingRunner{seen: make(chan struct{}, 1)}
	s := NewScheduler(r, time.Hour)
	s.Start(context.Background())
	s.Start(context.Background()) // no-op while running
	waitRun(t, r)
	s.Stop()
	s.Stop() // no-op when stopped

	s.Start(context.Background())
	defer s.Stop()
	waitRun(t, r) // restart runs again
}

func TestScheduler_contextCancelStopsLoop(t *testing.T) {
	r := &countingRunner{seen: make(chan struct{}, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(r, time.Hour)
	s.Start(ctx)
	waitRun(t, r)
	cancel()
	// Stop still returns even after the loop exited on its own.
	done := make(chan struct{})
	go func() { s.Stop(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after context cancel")
	}
}
