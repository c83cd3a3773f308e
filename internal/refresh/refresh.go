// Package refresh re-fetches every stored playlist's source URL and
// overwrites the stored raw text. One playlist's failure never aborts the
// batch; errors are logged and the batch continues.
package refresh

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/streamsentry/streamsentry/internal/catalog"
	"github.com/streamsentry/streamsentry/internal/httpclient"
	"github.com/streamsentry/streamsentry/internal/metrics"
	"github.com/streamsentry/streamsentry/internal/store"
)

// DefaultFetchTimeout bounds one playlist fetch within a batch.
const DefaultFetchTimeout = 30 * time.Second

const maxPlaylistBody = 64 << 20 // 64 MiB; large provider exports are real

// Options tune a batch run.
type Options struct {
	FetchTimeout time.Duration // per-playlist; default DefaultFetchTimeout
	Concurrency  int           // parallel fetches; default 4
	RatePerSec   float64       // request pacing across the batch; default 2/s
	UserAgent    string
	Client       *http.Client // nil = tuned default
}

// Orchestrator runs refresh batches against the playlist store.
type Orchestrator struct {
	store   store.Store
	client  *http.Client
	timeout time.Duration
	conc    int
	limiter *rate.Limiter
	agent   string
}

// NewOrchestrator wires a store to the fetch options.
func NewOrchestrator(s store.Store, opts Options) *Orchestrator {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 2
	}
	client := opts.Client
	if client == nil {
		client = httpclient.WithTimeout(opts.FetchTimeout)
	}
	return &Orchestrator{
		store:   s,
		client:  client,
		timeout: opts.FetchTimeout,
		conc:    opts.Concurrency,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
		agent:   opts.UserAgent,
	}
}

// RefreshAll fetches every known playlist across all tenants and stores the
// updated content. Errors are never propagated: a playlist that cannot be
// listed, fetched, or stored is logged and skipped.
func (o *Orchestrator) RefreshAll(ctx context.Context) {
	playlists, err := o.store.ListAll(ctx)
	if err != nil {
		log.Printf("refresh: list playlists: %v", err)
		return
	}
	log.Printf("refresh: starting batch of %d playlist(s)", len(playlists))

	sem := make(chan struct{}, o.conc)
	var wg sync.WaitGroup
	for i := range playlists {
		p := playlists[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()
			if err := o.limiter.Wait(ctx); err != nil {
				return
			}
			if err := o.refreshOne(ctx, p); err != nil {
				log.Printf("refresh: %s (%s): %v", p.Name, p.ID, err)
			} else {
				log.Printf("refresh: %s updated", p.Name)
			}
		}()
	}
	wg.Wait()
	metrics.RefreshRuns.Inc()
	log.Printf("refresh: batch complete")
}

// refreshOne fetches one playlist's source URL and stores the new content
// with fresh updated/last-refresh timestamps. Anything but HTTP 200 skips
// the playlist.
func (o *Orchestrator) refreshOne(ctx context.Context, p catalog.PlaylistSource) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		metrics.RefreshPlaylists.WithLabelValues("fetch_error").Inc()
		return fmt.Errorf("build request: %w", err)
	}
	if o.agent != "" {
		req.Header.Set("User-Agent", o.agent)
	}
	req.Header.Set("Accept-Encoding", httpclient.AcceptEncoding)

	resp, err := o.client.Do(req)
	if err != nil {
		metrics.RefreshPlaylists.WithLabelValues("fetch_error").Inc()
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.RefreshPlaylists.WithLabelValues("http_error").Inc()
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := httpclient.DecodedBody(resp)
	if err != nil {
		metrics.RefreshPlaylists.WithLabelValues("fetch_error").Inc()
		return fmt.Errorf("decode body: %w", err)
	}
	defer body.Close()
	content, err := io.ReadAll(io.LimitReader(body, maxPlaylistBody))
	if err != nil {
		metrics.RefreshPlaylists.WithLabelValues("fetch_error").Inc()
		return fmt.Errorf("read body: %w", err)
	}

	if err := o.store.UpdateContentAndTimestamps(ctx, p.ID, string(content), time.Now().UTC()); err != nil {
		metrics.RefreshPlaylists.WithLabelValues("store_error").Inc()
		return fmt.Errorf("store: %w", err)
	}
	metrics.RefreshPlaylists.WithLabelValues("ok").Inc()
	return nil
}
