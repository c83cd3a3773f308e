// Package probe checks whether stream URLs are reachable and classifiable.
// It offers two independent strategies: a lightweight single-request probe
// that classifies by content type (delegating manifest bodies to the
// manifest parser), and a deep probe that runs an external media inspector
// against the URL.
//
// Probes never return errors to callers: every failure mode resolves to a
// result value with the error captured on it.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/streamsentry/streamsentry/internal/httpclient"
	"github.com/streamsentry/streamsentry/internal/manifest"
)

// DefaultTimeout bounds a lightweight probe.
const DefaultTimeout = 10 * time.Second

// maxManifestBody caps how much of a manifest response we read.
const maxManifestBody = 2 << 20

// Result is the outcome of a lightweight reachability probe.
type Result struct {
	URL        string             `json:"url"`
	Online     bool               `json:"online"`
	ResponseMs int64              `json:"response_ms"`
	Error      string             `json:"error,omitempty"`
	StreamType string             `json:"stream_type,omitempty"`
	Bitrate    string             `json:"bitrate,omitempty"`
	Resolution string             `json:"resolution,omitempty"`
	VideoCodec string             `json:"video_codec,omitempty"`
	AudioCodec string             `json:"audio_codec,omitempty"`
	Variants   []manifest.Variant `json:"variants,omitempty"`
}

// Prober issues lightweight reachability probes.
type Prober struct {
	client  *http.Client
	timeout time.Duration
	logf    func(format string, v ...any)
}

// New returns a Prober. client may be nil to use a tuned default;
// timeout <= 0 means DefaultTimeout.
func New(client *http.Client, timeout time.Duration, logf func(format string, v ...any)) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if client == nil {
		client = httpclient.WithTimeout(timeout)
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Prober{client: client, timeout: timeout, logf: logf}
}

// Probe issues one GET (redirects followed) and classifies the response.
// All failures land in Result.Error; Probe itself never fails.
func (p *Prober) Probe(ctx context.Context, streamURL string) Result {
	res := Result{URL: streamURL}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		res.ResponseMs = time.Since(start).Milliseconds()
		res.Error = err.Error()
		return res
	}
	resp, err := p.client.Do(req)
	res.ResponseMs = time.Since(start).Milliseconds()
	if err != nil {
		if isTimeout(err) {
			res.Error = "Timeout"
		} else {
			res.Error = err.Error()
		}
		return res
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent, http.StatusMovedPermanently, http.StatusFound:
		res.Online = true
	default:
		res.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return res
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case isManifestResponse(ct, streamURL):
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBody))
		if err != nil {
			// Reachable but unclassifiable; log and keep the online result.
			p.logf("probe %s: read manifest: %v", streamURL, err)
			return res
		}
		sum := manifest.Parse(string(body))
		res.StreamType = sum.StreamType
		res.Bitrate = sum.Bitrate
		res.Resolution = sum.Resolution
		res.VideoCodec = sum.VideoCodec
		res.AudioCodec = sum.AudioCodec
		res.Variants = sum.Variants
	case strings.HasPrefix(ct, "video/"), strings.HasPrefix(ct, "audio/"):
		res.StreamType = directStreamType(ct)
		if resp.ContentLength > 0 {
			res.Bitrate = fmt.Sprintf("%.1f MB", float64(resp.ContentLength)/1e6)
		}
	}
	return res
}

// isManifestResponse reports whether the declared content type or the URL's
// file extension indicates a segmented-manifest format.
func isManifestResponse(ct, streamURL string) bool {
	if strings.Contains(ct, "mpegurl") || strings.Contains(ct, "m3u8") {
		return true
	}
	if u, err := url.Parse(streamURL); err == nil {
		path := strings.ToLower(u.Path)
		return strings.HasSuffix(path, ".m3u8") || strings.HasSuffix(path, ".m3u")
	}
	return false
}

// directStreamType labels a raw audio/video response, e.g.
// "video/mp4" -> "Direct stream (mp4)".
func directStreamType(ct string) string {
	if i := strings.IndexAny(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	sub := ct
	if i := strings.Index(ct, "/"); i >= 0 {
		sub = ct[i+1:]
	}
	return "Direct stream (" + strings.TrimSpace(sub) + ")"
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if ue, ok := err.(*url.Error); ok && ue.Timeout() {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "context deadline exceeded") || strings.Contains(msg, "Client.Timeout")
}
