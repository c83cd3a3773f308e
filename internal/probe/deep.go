package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultDeepTimeout is the hard cap around one media-inspector invocation.
const DefaultDeepTimeout = 15 * time.Second

// Deep probe status values.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusTimeout = "timeout"
	StatusError   = "error"
)

// MediaInspector runs an external media-inspection capability against a
// stream URL and returns its raw structured output. Implementations must
// honor ctx cancellation. A nonzero tool exit is reported as *InspectExitError.
type MediaInspector interface {
	Inspect(ctx context.Context, streamURL string) ([]byte, error)
}

// InspectExitError reports that the inspection tool ran but exited nonzero.
type InspectExitError struct {
	Stderr string
}

func (e *InspectExitError) Error() string {
	return "inspector exited nonzero: " + e.Stderr
}

// DeepResult is the outcome of a deep media-inspection probe.
// Only the first video and first audio track are reported even when the
// container carries more. Raw keeps the inspector's verbatim output for
// diagnostics.
type DeepResult struct {
	URL        string          `json:"url"`
	Status     string          `json:"status"`
	Online     bool            `json:"online"`
	Error      string          `json:"error,omitempty"`
	Container  string          `json:"container,omitempty"`
	Duration   string          `json:"duration,omitempty"`    // "M:SS"
	Bitrate    string          `json:"bitrate,omitempty"`     // "2500 kbps"
	VideoCodec string          `json:"video_codec,omitempty"` // codec long name
	Resolution string          `json:"resolution,omitempty"`  // "1920x1080"
	FPS        string          `json:"fps,omitempty"`         // "25.00"
	AudioCodec string          `json:"audio_codec,omitempty"` // codec long name
	SampleRate string          `json:"sample_rate,omitempty"` // "48.0 kHz"
	Channels   int             `json:"channels,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// DeepProber wraps a MediaInspector with the probe timeout and output
// normalization.
type DeepProber struct {
	inspector MediaInspector
	timeout   time.Duration
}

// NewDeep returns a DeepProber. timeout <= 0 means DefaultDeepTimeout.
func NewDeep(inspector MediaInspector, timeout time.Duration) *DeepProber {
	if timeout <= 0 {
		timeout = DefaultDeepTimeout
	}
	return &DeepProber{inspector: inspector, timeout: timeout}
}

// Probe runs the inspector under the hard timeout and normalizes its
// output. Probe never fails; every failure mode maps to a status.
func (p *DeepProber) Probe(ctx context.Context, streamURL string) DeepResult {
	res := DeepResult{URL: streamURL, Status: StatusError}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.inspector.Inspect(ctx, streamURL)
	if err != nil {
		var exitErr *InspectExitError
		switch {
		case ctx.Err() == context.DeadlineExceeded:
			res.Status = StatusTimeout
			res.Error = "Timeout"
		case errors.As(err, &exitErr):
			res.Status = StatusOffline
			res.Error = truncate(strings.TrimSpace(exitErr.Stderr), 200)
		default:
			res.Status = StatusError
			res.Error = err.Error()
		}
		return res
	}

	var out inspectorOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		res.Error = fmt.Sprintf("parse inspector output: %v", err)
		return res
	}

	res.Status = StatusOnline
	res.Online = true
	res.Raw = json.RawMessage(raw)
	res.Container = out.Format.FormatLongName
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil && d > 0 {
		res.Duration = fmt.Sprintf("%d:%02d", int(d)/60, int(d)%60)
	}
	if bps, err := strconv.ParseFloat(out.Format.BitRate, 64); err == nil && bps > 0 {
		res.Bitrate = fmt.Sprintf("%.0f kbps", bps/1000)
	}

	for _, st := range out.Streams {
		switch st.CodecType {
		case "video":
			if res.VideoCodec != "" {
				continue // first video track only
			}
			res.VideoCodec = st.CodecLongName
			if st.Width > 0 && st.Height > 0 {
				res.Resolution = fmt.Sprintf("%dx%d", st.Width, st.Height)
			}
			if fps, ok := parseRatio(st.AvgFrameRate); ok {
				res.FPS = fmt.Sprintf("%.2f", fps)
			} else if fps, ok := parseRatio(st.RFrameRate); ok {
				res.FPS = fmt.Sprintf("%.2f", fps)
			}
		case "audio":
			if res.AudioCodec != "" {
				continue // first audio track only
			}
			res.AudioCodec = st.CodecLongName
			if hz, err := strconv.ParseFloat(st.SampleRate, 64); err == nil && hz > 0 {
				res.SampleRate = fmt.Sprintf("%.1f kHz", hz/1000)
			}
			res.Channels = st.Channels
		}
	}
	return res
}

// inspectorOutput mirrors the subset of ffprobe's -print_format json output
// the deep probe consumes.
type inspectorOutput struct {
	Format struct {
		FormatLongName string `json:"format_long_name"`
		Duration       string `json:"duration"`
		BitRate        string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType     string `json:"codec_type"`
		CodecLongName string `json:"codec_long_name"`
		Width         int    `json:"width"`
		Height        int    `json:"height"`
		AvgFrameRate  string `json:"avg_frame_rate"`
		RFrameRate    string `json:"r_frame_rate"`
		SampleRate    string `json:"sample_rate"`
		Channels      int    `json:"channels"`
	} `json:"streams"`
}

// parseRatio evaluates a "num/den" frame-rate string. "0/0" and division
// by zero report not-ok.
func parseRatio(s string) (float64, bool) {
	num, den, found := strings.Cut(s, "/")
	if !found {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
			return f, true
		}
		return 0, false
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 || n <= 0 {
		return 0, false
	}
	return n / d, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
