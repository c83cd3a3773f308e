// Package manifest parses segmented-media manifests (HLS master and media
// playlists) into variant descriptors and picks a representative variant.
//
// Parsing never fails: unparseable attributes simply stay unset.
package manifest

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Stream classification strings reported on probe results.
const (
	TypeMaster = "HLS (master playlist)"
	TypeMedia  = "HLS (media playlist)"
)

// Variant is one encoded rendition declared in a master playlist.
type Variant struct {
	Bandwidth  int    `json:"-"`                     // bits/sec, used for selection
	Bitrate    string `json:"bitrate,omitempty"`     // "1200 kbps"
	Resolution string `json:"resolution,omitempty"`  // "1280x720"
	VideoCodec string `json:"video_codec,omitempty"` // e.g. "avc1.64001f"
	AudioCodec string `json:"audio_codec,omitempty"` // e.g. "mp4a.40.2"
	URL        string `json:"url,omitempty"`
}

// Summary is what a manifest contributes to a probe result: the stream
// classification, the representative variant's fields copied to the top
// level, and the full variant list.
type Summary struct {
	StreamType     string
	Bitrate        string
	Resolution     string
	VideoCodec     string
	AudioCodec     string
	Representative *Variant
	Variants       []Variant
}

var (
	reBandwidth  = regexp.MustCompile(`BANDWIDTH=(\d+)`)
	reResolution = regexp.MustCompile(`RESOLUTION=([^,\s]+)`)
	reCodecs     = regexp.MustCompile(`CODECS="([^"]*)"`)
)

// videoCodecPrefixes and audioCodecPrefixes classify CODECS tokens.
// Within one token list the last match of each kind wins.
var videoCodecPrefixes = []string{"avc", "hvc", "hev", "h264", "h265", "vp9", "vp09", "av01", "mp4v"}
var audioCodecPrefixes = []string{"mp4a", "aac", "ac-3", "ec-3", "opus", "vorbis", "mp3", "flac"}

// Parse scans a manifest body. Variant-declaration lines open a variant;
// the next non-comment line is that variant's URL. When at least one
// variant carries a bandwidth, the maximum-bitrate variant is selected as
// representative (strict >, so the first maximum encountered wins).
// A manifest with no variant declarations but a target-duration marker is
// classified as a single-rendition media playlist.
func Parse(body string) Summary {
	var s Summary
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(nil, 1<<20)

	var pending *Variant
	sawTargetDuration := false

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#EXT-X-STREAM-INF") {
			v := Variant{}
			if m := reBandwidth.FindStringSubmatch(line); m != nil {
				if bps, err := strconv.Atoi(m[1]); err == nil {
					v.Bandwidth = bps
					v.Bitrate = fmt.Sprintf("%.0f kbps", float64(bps)/1000)
				}
			}
			if m := reResolution.FindStringSubmatch(line); m != nil {
				v.Resolution = m[1]
			}
			if m := reCodecs.FindStringSubmatch(line); m != nil {
				v.VideoCodec, v.AudioCodec = classifyCodecs(m[1])
			}
			pending = &v
			continue
		}
		if strings.HasPrefix(line, "#EXT-X-TARGETDURATION") {
			sawTargetDuration = true
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if pending != nil {
			pending.URL = line
			s.Variants = append(s.Variants, *pending)
			pending = nil
		}
	}
	// A trailing variant declaration with no URL line still counts.
	if pending != nil {
		s.Variants = append(s.Variants, *pending)
	}

	best := -1
	for i := range s.Variants {
		if s.Variants[i].Bandwidth <= 0 {
			continue
		}
		if best < 0 || s.Variants[i].Bandwidth > s.Variants[best].Bandwidth {
			best = i
		}
	}
	if best >= 0 {
		s.Representative = &s.Variants[best]
		s.Bitrate = s.Variants[best].Bitrate
		s.Resolution = s.Variants[best].Resolution
		s.VideoCodec = s.Variants[best].VideoCodec
		s.AudioCodec = s.Variants[best].AudioCodec
	}
	switch {
	case len(s.Variants) > 0:
		s.StreamType = TypeMaster
	case sawTargetDuration:
		s.StreamType = TypeMedia
	}
	return s
}

// classifyCodecs splits a CODECS value ("avc1.64001f,mp4a.40.2") and
// assigns each token to video or audio by prefix; the last match of each
// kind in the list wins.
func classifyCodecs(list string) (video, audio string) {
	for _, tok := range strings.Split(list, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		lower := strings.ToLower(tok)
		if hasAnyPrefix(lower, videoCodecPrefixes) {
			video = tok
			continue
		}
		if hasAnyPrefix(lower, audioCodecPrefixes) {
			audio = tok
		}
	}
	return video, audio
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
