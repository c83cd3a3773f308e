// Package playlist parses channel-list playlist text (#EXTINF metadata
// line followed by a stream URL line) into channel records, and answers
// search and category queries over the parsed channels.
//
// Parsing never fails: malformed input yields a partial or empty result.
// Channels are re-derived from the raw text on every call; identical input
// always produces the identical, order-preserving record sequence.
package playlist

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/streamsentry/streamsentry/internal/catalog"
)

const maxLineSize = 1 << 20 // 1 MiB per line; some EXTINF lines are very long

var (
	reLogo  = regexp.MustCompile(`tvg-logo="([^"]*)"`)
	reGroup = regexp.MustCompile(`group-title="([^"]*)"`)
)

// Parse extracts channel records from playlist text. The originating
// playlist's identity and name are stamped onto every record.
func Parse(text, playlistID, playlistName string) []catalog.ChannelRecord {
	if text == "" {
		return nil
	}
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(nil, maxLineSize)

	var out []catalog.ChannelRecord
	var pending catalog.ChannelRecord
	havePending := false

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#EXTINF") {
			// A metadata line opens a new record; an earlier EXTINF with
			// no URL is overwritten (last one wins).
			pending = catalog.ChannelRecord{
				Name:         nameFromEXTINF(line),
				Logo:         matchFirst(reLogo, line),
				Group:        matchFirst(reGroup, line),
				PlaylistID:   playlistID,
				PlaylistName: playlistName,
			}
			havePending = true
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		// URL line. Without a preceding metadata line it is an orphan and
		// is discarded.
		if !havePending {
			continue
		}
		pending.URL = line
		out = append(out, pending)
		pending = catalog.ChannelRecord{}
		havePending = false
	}
	return out
}

// nameFromEXTINF returns the free-text display name: everything after the
// last comma on the metadata line. Attribute values may themselves contain
// commas, which is why the last comma wins.
func nameFromEXTINF(line string) string {
	if i := strings.LastIndex(line, ","); i >= 0 {
		return strings.TrimSpace(line[i+1:])
	}
	return ""
}

func matchFirst(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}
