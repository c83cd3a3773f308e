package playlist

import (
	"sort"
	"strings"

	"github.com/streamsentry/streamsentry/internal/catalog"
)

// SearchLimit caps the number of records returned by Search.
const SearchLimit = 100

// Search returns channels whose name contains query (case-insensitive),
// across all given playlists, capped at SearchLimit. Results are ordered
// playlist-by-playlist in the given order, then channel order within each
// playlist, so repeated calls on unchanged input are deterministic.
func Search(sources []catalog.PlaylistSource, query string) []catalog.ChannelRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []catalog.ChannelRecord
	for _, src := range sources {
		for _, ch := range Parse(src.Content, src.ID, src.Name) {
			if q != "" && !strings.Contains(strings.ToLower(ch.Name), q) {
				continue
			}
			out = append(out, ch)
			if len(out) >= SearchLimit {
				return out
			}
		}
	}
	return out
}

// Category is one distinct group label with the playlist it came from.
type Category struct {
	Name         string `json:"name"`
	PlaylistName string `json:"playlist_name"`
}

// Categories returns the distinct group labels across all given playlists,
// stable-sorted by label. A label appearing in several playlists is
// reported once, attributed to the first playlist that carried it.
func Categories(sources []catalog.PlaylistSource) []Category {
	seen := make(map[string]bool)
	var out []Category
	for _, src := range sources {
		for _, ch := range Parse(src.Content, src.ID, src.Name) {
			if ch.Group == "" || seen[ch.Group] {
				continue
			}
			seen[ch.Group] = true
			out = append(out, Category{Name: ch.Group, PlaylistName: src.Name})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
