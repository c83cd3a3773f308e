// Package catalog holds the shared domain types for playlist sources and
// the channel records derived from them. Channel records are never
// persisted: they are recomputed from the raw playlist text on every query.
package catalog

import "time"

// PlaylistSource is one stored playlist: a source URL plus the raw text
// fetched from it. Content and the refresh timestamps are mutated only by
// the refresh orchestrator; name/url/content/account-API change only via
// explicit update requests.
type PlaylistSource struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	AccountAPIURL string     `json:"account_api_url,omitempty"`
	Content       string     `json:"content,omitempty"`
	TenantID      string     `json:"tenant_id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastRefresh   *time.Time `json:"last_refresh,omitempty"`

	// Account metrics, set only when explicitly fetched (at creation or
	// on manual refresh). Pointer fields: nil = never fetched.
	MaxConnections    *int       `json:"max_connections,omitempty"`
	ActiveConnections *int       `json:"active_connections,omitempty"`
	Expiration        string     `json:"expiration,omitempty"`
	MetricsCheckedAt  *time.Time `json:"metrics_checked_at,omitempty"`
}

// ChannelRecord is one channel parsed out of a playlist, tagged with the
// playlist it came from. Derived, not persisted.
type ChannelRecord struct {
	Name         string `json:"name"`
	URL          string `json:"url"`
	Group        string `json:"group,omitempty"`
	Logo         string `json:"logo,omitempty"`
	PlaylistID   string `json:"playlist_id"`
	PlaylistName string `json:"playlist_name"`
}

// AccountMetrics is the normalized result of querying a provider's
// account API. A failed fetch sets only Error and leaves the metrics nil.
type AccountMetrics struct {
	MaxConnections    *int   `json:"max_connections,omitempty"`
	ActiveConnections *int   `json:"active_connections,omitempty"`
	Expiration        string `json:"expiration,omitempty"`
	Error             string `json:"error,omitempty"`
}
