// Package store persists playlist sources. The probing engine only reads
// playlists and writes derived fields (content, refresh timestamps,
// account metrics); record lifecycle is driven by the request layer.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/streamsentry/streamsentry/internal/catalog"
)

// ErrNotFound is returned when a playlist id does not exist.
var ErrNotFound = errors.New("store: playlist not found")

// Store defines persistence for playlist sources.
type Store interface {
	// Create inserts a new playlist and returns it with id and timestamps set.
	Create(ctx context.Context, p catalog.PlaylistSource) (catalog.PlaylistSource, error)
	// ListAll returns every playlist across all tenants (refresh is a
	// system-wide maintenance operation).
	ListAll(ctx context.Context) ([]catalog.PlaylistSource, error)
	// ListByTenant returns the playlists owned by one tenant.
	ListByTenant(ctx context.Context, tenantID string) ([]catalog.PlaylistSource, error)
	// Get returns one playlist by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*catalog.PlaylistSource, error)
	// Update changes mutable fields; nil pointer fields are left untouched.
	Update(ctx context.Context, id string, fields Update) error
	// Delete removes a playlist, or ErrNotFound.
	Delete(ctx context.Context, id string) error

	// UpdateContentAndTimestamps overwrites the raw playlist text and
	// stamps updated_at and last_refresh. Called only by the refresh
	// orchestrator after a successful fetch.
	UpdateContentAndTimestamps(ctx context.Context, id, content string, now time.Time) error
	// UpdateAccountMetrics persists fetched account metrics and stamps
	// metrics_checked_at.
	UpdateAccountMetrics(ctx context.Context, id string, m catalog.AccountMetrics, now time.Time) error
}

// Update holds mutable playlist fields. Pointer fields: nil = don't change.
type Update struct {
	Name          *string
	URL           *string
	Content       *string
	AccountAPIURL *string
}
