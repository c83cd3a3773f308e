package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/streamsentry/streamsentry/internal/catalog"
)

const schema = `
CREATE TABLE IF NOT EXISTS playlists (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	url                TEXT NOT NULL,
	account_api_url    TEXT NOT NULL DEFAULT '',
	content            TEXT,
	tenant_id          TEXT NOT NULL,
	created_at         TIMESTAMP NOT NULL,
	updated_at         TIMESTAMP NOT NULL,
	last_refresh       TIMESTAMP,
	max_connections    INTEGER,
	active_connections INTEGER,
	expiration         TEXT NOT NULL DEFAULT '',
	metrics_checked_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_playlists_tenant ON playlists(tenant_id);
`

// SQLite is the Store implementation backed by a local SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and ensures
// the schema exists.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent refresh + API writes.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Create(ctx context.Context, p catalog.PlaylistSource) (catalog.PlaylistSource, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO playlists (id, name, url, account_api_url, content, tenant_id, created_at, updated_at, last_refresh,
			max_connections, active_connections, expiration, metrics_checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.URL, p.AccountAPIURL, nullString(p.Content), p.TenantID,
		p.CreatedAt, p.UpdatedAt, nullTime(p.LastRefresh),
		nullInt(p.MaxConnections), nullInt(p.ActiveConnections), p.Expiration, nullTime(p.MetricsCheckedAt))
	if err != nil {
		return catalog.PlaylistSource{}, fmt.Errorf("insert playlist: %w", err)
	}
	return p, nil
}

const selectCols = `id, name, url, account_api_url, content, tenant_id, created_at, updated_at, last_refresh,
	max_connections, active_connections, expiration, metrics_checked_at`

func (s *SQLite) ListAll(ctx context.Context) ([]catalog.PlaylistSource, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectCols+` FROM playlists ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	defer rows.Close()
	return scanPlaylists(rows)
}

func (s *SQLite) ListByTenant(ctx context.Context, tenantID string) ([]catalog.PlaylistSource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectCols+` FROM playlists WHERE tenant_id = ? ORDER BY created_at, id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list playlists for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()
	return scanPlaylists(rows)
}

func (s *SQLite) Get(ctx context.Context, id string) (*catalog.PlaylistSource, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectCols+` FROM playlists WHERE id = ?`, id)
	p, err := scanPlaylist(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get playlist %s: %w", id, err)
	}
	return &p, nil
}

func (s *SQLite) Update(ctx context.Context, id string, fields Update) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}
	if fields.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *fields.Name)
	}
	if fields.URL != nil {
		sets = append(sets, "url = ?")
		args = append(args, *fields.URL)
	}
	if fields.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *fields.Content)
	}
	if fields.AccountAPIURL != nil {
		sets = append(sets, "account_api_url = ?")
		args = append(args, *fields.AccountAPIURL)
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		"UPDATE playlists SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update playlist %s: %w", id, err)
	}
	return checkAffected(res)
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete playlist %s: %w", id, err)
	}
	return checkAffected(res)
}

func (s *SQLite) UpdateContentAndTimestamps(ctx context.Context, id, content string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE playlists SET content = ?, updated_at = ?, last_refresh = ? WHERE id = ?`,
		content, now.UTC(), now.UTC(), id)
	if err != nil {
		return fmt.Errorf("update content for %s: %w", id, err)
	}
	return checkAffected(res)
}

func (s *SQLite) UpdateAccountMetrics(ctx context.Context, id string, m catalog.AccountMetrics, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE playlists SET max_connections = ?, active_connections = ?, expiration = ?, metrics_checked_at = ? WHERE id = ?`,
		nullInt(m.MaxConnections), nullInt(m.ActiveConnections), m.Expiration, now.UTC(), id)
	if err != nil {
		return fmt.Errorf("update account metrics for %s: %w", id, err)
	}
	return checkAffected(res)
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlaylist(row rowScanner) (catalog.PlaylistSource, error) {
	var p catalog.PlaylistSource
	var content sql.NullString
	var lastRefresh, metricsAt sql.NullTime
	var maxConn, activeConn sql.NullInt64
	err := row.Scan(&p.ID, &p.Name, &p.URL, &p.AccountAPIURL, &content, &p.TenantID,
		&p.CreatedAt, &p.UpdatedAt, &lastRefresh, &maxConn, &activeConn, &p.Expiration, &metricsAt)
	if err != nil {
		return p, err
	}
	p.Content = content.String
	if lastRefresh.Valid {
		t := lastRefresh.Time
		p.LastRefresh = &t
	}
	if metricsAt.Valid {
		t := metricsAt.Time
		p.MetricsCheckedAt = &t
	}
	if maxConn.Valid {
		n := int(maxConn.Int64)
		p.MaxConnections = &n
	}
	if activeConn.Valid {
		n := int(activeConn.Int64)
		p.ActiveConnections = &n
	}
	return p, nil
}

func scanPlaylists(rows *sql.Rows) ([]catalog.PlaylistSource, error) {
	var out []catalog.PlaylistSource
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}
