// Package account fetches subscription metrics (connection counts,
// expiration) from provider account APIs. Providers disagree on response
// shape and key spelling, so each metric is resolved through an ordered
// alias table; new upstream formats are added to the table, not branched on.
package account

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/streamsentry/streamsentry/internal/catalog"
	"github.com/streamsentry/streamsentry/internal/httpclient"
)

// DefaultTimeout bounds one account-API fetch.
const DefaultTimeout = 10 * time.Second

const maxBody = 1 << 20

// Alias tables, tried in order; the first present, non-null value wins.
var (
	maxConnKeys    = []string{"max_connections", "maxConnections", "max_cons"}
	activeConnKeys = []string{"active_cons", "activeConnections", "active_connections"}
	expirationKeys = []string{"exp_date", "expDate", "expiry", "expiration"}
)

// Connector issues account-API requests.
type Connector struct {
	client  *http.Client
	timeout time.Duration
	agent   string
}

// New returns a Connector. client may be nil; timeout <= 0 means DefaultTimeout.
func New(client *http.Client, timeout time.Duration, userAgent string) *Connector {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if client == nil {
		client = httpclient.WithTimeout(timeout)
	}
	return &Connector{client: client, timeout: timeout, agent: userAgent}
}

// Fetch issues a single GET and normalizes the response. Metrics live in a
// nested "user_info" object on most providers, with the top-level object as
// fallback. Fetch never fails: a non-200 response or any error sets only
// the Error field and leaves the metrics unset.
func (c *Connector) Fetch(ctx context.Context, apiURL string) catalog.AccountMetrics {
	var m catalog.AccountMetrics
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		m.Error = err.Error()
		return m
	}
	if c.agent != "" {
		req.Header.Set("User-Agent", c.agent)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		m.Error = err.Error()
		return m
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		m.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return m
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		m.Error = err.Error()
		return m
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		m.Error = fmt.Sprintf("parse account response: %v", err)
		return m
	}
	info := doc
	if nested, ok := doc["user_info"].(map[string]any); ok {
		info = nested
	}

	if n, ok := resolveInt(info, maxConnKeys); ok {
		m.MaxConnections = &n
	}
	if n, ok := resolveInt(info, activeConnKeys); ok {
		m.ActiveConnections = &n
	}
	if v, ok := resolve(info, expirationKeys); ok {
		m.Expiration = formatExpiration(v)
	}
	return m
}

// resolve returns the first present, non-null value among keys.
func resolve(info map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := info[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// resolveInt resolves like resolve and coerces numbers and numeric-looking
// strings to int.
func resolveInt(info map[string]any, keys []string) (int, bool) {
	v, ok := resolve(info, keys)
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return int(x), true
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			return n, true
		}
	}
	return 0, false
}

// formatExpiration renders an integer (or integer-looking string) value as
// a UTC MM/DD/YYYY date, interpreting it as a Unix timestamp. Anything
// else is kept literally.
func formatExpiration(v any) string {
	switch x := v.(type) {
	case float64:
		return time.Unix(int64(x), 0).UTC().Format("01/02/2006")
	case string:
		if ts, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return time.Unix(ts, 0).UTC().Format("01/02/2006")
		}
		return x
	default:
		return fmt.Sprintf("%v", v)
	}
}
