// Package server exposes the playlist catalog and probing engine over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/streamsentry/streamsentry/internal/account"
	"github.com/streamsentry/streamsentry/internal/catalog"
	"github.com/streamsentry/streamsentry/internal/metrics"
	"github.com/streamsentry/streamsentry/internal/playlist"
	"github.com/streamsentry/streamsentry/internal/probe"
	"github.com/streamsentry/streamsentry/internal/store"
)

// Trigger requests an out-of-band refresh run.
type Trigger interface {
	TriggerNow()
}

// Server wires the HTTP routes to the engine components.
type Server struct {
	store    store.Store
	prober   *probe.Prober
	deep     *probe.DeepProber
	accounts *account.Connector
	refresh  Trigger
	mux      *http.ServeMux
}

// New builds a Server with all routes registered.
func New(st store.Store, pr *probe.Prober, dp *probe.DeepProber, ac *account.Connector, tr Trigger) *Server {
	s := &Server{
		store:    st,
		prober:   pr,
		deep:     dp,
		accounts: ac,
		refresh:  tr,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/channels/search", s.handleSearch)
	s.mux.HandleFunc("GET /api/categories", s.handleCategories)
	s.mux.HandleFunc("GET /api/probe", s.handleProbe)
	s.mux.HandleFunc("GET /api/probe/deep", s.handleDeepProbe)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)

	s.mux.HandleFunc("POST /api/playlists", s.handleCreatePlaylist)
	s.mux.HandleFunc("GET /api/playlists", s.handleListPlaylists)
	s.mux.HandleFunc("GET /api/playlists/{id}", s.handleGetPlaylist)
	s.mux.HandleFunc("PUT /api/playlists/{id}", s.handleUpdatePlaylist)
	s.mux.HandleFunc("DELETE /api/playlists/{id}", s.handleDeletePlaylist)
	s.mux.HandleFunc("POST /api/playlists/{id}/account", s.handleAccountRefresh)

	s.mux.Handle("GET /metrics", metrics.Handler())
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// playlistsFor resolves the tenant scope of a listing request. An empty
// tenant_id means all playlists.
func (s *Server) playlistsFor(r *http.Request) ([]catalog.PlaylistSource, error) {
	tenant := r.URL.Query().Get("tenant_id")
	if tenant == "" {
		return s.store.ListAll(r.Context())
	}
	return s.store.ListByTenant(r.Context(), tenant)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sources, err := s.playlistsFor(r)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "list playlists")
		return
	}
	results := playlist.Search(sources, r.URL.Query().Get("q"))
	if results == nil {
		results = []catalog.ChannelRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(results),
		"channels": results,
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	sources, err := s.playlistsFor(r)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "list playlists")
		return
	}
	cats := playlist.Categories(sources)
	if cats == nil {
		cats = []playlist.Category{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":      len(cats),
		"categories": cats,
	})
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	streamURL := r.URL.Query().Get("url")
	if streamURL == "" {
		writeErr(w, http.StatusBadRequest, "missing url parameter")
		return
	}
	start := time.Now()
	res := s.prober.Probe(r.Context(), streamURL)
	metrics.ProbeDuration.WithLabelValues("light").Observe(time.Since(start).Seconds())
	outcome := "online"
	if !res.Online {
		outcome = "offline"
	}
	metrics.Probes.WithLabelValues("light", outcome).Inc()
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeepProbe(w http.ResponseWriter, r *http.Request) {
	streamURL := r.URL.Query().Get("url")
	if streamURL == "" {
		writeErr(w, http.StatusBadRequest, "missing url parameter")
		return
	}
	start := time.Now()
	res := s.deep.Probe(r.Context(), streamURL)
	metrics.ProbeDuration.WithLabelValues("deep").Observe(time.Since(start).Seconds())
	metrics.Probes.WithLabelValues("deep", res.Status).Inc()
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refresh.TriggerNow()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh scheduled"})
}

type playlistRequest struct {
	Name          string `json:"name"`
	URL           string `json:"url"`
	Content       string `json:"content"`
	AccountAPIURL string `json:"account_api_url"`
	TenantID      string `json:"tenant_id"`
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" || req.URL == "" {
		writeErr(w, http.StatusBadRequest, "name and url are required")
		return
	}
	p := catalog.PlaylistSource{
		Name:          req.Name,
		URL:           req.URL,
		Content:       req.Content,
		AccountAPIURL: req.AccountAPIURL,
		TenantID:      req.TenantID,
	}
	created, err := s.store.Create(r.Context(), p)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "create playlist")
		return
	}
	// Account metrics are fetched eagerly at creation so the record is
	// useful before the first manual refresh.
	if created.AccountAPIURL != "" {
		m := s.accounts.Fetch(r.Context(), created.AccountAPIURL)
		if m.Error == "" {
			now := time.Now().UTC()
			if err := s.store.UpdateAccountMetrics(r.Context(), created.ID, m, now); err == nil {
				created.MaxConnections = m.MaxConnections
				created.ActiveConnections = m.ActiveConnections
				created.Expiration = m.Expiration
				created.MetricsCheckedAt = &now
			}
		} else {
			log.Printf("server: account metrics for %s: %s", created.Name, m.Error)
		}
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	sources, err := s.playlistsFor(r)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "list playlists")
		return
	}
	if sources == nil {
		sources = []catalog.PlaylistSource{}
	}
	// The raw playlist text can run to megabytes; listings omit it.
	for i := range sources {
		sources[i].Content = ""
	}
	writeJSON(w, http.StatusOK, sources)
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "playlist not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, "get playlist")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          *string `json:"name"`
		URL           *string `json:"url"`
		Content       *string `json:"content"`
		AccountAPIURL *string `json:"account_api_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id := r.PathValue("id")
	err := s.store.Update(r.Context(), id, store.Update{
		Name:          req.Name,
		URL:           req.URL,
		Content:       req.Content,
		AccountAPIURL: req.AccountAPIURL,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "playlist not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, "update playlist")
		return
	}
	p, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "get playlist")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	err := s.store.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "playlist not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, "delete playlist")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAccountRefresh(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "playlist not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, "get playlist")
		return
	}
	if p.AccountAPIURL == "" {
		writeErr(w, http.StatusBadRequest, "playlist has no account API URL")
		return
	}
	m := s.accounts.Fetch(r.Context(), p.AccountAPIURL)
	if m.Error == "" {
		if err := s.store.UpdateAccountMetrics(r.Context(), p.ID, m, time.Now().UTC()); err != nil {
			writeErr(w, http.StatusInternalServerError, "store account metrics")
			return
		}
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
