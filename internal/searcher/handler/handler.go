// Package handler exposes browse sessions, stateless search, collection
// reloads and the query cache over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/session"
	apperrors "github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/metrics"
)

const maxBodyBytes = 1 << 20

// Reloader replaces the live collection from the configured source.
type Reloader interface {
	Reload(ctx context.Context, reason string) (*document.Collection, error)
}

// Notifier asks every instance to reload, including this one.
type Notifier interface {
	Notify(ctx context.Context, reason string) error
}

// Tracker receives analytics events. *analytics.Collector implements it.
type Tracker interface {
	Track(event analytics.BrowseEvent)
}

// Config wires the handler's collaborators. Sessions is required; every
// other field may be left zero to disable the feature it backs.
type Config struct {
	Sessions       *session.Manager
	Reloader       Reloader
	Notifier       Notifier
	Cache          *cache.QueryCache
	Tracker        Tracker
	Metrics        *metrics.Metrics
	HighlightOpen  string
	HighlightClose string
	Tracing        bool
}

type Handler struct {
	sessions  *session.Manager
	reloader  Reloader
	notifier  Notifier
	cache     *cache.QueryCache
	tracker   Tracker
	metrics   *metrics.Metrics
	markOpen  string
	markClose string
	tracing   bool
	logger    *slog.Logger
}

func New(cfg Config) *Handler {
	if cfg.HighlightOpen == "" && cfg.HighlightClose == "" {
		cfg.HighlightOpen, cfg.HighlightClose = "<mark>", "</mark>"
	}
	return &Handler{
		sessions:  cfg.Sessions,
		reloader:  cfg.Reloader,
		notifier:  cfg.Notifier,
		cache:     cfg.Cache,
		tracker:   cfg.Tracker,
		metrics:   cfg.Metrics,
		markOpen:  cfg.HighlightOpen,
		markClose: cfg.HighlightClose,
		tracing:   cfg.Tracing,
		logger:    slog.Default().With("component", "browse-handler"),
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/sessions", h.CreateSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}", h.GetSession)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", h.DeleteSession)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/options", h.ReplaceOptions)
	mux.HandleFunc("PATCH /api/v1/sessions/{id}/options", h.UpdateOptions)
	mux.HandleFunc("POST /api/v1/sessions/{id}/toggle/{flag}", h.Toggle)
	mux.HandleFunc("POST /api/v1/sessions/{id}/step", h.Step)

	mux.HandleFunc("GET /api/v1/search", h.Search)

	mux.HandleFunc("GET /api/v1/collection", h.Collection)
	mux.HandleFunc("POST /api/v1/collection/reload", h.Reload)

	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":       "invalidated",
		"keys_deleted": deleted,
	})
}

func (h *Handler) track(event analytics.BrowseEvent) {
	if h.tracker == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	h.tracker.Track(event)
}

// decodeBody reads an optional JSON body into dst. An empty body leaves dst
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid request body: %v", err)
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError answers with the status carried by err. Messages of
// unexpected errors are not echoed to the client.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := http.StatusText(status)
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeError(w, status, message)
}
