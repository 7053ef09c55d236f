package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/filter"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/highlight"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/session"
	apperrors "github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/tracing"
)

// SearchResponse is a one-off filter view plus request metadata. Markup is
// filled only when the request asks for it.
type SearchResponse struct {
	session.View
	CacheHit  bool        `json:"cache_hit"`
	LatencyMs int64       `json:"latency_ms"`
	Markup    []MarkupDoc `json:"markup,omitempty"`
}

// MarkupDoc is a document's title and body with matches wrapped in the
// configured highlight markers. Text is HTML-escaped.
type MarkupDoc struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// parseSearchOptions reads q, case, exclude and sort from the query string.
func parseSearchOptions(r *http.Request) (filter.Options, error) {
	q := r.URL.Query()
	opts := filter.Options{Query: q.Get("q")}

	var err error
	if opts.CaseSensitive, err = parseFlag(q.Get("case")); err != nil {
		return opts, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "case must be a boolean")
	}
	if opts.ExcludeMode, err = parseFlag(q.Get("exclude")); err != nil {
		return opts, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "exclude must be a boolean")
	}
	if opts.Sort, err = filter.ParseSortMode(q.Get("sort")); err != nil {
		return opts, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, err.Error())
	}
	return opts, nil
}

func parseFlag(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

// Search filters the current collection without creating a session. Results
// are cached per collection version, so a reload never serves stale views.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	opts, err := parseSearchOptions(r)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	withMarkup, _ := parseFlag(r.URL.Query().Get("markup"))

	var span *tracing.Span
	if h.tracing {
		ctx, span = tracing.StartSpan(ctx, "search", middleware.GetRequestID(ctx))
		span.SetAttr("query", opts.Query)
		span.SetAttr("sort", string(opts.Sort))
	}

	col := h.sessions.Catalog().Snapshot()
	key := cache.Key{Version: col.Version, Options: opts}
	compute := func() (*session.View, error) {
		var evalSpan *tracing.Span
		if span != nil {
			_, evalSpan = tracing.StartChildSpan(ctx, "evaluate")
		}
		view := session.Evaluate(h.sessions.Engine(), col, opts)
		if evalSpan != nil {
			evalSpan.SetAttr("documents", len(view.Documents))
			evalSpan.End()
		}
		return &view, nil
	}

	var view *session.View
	cacheHit := false
	if h.cache != nil {
		view, cacheHit, err = h.cache.GetOrCompute(ctx, key, compute)
	} else {
		view, err = compute()
	}
	if err != nil {
		log.Error("search failed", "query", opts.Query, "error", err)
		h.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	resp := SearchResponse{View: *view, CacheHit: cacheHit}
	if withMarkup {
		resp.Markup = h.markup(view)
	}
	elapsed := time.Since(start)
	resp.LatencyMs = elapsed.Milliseconds()

	matches := len(view.MatchedIndices)
	zero := opts.Query != "" && len(view.Documents) == 0
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	}
	if h.metrics != nil {
		h.metrics.FilterRecomputesTotal.WithLabelValues("stateless").Inc()
		h.metrics.FilterLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
		h.metrics.FilterResultCount.Observe(float64(len(view.Documents)))
		if cacheHit {
			h.metrics.CacheHitsTotal.Inc()
		} else {
			h.metrics.CacheMissesTotal.Inc()
		}
		if zero {
			h.metrics.ZeroResultQueries.Inc()
		}
	}

	if span != nil {
		span.SetAttr("cache", cacheStatus)
		span.SetAttr("matches", matches)
		span.Finish(log)
	}

	log.Info("search completed",
		"query", opts.Query,
		"case_sensitive", opts.CaseSensitive,
		"exclude", opts.ExcludeMode,
		"sort", opts.Sort,
		"documents", len(view.Documents),
		"matches", matches,
		"cache_hit", cacheHit,
		"latency_ms", resp.LatencyMs,
	)

	eventType := analytics.EventSearch
	if zero {
		eventType = analytics.EventZeroResult
	}
	h.track(analytics.BrowseEvent{
		Type:          eventType,
		Query:         opts.Query,
		CaseSensitive: opts.CaseSensitive,
		ExcludeMode:   opts.ExcludeMode,
		Sort:          string(opts.Sort),
		Documents:     len(view.Documents),
		Matches:       matches,
		LatencyMs:     resp.LatencyMs,
		CacheHit:      cacheHit,
		RequestID:     middleware.GetRequestID(ctx),
	})

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) markup(view *session.View) []MarkupDoc {
	out := make([]MarkupDoc, len(view.Documents))
	for i, d := range view.Documents {
		out[i] = MarkupDoc{
			ID:    d.ID,
			Title: highlight.Markup(d.TitleSpans, h.markOpen, h.markClose, true),
			Body:  highlight.Markup(d.BodySpans, h.markOpen, h.markClose, true),
		}
	}
	return out
}

// CollectionInfo describes the live collection.
type CollectionInfo struct {
	Loaded    bool      `json:"loaded"`
	Version   int64     `json:"version"`
	Documents int       `json:"documents"`
	LoadedAt  time.Time `json:"loaded_at"`
	Sessions  int       `json:"sessions"`
}

func (h *Handler) collectionInfo() CollectionInfo {
	catalog := h.sessions.Catalog()
	col := catalog.Snapshot()
	return CollectionInfo{
		Loaded:    catalog.Loaded(),
		Version:   col.Version,
		Documents: col.Len(),
		LoadedAt:  col.LoadedAt,
		Sessions:  h.sessions.Len(),
	}
}

func (h *Handler) Collection(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.collectionInfo())
}

// Reload refreshes the collection from its source. With a notifier configured
// the request is broadcast and answered with 202; otherwise the reload runs
// inline and a failure leaves the current collection in place.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if h.notifier != nil {
		if err := h.notifier.Notify(ctx, "api"); err != nil {
			log.Error("publishing reload request failed", "error", err)
			h.writeError(w, http.StatusBadGateway, "failed to publish reload request")
			return
		}
		h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "reload requested"})
		return
	}
	if h.reloader == nil {
		h.writeError(w, http.StatusServiceUnavailable, "reloading is not configured")
		return
	}

	if _, err := h.reloader.Reload(ctx, "api"); err != nil {
		log.Error("collection reload failed", "error", err)
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.collectionInfo())
}
