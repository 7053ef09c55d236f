package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/cursor"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/filter"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/session"
	apperrors "github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/middleware"
)

// optionsRequest is the body of session create and option updates. Nil
// fields keep their current value on PATCH and take the zero value on PUT.
type optionsRequest struct {
	Query         *string `json:"query"`
	CaseSensitive *bool   `json:"case_sensitive"`
	ExcludeMode   *bool   `json:"exclude_mode"`
	Sort          *string `json:"sort"`
}

// apply merges the request into base.
func (req optionsRequest) apply(base filter.Options) (filter.Options, error) {
	if req.Query != nil {
		base.Query = *req.Query
	}
	if req.CaseSensitive != nil {
		base.CaseSensitive = *req.CaseSensitive
	}
	if req.ExcludeMode != nil {
		base.ExcludeMode = *req.ExcludeMode
	}
	if req.Sort != nil {
		mode, err := filter.ParseSortMode(*req.Sort)
		if err != nil {
			return base, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, err.Error())
		}
		base.Sort = mode
	}
	return base, nil
}

type stepRequest struct {
	Direction string `json:"direction"`
}

// parseDirection accepts the names the clients send. Empty means forward.
func parseDirection(s string) (cursor.Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "forward", "next", "n", "+1", "1":
		return cursor.Forward, nil
	case "backward", "back", "prev", "previous", "p", "-1":
		return cursor.Backward, nil
	default:
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"unknown direction %q", s)
	}
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req optionsRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeAppError(w, err)
		return
	}
	opts, err := req.apply(filter.Options{})
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	start := time.Now()
	s, err := h.sessions.Create(opts)
	if err != nil {
		logger.FromContext(r.Context()).Warn("session create rejected", "error", err)
		h.writeAppError(w, err)
		return
	}
	view := s.View()
	h.observeRecompute(r, "create", view, time.Since(start))

	logger.FromContext(logger.WithSessionID(r.Context(), s.ID())).Info("session created",
		"query", view.Options.Query,
		"matches", len(view.MatchedIndices),
	)
	w.Header().Set("Location", "/api/v1/sessions/"+s.ID())
	h.writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, s.View())
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.sessions.Delete(id); err != nil {
		h.writeAppError(w, err)
		return
	}
	logger.FromContext(logger.WithSessionID(r.Context(), id)).Info("session deleted")
	w.WriteHeader(http.StatusNoContent)
}

// ReplaceOptions sets every option at once. Omitted fields are reset.
func (h *Handler) ReplaceOptions(w http.ResponseWriter, r *http.Request) {
	h.changeOptions(w, r, false)
}

// UpdateOptions changes only the fields present in the body.
func (h *Handler) UpdateOptions(w http.ResponseWriter, r *http.Request) {
	h.changeOptions(w, r, true)
}

func (h *Handler) changeOptions(w http.ResponseWriter, r *http.Request, merge bool) {
	s, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	var req optionsRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeAppError(w, err)
		return
	}
	base := filter.Options{}
	if merge {
		base = s.Options()
	}
	opts, err := req.apply(base)
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	start := time.Now()
	view := s.SetOptions(opts)
	h.observeRecompute(r, "options", view, time.Since(start))
	h.writeJSON(w, http.StatusOK, view)
}

// Toggle flips the case or exclude switch named by {flag}.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	start := time.Now()
	var view session.View
	switch r.PathValue("flag") {
	case "case", "case_sensitive":
		view = s.ToggleCaseSensitive()
	case "exclude", "exclude_mode":
		view = s.ToggleExclude()
	default:
		h.writeError(w, http.StatusBadRequest, "flag must be 'case' or 'exclude'")
		return
	}
	h.observeRecompute(r, "toggle", view, time.Since(start))
	h.writeJSON(w, http.StatusOK, view)
}

// Step moves the session's match cursor. The direction comes from the JSON
// body or the ?direction= query parameter.
func (h *Handler) Step(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	req := stepRequest{Direction: r.URL.Query().Get("direction")}
	if err := decodeBody(w, r, &req); err != nil {
		h.writeAppError(w, err)
		return
	}
	dir, err := parseDirection(req.Direction)
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	view := s.Step(dir)
	if h.metrics != nil && view.Cursor.Active {
		h.metrics.CursorStepsTotal.WithLabelValues(directionLabel(dir)).Inc()
	}
	if view.Cursor.Active {
		h.track(analytics.BrowseEvent{
			Type:      analytics.EventStep,
			SessionID: s.ID(),
			Direction: int(dir),
			Position:  view.Cursor.Position,
			Matches:   view.Cursor.Total,
			RequestID: middleware.GetRequestID(r.Context()),
		})
	}
	h.writeJSON(w, http.StatusOK, view)
}

func directionLabel(dir cursor.Direction) string {
	switch dir {
	case cursor.Forward:
		return "forward"
	case cursor.Backward:
		return "backward"
	default:
		return strconv.Itoa(int(dir))
	}
}

// observeRecompute records metrics and an analytics event for a session
// operation that reran the filter.
func (h *Handler) observeRecompute(r *http.Request, trigger string, view session.View, elapsed time.Duration) {
	matches := len(view.MatchedIndices)
	zero := view.Options.Query != "" && len(view.Documents) == 0

	if h.metrics != nil {
		h.metrics.FilterRecomputesTotal.WithLabelValues(trigger).Inc()
		h.metrics.FilterLatency.WithLabelValues("none").Observe(elapsed.Seconds())
		h.metrics.FilterResultCount.Observe(float64(len(view.Documents)))
		if zero {
			h.metrics.ZeroResultQueries.Inc()
		}
	}

	eventType := analytics.EventSearch
	if zero {
		eventType = analytics.EventZeroResult
	}
	h.track(analytics.BrowseEvent{
		Type:          eventType,
		SessionID:     view.ID,
		Query:         view.Options.Query,
		CaseSensitive: view.Options.CaseSensitive,
		ExcludeMode:   view.Options.ExcludeMode,
		Sort:          string(view.Options.Sort),
		Documents:     len(view.Documents),
		Matches:       matches,
		LatencyMs:     elapsed.Milliseconds(),
		RequestID:     middleware.GetRequestID(r.Context()),
	})
}
