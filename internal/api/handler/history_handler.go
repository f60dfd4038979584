package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/notifyhub/pushsched/internal/domain"
	"github.com/notifyhub/pushsched/internal/repository"
)

// HistoryHandler serves the admin dashboard's firing history and aggregate
// stats endpoints.
type HistoryHandler struct {
	repo repository.HistoryRepository
}

func NewHistoryHandler(repo repository.HistoryRepository) *HistoryHandler {
	return &HistoryHandler{repo: repo}
}

// List handles GET /api/v1/history
//
// @Summary  List firing history joined with schedule title/message
// @Tags     history
// @Produce  json
// @Param    status     query     string  false  "Filter by history status"
// @Param    startDate  query     string  false  "Fired after (RFC3339)"
// @Param    endDate    query     string  false  "Fired before (RFC3339)"
// @Param    search     query     string  false  "Search schedule title/message"
// @Param    sortBy     query     string  false  "Sort column"
// @Param    order      query     string  false  "asc or desc"
// @Param    page       query     int     false  "Page number (default 1)"
// @Param    limit      query     int     false  "Items per page (default 20, max 100)"
// @Success  200        {object}  envelope
// @Router   /api/v1/history [get]
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := parseHistoryListFilter(r)
	entries, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		respondErrorMsg(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	respondJSON(w, http.StatusOK, envelope{
		Success: true,
		Data: map[string]any{
			"history": entries,
			"total":   total,
			"page":    filter.Page,
			"limit":   filter.Limit,
		},
	})
}

// Stats handles GET /api/v1/history/stats
//
// @Summary  Aggregate firing counts over a date range
// @Tags     history
// @Produce  json
// @Param    startDate  query     string  false  "Range start (RFC3339)"
// @Param    endDate    query     string  false  "Range end (RFC3339)"
// @Success  200        {object}  domain.HistoryStats
// @Router   /api/v1/history/stats [get]
func (h *HistoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var from, to *time.Time
	if v := q.Get("startDate"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			from = &t
		}
	}
	if v := q.Get("endDate"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			to = &t
		}
	}

	stats, err := h.repo.Stats(r.Context(), from, to)
	if err != nil {
		respondErrorMsg(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	respondData(w, http.StatusOK, stats)
}

func parseHistoryListFilter(r *http.Request) domain.HistoryListFilter {
	q := r.URL.Query()
	filter := domain.HistoryListFilter{Page: 1, Limit: 20}

	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		filter.Page = p
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 100 {
		filter.Limit = l
	}
	if s := q.Get("status"); s != "" {
		st := domain.HistoryStatus(s)
		filter.Status = &st
	}
	if v := q.Get("startDate"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.From = &t
		}
	}
	if v := q.Get("endDate"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.To = &t
		}
	}
	filter.Search = q.Get("search")
	filter.SortBy = q.Get("sortBy")
	filter.Order = q.Get("order")
	return filter
}
