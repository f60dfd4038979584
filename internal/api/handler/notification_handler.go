package handler

import (
	"net/http"
	"strconv"

	"github.com/notifyhub/pushsched/internal/repository"
)

// NotificationHandler serves the user-facing notification feed.
type NotificationHandler struct {
	repo repository.LogRepository
}

func NewNotificationHandler(repo repository.LogRepository) *NotificationHandler {
	return &NotificationHandler{repo: repo}
}

// List handles GET /api/v1/notifications
//
// @Summary  List the authenticated user's notification log, newest first
// @Tags     notifications
// @Produce  json
// @Param    X-User-ID  header    string  true   "Authenticated user ID"
// @Param    page       query     int     false  "Page number (default 1)"
// @Param    limit      query     int     false  "Items per page (default 20, max 100)"
// @Success  200        {object}  envelope
// @Failure  400        {object}  envelope
// @Router   /api/v1/notifications [get]
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		respondErrorMsg(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	page, limit := 1, 20
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}

	logs, total, err := h.repo.ListByUser(r.Context(), userID, page, limit)
	if err != nil {
		respondErrorMsg(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	respondJSON(w, http.StatusOK, envelope{
		Success: true,
		Data: map[string]any{
			"notifications": logs,
			"total":         total,
			"page":          page,
			"limit":         limit,
		},
	})
}
