package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/notifyhub/pushsched/internal/api/middleware"
	"github.com/notifyhub/pushsched/internal/domain"
	"github.com/notifyhub/pushsched/internal/schedule"
)

// ScheduleHandler handles schedule CRUD and lifecycle endpoints.
type ScheduleHandler struct {
	svc    *schedule.Service
	logger *zap.Logger
}

func NewScheduleHandler(svc *schedule.Service, logger *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{svc: svc, logger: logger}
}

// Create handles POST /api/v1/schedules
//
// @Summary  Create a push schedule
// @Tags     schedules
// @Accept   json
// @Produce  json
// @Param    body  body      domain.CreateScheduleRequest  true  "Schedule payload"
// @Success  201   {object}  domain.Schedule
// @Failure  422   {object}  envelope
// @Router   /api/v1/schedules [post]
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorMsg(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondErrorMsg(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	sch, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.logger.Warn("create schedule failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondData(w, http.StatusCreated, sch)
}

// GetByID handles GET /api/v1/schedules/{id}
//
// @Summary  Get a schedule by ID
// @Tags     schedules
// @Produce  json
// @Param    id   path      string  true  "Schedule ID"
// @Success  200  {object}  domain.Schedule
// @Failure  404  {object}  envelope
// @Router   /api/v1/schedules/{id} [get]
func (h *ScheduleHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sch, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondData(w, http.StatusOK, sch)
}

// List handles GET /api/v1/schedules
//
// @Summary  List schedules with filtering and pagination
// @Tags     schedules
// @Produce  json
// @Param    status  query     string  false  "Filter by status"
// @Param    kind    query     string  false  "Filter by kind"
// @Param    search  query     string  false  "Search by title or message"
// @Param    page    query     int     false  "Page number (default 1)"
// @Param    limit   query     int     false  "Items per page (default 20, max 100)"
// @Success  200     {object}  envelope
// @Router   /api/v1/schedules [get]
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := parseScheduleListFilter(r)
	schedules, total, err := h.svc.List(r.Context(), filter)
	if err != nil {
		respondErrorMsg(w, http.StatusInternalServerError, "failed to list schedules")
		return
	}
	respondJSON(w, http.StatusOK, envelope{
		Success: true,
		Data: map[string]any{
			"schedules": schedules,
			"total":     total,
			"page":      filter.Page,
			"limit":     filter.Limit,
		},
	})
}

// UpdateStatus handles POST /api/v1/schedules/{id}/status
//
// @Summary  Pause or resume a schedule
// @Tags     schedules
// @Accept   json
// @Produce  json
// @Param    id    path      string                       true  "Schedule ID"
// @Param    body  body      domain.UpdateStatusRequest  true  "Desired isActive state"
// @Success  200   {object}  domain.Schedule
// @Failure  409   {object}  envelope
// @Router   /api/v1/schedules/{id}/status [post]
func (h *ScheduleHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req domain.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorMsg(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sch, err := h.svc.UpdateStatus(r.Context(), id, req)
	if err != nil {
		mapError(w, err)
		return
	}
	respondData(w, http.StatusOK, sch)
}

func parseScheduleListFilter(r *http.Request) domain.ScheduleListFilter {
	q := r.URL.Query()
	filter := domain.ScheduleListFilter{Page: 1, Limit: 20}

	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		filter.Page = p
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 100 {
		filter.Limit = l
	}
	if s := q.Get("status"); s != "" {
		st := domain.Status(s)
		filter.Status = &st
	}
	if k := q.Get("kind"); k != "" {
		kd := domain.Kind(k)
		filter.Kind = &kd
	}
	filter.Search = q.Get("search")
	return filter
}
