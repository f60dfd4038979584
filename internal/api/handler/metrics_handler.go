package handler

import (
	"context"
	"net/http"

	"github.com/notifyhub/pushsched/internal/jobqueue"
)

// MetricsHandler serves a human-readable JSON queue-depth snapshot.
// Raw Prometheus metrics (counters, histograms) are available at /metrics
// via promhttp.Handler and are separate from this endpoint.
type MetricsHandler struct {
	queue *jobqueue.Queue
}

func NewMetricsHandler(q *jobqueue.Queue) *MetricsHandler {
	return &MetricsHandler{queue: q}
}

// GetMetrics handles GET /api/v1/metrics
//
// @Summary  Real-time job-queue depth snapshot
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  envelope
// @Router   /api/v1/metrics [get]
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	depths, err := h.queueDepths(r.Context())
	if err != nil {
		respondErrorMsg(w, http.StatusInternalServerError, "failed to read queue depth")
		return
	}
	respondData(w, http.StatusOK, map[string]any{"queueDepth": depths})
}

func (h *MetricsHandler) queueDepths(ctx context.Context) (map[string]int, error) {
	states := []jobqueue.State{jobqueue.StateWaiting, jobqueue.StateDelayed, jobqueue.StateActive, jobqueue.StatePaused}
	depths := make(map[string]int, len(states))
	total := 0
	for _, s := range states {
		jobs, err := h.queue.GetJobsByState(ctx, s)
		if err != nil {
			return nil, err
		}
		depths[string(s)] = len(jobs)
		total += len(jobs)
	}
	depths["total"] = total
	return depths, nil
}
