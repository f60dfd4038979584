package repository

import (
	"context"
	"time"

	"github.com/notifyhub/pushsched/internal/domain"
)

// HistoryEntry is a NotificationHistory row joined with the title/message
// of the schedule it belongs to, for the admin dashboard's search-by-title
// requirement.
type HistoryEntry struct {
	domain.NotificationHistory
	ScheduleTitle   string `json:"scheduleTitle"`
	ScheduleMessage string `json:"scheduleMessage"`
}

// HistoryRepository persists per-(schedule, firing) aggregates.
type HistoryRepository interface {
	Create(ctx context.Context, h *domain.NotificationHistory) error
	List(ctx context.Context, filter domain.HistoryListFilter) ([]HistoryEntry, int, error)
	Stats(ctx context.Context, from, to *time.Time) (domain.HistoryStats, error)
}
