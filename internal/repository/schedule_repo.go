package repository

import (
	"context"
	"time"

	"github.com/notifyhub/pushsched/internal/domain"
)

// ScheduleRepository persists Schedule campaign definitions and their
// audit counters.
type ScheduleRepository interface {
	Create(ctx context.Context, s *domain.Schedule) error
	GetByID(ctx context.Context, id string) (*domain.Schedule, error)
	List(ctx context.Context, filter domain.ScheduleListFilter) ([]*domain.Schedule, int, error)

	// UpdateStatus transitions a schedule's status/isActive pair.
	UpdateStatus(ctx context.Context, id string, status domain.Status, isActive bool) error

	// RecordFiring accumulates a firing's counters into the schedule's
	// audit totals and records lastRun*.
	RecordFiring(ctx context.Context, id string, targeted, success, failure int, runAt time.Time, runStatus string, failureReason *string) error

	// AdjustCounters folds a retry resolution's success/failure delta into
	// the schedule's audit totals without touching lastRun*.
	AdjustCounters(ctx context.Context, id string, successDelta, failureDelta int) error

	// ListActiveDaily returns every daily schedule currently in status
	// active, for the discovery hook and the post-firing
	// discovery sweep.
	ListActiveDaily(ctx context.Context) ([]*domain.Schedule, error)
}
