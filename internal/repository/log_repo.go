package repository

import (
	"context"

	"github.com/notifyhub/pushsched/internal/domain"
)

// LogRepository persists per-(user, firing) delivery records.
type LogRepository interface {
	InsertMany(ctx context.Context, logs []*domain.NotificationLog) error
	ListByUser(ctx context.Context, userID string, page, limit int) ([]*domain.NotificationLog, int, error)
}
