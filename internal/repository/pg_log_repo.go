package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/pushsched/internal/domain"
)

type pgLogRepository struct {
	pool *pgxpool.Pool
}

// NewPgLogRepository returns a LogRepository backed by PostgreSQL.
func NewPgLogRepository(pool *pgxpool.Pool) LogRepository {
	return &pgLogRepository{pool: pool}
}

// InsertMany bulk-inserts one row per recipient for a single firing
//. Order is undefined and immaterial.
func (r *pgLogRepository) InsertMany(ctx context.Context, logs []*domain.NotificationLog) error {
	if len(logs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, l := range logs {
		batch.Queue(`
			INSERT INTO notification_logs
				(id, user_id, schedule_id, title, message, category, status, sent_at, device_token)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			l.ID, l.UserID, l.ScheduleID, l.Title, l.Message, l.Category, l.Status, l.SentAt, l.DeviceToken)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range logs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert notification log: %w", err)
		}
	}
	return nil
}

func (r *pgLogRepository) ListByUser(ctx context.Context, userID string, page, limit int) ([]*domain.NotificationLog, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notification_logs WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notification logs: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, schedule_id, title, message, category, status, sent_at, device_token
		FROM notification_logs
		WHERE user_id = $1
		ORDER BY sent_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list notification logs: %w", err)
	}
	defer rows.Close()

	var logs []*domain.NotificationLog
	for rows.Next() {
		var l domain.NotificationLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.ScheduleID, &l.Title, &l.Message, &l.Category, &l.Status, &l.SentAt, &l.DeviceToken); err != nil {
			return nil, 0, err
		}
		logs = append(logs, &l)
	}
	return logs, total, rows.Err()
}
