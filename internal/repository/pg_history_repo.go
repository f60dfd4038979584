package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/pushsched/internal/domain"
)

type pgHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewPgHistoryRepository returns a HistoryRepository backed by PostgreSQL.
func NewPgHistoryRepository(pool *pgxpool.Pool) HistoryRepository {
	return &pgHistoryRepository{pool: pool}
}

func (r *pgHistoryRepository) Create(ctx context.Context, h *domain.NotificationHistory) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notification_history
			(id, schedule_id, fired_at, total_targeted, success_count, failure_count, status, error_message)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		h.ID, h.ScheduleID, h.FiredAt, h.TotalTargeted, h.SuccessCount, h.FailureCount, h.Status, h.ErrorMessage)
	if err != nil {
		return fmt.Errorf("insert notification history: %w", err)
	}
	return nil
}

func (r *pgHistoryRepository) List(ctx context.Context, f domain.HistoryListFilter) ([]HistoryEntry, int, error) {
	var conditions []string
	var args []any
	add := func(cond string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != nil {
		add("h.status = $%d", *f.Status)
	}
	if f.From != nil {
		add("h.fired_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("h.fired_at <= $%d", *f.To)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(s.title ILIKE $%d OR s.message ILIKE $%d)", len(args), len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	base := `FROM notification_history h JOIN schedules s ON s.id = h.schedule_id` + where

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+base, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	sortCol := "h.fired_at"
	switch f.SortBy {
	case "totalTargeted":
		sortCol = "h.total_targeted"
	case "successCount":
		sortCol = "h.success_count"
	}
	order := "DESC"
	if strings.EqualFold(f.Order, "asc") {
		order = "ASC"
	}

	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	args = append(args, limit, (page-1)*limit)

	query := fmt.Sprintf(`
		SELECT h.id, h.schedule_id, h.fired_at, h.total_targeted, h.success_count,
		       h.failure_count, h.status, h.error_message, s.title, s.message
		%s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d`, base, sortCol, order, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.ScheduleID, &e.FiredAt, &e.TotalTargeted, &e.SuccessCount,
			&e.FailureCount, &e.Status, &e.ErrorMessage, &e.ScheduleTitle, &e.ScheduleMessage); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (r *pgHistoryRepository) Stats(ctx context.Context, from, to *time.Time) (domain.HistoryStats, error) {
	var conditions []string
	var args []any
	add := func(cond string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if from != nil {
		add("fired_at >= $%d", *from)
	}
	if to != nil {
		add("fired_at <= $%d", *to)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var stats domain.HistoryStats
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT
			COUNT(*),
			COALESCE(SUM(total_targeted), 0),
			COALESCE(SUM(success_count), 0),
			COALESCE(SUM(failure_count), 0),
			COUNT(*) FILTER (WHERE status = 'sent'),
			COUNT(*) FILTER (WHERE status = 'partial_success'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM notification_history%s`, where), args...)

	err := row.Scan(&stats.TotalFirings, &stats.TotalTargeted, &stats.TotalSuccess, &stats.TotalFailure,
		&stats.SentCount, &stats.PartialCount, &stats.FailedCount)
	if err != nil {
		return domain.HistoryStats{}, fmt.Errorf("history stats: %w", err)
	}
	return stats, nil
}
