package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/pushsched/internal/domain"
)

type pgScheduleRepository struct {
	pool *pgxpool.Pool
}

// NewPgScheduleRepository returns a ScheduleRepository backed by PostgreSQL.
func NewPgScheduleRepository(pool *pgxpool.Pool) ScheduleRepository {
	return &pgScheduleRepository{pool: pool}
}

func (r *pgScheduleRepository) Create(ctx context.Context, s *domain.Schedule) error {
	filterJSON, err := marshalFilter(s.Filter)
	if err != nil {
		return fmt.Errorf("marshal filter: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO schedules
			(id, title, message, kind, local_time, fire_at, audience, filter, category,
			 status, is_active, total_targeted, success_count, failure_count,
			 created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		s.ID, s.Title, s.Message, s.Kind, nullString(s.LocalTime), s.FireAt, s.Audience, filterJSON, s.Category,
		s.Status, s.IsActive, s.TotalTargeted, s.SuccessCount, s.FailureCount,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

func (r *pgScheduleRepository) GetByID(ctx context.Context, id string) (*domain.Schedule, error) {
	row := r.pool.QueryRow(ctx, scheduleSelectSQL+` WHERE id = $1`, id)
	s, err := scanSchedule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrScheduleNotFound
	}
	return s, err
}

func (r *pgScheduleRepository) List(ctx context.Context, f domain.ScheduleListFilter) ([]*domain.Schedule, int, error) {
	var conditions []string
	var args []any
	add := func(cond string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	// Instant schedules never appear on the dashboard listing.
	conditions = append(conditions, "kind != 'instant'")
	// Expired paused-once schedules are excluded.
	conditions = append(conditions, "NOT (kind = 'once' AND status = 'paused' AND fire_at <= NOW())")

	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.Kind != nil {
		add("kind = $%d", *f.Kind)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR message ILIKE $%d)", len(args), len(args)))
	}

	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM schedules"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}

	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	args = append(args, limit, (page-1)*limit)
	query := scheduleSelectSQL + where + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, 0, err
		}
		schedules = append(schedules, s)
	}
	return schedules, total, rows.Err()
}

func (r *pgScheduleRepository) UpdateStatus(ctx context.Context, id string, status domain.Status, isActive bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE schedules SET status = $1, is_active = $2, updated_at = NOW() WHERE id = $3`,
		status, isActive, id)
	return err
}

func (r *pgScheduleRepository) RecordFiring(ctx context.Context, id string, targeted, success, failure int, runAt time.Time, runStatus string, failureReason *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET total_targeted = total_targeted + $1,
		    success_count  = success_count + $2,
		    failure_count  = failure_count + $3,
		    last_run_at = $4, last_run_status = $5, failure_reason = $6,
		    updated_at = NOW()
		WHERE id = $7`,
		targeted, success, failure, runAt, runStatus, failureReason, id)
	return err
}

func (r *pgScheduleRepository) AdjustCounters(ctx context.Context, id string, successDelta, failureDelta int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET success_count = success_count + $1,
		    failure_count = failure_count + $2,
		    updated_at = NOW()
		WHERE id = $3`,
		successDelta, failureDelta, id)
	return err
}

func (r *pgScheduleRepository) ListActiveDaily(ctx context.Context) ([]*domain.Schedule, error) {
	rows, err := r.pool.Query(ctx, scheduleSelectSQL+` WHERE kind = 'daily' AND status = 'active' AND is_active = true`)
	if err != nil {
		return nil, fmt.Errorf("list active daily schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

const scheduleSelectSQL = `
	SELECT id, title, message, kind, local_time, fire_at, audience, filter, category,
	       status, is_active, total_targeted, success_count, failure_count,
	       last_run_at, last_run_status, failure_reason, created_at, updated_at
	FROM schedules`

func scanSchedule(row pgx.Row) (*domain.Schedule, error) {
	var s domain.Schedule
	var localTime *string
	var filterJSON []byte
	err := row.Scan(
		&s.ID, &s.Title, &s.Message, &s.Kind, &localTime, &s.FireAt, &s.Audience, &filterJSON, &s.Category,
		&s.Status, &s.IsActive, &s.TotalTargeted, &s.SuccessCount, &s.FailureCount,
		&s.LastRunAt, &s.LastRunStatus, &s.FailureReason, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if localTime != nil {
		s.LocalTime = *localTime
	}
	f, err := unmarshalFilter(filterJSON)
	if err != nil {
		return nil, err
	}
	s.Filter = f
	return &s, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
