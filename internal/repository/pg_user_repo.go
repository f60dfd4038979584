package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/pushsched/internal/audience"
	"github.com/notifyhub/pushsched/internal/domain"
)

type pgUserRepository struct {
	pool *pgxpool.Pool
}

// NewPgUserRepository returns a UserRepository backed by PostgreSQL.
func NewPgUserRepository(pool *pgxpool.Pool) UserRepository {
	return &pgUserRepository{pool: pool}
}

const userSelectSQL = `
	SELECT id, timezone, device_token, device_platform, device_last_used_at,
	       is_active, gender, age, opted_out
	FROM users`

func (r *pgUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, userSelectSQL+` WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	return u, err
}

// ResolvePage builds the eligibility predicate common to every query
// (isActive, non-empty token, not opted out) plus q's optional timezone
// and filter sub-predicates, paginated by keyset on id.
func (r *pgUserRepository) ResolvePage(ctx context.Context, q audience.Query, afterID string, limit int) ([]*domain.User, error) {
	conditions := []string{"is_active = true", "device_token <> ''", "opted_out = false"}
	var args []any
	add := func(cond string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if q.Timezone != nil {
		add("timezone = $%d", *q.Timezone)
	}
	if len(q.Genders) > 0 {
		add("gender = ANY($%d)", genderStrings(q.Genders))
	}
	if len(q.Platforms) > 0 {
		add("device_platform = ANY($%d)", platformStrings(q.Platforms))
	}
	if q.AgeRange != nil {
		add("age >= $%d", q.AgeRange.Min)
		add("age <= $%d", q.AgeRange.Max)
	}
	if afterID != "" {
		add("id > $%d", afterID)
	}
	if limit <= 0 || limit > 500 {
		limit = 500
	}

	query := userSelectSQL + " WHERE " + strings.Join(conditions, " AND ") +
		fmt.Sprintf(" ORDER BY id ASC LIMIT %d", limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("resolve audience page: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *pgUserRepository) DistinctEligibleTimezones(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT timezone FROM users
		WHERE is_active = true AND device_token <> '' AND opted_out = false`)
	if err != nil {
		return nil, fmt.Errorf("distinct eligible timezones: %w", err)
	}
	defer rows.Close()

	var zones []string
	for rows.Next() {
		var tz string
		if err := rows.Scan(&tz); err != nil {
			return nil, err
		}
		zones = append(zones, tz)
	}
	return zones, rows.Err()
}

func (r *pgUserRepository) RegisterDevice(ctx context.Context, userID, timezone string, token domain.DeviceToken) (isNewTimezone, isNewToken, isFirstRegistration bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, false, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var prevTimezone, prevToken string
	row := tx.QueryRow(ctx, `SELECT timezone, device_token FROM users WHERE id = $1 FOR UPDATE`, userID)
	scanErr := row.Scan(&prevTimezone, &prevToken)

	switch {
	case errors.Is(scanErr, pgx.ErrNoRows):
		isFirstRegistration = true
		isNewTimezone = true
		isNewToken = true
		_, err = tx.Exec(ctx, `
			INSERT INTO users (id, timezone, device_token, device_platform, device_last_used_at, is_active)
			VALUES ($1,$2,$3,$4,$5,true)`,
			userID, timezone, token.Token, token.Platform, time.Now().UTC())
	case scanErr != nil:
		return false, false, false, fmt.Errorf("lock user row: %w", scanErr)
	default:
		isNewTimezone = prevTimezone != timezone
		isNewToken = prevToken != token.Token
		isFirstRegistration = prevToken == ""
		_, err = tx.Exec(ctx, `
			UPDATE users SET timezone = $1, device_token = $2, device_platform = $3, device_last_used_at = $4
			WHERE id = $5`,
			timezone, token.Token, token.Platform, time.Now().UTC(), userID)
	}
	if err != nil {
		return false, false, false, fmt.Errorf("persist device registration: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, false, false, fmt.Errorf("commit device registration: %w", err)
	}
	return isNewTimezone, isNewToken, isFirstRegistration, nil
}

func (r *pgUserRepository) ClearToken(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET device_token = '' WHERE id = $1`, userID)
	return err
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var gender *string
	var age *int
	var lastUsedAt *time.Time
	err := row.Scan(
		&u.ID, &u.Timezone, &u.DeviceToken.Token, &u.DeviceToken.Platform, &lastUsedAt,
		&u.IsActive, &gender, &age, &u.OptedOut,
	)
	if err != nil {
		return nil, err
	}
	if gender != nil {
		u.Gender = domain.Gender(*gender)
	}
	if age != nil {
		u.Age = *age
	}
	if lastUsedAt != nil {
		u.DeviceToken.LastUsedAt = *lastUsedAt
	}
	return &u, nil
}

func genderStrings(gs []domain.Gender) []string {
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = string(g)
	}
	return out
}

func platformStrings(ps []domain.Platform) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}
