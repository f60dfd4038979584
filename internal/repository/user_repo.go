package repository

import (
	"context"

	"github.com/notifyhub/pushsched/internal/audience"
	"github.com/notifyhub/pushsched/internal/domain"
)

// UserRepository is the projection of the user store the scheduler core
// needs.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// ResolvePage returns up to limit eligible users matching q, ordered
	// by id, starting strictly after afterID ("" for the first page).
	// Keyset pagination (rather than OFFSET) keeps the stream correct
	// under a mid-firing population change.
	ResolvePage(ctx context.Context, q audience.Query, afterID string, limit int) ([]*domain.User, error)

	// DistinctEligibleTimezones returns every canonical timezone with at
	// least one eligible user, for the discovery sweep.
	DistinctEligibleTimezones(ctx context.Context) ([]string, error)

	// RegisterDevice atomically persists a user's device token and
	// timezone, reporting whether the timezone or token is new for this
	// user, or this is their first registration.
	RegisterDevice(ctx context.Context, userID, timezone string, token domain.DeviceToken) (isNewTimezone, isNewToken, isFirstRegistration bool, err error)

	// ClearToken empties a user's device token in place, so a
	// permanently-invalid token is never targeted again until
	// re-registered.
	ClearToken(ctx context.Context, userID string) error
}
