package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/notifyhub/pushsched/internal/audience"
	"github.com/notifyhub/pushsched/internal/domain"
)

// MockUserRepository is a hand-written, in-memory UserRepository for tests
// exercising audience resolution and device registration without Postgres.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*domain.User)}
}

// Put seeds a user directly, bypassing RegisterDevice bookkeeping.
func (m *MockUserRepository) Put(u *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *u
	m.users[u.ID] = &clone
}

func (m *MockUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (m *MockUserRepository) ResolvePage(_ context.Context, q audience.Query, afterID string, limit int) ([]*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if limit <= 0 || limit > 500 {
		limit = 500
	}

	var out []*domain.User
	for _, id := range ids {
		if afterID != "" && id <= afterID {
			continue
		}
		u := m.users[id]
		if !u.Eligible() {
			continue
		}
		if q.Timezone != nil && u.Timezone != *q.Timezone {
			continue
		}
		if len(q.Genders) > 0 && !containsGender(q.Genders, u.Gender) {
			continue
		}
		if len(q.Platforms) > 0 && !containsPlatform(q.Platforms, u.DeviceToken.Platform) {
			continue
		}
		if q.AgeRange != nil && (u.Age < q.AgeRange.Min || u.Age > q.AgeRange.Max) {
			continue
		}
		clone := *u
		out = append(out, &clone)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockUserRepository) DistinctEligibleTimezones(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var zones []string
	for _, u := range m.users {
		if u.Eligible() && !seen[u.Timezone] {
			seen[u.Timezone] = true
			zones = append(zones, u.Timezone)
		}
	}
	sort.Strings(zones)
	return zones, nil
}

func (m *MockUserRepository) RegisterDevice(_ context.Context, userID, timezone string, token domain.DeviceToken) (isNewTimezone, isNewToken, isFirstRegistration bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		m.users[userID] = &domain.User{ID: userID, Timezone: timezone, DeviceToken: token, IsActive: true}
		return true, true, true, nil
	}
	isNewTimezone = u.Timezone != timezone
	isNewToken = u.DeviceToken.Token != token.Token
	isFirstRegistration = u.DeviceToken.Token == ""
	u.Timezone = timezone
	u.DeviceToken = token
	return isNewTimezone, isNewToken, isFirstRegistration, nil
}

func (m *MockUserRepository) ClearToken(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.DeviceToken.Token = ""
	}
	return nil
}

func containsGender(gs []domain.Gender, g domain.Gender) bool {
	for _, x := range gs {
		if x == g {
			return true
		}
	}
	return false
}

func containsPlatform(ps []domain.Platform, p domain.Platform) bool {
	for _, x := range ps {
		if x == p {
			return true
		}
	}
	return false
}
