package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/notifyhub/pushsched/internal/domain"
)

// MockScheduleRepository is a hand-written, in-memory ScheduleRepository
// used across unit tests (no mock-generation library).
type MockScheduleRepository struct {
	mu        sync.RWMutex
	schedules map[string]*domain.Schedule
}

func NewMockScheduleRepository() *MockScheduleRepository {
	return &MockScheduleRepository{schedules: make(map[string]*domain.Schedule)}
}

func (m *MockScheduleRepository) Create(_ context.Context, s *domain.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *s
	m.schedules[s.ID] = &clone
	return nil
}

func (m *MockScheduleRepository) GetByID(_ context.Context, id string) (*domain.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, domain.ErrScheduleNotFound
	}
	clone := *s
	return &clone, nil
}

// List applies the same dashboard-visibility rules as the Postgres
// implementation (instant schedules and expired paused-once schedules are
// never listed), plus status/kind/search filtering and pagination.
func (m *MockScheduleRepository) List(_ context.Context, f domain.ScheduleListFilter) ([]*domain.Schedule, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now().UTC()
	var matched []*domain.Schedule
	for _, s := range m.schedules {
		if s.Kind == domain.KindInstant {
			continue
		}
		if s.Kind == domain.KindOnce && s.Status == domain.StatusPaused && s.FireAt != nil && !s.FireAt.After(now) {
			continue
		}
		if f.Status != nil && s.Status != *f.Status {
			continue
		}
		if f.Kind != nil && s.Kind != *f.Kind {
			continue
		}
		if f.Search != "" {
			needle := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(s.Title), needle) && !strings.Contains(strings.ToLower(s.Message), needle) {
				continue
			}
		}
		clone := *s
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	start := (page - 1) * limit
	if start >= len(matched) {
		return nil, len(matched), nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

func (m *MockScheduleRepository) UpdateStatus(_ context.Context, id string, status domain.Status, isActive bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.schedules[id]; ok {
		s.Status = status
		s.IsActive = isActive
	}
	return nil
}

func (m *MockScheduleRepository) RecordFiring(_ context.Context, id string, targeted, success, failure int, runAt time.Time, runStatus string, failureReason *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return domain.ErrScheduleNotFound
	}
	s.TotalTargeted += targeted
	s.SuccessCount += success
	s.FailureCount += failure
	s.LastRunAt = &runAt
	s.LastRunStatus = &runStatus
	s.FailureReason = failureReason
	return nil
}

func (m *MockScheduleRepository) AdjustCounters(_ context.Context, id string, successDelta, failureDelta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return domain.ErrScheduleNotFound
	}
	s.SuccessCount += successDelta
	s.FailureCount += failureDelta
	return nil
}

func (m *MockScheduleRepository) ListActiveDaily(_ context.Context) ([]*domain.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Schedule
	for _, s := range m.schedules {
		if s.Kind == domain.KindDaily && s.Status == domain.StatusActive && s.IsActive {
			clone := *s
			out = append(out, &clone)
		}
	}
	return out, nil
}
