package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/notifyhub/pushsched/internal/domain"
)

// MockLogRepository is a hand-written, in-memory LogRepository for tests.
type MockLogRepository struct {
	mu   sync.RWMutex
	logs []*domain.NotificationLog
}

func NewMockLogRepository() *MockLogRepository {
	return &MockLogRepository{}
}

func (m *MockLogRepository) InsertMany(_ context.Context, logs []*domain.NotificationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range logs {
		clone := *l
		m.logs = append(m.logs, &clone)
	}
	return nil
}

func (m *MockLogRepository) ListByUser(_ context.Context, userID string, page, limit int) ([]*domain.NotificationLog, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*domain.NotificationLog
	for _, l := range m.logs {
		if l.UserID == userID {
			matched = append(matched, l)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].SentAt.After(matched[j].SentAt) })

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
