package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/notifyhub/pushsched/internal/domain"
)

// MockHistoryRepository is a hand-written, in-memory HistoryRepository for tests.
type MockHistoryRepository struct {
	mu      sync.RWMutex
	entries []HistoryEntry
}

func NewMockHistoryRepository() *MockHistoryRepository {
	return &MockHistoryRepository{}
}

// PutEntry seeds a history row alongside the schedule title/message it joins to.
func (m *MockHistoryRepository) PutEntry(e HistoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

func (m *MockHistoryRepository) Create(_ context.Context, h *domain.NotificationHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, HistoryEntry{NotificationHistory: *h})
	return nil
}

func (m *MockHistoryRepository) List(_ context.Context, f domain.HistoryListFilter) ([]HistoryEntry, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []HistoryEntry
	for _, e := range m.entries {
		if f.Status != nil && e.Status != *f.Status {
			continue
		}
		if f.From != nil && e.FiredAt.Before(*f.From) {
			continue
		}
		if f.To != nil && e.FiredAt.After(*f.To) {
			continue
		}
		if f.Search != "" {
			needle := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(e.ScheduleTitle), needle) &&
				!strings.Contains(strings.ToLower(e.ScheduleMessage), needle) {
				continue
			}
		}
		matched = append(matched, e)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].FiredAt.After(matched[j].FiredAt) })

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

func (m *MockHistoryRepository) Stats(_ context.Context, from, to *time.Time) (domain.HistoryStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats domain.HistoryStats
	for _, e := range m.entries {
		if from != nil && e.FiredAt.Before(*from) {
			continue
		}
		if to != nil && e.FiredAt.After(*to) {
			continue
		}
		stats.TotalFirings++
		stats.TotalTargeted += e.TotalTargeted
		stats.TotalSuccess += e.SuccessCount
		stats.TotalFailure += e.FailureCount
		switch e.Status {
		case domain.HistorySent:
			stats.SentCount++
		case domain.HistoryPartialSuccess:
			stats.PartialCount++
		case domain.HistoryFailed:
			stats.FailedCount++
		}
	}
	return stats, nil
}
