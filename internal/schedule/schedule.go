// Package schedule implements the schedule lifecycle: creation, pause,
// and resume, each driving the occurrence planner to keep the job queue
// in sync with a schedule's state.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/notifyhub/pushsched/internal/domain"
	"github.com/notifyhub/pushsched/internal/idgen"
	"github.com/notifyhub/pushsched/internal/planner"
	"github.com/notifyhub/pushsched/internal/repository"
)

type Service struct {
	scheduleRepo repository.ScheduleRepository
	userRepo     repository.UserRepository
	planner      *planner.Planner
	idgen        idgen.Generator
	now          func() time.Time
}

func New(scheduleRepo repository.ScheduleRepository, userRepo repository.UserRepository, p *planner.Planner, gen idgen.Generator, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{scheduleRepo: scheduleRepo, userRepo: userRepo, planner: p, idgen: gen, now: now}
}

// Create validates req, persists a new Schedule in its initial state, and
// enqueues the jobs its kind requires.
func (s *Service) Create(ctx context.Context, req domain.CreateScheduleRequest) (*domain.Schedule, error) {
	now := s.now()
	if err := req.Validate(now); err != nil {
		return nil, err
	}

	sch := &domain.Schedule{
		ID:        s.idgen.NewID(),
		Title:     req.Title,
		Message:   req.Message,
		Kind:      req.Kind,
		LocalTime: req.LocalTime,
		FireAt:    req.FireAt,
		Audience:  req.Audience,
		Filter:    req.Filter,
		Category:  req.Category,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	switch req.Kind {
	case domain.KindInstant, domain.KindOnce:
		sch.Status = domain.StatusPending
	case domain.KindDaily:
		sch.Status = domain.StatusActive
	}

	if err := s.scheduleRepo.Create(ctx, sch); err != nil {
		return nil, fmt.Errorf("persist schedule: %w", err)
	}

	if err := s.planInitial(ctx, sch); err != nil {
		return nil, fmt.Errorf("plan schedule: %w", err)
	}
	return sch, nil
}

func (s *Service) planInitial(ctx context.Context, sch *domain.Schedule) error {
	switch sch.Kind {
	case domain.KindInstant:
		return s.planner.PlanInstant(ctx, sch.ID)
	case domain.KindOnce:
		return s.planner.PlanOnce(ctx, sch.ID, *sch.FireAt)
	case domain.KindDaily:
		return s.planDailyAllTimezones(ctx, sch)
	}
	return nil
}

// planDailyAllTimezones enqueues one job per distinct eligible timezone
// currently in the population. Like the discovery hook, this uses the
// global distinct-timezone set rather than one scoped by the schedule's
// own filter: a filter-scoped set would go stale as soon as a matching
// user appeared in a filtered-out timezone, and an empty shard costs one
// no-recipient firing at worst.
func (s *Service) planDailyAllTimezones(ctx context.Context, sch *domain.Schedule) error {
	zones, err := s.userRepo.DistinctEligibleTimezones(ctx)
	if err != nil {
		return fmt.Errorf("list distinct eligible timezones: %w", err)
	}
	return s.planner.PlanDailyForTimezones(ctx, sch.ID, sch.LocalTime, zones)
}

// UpdateStatus pauses (isActive=false) or resumes (isActive=true) a
// schedule.
func (s *Service) UpdateStatus(ctx context.Context, id string, req domain.UpdateStatusRequest) (*domain.Schedule, error) {
	sch, err := s.scheduleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !req.IsActive {
		return s.pause(ctx, sch)
	}
	return s.resume(ctx, sch)
}

// pause is idempotent: pausing an already-paused schedule is a no-op.
func (s *Service) pause(ctx context.Context, sch *domain.Schedule) (*domain.Schedule, error) {
	if sch.Status == domain.StatusPaused {
		return sch, nil
	}
	if sch.Status == domain.StatusCompleted || sch.Status == domain.StatusFailed {
		return nil, domain.ErrInvalidOperation
	}
	if err := s.planner.RemoveAllForSchedule(ctx, sch.ID); err != nil {
		return nil, fmt.Errorf("remove in-flight jobs: %w", err)
	}
	if err := s.scheduleRepo.UpdateStatus(ctx, sch.ID, domain.StatusPaused, false); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	sch.Status, sch.IsActive = domain.StatusPaused, false
	return sch, nil
}

func (s *Service) resume(ctx context.Context, sch *domain.Schedule) (*domain.Schedule, error) {
	if sch.Status != domain.StatusPaused {
		return nil, domain.ErrInvalidOperation
	}

	switch sch.Kind {
	case domain.KindOnce:
		if sch.FireAt == nil || !sch.FireAt.After(s.now()) {
			return nil, domain.ErrScheduleExpired
		}
		if err := s.planner.PlanOnce(ctx, sch.ID, *sch.FireAt); err != nil {
			return nil, fmt.Errorf("re-plan once: %w", err)
		}
		if err := s.scheduleRepo.UpdateStatus(ctx, sch.ID, domain.StatusPending, true); err != nil {
			return nil, fmt.Errorf("update status: %w", err)
		}
		sch.Status, sch.IsActive = domain.StatusPending, true
	case domain.KindDaily:
		if err := s.planDailyAllTimezones(ctx, sch); err != nil {
			return nil, fmt.Errorf("re-plan daily: %w", err)
		}
		if err := s.scheduleRepo.UpdateStatus(ctx, sch.ID, domain.StatusActive, true); err != nil {
			return nil, fmt.Errorf("update status: %w", err)
		}
		sch.Status, sch.IsActive = domain.StatusActive, true
	default:
		return nil, domain.ErrInvalidOperation
	}
	return sch, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.Schedule, error) {
	return s.scheduleRepo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter domain.ScheduleListFilter) ([]*domain.Schedule, int, error) {
	return s.scheduleRepo.List(ctx, filter)
}
