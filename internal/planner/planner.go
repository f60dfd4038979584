// Package planner implements the occurrence planner: it turns a
// Schedule's kind into one or more jobqueue jobs, keeps daily
// occurrences single-pending per timezone, and tears down a schedule's
// in-flight jobs on pause.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/notifyhub/pushsched/internal/idgen"
	"github.com/notifyhub/pushsched/internal/jobqueue"
	"github.com/notifyhub/pushsched/internal/tzcatalog"
)

// Planner wires the job queue and timezone catalog together with an
// injectable clock and id generator, so plan/re-plan decisions are
// deterministic under test.
type Planner struct {
	queue   *jobqueue.Queue
	catalog *tzcatalog.Catalog
	idgen   idgen.Generator
	now     func() time.Time
}

func New(queue *jobqueue.Queue, catalog *tzcatalog.Catalog, gen idgen.Generator, now func() time.Time) *Planner {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Planner{queue: queue, catalog: catalog, idgen: gen, now: now}
}

// PlanInstant enqueues one "instant-send-all" job for immediate dispatch.
// The queue has no server-assigned ids, so the instant job's id comes from
// the injected generator.
func (p *Planner) PlanInstant(ctx context.Context, scheduleID string) error {
	return p.queue.Enqueue(ctx, jobqueue.KindInstantSendAll, scheduleID, "", "", jobqueue.EnqueueOptions{
		JobID: "instant-" + p.idgen.NewID(),
	})
}

// PlanOnce enqueues the "once-send" job delayed until fireAt, clamping a
// past fireAt to fire immediately.
func (p *Planner) PlanOnce(ctx context.Context, scheduleID string, fireAt time.Time) error {
	now := p.now()
	delay := fireAt.Sub(now).Milliseconds()
	if delay < 0 {
		delay = 0
	}
	return p.queue.Enqueue(ctx, jobqueue.KindOnceSend, scheduleID, "", "", jobqueue.EnqueueOptions{
		JobID: BuildOnceJobID(scheduleID, fireAt),
		DelayMs: delay,
	})
}

// PlanDaily enqueues the next daily occurrence for (scheduleID, timezone),
// DST-aware via the timezone catalog.
func (p *Planner) PlanDaily(ctx context.Context, scheduleID, timezone, localTime string) error {
	now := p.now()
	next, err := p.catalog.NextOccurrenceUTC(localTime, timezone, now)
	if err != nil {
		return fmt.Errorf("plan daily occurrence: %w", err)
	}
	delay := next.Sub(now).Milliseconds()
	if delay < 0 {
		delay = 0
	}
	return p.queue.Enqueue(ctx, jobqueue.KindDailyTimezoneSend, scheduleID, timezone, "", jobqueue.EnqueueOptions{
		JobID:   BuildDailyJobID(scheduleID, timezone, now),
		DelayMs: delay,
	})
}

// PlanDailyForTimezones enqueues one daily job per distinct timezone,
// skipping any timezone that already has a pending job for this schedule.
// Creation, resume, and the discovery sweep all plan through this guard.
// It returns the first error encountered but attempts every timezone
// regardless.
func (p *Planner) PlanDailyForTimezones(ctx context.Context, scheduleID, localTime string, timezones []string) error {
	var firstErr error
	for _, tz := range timezones {
		pending, err := p.HasPendingDaily(ctx, scheduleID, tz)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if pending {
			continue
		}
		if err := p.PlanDaily(ctx, scheduleID, tz, localTime); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// HasPendingDaily reports whether a waiting/delayed/active/paused job
// already targets (scheduleID, timezone). This is the duplicate guard that
// keeps each daily schedule at a single pending job per timezone.
func (p *Planner) HasPendingDaily(ctx context.Context, scheduleID, timezone string) (bool, error) {
	jobs, err := p.queue.GetJobsByState(ctx,
		jobqueue.StateWaiting, jobqueue.StateDelayed, jobqueue.StateActive, jobqueue.StatePaused)
	if err != nil {
		return false, err
	}
	for _, j := range jobs {
		if j.Kind == jobqueue.KindDailyTimezoneSend && j.ScheduleID == scheduleID && j.Timezone == timezone {
			return true, nil
		}
	}
	return false, nil
}

// RemoveAllForSchedule enumerates every waiting, delayed, active or paused
// job referencing scheduleID and removes it, the pause-time cancellation
// primitive. Dead-lettered jobs are left in place.
func (p *Planner) RemoveAllForSchedule(ctx context.Context, scheduleID string) error {
	jobs, err := p.queue.GetJobsByState(ctx,
		jobqueue.StateWaiting, jobqueue.StateDelayed, jobqueue.StateActive, jobqueue.StatePaused)
	if err != nil {
		return err
	}
	for _, j := range jobs {
		if j.ScheduleID != scheduleID {
			continue
		}
		if err := p.queue.RemoveByID(ctx, j.ID); err != nil {
			return fmt.Errorf("remove job %s: %w", j.ID, err)
		}
	}
	return nil
}
