package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/notifyhub/pushsched/internal/domain"
	"github.com/notifyhub/pushsched/internal/jobqueue"
	"github.com/notifyhub/pushsched/internal/planner"
	"github.com/notifyhub/pushsched/internal/repository"
	"github.com/notifyhub/pushsched/internal/schedule"
	"github.com/notifyhub/pushsched/internal/tzcatalog"
)

type fixedIDs struct{ n int }

func (f *fixedIDs) NewID() string {
	f.n++
	return "sched-1"
}

func newService(t *testing.T, now time.Time) (*schedule.Service, *repository.MockScheduleRepository, *repository.MockUserRepository, *jobqueue.Queue) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := jobqueue.New(client, 10*time.Millisecond)
	p := planner.New(q, tzcatalog.New(), &fixedIDs{}, func() time.Time { return now })

	scheduleRepo := repository.NewMockScheduleRepository()
	userRepo := repository.NewMockUserRepository()
	svc := schedule.New(scheduleRepo, userRepo, p, &fixedIDs{}, func() time.Time { return now })
	return svc, scheduleRepo, userRepo, q
}

func TestCreate_Instant_EnqueuesOneJob(t *testing.T) {
	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	svc, _, _, q := newService(t, now)

	sch, err := svc.Create(context.Background(), domain.CreateScheduleRequest{
		Title: "Hi", Message: "there", Kind: domain.KindInstant, Audience: domain.AudienceAll,
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, sch.Status)

	jobs, err := q.GetJobsByState(context.Background(), jobqueue.StateWaiting)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, jobqueue.KindInstantSendAll, jobs[0].Kind)
}

func TestCreate_Once_RejectsPastFireAt(t *testing.T) {
	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	svc, _, _, _ := newService(t, now)
	past := now.Add(-time.Hour)

	_, err := svc.Create(context.Background(), domain.CreateScheduleRequest{
		Title: "Hi", Message: "there", Kind: domain.KindOnce, Audience: domain.AudienceAll, FireAt: &past,
	})
	require.ErrorIs(t, err, domain.ErrInvalidFireAt)
}

func TestCreate_Daily_EnqueuesPerDistinctTimezone(t *testing.T) {
	now := time.Date(2026, 7, 31, 8, 0, 0, 0, time.UTC)
	svc, _, userRepo, q := newService(t, now)
	userRepo.Put(&domain.User{ID: "u1", Timezone: "utc", IsActive: true, DeviceToken: domain.DeviceToken{Token: "t1"}})
	userRepo.Put(&domain.User{ID: "u2", Timezone: "america/new_york", IsActive: true, DeviceToken: domain.DeviceToken{Token: "t2"}})

	sch, err := svc.Create(context.Background(), domain.CreateScheduleRequest{
		Title: "Hi", Message: "there", Kind: domain.KindDaily, Audience: domain.AudienceAll, LocalTime: "09:00",
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, sch.Status)

	jobs, err := q.GetJobsByState(context.Background(), jobqueue.StateDelayed)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
}

func TestPause_IsIdempotent(t *testing.T) {
	now := time.Date(2026, 7, 31, 8, 0, 0, 0, time.UTC)
	svc, scheduleRepo, _, _ := newService(t, now)
	ctx := context.Background()
	require.NoError(t, scheduleRepo.Create(ctx, &domain.Schedule{ID: "s1", Kind: domain.KindDaily, Status: domain.StatusActive, IsActive: true}))

	_, err := svc.UpdateStatus(ctx, "s1", domain.UpdateStatusRequest{IsActive: false})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, "s1", domain.UpdateStatusRequest{IsActive: false})
	require.NoError(t, err)
}

func TestPause_RemovesInFlightJobs(t *testing.T) {
	now := time.Date(2026, 7, 31, 8, 0, 0, 0, time.UTC)
	svc, _, userRepo, q := newService(t, now)
	ctx := context.Background()
	userRepo.Put(&domain.User{ID: "u1", Timezone: "utc", IsActive: true, DeviceToken: domain.DeviceToken{Token: "t1"}})

	sch, err := svc.Create(ctx, domain.CreateScheduleRequest{
		Title: "Hi", Message: "there", Kind: domain.KindDaily, Audience: domain.AudienceAll, LocalTime: "09:00",
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, sch.ID, domain.UpdateStatusRequest{IsActive: false})
	require.NoError(t, err)

	jobs, err := q.GetJobsByState(ctx, jobqueue.StateDelayed, jobqueue.StateWaiting)
	require.NoError(t, err)
	require.Empty(t, jobs)
}

func TestResume_Once_RejectsExpiredFireAt(t *testing.T) {
	now := time.Date(2026, 7, 31, 8, 0, 0, 0, time.UTC)
	svc, scheduleRepo, _, _ := newService(t, now)
	ctx := context.Background()
	past := now.Add(-time.Minute)
	require.NoError(t, scheduleRepo.Create(ctx, &domain.Schedule{
		ID: "s1", Kind: domain.KindOnce, Status: domain.StatusPaused, IsActive: false, FireAt: &past,
	}))

	_, err := svc.UpdateStatus(ctx, "s1", domain.UpdateStatusRequest{IsActive: true})
	require.ErrorIs(t, err, domain.ErrScheduleExpired)
}

func TestResume_Daily_ReplansAndReactivates(t *testing.T) {
	now := time.Date(2026, 7, 31, 8, 0, 0, 0, time.UTC)
	svc, scheduleRepo, userRepo, q := newService(t, now)
	ctx := context.Background()
	userRepo.Put(&domain.User{ID: "u1", Timezone: "utc", IsActive: true, DeviceToken: domain.DeviceToken{Token: "t1"}})
	require.NoError(t, scheduleRepo.Create(ctx, &domain.Schedule{
		ID: "s1", Kind: domain.KindDaily, Status: domain.StatusPaused, IsActive: false, LocalTime: "09:00",
	}))

	sch, err := svc.UpdateStatus(ctx, "s1", domain.UpdateStatusRequest{IsActive: true})
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, sch.Status)

	jobs, err := q.GetJobsByState(ctx, jobqueue.StateDelayed)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
}
