package discovery_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/notifyhub/pushsched/internal/discovery"
	"github.com/notifyhub/pushsched/internal/domain"
	"github.com/notifyhub/pushsched/internal/jobqueue"
	"github.com/notifyhub/pushsched/internal/planner"
	"github.com/notifyhub/pushsched/internal/repository"
	"github.com/notifyhub/pushsched/internal/tzcatalog"
)

type fixedIDs struct{}

func (fixedIDs) NewID() string { return "fixed-id" }

func newDiscovery(t *testing.T, now time.Time) (*discovery.Discovery, *repository.MockScheduleRepository, *repository.MockUserRepository, *jobqueue.Queue) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := jobqueue.New(client, 10*time.Millisecond)
	catalog := tzcatalog.New()
	p := planner.New(q, catalog, fixedIDs{}, func() time.Time { return now })

	scheduleRepo := repository.NewMockScheduleRepository()
	userRepo := repository.NewMockUserRepository()
	d := discovery.New(scheduleRepo, userRepo, p, catalog, zap.NewNop())
	return d, scheduleRepo, userRepo, q
}

func activeDaily(id string) *domain.Schedule {
	return &domain.Schedule{ID: id, Kind: domain.KindDaily, Status: domain.StatusActive, IsActive: true, LocalTime: "09:00"}
}

func TestSweep_PlansOncePerSchedule(t *testing.T) {
	now := time.Date(2026, 7, 31, 8, 0, 0, 0, time.UTC)
	d, _, _, q := newDiscovery(t, now)

	schedules := []*domain.Schedule{activeDaily("s1"), activeDaily("s2")}
	require.NoError(t, d.Sweep(context.Background(), "utc", schedules))

	jobs, err := q.GetJobsByState(context.Background(), jobqueue.StateDelayed)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
}

func TestSweep_IdempotentOnSecondRun(t *testing.T) {
	now := time.Date(2026, 7, 31, 8, 0, 0, 0, time.UTC)
	d, _, _, q := newDiscovery(t, now)

	schedules := []*domain.Schedule{activeDaily("s1")}
	require.NoError(t, d.Sweep(context.Background(), "utc", schedules))
	require.NoError(t, d.Sweep(context.Background(), "utc", schedules))

	jobs, err := q.GetJobsByState(context.Background(), jobqueue.StateDelayed)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
}

func TestOnDeviceRegistered_FirstRegistrationSweepsActiveDaily(t *testing.T) {
	now := time.Date(2026, 7, 31, 8, 0, 0, 0, time.UTC)
	d, scheduleRepo, _, q := newDiscovery(t, now)
	require.NoError(t, scheduleRepo.Create(context.Background(), activeDaily("s1")))

	err := d.OnDeviceRegistered(context.Background(), "user-1", "America/New_York",
		domain.DeviceToken{Token: "tok", Platform: domain.PlatformIOS})
	require.NoError(t, err)

	jobs, err := q.GetJobsByState(context.Background(), jobqueue.StateDelayed)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "america/new_york", jobs[0].Timezone)
}

func TestOnDeviceRegistered_RejectsInvalidTimezone(t *testing.T) {
	now := time.Date(2026, 7, 31, 8, 0, 0, 0, time.UTC)
	d, _, _, _ := newDiscovery(t, now)

	err := d.OnDeviceRegistered(context.Background(), "user-1", "Not/AZone",
		domain.DeviceToken{Token: "tok", Platform: domain.PlatformIOS})
	require.ErrorIs(t, err, domain.ErrInvalidTimezone)
}

func TestOnDeviceRegistered_UnchangedTimezoneAndTokenSweepsNothing(t *testing.T) {
	now := time.Date(2026, 7, 31, 8, 0, 0, 0, time.UTC)
	d, scheduleRepo, _, q := newDiscovery(t, now)
	require.NoError(t, scheduleRepo.Create(context.Background(), activeDaily("s1")))

	tok := domain.DeviceToken{Token: "tok", Platform: domain.PlatformIOS}
	require.NoError(t, d.OnDeviceRegistered(context.Background(), "user-1", "utc", tok))

	jobsAfterFirst, err := q.GetJobsByState(context.Background(), jobqueue.StateDelayed)
	require.NoError(t, err)
	require.Len(t, jobsAfterFirst, 1)

	// Re-registering with the identical timezone and token is a no-op trigger.
	require.NoError(t, d.OnDeviceRegistered(context.Background(), "user-1", "utc", tok))

	jobsAfterSecond, err := q.GetJobsByState(context.Background(), jobqueue.StateDelayed)
	require.NoError(t, err)
	require.Len(t, jobsAfterSecond, 1)
}

func TestPostFiringSweep_SkipsCurrentTimezone(t *testing.T) {
	now := time.Date(2026, 7, 31, 8, 0, 0, 0, time.UTC)
	d, scheduleRepo, userRepo, q := newDiscovery(t, now)
	require.NoError(t, scheduleRepo.Create(context.Background(), activeDaily("s1")))
	userRepo.Put(&domain.User{ID: "u1", Timezone: "utc", IsActive: true, DeviceToken: domain.DeviceToken{Token: "t"}})
	userRepo.Put(&domain.User{ID: "u2", Timezone: "america/new_york", IsActive: true, DeviceToken: domain.DeviceToken{Token: "t"}})

	require.NoError(t, d.PostFiringSweep(context.Background(), "utc"))

	jobs, err := q.GetJobsByState(context.Background(), jobqueue.StateDelayed)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "america/new_york", jobs[0].Timezone)
}
