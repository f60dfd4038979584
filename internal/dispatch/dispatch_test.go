package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/notifyhub/pushsched/internal/discovery"
	"github.com/notifyhub/pushsched/internal/dispatch"
	"github.com/notifyhub/pushsched/internal/domain"
	"github.com/notifyhub/pushsched/internal/gateway"
	"github.com/notifyhub/pushsched/internal/jobqueue"
	"github.com/notifyhub/pushsched/internal/planner"
	"github.com/notifyhub/pushsched/internal/repository"
	"github.com/notifyhub/pushsched/internal/retry"
	"github.com/notifyhub/pushsched/internal/tzcatalog"
)

type seqIDs struct{ n int }

func (s *seqIDs) NewID() string {
	s.n++
	return "id-" + string(rune('a'+s.n))
}

type harness struct {
	dispatcher   *dispatch.Dispatcher
	scheduleRepo *repository.MockScheduleRepository
	userRepo     *repository.MockUserRepository
	logRepo      *repository.MockLogRepository
	historyRepo  *repository.MockHistoryRepository
	gateway      *gateway.MockGateway
	queue        *jobqueue.Queue
}

func newHarness(t *testing.T, now time.Time) harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := jobqueue.New(client, 10*time.Millisecond)
	catalog := tzcatalog.New()
	gen := &seqIDs{}
	p := planner.New(q, catalog, gen, func() time.Time { return now })

	scheduleRepo := repository.NewMockScheduleRepository()
	userRepo := repository.NewMockUserRepository()
	logRepo := repository.NewMockLogRepository()
	historyRepo := repository.NewMockHistoryRepository()
	gw := gateway.NewMockGateway()

	d := discovery.New(scheduleRepo, userRepo, p, catalog, zap.NewNop())
	rp := retry.New(q, scheduleRepo, userRepo, logRepo, gw, gen, zap.NewNop())

	disp := dispatch.New(scheduleRepo, userRepo, logRepo, historyRepo, gw, p, d, rp, gen, func() time.Time { return now }, zap.NewNop())

	return harness{disp, scheduleRepo, userRepo, logRepo, historyRepo, gw, q}
}

func TestDispatch_NoRecipientsRecordsFailedHistory(t *testing.T) {
	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	ctx := context.Background()
	require.NoError(t, h.scheduleRepo.Create(ctx, &domain.Schedule{
		ID: "s1", Kind: domain.KindInstant, Status: domain.StatusPending, IsActive: true,
		Title: "Hi", Message: "there", Audience: domain.AudienceAll,
	}))

	err := h.dispatcher.Dispatch(ctx, jobqueue.Job{ID: "j1", Kind: jobqueue.KindInstantSendAll, ScheduleID: "s1"})
	require.NoError(t, err)

	s, err := h.scheduleRepo.GetByID(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, s.Status)
	require.Equal(t, 0, s.TotalTargeted)

	_, total, err := h.historyRepo.List(ctx, domain.HistoryListFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func TestDispatch_SkipsInactiveSchedule(t *testing.T) {
	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	ctx := context.Background()
	require.NoError(t, h.scheduleRepo.Create(ctx, &domain.Schedule{
		ID: "s1", Kind: domain.KindInstant, Status: domain.StatusPaused, IsActive: false,
	}))

	err := h.dispatcher.Dispatch(ctx, jobqueue.Job{ID: "j1", Kind: jobqueue.KindInstantSendAll, ScheduleID: "s1"})
	require.NoError(t, err)
	require.Equal(t, 0, h.gateway.Calls())
}

func TestDispatch_DropsJobForMissingSchedule(t *testing.T) {
	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	err := h.dispatcher.Dispatch(context.Background(), jobqueue.Job{ID: "j1", Kind: jobqueue.KindInstantSendAll, ScheduleID: "ghost"})
	require.NoError(t, err)
}

func TestDispatch_AllSuccessMarksCompletedForInstant(t *testing.T) {
	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	ctx := context.Background()
	require.NoError(t, h.scheduleRepo.Create(ctx, &domain.Schedule{
		ID: "s1", Kind: domain.KindInstant, Status: domain.StatusPending, IsActive: true,
		Title: "Hi", Message: "there", Audience: domain.AudienceAll,
	}))
	h.userRepo.Put(&domain.User{ID: "u1", IsActive: true, DeviceToken: domain.DeviceToken{Token: "t1"}})
	h.userRepo.Put(&domain.User{ID: "u2", IsActive: true, DeviceToken: domain.DeviceToken{Token: "t2"}})

	err := h.dispatcher.Dispatch(ctx, jobqueue.Job{ID: "j1", Kind: jobqueue.KindInstantSendAll, ScheduleID: "s1"})
	require.NoError(t, err)

	s, err := h.scheduleRepo.GetByID(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, s.Status)
	require.Equal(t, 2, s.TotalTargeted)
	require.Equal(t, 2, s.SuccessCount)

	_, total, err := h.logRepo.ListByUser(ctx, "u1", 1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func TestDispatch_DailyReplansNextOccurrence(t *testing.T) {
	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	ctx := context.Background()
	require.NoError(t, h.scheduleRepo.Create(ctx, &domain.Schedule{
		ID: "s1", Kind: domain.KindDaily, Status: domain.StatusActive, IsActive: true,
		Title: "Hi", Message: "there", Audience: domain.AudienceAll, LocalTime: "09:00",
	}))
	h.userRepo.Put(&domain.User{ID: "u1", Timezone: "utc", IsActive: true, DeviceToken: domain.DeviceToken{Token: "t1"}})

	err := h.dispatcher.Dispatch(ctx, jobqueue.Job{ID: "j1", Kind: jobqueue.KindDailyTimezoneSend, ScheduleID: "s1", Timezone: "utc"})
	require.NoError(t, err)

	s, err := h.scheduleRepo.GetByID(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, s.Status) // daily schedules stay active, no terminal status

	jobs, err := h.queue.GetJobsByState(ctx, jobqueue.StateDelayed, jobqueue.StateWaiting)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, jobqueue.KindDailyTimezoneSend, jobs[0].Kind)
}

func TestDispatch_RetryableFailureEnqueuesRetryJob(t *testing.T) {
	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	ctx := context.Background()
	require.NoError(t, h.scheduleRepo.Create(ctx, &domain.Schedule{
		ID: "s1", Kind: domain.KindInstant, Status: domain.StatusPending, IsActive: true,
		Title: "Hi", Message: "there", Audience: domain.AudienceAll,
	}))
	h.userRepo.Put(&domain.User{ID: "u1", IsActive: true, DeviceToken: domain.DeviceToken{Token: "t1"}})
	h.gateway.Respond = func(tokens []string, _ gateway.Payload) (gateway.MulticastResult, error) {
		return gateway.MulticastResult{
			FailureCount: 1,
			Failures:     []gateway.FailureDetail{{Token: tokens[0], ErrorCode: "timeout"}},
		}, nil
	}

	err := h.dispatcher.Dispatch(ctx, jobqueue.Job{ID: "j1", Kind: jobqueue.KindInstantSendAll, ScheduleID: "s1"})
	require.NoError(t, err)

	jobs, err := h.queue.GetJobsByState(ctx, jobqueue.StateDelayed)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, jobqueue.KindRetry, jobs[0].Kind)
}
