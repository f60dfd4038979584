package retry_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/notifyhub/pushsched/internal/domain"
	"github.com/notifyhub/pushsched/internal/gateway"
	"github.com/notifyhub/pushsched/internal/jobqueue"
	"github.com/notifyhub/pushsched/internal/repository"
	"github.com/notifyhub/pushsched/internal/retry"
)

type fixedIDs struct{ n int }

func (f *fixedIDs) NewID() string {
	f.n++
	return "retry-id"
}

func newPipeline(t *testing.T, gw gateway.Gateway) (*retry.Pipeline, *repository.MockScheduleRepository, *repository.MockUserRepository, *repository.MockLogRepository, *jobqueue.Queue) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := jobqueue.New(client, 10*time.Millisecond)
	scheduleRepo := repository.NewMockScheduleRepository()
	userRepo := repository.NewMockUserRepository()
	logRepo := repository.NewMockLogRepository()
	p := retry.New(q, scheduleRepo, userRepo, logRepo, gw, &fixedIDs{}, zap.NewNop())
	return p, scheduleRepo, userRepo, logRepo, q
}

func activeSchedule(id string) *domain.Schedule {
	return &domain.Schedule{ID: id, Kind: domain.KindOnce, Status: domain.StatusActive, IsActive: true}
}

func TestEnqueue_CreatesDelayedRetryJob(t *testing.T) {
	p, _, _, _, q := newPipeline(t, gateway.NewMockGateway())
	err := p.Enqueue(context.Background(), "sched-1",
		[]retry.Recipient{{UserID: "u1", Token: "t1"}}, "title", "body", "cat")
	require.NoError(t, err)

	jobs, err := q.GetJobsByState(context.Background(), jobqueue.StateDelayed)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, jobqueue.KindRetry, jobs[0].Kind)
}

func TestProcess_AllSucceedStopsRetrying(t *testing.T) {
	gw := gateway.NewMockGateway()
	p, scheduleRepo, _, logRepo, q := newPipeline(t, gw)
	ctx := context.Background()
	require.NoError(t, scheduleRepo.Create(ctx, activeSchedule("sched-1")))

	require.NoError(t, p.Enqueue(ctx, "sched-1", []retry.Recipient{{UserID: "u1", Token: "t1"}}, "t", "b", "c"))
	jobs, err := q.GetJobsByState(ctx, jobqueue.StateDelayed)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	// Mimic the worker: the job leaves the pending set before processing.
	require.NoError(t, q.RemoveByID(ctx, jobs[0].ID))
	require.NoError(t, p.Process(ctx, jobs[0]))

	logs, total, err := logRepo.ListByUser(ctx, "u1", 1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, domain.LogSent, logs[0].Status)

	remaining, err := q.GetJobsByState(ctx, jobqueue.StateDelayed)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestProcess_RetryableFailureReenqueues(t *testing.T) {
	gw := gateway.NewMockGateway()
	gw.Respond = func(tokens []string, _ gateway.Payload) (gateway.MulticastResult, error) {
		return gateway.MulticastResult{
			FailureCount: 1,
			Failures:     []gateway.FailureDetail{{Token: tokens[0], ErrorCode: "timeout"}},
		}, nil
	}
	p, scheduleRepo, _, _, q := newPipeline(t, gw)
	ctx := context.Background()
	require.NoError(t, scheduleRepo.Create(ctx, activeSchedule("sched-1")))

	require.NoError(t, p.Enqueue(ctx, "sched-1", []retry.Recipient{{UserID: "u1", Token: "t1"}}, "t", "b", "c"))
	jobs, err := q.GetJobsByState(ctx, jobqueue.StateDelayed)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	require.NoError(t, q.RemoveByID(ctx, jobs[0].ID))
	require.NoError(t, p.Process(ctx, jobs[0]))

	remaining, err := q.GetJobsByState(ctx, jobqueue.StateDelayed)
	require.NoError(t, err)
	require.Len(t, remaining, 1) // re-enqueued at attempt 2
}

func TestProcess_PermanentFailureClearsTokenNoRetry(t *testing.T) {
	gw := gateway.NewMockGateway()
	gw.Respond = func(tokens []string, _ gateway.Payload) (gateway.MulticastResult, error) {
		return gateway.MulticastResult{
			FailureCount: 1,
			Failures:     []gateway.FailureDetail{{Token: tokens[0], ErrorCode: "invalid-token"}},
		}, nil
	}
	p, scheduleRepo, userRepo, _, q := newPipeline(t, gw)
	ctx := context.Background()
	require.NoError(t, scheduleRepo.Create(ctx, activeSchedule("sched-1")))
	userRepo.Put(&domain.User{ID: "u1", DeviceToken: domain.DeviceToken{Token: "t1"}, IsActive: true})

	require.NoError(t, p.Enqueue(ctx, "sched-1", []retry.Recipient{{UserID: "u1", Token: "t1"}}, "t", "b", "c"))
	jobs, err := q.GetJobsByState(ctx, jobqueue.StateDelayed)
	require.NoError(t, err)

	require.NoError(t, q.RemoveByID(ctx, jobs[0].ID))
	require.NoError(t, p.Process(ctx, jobs[0]))

	remaining, err := q.GetJobsByState(ctx, jobqueue.StateDelayed)
	require.NoError(t, err)
	require.Empty(t, remaining) // permanent failure is not retried

	u, err := userRepo.GetByID(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "", u.DeviceToken.Token)
}

func TestProcess_DropsJobWhenScheduleInactive(t *testing.T) {
	gw := gateway.NewMockGateway()
	p, scheduleRepo, _, _, q := newPipeline(t, gw)
	ctx := context.Background()
	s := activeSchedule("sched-1")
	s.IsActive = false
	require.NoError(t, scheduleRepo.Create(ctx, s))

	require.NoError(t, p.Enqueue(ctx, "sched-1", []retry.Recipient{{UserID: "u1", Token: "t1"}}, "t", "b", "c"))
	jobs, err := q.GetJobsByState(ctx, jobqueue.StateDelayed)
	require.NoError(t, err)

	require.NoError(t, p.Process(ctx, jobs[0]))
	require.Equal(t, 0, gw.Calls())
}
