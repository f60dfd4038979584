package jobqueue_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/notifyhub/pushsched/internal/jobqueue"
)

func newQueue(t *testing.T) *jobqueue.Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return jobqueue.New(client, 20*time.Millisecond)
}

func TestQueue_EnqueueDequeue_Immediate(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	err := q.Enqueue(ctx, jobqueue.KindInstantSendAll, "sched-1", "", "", jobqueue.EnqueueOptions{JobID: "job-1"})
	require.NoError(t, err)

	job, ok := q.Dequeue(ctx)
	require.True(t, ok)
	require.Equal(t, "job-1", job.ID)
	require.Equal(t, "sched-1", job.ScheduleID)
	require.Equal(t, jobqueue.StateActive, job.State)
}

func TestQueue_Enqueue_DuplicateJobIDIsNoOp(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, jobqueue.KindDailyTimezoneSend, "s1", "europe/london", "", jobqueue.EnqueueOptions{JobID: "dup"}))
	require.NoError(t, q.Enqueue(ctx, jobqueue.KindDailyTimezoneSend, "s1", "europe/london", "", jobqueue.EnqueueOptions{JobID: "dup"}))

	jobs, err := q.GetJobsByState(ctx, jobqueue.StateWaiting, jobqueue.StateDelayed)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
}

func TestQueue_Enqueue_DelayedNotDequeuedEarly(t *testing.T) {
	q := newQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, q.Enqueue(ctx, jobqueue.KindOnceSend, "s1", "", "", jobqueue.EnqueueOptions{
		JobID: "later", DelayMs: 10_000,
	}))

	_, ok := q.Dequeue(ctx)
	require.False(t, ok, "job delayed 10s should not be dequeued within 100ms")
}

func TestQueue_GetJobsByState_FiltersByState(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, jobqueue.KindDailyTimezoneSend, "s1", "asia/tokyo", "", jobqueue.EnqueueOptions{JobID: "waiting-1"}))
	require.NoError(t, q.Enqueue(ctx, jobqueue.KindDailyTimezoneSend, "s1", "asia/tokyo", "", jobqueue.EnqueueOptions{JobID: "delayed-1", DelayMs: 60_000}))

	waiting, err := q.GetJobsByState(ctx, jobqueue.StateWaiting)
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	require.Equal(t, "waiting-1", waiting[0].ID)

	delayed, err := q.GetJobsByState(ctx, jobqueue.StateDelayed)
	require.NoError(t, err)
	require.Len(t, delayed, 1)
	require.Equal(t, "delayed-1", delayed[0].ID)
}

func TestQueue_RemoveByID(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, jobqueue.KindOnceSend, "s1", "", "", jobqueue.EnqueueOptions{JobID: "to-remove"}))
	require.NoError(t, q.RemoveByID(ctx, "to-remove"))

	jobs, err := q.GetJobsByState(ctx, jobqueue.StateWaiting, jobqueue.StateDelayed, jobqueue.StateActive, jobqueue.StatePaused)
	require.NoError(t, err)
	require.Empty(t, jobs)
}

func TestQueue_Fail_RequeuesUntilAttemptCap(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, jobqueue.KindOnceSend, "s1", "", "", jobqueue.EnqueueOptions{
		JobID: "flaky", Attempts: 2,
	}))
	_, ok := q.Dequeue(ctx)
	require.True(t, ok)

	requeued, err := q.Fail(ctx, "flaky", 0)
	require.NoError(t, err)
	require.True(t, requeued)

	job, ok := q.Dequeue(ctx)
	require.True(t, ok)
	require.Equal(t, "flaky", job.ID)

	requeued, err = q.Fail(ctx, "flaky", 0)
	require.NoError(t, err)
	require.False(t, requeued, "second failure should exhaust the 2-attempt cap")

	dead, err := q.GetJobsByState(ctx, jobqueue.StateDead)
	require.NoError(t, err)
	require.Len(t, dead, 1)

	pending, err := q.GetJobsByState(ctx, jobqueue.StateWaiting, jobqueue.StateDelayed)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestQueue_Dequeue_ContextCancellation(t *testing.T) {
	q := newQueue(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue(ctx)
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not return after context cancellation")
	}
}
