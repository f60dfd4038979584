// Package jobqueue implements the delayed-job queue adapter on top of Redis: a sorted set of due-times backs the
// waiting/delayed tiers, and a hash per job carries its payload and state.
package jobqueue

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pendingZSetKey = "pushsched:jobs:pending"
	jobKeyPrefix   = "pushsched:job:"

	// defaultMaxAttempts caps how many times a failed job is handed back
	// before Fail dead-letters it.
	defaultMaxAttempts = 3

	// defaultPollInterval governs how often Dequeue re-checks the sorted
	// set for due work. Polling (rather than BLPOP) keeps the due-time
	// score and the blocking wait on the same data structure, instead of a
	// second Redis structure kept in lockstep with the ZSET.
	defaultPollInterval = 500 * time.Millisecond
)

// Queue is a Redis-backed implementation of the job queue adapter.
type Queue struct {
	client       *redis.Client
	pollInterval time.Duration
}

// New returns a Queue using client for storage, polling for due work every
// pollInterval (0 selects the default of 500ms).
func New(client *redis.Client, pollInterval time.Duration) *Queue {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Queue{client: client, pollInterval: pollInterval}
}

func jobKey(id string) string { return jobKeyPrefix + id }

// Enqueue places a job on the queue under opts.JobID, delayed by
// opts.DelayMs (clamped to 0; an overdue job fires immediately). If a job
// with the same id already exists in any state Enqueue is a no-op: job
// ids are the queue's de-duplication mechanism. Daily job ids carry the
// planning instant's epoch-millis, so two racing plans of the same fresh
// timezone made in different milliseconds both insert.
func (q *Queue) Enqueue(ctx context.Context, kind Kind, scheduleID, timezone string, payload string, opts EnqueueOptions) error {
	if opts.JobID == "" {
		return errJobIDRequired
	}
	delay := opts.DelayMs
	if delay < 0 {
		delay = 0
	}
	dueAt := time.Now().Add(time.Duration(delay) * time.Millisecond)
	state := StateWaiting
	if delay > 0 {
		state = StateDelayed
	}

	key := jobKey(opts.JobID)
	created, err := q.client.HSetNX(ctx, key, "created", "1").Result()
	if err != nil {
		return err
	}
	if !created {
		// Duplicate enqueue of an already-pending job: tolerated no-op.
		return nil
	}

	maxAttempts := opts.Attempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	fields := map[string]any{
		"id":          opts.JobID,
		"kind":        string(kind),
		"scheduleId":  scheduleID,
		"timezone":    timezone,
		"payload":     payload,
		"state":       string(state),
		"dueAt":       strconv.FormatInt(dueAt.UnixMilli(), 10),
		"attempt":     "0",
		"maxAttempts": strconv.Itoa(maxAttempts),
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.ZAdd(ctx, pendingZSetKey, redis.Z{Score: float64(dueAt.UnixMilli()), Member: opts.JobID})
	_, err = pipe.Exec(ctx)
	return err
}

// Dequeue blocks, polling every q.pollInterval, until a due job is
// available or ctx is cancelled. Returns (Job{}, false) on cancellation.
func (q *Queue) Dequeue(ctx context.Context) (Job, bool) {
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	if job, ok := q.tryDequeueOnce(ctx); ok {
		return job, true
	}
	for {
		select {
		case <-ctx.Done():
			return Job{}, false
		case <-ticker.C:
			if job, ok := q.tryDequeueOnce(ctx); ok {
				return job, true
			}
		}
	}
}

func (q *Queue) tryDequeueOnce(ctx context.Context) (Job, bool) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	ids, err := q.client.ZRangeByScore(ctx, pendingZSetKey, &redis.ZRangeBy{
		Min: "-inf", Max: now, Offset: 0, Count: 1,
	}).Result()
	if err != nil || len(ids) == 0 {
		return Job{}, false
	}
	id := ids[0]

	removed, err := q.client.ZRem(ctx, pendingZSetKey, id).Result()
	if err != nil || removed == 0 {
		// Another worker won the race for this job id.
		return Job{}, false
	}

	job, err := q.getJob(ctx, id)
	if err != nil {
		return Job{}, false
	}
	job.State = StateActive
	q.client.HSet(ctx, jobKey(id), "state", string(StateActive))
	return job, true
}

// GetJobsByState enumerates every job whose state is in states. Used by the
// planner's duplicate guard and by pause to
// find every job referencing a schedule.
func (q *Queue) GetJobsByState(ctx context.Context, states ...State) ([]Job, error) {
	want := make(map[State]bool, len(states))
	for _, s := range states {
		want[s] = true
	}

	var jobs []Job
	var cursor uint64
	for {
		keys, next, err := q.client.Scan(ctx, cursor, jobKeyPrefix+"*", 200).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			id := strings.TrimPrefix(key, jobKeyPrefix)
			job, err := q.getJob(ctx, id)
			if err != nil {
				continue // job removed between SCAN and HGETALL; skip
			}
			if want[job.State] {
				jobs = append(jobs, job)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return jobs, nil
}

// Fail hands a dequeued job back to the queue after a processing failure.
// The job's attempt counter is incremented; while it remains under the cap
// the job is re-queued after retryDelay, otherwise it is moved to StateDead
// and left enumerable for operators. Returns whether the job was re-queued.
func (q *Queue) Fail(ctx context.Context, jobID string, retryDelay time.Duration) (bool, error) {
	key := jobKey(jobID)
	attempt, err := q.client.HIncrBy(ctx, key, "attempt", 1).Result()
	if err != nil {
		return false, err
	}
	maxStr, err := q.client.HGet(ctx, key, "maxAttempts").Result()
	if err != nil {
		return false, err
	}
	maxAttempts, _ := strconv.Atoi(maxStr)

	if attempt >= int64(maxAttempts) {
		err := q.client.HSet(ctx, key, "state", string(StateDead)).Err()
		return false, err
	}

	dueAt := time.Now().Add(retryDelay)
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"state": string(StateDelayed),
		"dueAt": strconv.FormatInt(dueAt.UnixMilli(), 10),
	})
	pipe.ZAdd(ctx, pendingZSetKey, redis.Z{Score: float64(dueAt.UnixMilli()), Member: jobID})
	_, err = pipe.Exec(ctx)
	return true, err
}

// RemoveByID removes a job from both the due-time index and its payload
// hash, regardless of its current state. Used by pause and by the
// dispatch worker after a job is processed successfully.
func (q *Queue) RemoveByID(ctx context.Context, jobID string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, pendingZSetKey, jobID)
	pipe.Del(ctx, jobKey(jobID))
	_, err := pipe.Exec(ctx)
	return err
}

func (q *Queue) getJob(ctx context.Context, id string) (Job, error) {
	m, err := q.client.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return Job{}, err
	}
	if len(m) == 0 {
		return Job{}, errJobNotFound
	}
	dueMs, _ := strconv.ParseInt(m["dueAt"], 10, 64)
	return Job{
		ID:         id,
		Kind:       Kind(m["kind"]),
		ScheduleID: m["scheduleId"],
		Timezone:   m["timezone"],
		Payload:    m["payload"],
		State:      State(m["state"]),
		DueAt:      time.UnixMilli(dueMs),
	}, nil
}
