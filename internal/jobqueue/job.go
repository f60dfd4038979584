package jobqueue

import "time"

// Kind distinguishes the four job shapes the scheduler enqueues.
type Kind string

const (
	KindInstantSendAll    Kind = "instant-send-all"
	KindOnceSend          Kind = "once-send"
	KindDailyTimezoneSend Kind = "daily-timezone-send"
	KindRetry             Kind = "retry"
)

// State is a job's position in its queue lifecycle.
type State string

const (
	StateWaiting State = "waiting"
	StateDelayed State = "delayed"
	StateActive  State = "active"
	StatePaused  State = "paused"

	// StateDead marks a job whose processing failed more times than its
	// attempt cap allows. Dead jobs stay enumerable for operators but are
	// never dequeued again.
	StateDead State = "dead"
)

// Job is the materialized form of an enqueued unit of work. ScheduleID and
// Timezone are the (scheduleId, timezone) tuple the planner's duplicate
// guard reasons about. Payload is an opaque JSON envelope
// whose shape is owned by the component that enqueued the job (the retry
// pipeline, internal/retry, is the only kind that currently needs one).
type Job struct {
	ID         string
	Kind       Kind
	ScheduleID string
	Timezone   string // "" when not timezone-scoped (once/instant/retry)
	Payload    string
	State      State
	DueAt      time.Time
}

// EnqueueOptions carries the per-job knobs accepted by Enqueue.
// Attempts caps how many times a job may be handed back by Fail before it
// is dead-lettered; 0 selects the default of 3.
type EnqueueOptions struct {
	DelayMs          int64
	JobID            string
	RemoveOnComplete bool
	Attempts         int
}
