package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/pushsched/internal/jobqueue"
	"github.com/notifyhub/pushsched/internal/retry"
)

// jobFailureRetryDelay spaces out whole-job re-deliveries after an
// infrastructure failure (DB or gateway outage mid-dispatch).
const jobFailureRetryDelay = 30 * time.Second

// Worker is a single goroutine that continuously dequeues jobs and routes
// them by kind. There is no per-item handler registration; the loop body
// is the handler.
type Worker struct {
	id         int
	queue      *jobqueue.Queue
	dispatcher *Dispatcher
	retry      *retry.Pipeline
	logger     *zap.Logger
}

func NewWorker(id int, queue *jobqueue.Queue, dispatcher *Dispatcher, retry *retry.Pipeline, logger *zap.Logger) *Worker {
	return &Worker{id: id, queue: queue, dispatcher: dispatcher, retry: retry, logger: logger}
}

// Run blocks until ctx is cancelled, processing one job per iteration.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("dispatch worker started", zap.Int("worker_id", w.id))
	for {
		job, ok := w.queue.Dequeue(ctx)
		if !ok {
			w.logger.Info("dispatch worker stopping", zap.Int("worker_id", w.id))
			return
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job jobqueue.Job) {
	log := w.logger.With(
		zap.String("job_id", job.ID), zap.String("kind", string(job.Kind)), zap.String("schedule_id", job.ScheduleID),
	)

	var err error
	switch job.Kind {
	case jobqueue.KindRetry:
		err = w.retry.Process(ctx, job)
	default:
		err = w.dispatcher.Dispatch(ctx, job)
	}
	if err != nil {
		requeued, failErr := w.queue.Fail(ctx, job.ID, jobFailureRetryDelay)
		if failErr != nil {
			log.Error("job processing failed and could not be handed back", zap.Error(err), zap.NamedError("queue_error", failErr))
			return
		}
		if requeued {
			log.Warn("job processing failed, re-queued", zap.Error(err))
		} else {
			// Operator alert: the job exhausted its attempt cap.
			log.Error("job dead-lettered after repeated failures", zap.Error(err))
		}
		return
	}
	if err := w.queue.RemoveByID(ctx, job.ID); err != nil {
		log.Error("failed to remove completed job", zap.Error(err))
	}
}
