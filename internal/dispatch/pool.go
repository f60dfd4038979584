package dispatch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/notifyhub/pushsched/internal/jobqueue"
	"github.com/notifyhub/pushsched/internal/retry"
)

// Pool manages the lifecycle of every dispatch worker goroutine. All
// workers share one queue; the kind distinction lives in Worker.process,
// not in separate queues.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// NewPool creates n identical dispatch workers pulling from queue.
func NewPool(n int, queue *jobqueue.Queue, dispatcher *Dispatcher, retry *retry.Pipeline, logger *zap.Logger) *Pool {
	workers := make([]*Worker, n)
	for i := range workers {
		workers[i] = NewWorker(i, queue, dispatcher, retry, logger.With(zap.Int("worker_id", i)))
	}
	return &Pool{workers: workers}
}

// Start launches every worker as a goroutine. Cancelling ctx triggers a
// graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
func (p *Pool) Wait() {
	p.wg.Wait()
}
