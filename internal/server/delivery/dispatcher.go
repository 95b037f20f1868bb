package delivery

import (
	"context"
	"sync/atomic"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Dispatcher is a bounded in-process queue in front of a Worker pool.
type Dispatcher struct {
	worker  *Worker
	jobs    chan Job
	workers int
	log     logging.Logger
	stopped atomic.Bool
}

func NewDispatcher(worker *Worker, queueSize, workers int, log logging.Logger) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		worker:  worker,
		jobs:    make(chan Job, queueSize),
		workers: workers,
		log:     log,
	}
}

// Enqueue hands job to the pool without blocking. It returns
// common.ErrQueueFull when the queue is full or the pool has stopped.
func (d *Dispatcher) Enqueue(job Job) error {
	if d.stopped.Load() {
		return common.ErrQueueFull
	}
	select {
	case d.jobs <- job:
		return nil
	default:
		return common.ErrQueueFull
	}
}

// Run processes jobs until ctx is done. Jobs still queued at that point are
// dropped; their contact logs stay pending for the next resume.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.stopped.Store(true)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case job := <-d.jobs:
					d.worker.Dispatch(gctx, job)
				}
			}
		})
	}

	d.log.Info(ctx, "delivery workers started", "workers", d.workers, "queue_size", cap(d.jobs))
	err := g.Wait()
	d.log.Info(context.Background(), "delivery workers stopped", "dropped", len(d.jobs))
	return err
}
