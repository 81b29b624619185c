package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
	"github.com/kirillkom/historical-text-analysis/internal/core/ports"
)

// Observer is notified around each handled task.
type Observer interface {
	StartTask()
	FinishTask(duration time.Duration, err error)
	SetQueueDepth(depth int)
}

// Pool runs a fixed number of workers over a bounded in-memory queue.
type Pool struct {
	workers  int
	queue    chan string
	handler  ports.TaskHandler
	observer Observer
}

func New(workers, queueSize int, handler ports.TaskHandler) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Pool{
		workers: workers,
		queue:   make(chan string, queueSize),
		handler: handler,
	}
}

func (p *Pool) WithObserver(observer Observer) *Pool {
	p.observer = observer
	return p
}

// Dispatch enqueues without blocking and fails with ErrTemporary when the queue is full.
func (p *Pool) Dispatch(_ context.Context, taskID string) error {
	select {
	case p.queue <- taskID:
		p.observeDepth()
		return nil
	default:
		return domain.WrapError(domain.ErrTemporary, "dispatch analysis", fmt.Errorf("queue full (%d)", cap(p.queue)))
	}
}

// Submit enqueues, waiting for room until ctx is done.
func (p *Pool) Submit(ctx context.Context, taskID string) error {
	select {
	case p.queue <- taskID:
		p.observeDepth()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) Len() int {
	return len(p.queue)
}

// Run starts the workers and blocks until ctx is done and every worker has
// finished its current task. Queued but unstarted tasks stay PENDING in the
// store and are picked up again by startup recovery.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		worker := i
		g.Go(func() error {
			return p.work(gctx, worker)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Pool) work(ctx context.Context, worker int) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case taskID := <-p.queue:
			p.observeDepth()
			p.handle(ctx, worker, taskID)
		}
	}
}

func (p *Pool) handle(ctx context.Context, worker int, taskID string) {
	start := time.Now()
	if p.observer != nil {
		p.observer.StartTask()
	}

	err := p.safeHandle(ctx, taskID)
	if err != nil {
		slog.Error("analysis_worker_error", "worker", worker, "task_id", taskID, "error", err)
	}
	if p.observer != nil {
		p.observer.FinishTask(time.Since(start), err)
	}
}

func (p *Pool) safeHandle(ctx context.Context, taskID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic handling task %s: %v", taskID, r)
		}
	}()
	return p.handler(ctx, taskID)
}

func (p *Pool) observeDepth() {
	if p.observer != nil {
		p.observer.SetQueueDepth(len(p.queue))
	}
}
