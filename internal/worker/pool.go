package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hyperengineering/healthsync/internal/observability"
)

// Task is a unit of background work. ctx is the pool's context and is
// canceled at shutdown.
type Task = func(ctx context.Context)

type namedTask struct {
	name string
	fn   Task
}

// Pool is the application-lifetime background task group. Tasks are queued
// in a bounded channel and executed by a fixed number of workers. Canceling
// the context passed to Run cancels in-flight tasks and discards queued ones.
type Pool struct {
	tasks   chan namedTask
	workers int

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a pool with the given queue capacity and worker count.
// Values below 1 default to 1.
func NewPool(queueSize, workers int) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		tasks:   make(chan namedTask, queueSize),
		workers: workers,
	}
}

// Submit enqueues fn without blocking.
func (p *Pool) Submit(name string, fn Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- namedTask{name: name, fn: fn}:
		observability.SetQueueDepth(len(p.tasks))
		return nil
	default:
		return ErrQueueFull
	}
}

// Len returns the number of queued tasks.
func (p *Pool) Len() int {
	return len(p.tasks)
}

// Run executes queued tasks until ctx is cancelled, then closes the pool.
func (p *Pool) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "task-pool",
		"action", "worker_started",
		"workers", p.workers,
	)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.loop(ctx)
		}()
	}
	wg.Wait()

	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	discarded := 0
drain:
	for {
		select {
		case <-p.tasks:
			discarded++
		default:
			break drain
		}
	}
	observability.SetQueueDepth(0)

	slog.Info("worker stopped",
		"component", "worker",
		"worker", "task-pool",
		"action", "worker_stopped",
		"reason", "context_cancelled",
		"discarded", discarded,
	)
}

func (p *Pool) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-p.tasks:
			observability.SetQueueDepth(len(p.tasks))
			if ctx.Err() != nil {
				return
			}
			p.execute(ctx, t)
		}
	}
}

func (p *Pool) execute(ctx context.Context, t namedTask) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("background task panicked",
				"component", "worker",
				"worker", "task-pool",
				"task", t.name,
				"panic", r,
			)
		}
	}()
	t.fn(ctx)
}
