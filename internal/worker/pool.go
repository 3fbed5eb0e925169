package worker

import (
	"context"
	"sync"

	"github.com/osse101/adlink/internal/logger"
)

// Job represents a task to be executed by a worker
type Job interface {
	Process(ctx context.Context) error
}

// JobFunc adapts a plain function to the Job interface
type JobFunc func(ctx context.Context) error

// Process calls f(ctx)
func (f JobFunc) Process(ctx context.Context) error {
	return f(ctx)
}

// Pool represents a worker pool
type Pool struct {
	workers  int
	jobQueue chan Job
	wg       sync.WaitGroup
	quit     chan struct{}
	stopOnce sync.Once
}

// NewPool creates a new worker pool
func NewPool(workers int, queueSize int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkerCount
	}
	if queueSize < 0 {
		queueSize = DefaultQueueSize
	}
	return &Pool{
		workers:  workers,
		jobQueue: make(chan Job, queueSize),
		quit:     make(chan struct{}),
	}
}

// Start starts the workers
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// worker is the worker loop
func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobQueue:
			ctx := context.Background()
			if err := job.Process(ctx); err != nil {
				logger.FromContext(ctx).Error(LogMsgWorkerJobFailed, "error", err)
			}
		case <-p.quit:
			return
		}
	}
}

// Enqueue adds a job to the queue, blocking while the queue is full.
// It returns false if the pool has been stopped.
func (p *Pool) Enqueue(job Job) bool {
	select {
	case <-p.quit:
		logger.FromContext(context.Background()).Warn(LogMsgJobDroppedStopped)
		return false
	default:
	}

	select {
	case p.jobQueue <- job:
		return true
	case <-p.quit:
		logger.FromContext(context.Background()).Warn(LogMsgJobDroppedStopped)
		return false
	}
}

// Go runs f on a pool worker. It satisfies the dispatcher signature used by
// link sessions for off-lock exchange calls.
func (p *Pool) Go(f func()) {
	p.Enqueue(JobFunc(func(context.Context) error {
		f()
		return nil
	}))
}

// Stop stops the workers and waits for them to finish
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.quit) })
	p.wg.Wait()
}
