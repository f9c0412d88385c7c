// Package worker provides the process-scoped pool that executes CPU-bound
// graph work (construction, clustering, centrality) off the caller's
// goroutine. A single pool instance is created at startup and shut down at
// process exit; services must never create their own.
package worker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// job pairs a unit of work with its completion signal.
type job struct {
	fn   func() error
	err  error
	done chan struct{}
}

// Pool is a bounded pool of worker goroutines draining a shared queue.
type Pool struct {
	logger *zap.Logger
	jobs   chan *job
	quit   chan struct{}
	wg     sync.WaitGroup
	size   int

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewPool creates a pool with the given concurrency and queue depth. The pool
// is inert until Start is called.
func NewPool(size, queueSize int, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		logger: logger.Named("worker_pool"),
		jobs:   make(chan *job, queueSize),
		quit:   make(chan struct{}),
		size:   size,
	}
}

// Start launches the worker goroutines. Calling Start twice is a no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	p.logger.Info("Starting worker pool", zap.Int("size", p.size))
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.runWorker(i + 1)
	}
}

// Stop signals all workers to exit and waits for in-flight jobs to finish.
// Jobs still queued at shutdown are abandoned; jobs submitted after Stop fail
// immediately.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.quit)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("Worker pool stopped gracefully.")
}

func (p *Pool) runWorker(id int) {
	defer p.wg.Done()
	logger := p.logger.With(zap.Int("worker_id", id))
	logger.Debug("Worker goroutine started")

	for {
		select {
		case <-p.quit:
			logger.Debug("Worker shutting down.")
			return
		case j := <-p.jobs:
			j.err = j.fn()
			close(j.done)
		}
	}
}

// Run submits fn and blocks until it completes or ctx is done. When ctx
// expires first the job is abandoned best-effort: it may still execute, but
// its result is discarded and the context error is returned.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return fmt.Errorf("worker pool is not running")
	}
	p.mu.Unlock()

	j := &job{fn: fn, done: make(chan struct{})}
	select {
	case p.jobs <- j:
	case <-p.quit:
		return fmt.Errorf("worker pool is shutting down")
	case <-ctx.Done():
		return fmt.Errorf("worker queue full: %w", ctx.Err())
	}

	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
