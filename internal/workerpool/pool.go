// Package workerpool runs relay side work (injections, backups) off the
// relay and subscriber loops on a fixed number of goroutines.
package workerpool

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/NotCreative21/taurus/internal/logging"
)

var log = logging.L("workerpool")

// Task is a unit of work submitted to the pool.
type Task func()

// Pool is a bounded goroutine pool with a fixed-size task queue.
type Pool struct {
	queue chan Task
	wg    sync.WaitGroup

	// mu guards accepting and the queue close so Submit never sends on a
	// closed channel.
	mu        sync.RWMutex
	accepting bool
	closed    bool
}

// New creates a pool with workers goroutines and a task queue of queueSize.
func New(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	p := &Pool{
		queue:     make(chan Task, queueSize),
		accepting: true,
	}
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	log.Info("worker pool started", "workers", workers, "queueSize", queueSize)
	return p
}

// Submit enqueues a task under name, used only for logging. It returns false
// if the pool is stopped or the queue is full.
func (p *Pool) Submit(name string, task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.accepting {
		return false
	}

	p.wg.Add(1)
	select {
	case p.queue <- func() { p.run(name, task) }:
		return true
	default:
		p.wg.Done()
		log.Warn("worker pool queue full, task rejected", "task", name)
		return false
	}
}

// StopAccepting prevents new tasks from being submitted.
func (p *Pool) StopAccepting() {
	p.mu.Lock()
	p.accepting = false
	p.mu.Unlock()
}

// Drain stops accepting, then waits for queued and in-flight tasks until ctx
// is done. Worker goroutines exit once Drain returns.
func (p *Pool) Drain(ctx context.Context) {
	p.StopAccepting()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("worker pool drained")
	case <-ctx.Done():
		log.Warn("worker pool drain timed out")
	}

	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
}

func (p *Pool) worker() {
	for task := range p.queue {
		task()
	}
}

func (p *Pool) run(name string, task Task) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", "task", name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	task()
}
