package workerpool

import (
	"context"
	"errors"
	"log"
	"runtime/debug"
	"sync"
)

var (
	// ErrQueueFull is returned by Submit when the queue has no free slot
	ErrQueueFull = errors.New("worker pool queue is full")
	// ErrPoolClosed is returned by Submit after Stop or StopWait
	ErrPoolClosed = errors.New("worker pool is stopped")
)

// Job is a unit of work. ctx is cancelled when the pool is stopped.
type Job func(ctx context.Context)

// Pool runs jobs on a fixed number of workers pulling from one bounded FIFO queue
type Pool struct {
	workers   int
	taskQueue chan Job

	waitGroup sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// New creates a pool and starts its workers
func New(numberOfWorkers, queueSize int) *Pool {
	if numberOfWorkers <= 0 {
		numberOfWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		workers:   numberOfWorkers,
		taskQueue: make(chan Job, queueSize),
		ctx:       ctx,
		cancel:    cancel,
	}

	for i := 0; i < numberOfWorkers; i++ {
		p.waitGroup.Add(1)
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.waitGroup.Done()

	for {
		// Check cancellation first so a stopped pool does not pick up more work
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.taskQueue:
			if !ok {
				return
			}
			p.run(job)
		}
	}
}

func (p *Pool) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: worker recovered panic: %v\n%s", r, debug.Stack())
		}
	}()
	job(p.ctx)
}

// Submit enqueues job without blocking
func (p *Pool) Submit(job Job) error {
	if job == nil {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.taskQueue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop cancels running jobs, discards queued ones and waits for workers to exit.
// It returns the number of discarded jobs. Calling Stop while StopWait is
// draining the queue cuts the drain short.
func (p *Pool) Stop() int {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.cancel()

	discarded := 0
cleanup:
	for {
		select {
		case _, ok := <-p.taskQueue:
			if !ok {
				break cleanup
			}
			discarded++
		default:
			break cleanup
		}
	}

	p.waitGroup.Wait()
	return discarded
}

// StopWait stops accepting jobs and waits until every queued job has run
func (p *Pool) StopWait() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.waitGroup.Wait()
		return
	}
	p.closed = true
	close(p.taskQueue)
	p.mu.Unlock()

	p.waitGroup.Wait()
	p.cancel()
}

// IsRunning reports whether the pool still accepts jobs
func (p *Pool) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed
}

// QueueLength returns the number of jobs waiting for a worker
func (p *Pool) QueueLength() int {
	return len(p.taskQueue)
}

// Workers returns the number of workers
func (p *Pool) Workers() int {
	return p.workers
}
