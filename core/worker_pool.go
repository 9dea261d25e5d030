package core

import (
	"fmt"
	"sync"
	"time"
)

// DefaultWorkerCount is the pool size used when the configuration does not
// set one.
const DefaultWorkerCount = 10

// WorkerPool runs job shells on a bounded set of goroutines. The scheduler
// thread asks for availability before acquiring triggers so it never
// acquires more work than it can dispatch.
type WorkerPool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	size     int
	running  int
	shutdown bool
	wg       sync.WaitGroup
	logger   Logger
}

func NewWorkerPool(size int, logger Logger) (*WorkerPool, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: worker pool size %d, need at least 1", ErrSchedulerConfig, size)
	}
	p := &WorkerPool{size: size, logger: logger}
	p.cond = sync.NewCond(&p.mu)
	return p, nil
}

func (p *WorkerPool) Size() int { return p.size }

// BlockForAvailableWorkers blocks until at least one worker is free and
// returns how many are, or 0 after shutdown.
func (p *WorkerPool) BlockForAvailableWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.running >= p.size && !p.shutdown {
		p.cond.Wait()
	}
	if p.shutdown {
		return 0
	}
	return p.size - p.running
}

// RunInWorker executes fn on a pool goroutine. It reports false when the
// pool is saturated or shut down; the caller must then release the work it
// meant to dispatch.
func (p *WorkerPool) RunInWorker(fn func()) bool {
	p.mu.Lock()
	if p.shutdown || p.running >= p.size {
		p.mu.Unlock()
		return false
	}
	p.running++
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil && p.logger != nil {
				p.logger.Errorf("worker panic recovered: %v", r)
			}
			p.mu.Lock()
			p.running--
			p.cond.Broadcast()
			p.mu.Unlock()
			p.wg.Done()
		}()
		fn()
	}()
	return true
}

// Shutdown stops accepting work. With wait set it blocks until running
// jobs finish.
func (p *WorkerPool) Shutdown(wait bool) {
	p.mu.Lock()
	p.shutdown = true
	p.cond.Broadcast()
	p.mu.Unlock()
	if wait {
		p.wg.Wait()
	}
}

// ShutdownWithTimeout stops the pool and waits up to d for running jobs.
// It returns ErrSchedulerTimeout when jobs are still running at the
// deadline.
func (p *WorkerPool) ShutdownWithTimeout(d time.Duration) error {
	p.mu.Lock()
	p.shutdown = true
	p.cond.Broadcast()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(d):
		return fmt.Errorf("worker pool drain: %w", ErrSchedulerTimeout)
	}
}
