// Package shard provides a fixed-size worker pool for running independent
// engine instances in parallel, one per verification target (spec.md §5's
// "embedding-level parallelism ... sanctioned by sharding per-postcondition
// across independent engine instances"). It is adapted from the teacher's
// internal/parallel.StaticWorkerPool, trimmed to exactly what sharding
// needs: no dynamic scaling, work-stealing, rate limiting, backpressure, or
// deadlock detection, since every Search Tree shard here is independent by
// construction and nothing blocks waiting on another shard.
package shard

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// ErrPoolShutdown is returned by Submit after Shutdown has been called.
var ErrPoolShutdown = errors.New("shard: pool shut down")

// Pool is a fixed-size worker pool: the engine's single-threaded,
// non-re-entrant execution model is preserved within each shard, and
// parallelism only ever happens across shards (spec.md §5).
type Pool struct {
	maxWorkers   int
	taskChan     chan func()
	workerWg     sync.WaitGroup
	shutdownChan chan struct{}
	once         sync.Once
}

// NewPool returns a pool with maxWorkers goroutines, defaulting to
// runtime.NumCPU() when maxWorkers <= 0.
func NewPool(maxWorkers int) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	p := &Pool{
		maxWorkers:   maxWorkers,
		taskChan:     make(chan func(), maxWorkers*2),
		shutdownChan: make(chan struct{}),
	}
	for i := 0; i < maxWorkers; i++ {
		p.workerWg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.workerWg.Done()
	for {
		select {
		case task := <-p.taskChan:
			if task != nil {
				task()
			}
		case <-p.shutdownChan:
			return
		}
	}
}

// Submit enqueues task, blocking until a worker slot frees up, ctx is
// cancelled, or the pool has been shut down.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	select {
	case <-p.shutdownChan:
		return ErrPoolShutdown
	default:
	}
	select {
	case p.taskChan <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.shutdownChan:
		return ErrPoolShutdown
	}
}

// Shutdown stops accepting new work and waits for in-flight tasks to drain.
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		close(p.shutdownChan)
		p.workerWg.Wait()
	})
}

// WorkerCount returns the fixed number of workers in the pool.
func (p *Pool) WorkerCount() int { return p.maxWorkers }

// QueueDepth returns the number of tasks currently buffered, awaiting a
// free worker.
func (p *Pool) QueueDepth() int { return len(p.taskChan) }
