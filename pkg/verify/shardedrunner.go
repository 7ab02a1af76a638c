package verify

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gitrdm/contractprove/internal/shard"
)

// Target names one function's contract to verify under the Sharded Runner:
// Name is used only for logging and result attribution.
type Target struct {
	Name string
	Cond *Conditions
}

// ShardResult is one Target's aggregated outcome. RunID correlates every
// ShardResult produced by the same Run call across log lines, the way a
// request ID threads through a service's logs.
type ShardResult struct {
	Name     string
	RunID    string
	Analysis CallTreeAnalysis
}

// ShardedRunner runs RunConditions for many Targets concurrently, one
// postcondition-bearing Conditions per shard, across a fixed-size worker
// pool (spec.md §5). Each shard gets its own StateSpace/SearchTree chain —
// nothing is shared across shards, so this is the only form of parallelism
// the engine condones; within a shard, execution remains single-threaded and
// non-re-entrant.
type ShardedRunner struct {
	pool      *shard.Pool
	newSolver NewSolverFunc
	log       *logrus.Entry
}

// NewShardedRunner returns a runner backed by a pool of workers workers
// (defaulting to runtime.NumCPU() when workers <= 0).
func NewShardedRunner(workers int, newSolver NewSolverFunc, log *logrus.Entry) *ShardedRunner {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ShardedRunner{pool: shard.NewPool(workers), newSolver: newSolver, log: log}
}

// Run submits every target to the worker pool and blocks until all have
// completed or ctx is cancelled, returning one ShardResult per target in
// input order.
func (r *ShardedRunner) Run(ctx context.Context, targets []Target, opts Options) ([]ShardResult, error) {
	runID := uuid.NewString()
	log := r.log.WithField("run_id", runID)

	results := make([]ShardResult, len(targets))
	var wg sync.WaitGroup
	var firstErr error
	var mu sync.Mutex

	for i, t := range targets {
		i, t := i, t
		wg.Add(1)
		err := r.pool.Submit(ctx, func() {
			defer wg.Done()
			results[i] = ShardResult{
				Name:     t.Name,
				RunID:    runID,
				Analysis: RunConditions(t.Cond, opts, r.newSolver, log.WithField("target", t.Name)),
			}
		})
		if err != nil {
			wg.Done()
			results[i] = ShardResult{Name: t.Name, RunID: runID, Analysis: CallTreeAnalysis{Status: KindCannotConfirm}}
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}
	}
	wg.Wait()
	return results, firstErr
}

// Shutdown releases the runner's worker pool.
func (r *ShardedRunner) Shutdown() { r.pool.Shutdown() }
