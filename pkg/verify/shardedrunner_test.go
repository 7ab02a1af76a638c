package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alwaysTrueCond() *Conditions {
	return &Conditions{
		Post: []Condition{{
			ExprText: "true",
			Eval: func(ss *StateSpace, frame *CallFrame) (SymbolicValue, error) {
				return ss.ConstBool(true)
			},
		}},
		Impl: func(ss *StateSpace, frame *CallFrame) (SymbolicValue, error) {
			return ss.ConstBool(true)
		},
	}
}

func TestShardedRunner_RunsEachTargetOnItsOwnShard(t *testing.T) {
	runner := NewShardedRunner(2, DefaultNewSolver, nil)
	defer runner.Shutdown()

	targets := []Target{
		{Name: "a", Cond: alwaysTrueCond()},
		{Name: "b", Cond: alwaysTrueCond()},
	}
	results, err := runner.Run(context.Background(), targets, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Name)
	assert.Equal(t, "b", results[1].Name)
	assert.Equal(t, KindConfirmed, results[0].Analysis.Status)
	assert.Equal(t, KindConfirmed, results[1].Analysis.Status)
}

func TestShardedRunner_AllResultsShareOneRunID(t *testing.T) {
	runner := NewShardedRunner(2, DefaultNewSolver, nil)
	defer runner.Shutdown()

	targets := []Target{
		{Name: "a", Cond: alwaysTrueCond()},
		{Name: "b", Cond: alwaysTrueCond()},
	}
	results, err := runner.Run(context.Background(), targets, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.NotEmpty(t, results[0].RunID)
	assert.Equal(t, results[0].RunID, results[1].RunID, "every shard from the same Run call correlates under one run ID")
}

func TestShardedRunner_CancelledContextReturnsErrorWithoutHanging(t *testing.T) {
	runner := NewShardedRunner(1, DefaultNewSolver, nil)
	defer runner.Shutdown()

	// Saturate the single worker and its buffered queue first so the
	// already-cancelled submission below has nowhere to go but Done().
	block := make(chan struct{})
	defer close(block)
	for i := 0; i < 3; i++ {
		_ = runner.pool.Submit(context.Background(), func() { <-block })
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	targets := []Target{{Name: "a", Cond: alwaysTrueCond()}}
	_, err := runner.Run(ctx, targets, DefaultOptions())
	assert.Error(t, err)
}
