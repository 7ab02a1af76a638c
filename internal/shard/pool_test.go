package shard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsAllSubmittedTasks(t *testing.T) {
	p := NewPool(2)
	defer p.Shutdown()

	var count int32
	var wg sync.WaitGroup
	wg.Add(5)
	for i := 0; i < 5; i++ {
		err := p.Submit(context.Background(), func() {
			defer wg.Done()
			atomic.AddInt32(&count, 1)
		})
		require.NoError(t, err)
	}
	wg.Wait()
	assert.Equal(t, int32(5), atomic.LoadInt32(&count))
}

func TestPool_DefaultsWorkerCountWhenNonPositive(t *testing.T) {
	p := NewPool(0)
	defer p.Shutdown()
	assert.Greater(t, p.WorkerCount(), 0)
}

func TestPool_SubmitAfterShutdownErrors(t *testing.T) {
	p := NewPool(1)
	p.Shutdown()
	err := p.Submit(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrPoolShutdown)
}

func TestPool_SubmitRespectsContextCancellation(t *testing.T) {
	p := NewPool(1)
	defer p.Shutdown()

	// Saturate the single worker and its buffered queue so the next Submit
	// has nowhere to go until the context is cancelled.
	block := make(chan struct{})
	for i := 0; i < 3; i++ {
		_ = p.Submit(context.Background(), func() { <-block })
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(block)
}

func TestPool_ShutdownIsIdempotent(t *testing.T) {
	p := NewPool(1)
	p.Shutdown()
	assert.NotPanics(t, func() { p.Shutdown() })
}
