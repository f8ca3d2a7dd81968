package drawsheet

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitedRunner(t *testing.T) {
	t.Run("runs every task", func(t *testing.T) {
		runner := NewLimitedRunner(context.Background(), 3)

		var counter int32
		for i := 0; i < 10; i++ {
			runner.Go(func() error {
				atomic.AddInt32(&counter, 1)
				return nil
			})
		}
		require.NoError(t, runner.Wait())
		assert.Equal(t, int32(10), atomic.LoadInt32(&counter))
	})

	t.Run("respects the concurrency gate", func(t *testing.T) {
		const limit = 2
		runner := NewLimitedRunner(context.Background(), limit)

		var mu sync.Mutex
		inFlight, peak := 0, 0
		for i := 0; i < 12; i++ {
			runner.Go(func() error {
				mu.Lock()
				inFlight++
				if inFlight > peak {
					peak = inFlight
				}
				mu.Unlock()

				mu.Lock()
				inFlight--
				mu.Unlock()
				return nil
			})
		}
		require.NoError(t, runner.Wait())
		assert.LessOrEqual(t, peak, limit)
	})

	t.Run("propagates the first error", func(t *testing.T) {
		runner := NewLimitedRunner(context.Background(), 2)
		boom := errors.New("boom")

		runner.Go(func() error { return nil })
		runner.Go(func() error { return boom })

		assert.ErrorIs(t, runner.Wait(), boom)
	})

	t.Run("zero limit coerced to one", func(t *testing.T) {
		runner := NewLimitedRunner(context.Background(), 0)
		done := false
		runner.Go(func() error { done = true; return nil })
		require.NoError(t, runner.Wait())
		assert.True(t, done)
	})
}
