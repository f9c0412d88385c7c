package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPool(t *testing.T, size, queueSize int) *Pool {
	t.Helper()
	p := NewPool(size, queueSize, zap.NewNop())
	p.Start()
	t.Cleanup(p.Stop)
	return p
}

func TestPoolRun(t *testing.T) {
	t.Run("executes submitted jobs", func(t *testing.T) {
		p := newTestPool(t, 2, 8)

		var ran atomic.Bool
		err := p.Run(context.Background(), func() error {
			ran.Store(true)
			return nil
		})
		require.NoError(t, err)
		assert.True(t, ran.Load())
	})

	t.Run("propagates the job error", func(t *testing.T) {
		p := newTestPool(t, 2, 8)

		jobErr := errors.New("boom")
		err := p.Run(context.Background(), func() error { return jobErr })
		assert.ErrorIs(t, err, jobErr)
	})

	t.Run("runs jobs concurrently up to the pool size", func(t *testing.T) {
		p := newTestPool(t, 4, 16)

		var wg sync.WaitGroup
		var completed atomic.Int32
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := p.Run(context.Background(), func() error {
					completed.Add(1)
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(8), completed.Load())
	})

	t.Run("returns the context error when the caller gives up", func(t *testing.T) {
		p := newTestPool(t, 1, 1)

		release := make(chan struct{})
		go func() {
			_ = p.Run(context.Background(), func() error {
				<-release
				return nil
			})
		}()
		// Give the blocking job time to occupy the single worker.
		time.Sleep(20 * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		err := p.Run(ctx, func() error {
			<-release
			return nil
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		close(release)
	})
}

func TestPoolLifecycle(t *testing.T) {
	t.Run("run before start fails", func(t *testing.T) {
		p := NewPool(2, 8, zap.NewNop())

		err := p.Run(context.Background(), func() error { return nil })
		assert.ErrorContains(t, err, "not running")
	})

	t.Run("run after stop fails", func(t *testing.T) {
		p := NewPool(2, 8, zap.NewNop())
		p.Start()
		p.Stop()

		err := p.Run(context.Background(), func() error { return nil })
		assert.ErrorContains(t, err, "not running")
	})

	t.Run("start and stop are idempotent", func(t *testing.T) {
		p := NewPool(2, 8, zap.NewNop())
		p.Start()
		p.Start()
		p.Stop()
		p.Stop()
	})

	t.Run("stop waits for in-flight jobs", func(t *testing.T) {
		p := NewPool(1, 4, zap.NewNop())
		p.Start()

		started := make(chan struct{})
		var finished atomic.Bool
		go func() {
			_ = p.Run(context.Background(), func() error {
				close(started)
				time.Sleep(30 * time.Millisecond)
				finished.Store(true)
				return nil
			})
		}()

		<-started
		p.Stop()
		assert.True(t, finished.Load(), "Stop should wait for the running job")
	})
}

func TestNewPoolDefaults(t *testing.T) {
	p := NewPool(0, 0, nil)
	assert.Equal(t, 4, p.size)
	assert.Equal(t, 64, cap(p.jobs))
}
