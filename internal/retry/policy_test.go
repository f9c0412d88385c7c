package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBreaker(t *testing.T) {
	t.Run("opens after max failures", func(t *testing.T) {
		b := NewBreaker(3, time.Minute)
		require.Equal(t, StateClosed, b.State())

		b.RecordFailure()
		b.RecordFailure()
		assert.Equal(t, StateClosed, b.State())
		assert.True(t, b.Allow())

		b.RecordFailure()
		assert.Equal(t, StateOpen, b.State())
		assert.False(t, b.Allow())
	})

	t.Run("success resets the failure count", func(t *testing.T) {
		b := NewBreaker(3, time.Minute)

		b.RecordFailure()
		b.RecordFailure()
		b.RecordSuccess()
		b.RecordFailure()
		b.RecordFailure()

		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("half-opens after the cooldown", func(t *testing.T) {
		b := NewBreaker(1, time.Minute)
		now := time.Now()
		b.now = func() time.Time { return now }

		b.RecordFailure()
		require.Equal(t, StateOpen, b.State())

		now = now.Add(2 * time.Minute)
		assert.Equal(t, StateHalfOpen, b.State())
		assert.True(t, b.Allow())
	})

	t.Run("failed probe re-opens", func(t *testing.T) {
		b := NewBreaker(1, time.Minute)
		now := time.Now()
		b.now = func() time.Time { return now }

		b.RecordFailure()
		now = now.Add(2 * time.Minute)
		require.Equal(t, StateHalfOpen, b.State())

		b.RecordFailure()
		assert.Equal(t, StateOpen, b.State())
		assert.False(t, b.Allow())
	})

	t.Run("successful probe closes", func(t *testing.T) {
		b := NewBreaker(1, time.Minute)
		now := time.Now()
		b.now = func() time.Time { return now }

		b.RecordFailure()
		now = now.Add(2 * time.Minute)
		require.Equal(t, StateHalfOpen, b.State())

		b.RecordSuccess()
		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("state strings", func(t *testing.T) {
		assert.Equal(t, "closed", StateClosed.String())
		assert.Equal(t, "open", StateOpen.String())
		assert.Equal(t, "half-open", StateHalfOpen.String())
	})
}

func TestExponentialBackoff(t *testing.T) {
	backoff := ExponentialBackoff(100 * time.Millisecond)

	assert.Equal(t, 100*time.Millisecond, backoff(1))
	assert.Equal(t, 200*time.Millisecond, backoff(2))
	assert.Equal(t, 400*time.Millisecond, backoff(3))
	assert.Equal(t, 800*time.Millisecond, backoff(4))
}

func TestPolicyDo(t *testing.T) {
	t.Run("succeeds on the first attempt", func(t *testing.T) {
		p := Policy{MaxAttempts: 3}

		calls := 0
		err := p.Do(context.Background(), zap.NewNop(), func(context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries until success", func(t *testing.T) {
		p := Policy{MaxAttempts: 3}

		calls := 0
		err := p.Do(context.Background(), zap.NewNop(), func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns the last error after exhausting attempts", func(t *testing.T) {
		p := Policy{MaxAttempts: 2}

		opErr := errors.New("persistent")
		calls := 0
		err := p.Do(context.Background(), zap.NewNop(), func(context.Context) error {
			calls++
			return opErr
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, opErr)
		assert.Contains(t, err.Error(), "all 2 attempts failed")
		assert.Equal(t, 2, calls)
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		p := Policy{
			MaxAttempts: 5,
			Backoff:     ExponentialBackoff(time.Hour),
		}

		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		err := p.Do(ctx, zap.NewNop(), func(context.Context) error {
			calls++
			return errors.New("transient")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls, "backoff wait should observe cancellation")
	})

	t.Run("open breaker rejects without calling op", func(t *testing.T) {
		b := NewBreaker(1, time.Minute)
		b.RecordFailure()

		p := Policy{MaxAttempts: 3, Breaker: b}

		calls := 0
		err := p.Do(context.Background(), zap.NewNop(), func(context.Context) error {
			calls++
			return nil
		})
		assert.ErrorIs(t, err, ErrBreakerOpen)
		assert.Equal(t, 0, calls)
	})

	t.Run("failures trip the breaker mid-policy", func(t *testing.T) {
		b := NewBreaker(2, time.Minute)
		p := Policy{MaxAttempts: 5, Breaker: b}

		calls := 0
		err := p.Do(context.Background(), zap.NewNop(), func(context.Context) error {
			calls++
			return errors.New("transient")
		})
		assert.ErrorIs(t, err, ErrBreakerOpen)
		assert.Equal(t, 2, calls, "third attempt should be rejected by the open breaker")
	})

	t.Run("success records into the breaker", func(t *testing.T) {
		b := NewBreaker(2, time.Minute)
		b.RecordFailure()

		p := Policy{MaxAttempts: 1, Breaker: b}
		err := p.Do(context.Background(), zap.NewNop(), func(context.Context) error { return nil })
		require.NoError(t, err)
		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("zero max attempts runs once", func(t *testing.T) {
		p := Policy{}

		calls := 0
		_ = p.Do(context.Background(), nil, func(context.Context) error {
			calls++
			return errors.New("once")
		})
		assert.Equal(t, 1, calls)
	})
}
