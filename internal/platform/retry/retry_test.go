package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsFirstTry(t *testing.T) {
	val, err := Do(context.Background(), Policy{MaxAttempts: 3}, func() (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	attempts := 0
	val, err := Do(context.Background(), Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}, func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, attempts)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	_, err := Do(context.Background(), Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}, func() (int, error) {
		attempts++
		return 0, errors.New("always fails")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
}

func TestDo_PermanentAbortsImmediately(t *testing.T) {
	attempts := 0
	rootCause := errors.New("bad request")
	_, err := Do(context.Background(), Policy{MaxAttempts: 5, InitialBackoff: time.Millisecond}, func() (int, error) {
		attempts++
		return 0, Permanent(rootCause)
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, errors.Is(err, rootCause))
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, Policy{MaxAttempts: 5, InitialBackoff: time.Hour}, func() (int, error) {
		return 0, errors.New("transient")
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDo_OnRetryCallback(t *testing.T) {
	var backoffs []time.Duration
	policy := Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		OnRetry:        func(_ int, _ error, b time.Duration) { backoffs = append(backoffs, b) },
	}

	_ = DoVoid(context.Background(), policy, func() error { return errors.New("nope") })

	require.Len(t, backoffs, 2)
	assert.Equal(t, time.Millisecond, backoffs[0])
	assert.Equal(t, 2*time.Millisecond, backoffs[1])
}
