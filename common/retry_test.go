package common

import (
	"context"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_StopsAfterAttempts(t *testing.T) {
	p := RetryPolicy{Attempts: 3, Delay: time.Millisecond}
	calls := 0
	err := backoff.Retry(func() error {
		calls++
		return assert.AnError
	}, p.NewBackOff(context.Background()))
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_SingleAttempt(t *testing.T) {
	p := RetryPolicy{Attempts: 0, Delay: time.Millisecond}
	calls := 0
	_ = backoff.Retry(func() error {
		calls++
		return assert.AnError
	}, p.NewBackOff(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_Exponential(t *testing.T) {
	p := RetryPolicy{Attempts: 2, Delay: 5 * time.Millisecond, Exponential: true}
	b := p.NewBackOff(context.Background())
	assert.Equal(t, 5*time.Millisecond, b.NextBackOff())
	assert.Equal(t, backoff.Stop, b.NextBackOff())
}

func TestRetryPolicy_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := RetryPolicy{Attempts: 5, Delay: time.Millisecond}
	assert.Equal(t, backoff.Stop, p.NewBackOff(ctx).NextBackOff())
}
