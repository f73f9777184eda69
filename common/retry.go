package common

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff"
)

// RetryPolicy describes how many times an operation is attempted and how long to wait in between.
type RetryPolicy struct {
	// Attempts counts the first try. Zero or one means no retry.
	Attempts    int
	Delay       time.Duration
	Exponential bool
	// Jitter is the randomization factor for exponential policies.
	Jitter float64
}

// NewBackOff returns a backoff that stops after the policy's attempts or when ctx is done.
func (p RetryPolicy) NewBackOff(ctx context.Context) backoff.BackOffContext {
	var b backoff.BackOff
	if p.Exponential {
		e := backoff.NewExponentialBackOff()
		e.InitialInterval = p.Delay
		e.RandomizationFactor = p.Jitter
		e.MaxElapsedTime = 0
		e.Reset()
		b = e
	} else {
		b = backoff.NewConstantBackOff(p.Delay)
	}
	// WithMaxRetries treats zero as unlimited.
	if p.Attempts <= 1 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.Attempts-1)), ctx)
}

// Round rounds d to the nearest multiple of m.
func Round(d, m time.Duration) time.Duration {
	if m <= 0 {
		return d
	}
	return time.Duration(math.Round(float64(d)/float64(m))) * m
}
