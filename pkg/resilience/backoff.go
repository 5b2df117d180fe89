package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ExponentialBackoff computes retry delays with jitter.
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// Jitter is the +/- fraction applied to each delay.
	Jitter float64
}

func DefaultBackoff() ExponentialBackoff {
	return ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
	}
}

func (b ExponentialBackoff) policy() *backoff.ExponentialBackOff {
	p := backoff.NewExponentialBackOff()
	p.InitialInterval = b.BaseDelay
	p.MaxInterval = b.MaxDelay
	p.Multiplier = b.Multiplier
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	p.RandomizationFactor = b.Jitter
	p.Reset()
	return p
}

// NextDelay returns the delay before the given zero-based retry attempt.
func (b ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		return b.BaseDelay
	}
	p := b.policy()
	delay := p.NextBackOff()
	for i := 0; i < attempt; i++ {
		delay = p.NextBackOff()
	}
	return delay
}

// Retry calls fn up to attempts times while retryable reports true for its
// error. It stops early when ctx is done.
func Retry(ctx context.Context, attempts int, b ExponentialBackoff, retryable func(error) bool, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := ctx.Err(); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		err := fn(ctx)
		if err != nil && retryable != nil && !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b.policy()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	)
	return err
}
