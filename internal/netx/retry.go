package netx

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryOptions configures retry count and exponential backoff behavior.
//
// Retries is the number of retries after the first attempt (total attempts are
// Retries+1); a negative value disables retrying. BaseDelay is the initial
// backoff, MaxDelay caps each computed delay before jitter is added. OnRetry,
// when set, observes each failed attempt that will be retried.
type RetryOptions struct {
	Retries   int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	OnRetry   func(attempt int, err error)
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 250 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 2 * time.Second
	}
	return o
}

// RetryOperation executes fn until success, context cancellation, a permanent
// failure, or retries are exhausted.
//
// Errors wrapped in permanentError stop the loop immediately and are returned
// still wrapped; callers unwrap at the boundary with unwrapPermanent.
func RetryOperation[T any](ctx context.Context, opts RetryOptions, fn func() (T, error)) (T, error) {
	opts = opts.withDefaults()
	var zero T
	var lastErr error

	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err
		var perm *permanentError
		if errors.As(err, &perm) || attempt >= opts.Retries {
			break
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, err)
		}

		timer := time.NewTimer(backoffWithJitter(opts, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	if lastErr == nil {
		return zero, errors.New("retry failed without error")
	}
	return zero, lastErr
}

func backoffWithJitter(opts RetryOptions, attempt int) time.Duration {
	d := opts.BaseDelay * (1 << attempt)
	if d > opts.MaxDelay || d <= 0 {
		d = opts.MaxDelay
	}
	j := time.Duration(rand.Int63n(int64(d/4 + 1)))
	return d + j
}
