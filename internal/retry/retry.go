// Package retry runs an operation under a bounded retry policy.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how an operation is retried. A Policy holds no state of
// its own; every call to Do starts from attempt 1.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Backoff returns the delay to wait before the given attempt (2, 3, ...).
	Backoff func(attempt int) time.Duration
	// ShouldRetry reports whether err may succeed on another attempt.
	ShouldRetry func(err error) bool
	// Sleep, if set, replaces the real timer between attempts. It must
	// wait for d and return nil, or return an error once ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry, if set, is called before waiting for the next attempt.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Linear waits base*attempt before each attempt.
func Linear(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// SleepContext waits for d, returning early with ctx.Err() if ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do calls fn until it succeeds, returns an error the policy will not retry,
// or the attempt budget runs out.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	maxAttempts := max(p.MaxAttempts, 1)

	attempt := 0
	retryable := false
	op := func() (T, error) {
		attempt++
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			retryable = false
			return zero, backoff.Permanent(ctxErr)
		}
		retryable = p.ShouldRetry != nil && p.ShouldRetry(err)
		if !retryable {
			return zero, backoff.Permanent(err)
		}
		return zero, err
	}

	notify := func(err error, delay time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(&schedule{delay: p.Backoff}, uint64(maxAttempts-1)),
		ctx,
	)

	var timer backoff.Timer
	if p.Sleep != nil {
		timer = &sleepTimer{ctx: ctx, sleep: p.Sleep}
	}

	v, err := backoff.RetryNotifyWithTimerAndData(op, b, notify, timer)
	if err == nil {
		return v, nil
	}
	if retryable && attempt >= maxAttempts && ctx.Err() == nil {
		return zero, &ExhaustedError{Attempts: attempt, Err: err}
	}
	return zero, err
}

// schedule adapts a Policy's Backoff to backoff.BackOff. The n-th call to
// NextBackOff returns the delay before attempt n+1.
type schedule struct {
	delay   func(attempt int) time.Duration
	retries int
}

func (s *schedule) NextBackOff() time.Duration {
	s.retries++
	if s.delay == nil {
		return 0
	}
	return s.delay(s.retries + 1)
}

func (s *schedule) Reset() {
	s.retries = 0
}

// sleepTimer drives the backoff loop with a Policy's Sleep. The channel
// only fires when the sleep completed; a cancelled sleep leaves the loop
// to observe ctx.Done.
type sleepTimer struct {
	ctx   context.Context
	sleep func(ctx context.Context, d time.Duration) error
	c     chan time.Time
}

func (t *sleepTimer) Start(d time.Duration) {
	t.c = make(chan time.Time, 1)
	if err := t.sleep(t.ctx, d); err == nil {
		t.c <- time.Now()
	}
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time {
	return t.c
}
