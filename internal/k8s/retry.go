package k8s

import (
	"context"
	"errors"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/util/wait"
)

// RetryPolicy bounds how Call retries a failed API request.
type RetryPolicy struct {
	Attempts int           // total tries, including the first
	Initial  time.Duration // first delay; doubled per attempt with 20% jitter
	Max      time.Duration // cap on any single delay, including server-suggested ones
}

// DefaultRetryPolicy keeps the worst-case retry tail of one discovery list
// near three seconds, well inside the default call timeout, so the snapshot
// fallback still gets to run for an unreachable cluster.
var DefaultRetryPolicy = RetryPolicy{
	Attempts: 3,
	Initial:  250 * time.Millisecond,
	Max:      2 * time.Second,
}

func (p RetryPolicy) backoff() wait.Backoff {
	return wait.Backoff{
		Duration: p.Initial,
		Factor:   2,
		Jitter:   0.2,
		Steps:    p.Attempts,
		Cap:      p.Max,
	}
}

// isRetryable reports throttling, server timeouts and 5xx responses. Client
// errors and transport failures are returned at once.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if apierrors.IsTooManyRequests(err) || apierrors.IsServerTimeout(err) || apierrors.IsTimeout(err) {
		return true
	}
	var se *apierrors.StatusError
	return errors.As(err, &se) && se.ErrStatus.Code >= 500
}

// delay picks the wait before the next attempt. A Retry-After carried by a
// 429 or 503 wins over the computed backoff, within the policy cap.
func (p RetryPolicy) delay(err error, b *wait.Backoff) time.Duration {
	d := b.Step()
	if secs, ok := apierrors.SuggestsClientDelay(err); ok && secs > 0 {
		d = time.Duration(secs) * time.Second
	}
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	return d
}

// doWithRetry runs fn under policy and returns its value.
func doWithRetry[T any](ctx context.Context, policy RetryPolicy, fn func() (T, error)) (T, error) {
	var zero T
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	b := policy.backoff()
	for attempt := 1; ; attempt++ {
		val, err := fn()
		if err == nil {
			return val, nil
		}
		if attempt >= attempts || !isRetryable(err) {
			return zero, err
		}
		t := time.NewTimer(policy.delay(err, &b))
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
	}
}
