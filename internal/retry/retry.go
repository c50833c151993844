// Package retry provides a generic retry loop driven by a policy object.
// Callers describe attempts, delays, and error classification once and reuse
// the same loop for embedding, LLM, and provider calls.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Class buckets an error for retry purposes.
type Class int

const (
	// ClassRetryable errors are transient; the loop backs off and retries.
	ClassRetryable Class = iota
	// ClassFatal errors abort immediately without further attempts.
	ClassFatal
)

// Policy describes a retry strategy. Delay for attempt n (1-based) is
// min(BaseDelay * 2^(n-1), MaxDelay), plus up to 1s of jitter when enabled.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
	// Classify decides whether an error is worth retrying. Nil means all
	// errors are retryable.
	Classify func(error) Class
}

// DefaultPolicy is three attempts with 1s base delay, capped at 30s.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// Delay computes the backoff before attempt+1 (attempt is 1-based).
func (p Policy) Delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt-1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter {
		d += time.Duration(rand.Int63n(int64(time.Second)))
	}
	return d
}

// Do runs op up to MaxAttempts times. The final attempt's error propagates.
// Context cancellation aborts the loop between attempts.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if p.Classify != nil && p.Classify(err) == ClassFatal {
			return err
		}
		if attempt == p.MaxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}
	return err
}

// DoValue runs op up to MaxAttempts times and returns its value.
func DoValue[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, func(ctx context.Context) error {
		v, opErr := op(ctx)
		if opErr != nil {
			return opErr
		}
		out = v
		return nil
	})
	return out, err
}
