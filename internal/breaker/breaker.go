// Package breaker implements the circuit breaker guarding LLM calls.
// Only overload-classified failures trip it; once open, callers must skip
// work rather than wait.
package breaker

import (
	"strings"
	"sync"
	"time"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
)

// Default thresholds.
const (
	DefaultMaxFailures  = 2
	DefaultResetTimeout = 5 * time.Minute
)

// overloadMarkers are matched case-insensitively against error text to decide
// whether a failure counts toward opening the breaker.
var overloadMarkers = []string{
	"overload",
	"529",
	"rate limit",
	"tokens per minute",
	"too many requests",
	"quota exceeded",
}

// Breaker is a shared admission gate for a review job. Safe for concurrent
// use across file analyses.
type Breaker struct {
	mu              sync.Mutex
	open            bool
	failureCount    int
	lastFailureTime time.Time
	maxFailures     int
	resetTimeout    time.Duration
	now             func() time.Time
}

// New creates a breaker with the given thresholds; zero values select the
// defaults.
func New(maxFailures int, resetTimeout time.Duration) *Breaker {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}
	if resetTimeout <= 0 {
		resetTimeout = DefaultResetTimeout
	}
	return &Breaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
	}
}

// CanExecute reports whether a call may proceed. An open breaker half-opens
// (and closes) once resetTimeout has elapsed since the last failure.
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if b.now().Sub(b.lastFailureTime) > b.resetTimeout {
		logging.Analyzer("circuit breaker cooled down after %v, closing", b.resetTimeout)
		b.open = false
		b.failureCount = 0
		return true
	}
	return false
}

// RecordSuccess resets the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
}

// RecordFailure notes a failure. Only overload failures count toward opening.
func (b *Breaker) RecordFailure(isOverload bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !isOverload {
		return
	}
	b.failureCount++
	b.lastFailureTime = b.now()
	if b.failureCount >= b.maxFailures {
		if !b.open {
			logging.Get(logging.CategoryAnalyzer).Warn(
				"circuit breaker opened after %d overload failures", b.failureCount)
		}
		b.open = true
	}
}

// IsOpen reports the current state without side effects.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// IsOverloadError reports whether an error looks like provider overload
// (rate limiting, 529s, quota exhaustion).
func IsOverloadError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range overloadMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
