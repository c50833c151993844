package breaker

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker_OpensAfterMaxOverloadFailures(t *testing.T) {
	b := New(2, time.Minute)

	if !b.CanExecute() {
		t.Fatal("fresh breaker must allow execution")
	}

	b.RecordFailure(true)
	if !b.CanExecute() {
		t.Error("one failure must not open the breaker")
	}

	b.RecordFailure(true)
	if b.CanExecute() {
		t.Error("breaker must be open after two overload failures")
	}
}

func TestBreaker_NonOverloadFailuresIgnored(t *testing.T) {
	b := New(2, time.Minute)
	for i := 0; i < 10; i++ {
		b.RecordFailure(false)
	}
	if !b.CanExecute() {
		t.Error("non-overload failures must never open the breaker")
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b := New(2, time.Minute)
	b.RecordFailure(true)
	b.RecordSuccess()
	b.RecordFailure(true)
	if !b.CanExecute() {
		t.Error("success between failures must reset the count")
	}
}

func TestBreaker_ClosesAfterCooldown(t *testing.T) {
	now := time.Now()
	b := New(2, 100*time.Millisecond)
	b.now = func() time.Time { return now }

	b.RecordFailure(true)
	b.RecordFailure(true)
	if b.CanExecute() {
		t.Fatal("breaker should be open")
	}

	// Advance past the reset timeout; the half-open probe closes it.
	b.now = func() time.Time { return now.Add(200 * time.Millisecond) }
	if !b.CanExecute() {
		t.Error("breaker must close after the reset timeout elapses")
	}
	if b.IsOpen() {
		t.Error("breaker must report closed after cooldown")
	}
}

func TestIsOverloadError(t *testing.T) {
	cases := []struct {
		err      error
		overload bool
	}{
		{errors.New("request failed: 529 Overloaded"), true},
		{errors.New("Rate Limit exceeded"), true},
		{errors.New("tokens per minute limit hit"), true},
		{errors.New("Too Many Requests"), true},
		{errors.New("quota exceeded for project"), true},
		{errors.New("connection refused"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := IsOverloadError(tc.err); got != tc.overload {
			t.Errorf("IsOverloadError(%v) = %v, want %v", tc.err, got, tc.overload)
		}
	}
}
