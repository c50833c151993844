package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
		func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("transient")
			}
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDo_FinalAttemptErrorPropagates(t *testing.T) {
	want := errors.New("persistent")
	attempts := 0
	err := Do(context.Background(), Policy{MaxAttempts: 2, BaseDelay: time.Millisecond},
		func(ctx context.Context) error {
			attempts++
			return want
		})
	if !errors.Is(err, want) {
		t.Errorf("expected final error, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestDo_FatalClassAbortsImmediately(t *testing.T) {
	attempts := 0
	policy := Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		Classify: func(error) Class {
			return ClassFatal
		},
	}
	_ = Do(context.Background(), policy, func(ctx context.Context) error {
		attempts++
		return errors.New("boom")
	})
	if attempts != 1 {
		t.Errorf("fatal errors must not be retried, got %d attempts", attempts)
	}
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, Policy{MaxAttempts: 3, BaseDelay: time.Hour},
		func(ctx context.Context) error {
			return errors.New("fail")
		})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled between attempts, got %v", err)
	}
}

func TestPolicy_DelayGrowsAndCaps(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 3 * time.Second}
	if d := p.Delay(1); d != time.Second {
		t.Errorf("attempt 1: expected 1s, got %v", d)
	}
	if d := p.Delay(2); d != 2*time.Second {
		t.Errorf("attempt 2: expected 2s, got %v", d)
	}
	if d := p.Delay(3); d != 3*time.Second {
		t.Errorf("attempt 3: expected cap at 3s, got %v", d)
	}
}

func TestDoValue(t *testing.T) {
	v, err := DoValue(context.Background(), DefaultPolicy(),
		func(ctx context.Context) (int, error) { return 42, nil })
	if err != nil || v != 42 {
		t.Errorf("expected (42, nil), got (%d, %v)", v, err)
	}
}
