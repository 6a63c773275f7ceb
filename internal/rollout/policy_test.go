package rollout

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicy_OnlyTransportRetried(t *testing.T) {
	p := RetryPolicy{Attempts: 5, MinBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return rejectedError{replica: "r", reason: "busy"}
	}, nil)
	if calls != 1 || !IsRejected(err) {
		t.Fatalf("rejection must not be retried: calls=%d err=%v", calls, err)
	}

	calls = 0
	retries := 0
	err = p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return transportError{replica: "r", err: errors.New("reset")}
		}
		return nil
	}, func(uint, error) { retries++ })
	if err != nil || calls != 3 || retries != 2 {
		t.Fatalf("expected success on third attempt: calls=%d retries=%d err=%v", calls, retries, err)
	}
}

func TestRetryPolicy_ZeroAttemptsMeansOnce(t *testing.T) {
	calls := 0
	err := RetryPolicy{}.Do(context.Background(), func() error {
		calls++
		return transportError{replica: "r", err: errors.New("down")}
	}, nil)
	if calls != 1 || !IsTransport(err) {
		t.Fatalf("expected a single attempt, got calls=%d err=%v", calls, err)
	}
}

func TestRetryPolicy_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	p := RetryPolicy{Attempts: 100, MinBackoff: 50 * time.Millisecond, MaxBackoff: time.Second}
	start := time.Now()
	err := p.Do(ctx, func() error {
		return transportError{replica: "r", err: errors.New("down")}
	}, nil)
	if err == nil || time.Since(start) > 500*time.Millisecond {
		t.Fatalf("expected prompt context failure, got %v after %s", err, time.Since(start))
	}
}
