package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func noSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestRetrySucceedsFirstTry(t *testing.T) {
	var delays []time.Duration
	calls := 0
	err := retryWith(context.Background(), 3, time.Second, func() error {
		calls++
		return nil
	}, noSleep(&delays))
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 || len(delays) != 0 {
		t.Fatalf("calls = %d, delays = %v", calls, delays)
	}
}

func TestRetryBackoffDoubles(t *testing.T) {
	var delays []time.Duration
	calls := 0
	err := retryWith(context.Background(), 4, 100*time.Millisecond, func() error {
		calls++
		if calls < 4 {
			return errBoom
		}
		return nil
	}, noSleep(&delays))
	if err != nil {
		t.Fatalf("err = %v", err)
	}

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	var delays []time.Duration
	calls := 0
	err := retryWith(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return errBoom
	}, noSleep(&delays))

	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 3, time.Millisecond, func() error { return errBoom })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
