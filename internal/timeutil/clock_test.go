package timeutil

import (
	"context"
	"testing"
	"time"
)

func TestFake_SleepAdvancesClock(t *testing.T) {
	f := NewFake()
	start := f.Now()

	if !f.Sleep(context.Background(), 5*time.Second) {
		t.Fatal("Sleep on a live context should return true")
	}
	if got := f.Now().Sub(start); got != 5*time.Second {
		t.Errorf("Expected clock to advance 5s, got %s", got)
	}
	if len(f.Slept) != 1 || f.Slept[0] != 5*time.Second {
		t.Errorf("Expected one recorded sleep of 5s, got %v", f.Slept)
	}
}

func TestFake_SleepOnCancelledContext(t *testing.T) {
	f := NewFake()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if f.Sleep(ctx, time.Second) {
		t.Error("Sleep on a cancelled context should return false")
	}
}

func TestReal_SleepHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	if (Real{}).Sleep(ctx, 10*time.Second) {
		t.Error("Expected cancelled sleep to return false")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Cancelled sleep blocked for the full duration")
	}
}
