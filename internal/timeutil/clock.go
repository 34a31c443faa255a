// Package timeutil provides a small clock abstraction so that polling loops
// (challenge waits, CAPTCHA polls, human-pacing delays) can be tested without
// real delays.
package timeutil

import (
	"context"
	"time"
)

// Clock abstracts wall-clock reads and sleeps.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is cancelled. It returns false if the
	// sleep was interrupted by context cancellation.
	Sleep(ctx context.Context, d time.Duration) bool
}

// Real is the wall clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Fake is a deterministic clock for tests. Sleep advances the clock
// immediately instead of blocking.
type Fake struct {
	Current time.Time
	Slept   []time.Duration
}

// NewFake returns a fake clock starting at a fixed instant.
func NewFake() *Fake {
	return &Fake{Current: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *Fake) Now() time.Time { return f.Current }

func (f *Fake) Sleep(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	f.Current = f.Current.Add(d)
	f.Slept = append(f.Slept, d)
	return true
}
