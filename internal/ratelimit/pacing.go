package ratelimit

import (
	"context"
	"math/rand"
	"time"

	"github.com/omipheo/home-advisor-scraping/internal/timeutil"
)

// Pacer produces the randomized human-like delays inserted between page
// loads, pages and records. These are deliberate backoff to reduce block
// risk, not retry delays.
type Pacer struct {
	clock timeutil.Clock
	rng   *rand.Rand
}

// NewPacer creates a Pacer on the given clock.
func NewPacer(clock timeutil.Clock) *Pacer {
	return &Pacer{
		clock: clock,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// AfterPageLoad pauses 3-7s before reading freshly loaded page content.
func (p *Pacer) AfterPageLoad(ctx context.Context) bool {
	return p.pause(ctx, 3*time.Second, 7*time.Second)
}

// BetweenPages pauses 3-8s between listing pages.
func (p *Pacer) BetweenPages(ctx context.Context) bool {
	return p.pause(ctx, 3*time.Second, 8*time.Second)
}

// AfterRecord pauses 2-5s after enriching one record.
func (p *Pacer) AfterRecord(ctx context.Context) bool {
	return p.pause(ctx, 2*time.Second, 5*time.Second)
}

// BeforeFetch pauses 1-3s before a direct website fetch.
func (p *Pacer) BeforeFetch(ctx context.Context) bool {
	return p.pause(ctx, 1*time.Second, 3*time.Second)
}

func (p *Pacer) pause(ctx context.Context, min, max time.Duration) bool {
	d := min
	if max > min {
		d += time.Duration(p.rng.Int63n(int64(max - min)))
	}
	return p.clock.Sleep(ctx, d)
}
