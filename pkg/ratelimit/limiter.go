// Package ratelimit paces outbound model requests with a minimum delay
// between consecutive calls.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultMinDelay is the spacing between consecutive requests.
const DefaultMinDelay = 2 * time.Second

// Pacer enforces a minimum delay between requests. Safe for use by
// concurrent callers; lastRequest is guarded by a mutex.
type Pacer struct {
	mu          sync.Mutex
	minDelay    time.Duration
	lastRequest time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// Option configures a Pacer.
type Option func(*Pacer)

// WithClock replaces the time source. Tests use this to avoid waiting.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(p *Pacer) {
		p.now = now
		p.sleep = sleep
	}
}

// New creates a Pacer with the given minimum delay. A non-positive
// delay falls back to the default.
func New(minDelay time.Duration, opts ...Option) *Pacer {
	if minDelay <= 0 {
		minDelay = DefaultMinDelay
	}
	p := &Pacer{
		minDelay: minDelay,
		now:      time.Now,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait blocks until at least minDelay has elapsed since the previous
// request, then records the new request time. Returns early with the
// context error on cancellation.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.lastRequest.IsZero() {
		elapsed := p.now().Sub(p.lastRequest)
		if remaining := p.minDelay - elapsed; remaining > 0 {
			if err := p.sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}

	p.lastRequest = p.now()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
