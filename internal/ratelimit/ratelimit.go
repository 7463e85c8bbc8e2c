package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter enforces a minimum spacing between actions.
type Limiter interface {
	Wait(ctx context.Context) error
}

// DelayLimiter spaces actions by a fixed delay plus a small random jitter,
// to avoid a machine-regular request cadence against upstream defenses.
type DelayLimiter struct {
	delay      time.Duration
	maxJitter  time.Duration
	lastAction time.Time
	mu         sync.Mutex
}

// NewDelayLimiter creates a limiter with the given inter-request delay and
// a uniform jitter in [0, maxJitter) added on every wait.
func NewDelayLimiter(delay, maxJitter time.Duration) *DelayLimiter {
	return &DelayLimiter{
		delay:     delay,
		maxJitter: maxJitter,
	}
}

// Wait blocks until the spacing since the last action has elapsed, or the
// context is cancelled.
func (l *DelayLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := time.Since(l.lastAction)
	target := l.delay + l.jitter()

	if elapsed < target {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(target - elapsed):
		}
	}

	l.lastAction = time.Now()
	return nil
}

func (l *DelayLimiter) jitter() time.Duration {
	if l.maxJitter <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(l.maxJitter)))
}

// NopLimiter never waits. Used in tests and for adapters that carry their
// own pacing.
type NopLimiter struct{}

func (NopLimiter) Wait(ctx context.Context) error {
	return ctx.Err()
}
