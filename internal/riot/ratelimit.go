package riot

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultRequestsPerSecond matches a development key's 500 requests per 10 minutes.
const DefaultRequestsPerSecond = 500.0 / 10 / 60

// Clock abstracts time for the limiter. Now must carry a monotonic reading.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Limiter spaces calls at least 1/maxPerSecond apart, measured from the end
// of one call to the start of the next. Callers are serialized.
type Limiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	clock       Clock

	lastEnd   time.Time // zero until the first call completes
	notBefore time.Time // set by Penalize
}

// LimiterOption configures a Limiter
type LimiterOption func(*Limiter)

// WithClock swaps the time source (tests)
func WithClock(c Clock) LimiterOption {
	return func(l *Limiter) {
		l.clock = c
	}
}

// NewLimiter creates a limiter for the given ceiling.
func NewLimiter(maxPerSecond float64, opts ...LimiterOption) (*Limiter, error) {
	if maxPerSecond <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %v", maxPerSecond)
	}
	l := &Limiter{
		minInterval: time.Duration(float64(time.Second) / maxPerSecond),
		clock:       realClock{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// MinInterval is the enforced gap between calls.
func (l *Limiter) MinInterval() time.Duration {
	return l.minInterval
}

// Do waits for the interval to elapse, runs fn, and records when fn returned.
// The wait is abandoned if ctx is cancelled; fn is never interrupted.
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if wait := l.remaining(); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(wait):
		}
	}

	err := fn()
	l.lastEnd = l.clock.Now()
	return err
}

// Penalize delays the next call by at least d from now, e.g. after a 429.
func (l *Limiter) Penalize(d time.Duration) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	until := l.clock.Now().Add(d)
	if until.After(l.notBefore) {
		l.notBefore = until
	}
}

// remaining must be called with mu held.
func (l *Limiter) remaining() time.Duration {
	now := l.clock.Now()
	var wait time.Duration
	if !l.lastEnd.IsZero() {
		// Sub uses the monotonic readings when both times carry them
		wait = l.minInterval - now.Sub(l.lastEnd)
	}
	if penalty := l.notBefore.Sub(now); penalty > wait {
		wait = penalty
	}
	return wait
}
