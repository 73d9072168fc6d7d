// Package ratelimit implements per-API-key sliding-window admission control.
package ratelimit

import (
	"sync"
	"time"
)

// Window is the trailing duration over which requests are counted.
const Window = time.Hour

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// Reset is when the oldest counted request leaves the window. When no
	// requests are recorded it is the time of the check.
	Reset time.Time
}

// Limiter tracks request timestamps per key within a trailing window.
// Prune-and-record is atomic under a single mutex so two concurrent
// requests can never both observe a stale count and both be admitted
// over the limit. The clock is injected so tests can advance time
// deterministically.
type Limiter struct {
	mu    sync.Mutex
	limit int
	clock func() time.Time
	keys  map[string][]time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the wall clock.
func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) {
		l.clock = clock
	}
}

// NewLimiter creates a limiter admitting at most limit requests per key
// per trailing hour.
func NewLimiter(limit int, opts ...Option) *Limiter {
	l := &Limiter{
		limit: limit,
		clock: time.Now,
		keys:  make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckAndRecord admits or rejects a request for key. Admission records the
// request; rejection records nothing. Timestamps older than the window are
// pruned lazily on each check, never eagerly.
func (l *Limiter) CheckAndRecord(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	stamps := l.prune(key, now)

	if len(stamps) >= l.limit {
		return Decision{
			Allowed:   false,
			Limit:     l.limit,
			Remaining: 0,
			Reset:     stamps[0].Add(Window),
		}
	}

	stamps = append(stamps, now)
	l.keys[key] = stamps

	return Decision{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - len(stamps),
		Reset:     stamps[0].Add(Window),
	}
}

// Status performs the same prune-and-compute as CheckAndRecord without
// recording anything, for quota-check calls.
func (l *Limiter) Status(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	stamps := l.prune(key, now)

	d := Decision{
		Allowed:   len(stamps) < l.limit,
		Limit:     l.limit,
		Remaining: max(0, l.limit-len(stamps)),
		Reset:     now,
	}
	if len(stamps) > 0 {
		d.Reset = stamps[0].Add(Window)
	}
	return d
}

// prune drops timestamps outside the window for key and returns the
// surviving slice, oldest first. Caller must hold the mutex.
func (l *Limiter) prune(key string, now time.Time) []time.Time {
	stamps := l.keys[key]
	cutoff := now.Add(-Window)
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(l.keys, key)
		return nil
	}
	l.keys[key] = kept
	return kept
}
