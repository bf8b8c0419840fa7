package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepInterval is how often expired windows are evicted from the map.
const sweepInterval = time.Minute

// Decision is the outcome of a rate limit check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Limit is the configured maximum requests per window.
	Limit int

	// Remaining is the number of requests left in the current window.
	Remaining int

	// RetryAfter is how long until the current window resets.
	// Only meaningful when Allowed is false.
	RetryAfter time.Duration
}

// window tracks request counts for one client within the current window.
type window struct {
	count int
	start time.Time
}

// Limiter is a fixed-window rate limiter keyed by client identifier.
//
// Thread Safety: all methods are safe for concurrent use.
type Limiter struct {
	limit    int
	interval time.Duration

	mu      sync.Mutex
	windows map[string]*window

	// now is injectable for tests.
	now func() time.Time
}

// New creates a Limiter allowing limit requests per interval per key.
func New(limit int, interval time.Duration) *Limiter {
	return &Limiter{
		limit:    limit,
		interval: interval,
		windows:  make(map[string]*window),
		now:      time.Now,
	}
}

// Allow records a request for key and reports whether it is within the
// configured limit for the current window.
//
// The counter is incremented only for allowed requests, so a throttled
// client's rejected requests do not extend its penalty.
func (l *Limiter) Allow(key string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.interval {
		// New client or expired window: counter resets to zero.
		w = &window{start: now}
		l.windows[key] = w
	}

	if w.count >= l.limit {
		return Decision{
			Allowed:    false,
			Limit:      l.limit,
			Remaining:  0,
			RetryAfter: w.start.Add(l.interval).Sub(now),
		}
	}

	w.count++
	return Decision{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - w.count,
	}
}

// Run evicts expired windows periodically until the context is cancelled.
// Without it the map would grow with every distinct client ever seen.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep removes windows whose interval has fully elapsed.
func (l *Limiter) sweep() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, w := range l.windows {
		if now.Sub(w.start) >= l.interval {
			delete(l.windows, key)
		}
	}
}

// ClientCount returns the number of tracked client windows.
// Useful for metrics and tests.
func (l *Limiter) ClientCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
