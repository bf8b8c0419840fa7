// Package ratelimit implements in-memory fixed-window rate limiting for
// inbound notification requests.
//
// Each client identifier (normally the resolved source IP) gets a counter
// anchored to the first request of its current window. When the window
// elapses the counter resets. Counters live only in memory; a restart
// clears all state.
//
// # Concurrency
//
// The counter map is the only shared mutable state in the relay. All access
// is serialized behind a single mutex so concurrent bursts cannot
// undercount. A background sweep evicts expired windows to keep the map
// bounded.
//
// # Usage
//
//	limiter := ratelimit.New(10, time.Minute)
//	go limiter.Run(ctx)
//
//	d := limiter.Allow("203.0.113.7")
//	if !d.Allowed {
//	    // reject with 429, Retry-After: d.RetryAfter
//	}
package ratelimit
