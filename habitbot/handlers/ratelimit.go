package handlers

import (
	"sync"
	"time"
)

// RateLimiter is a sliding-window limiter keyed by user. It is shared by the
// Discord interaction chain and the HTTP API.
type RateLimiter struct {
	requests map[string][]time.Time
	mutex    sync.Mutex
	window   time.Duration
	limit    int
	now      func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		window:   window,
		limit:    limit,
		now:      time.Now,
	}
}

// Allow records a request for key and reports whether it is within the limit.
// A non-positive limit disables limiting.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	valid := pruned(rl.requests[key], now.Add(-rl.window))
	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}
	rl.requests[key] = append(valid, now)
	return true
}

// Sweep drops keys with no request inside the window. Run it periodically.
func (rl *RateLimiter) Sweep() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	cutoff := rl.now().Add(-rl.window)
	removed := 0
	for key, requests := range rl.requests {
		valid := pruned(requests, cutoff)
		if len(valid) == 0 {
			delete(rl.requests, key)
			removed++
			continue
		}
		rl.requests[key] = valid
	}
	return removed
}

func pruned(requests []time.Time, cutoff time.Time) []time.Time {
	var valid []time.Time
	for _, req := range requests {
		if req.After(cutoff) {
			valid = append(valid, req)
		}
	}
	return valid
}
