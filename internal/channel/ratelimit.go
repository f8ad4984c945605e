package channel

import (
	"sync"

	"golang.org/x/time/rate"
)

// DestinationLimiter manages rate limiters keyed by destination: a recipient
// address, phone number, or endpoint URL
type DestinationLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// NewDestinationLimiter creates a new per-destination rate limiter
func NewDestinationLimiter(rps float64, burst int) *DestinationLimiter {
	return &DestinationLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// getLimiter returns the rate limiter for a specific destination
func (rl *DestinationLimiter) getLimiter(destination string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[destination]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		// Double-check after acquiring write lock
		limiter, exists = rl.limiters[destination]
		if !exists {
			limiter = rate.NewLimiter(rl.rate, rl.burst)
			rl.limiters[destination] = limiter
		}
		rl.mu.Unlock()
	}

	return limiter
}

// Allow reports whether a send to the destination may proceed now
func (rl *DestinationLimiter) Allow(destination string) bool {
	return rl.getLimiter(destination).Allow()
}
