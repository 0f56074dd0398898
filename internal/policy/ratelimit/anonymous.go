package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Anonymous enforces the free-tier quota for unauthenticated callers with
// a per-client-IP token bucket. The store-backed counter cannot attribute
// anonymous conversions to an identity, so enforcement happens here: each
// IP gets a bucket refilling at dailyLimit tokens per 24 hours with a
// burst of the full daily allowance.
//
// Buckets live in process memory; a restart forgets them. That is an
// accepted soft limit, matching the tolerance for small race windows in
// the account path.
type Anonymous struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewAnonymous builds the anonymous limiter for the given daily limit.
// A nil limit disables enforcement entirely.
func NewAnonymous(dailyLimit *int) *Anonymous {
	r := rate.Inf
	burst := 1
	if dailyLimit != nil && *dailyLimit > 0 {
		r = rate.Limit(float64(*dailyLimit) / (24 * 60 * 60))
		burst = *dailyLimit
	}
	return &Anonymous{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

// Allow consumes one token from the bucket for the given client IP.
func (a *Anonymous) Allow(ip string) bool {
	if ip == "" {
		ip = "unknown"
	}
	a.mu.Lock()
	limiter, ok := a.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(a.rate, a.burst)
		a.limiters[ip] = limiter
	}
	a.mu.Unlock()
	return limiter.Allow()
}
