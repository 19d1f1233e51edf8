package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type userLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter keeps one token bucket per user. Buckets idle for longer than
// ttl are dropped on the next sweep.
type RateLimiter struct {
	r   rate.Limit
	b   int
	ttl time.Duration

	mu        sync.Mutex
	m         map[string]*userLimiter
	lastSweep time.Time
}

func NewRateLimiter(perSecond float64, burst int, ttl time.Duration) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		r:         rate.Limit(perSecond),
		b:         burst,
		ttl:       ttl,
		m:         make(map[string]*userLimiter),
		lastSweep: time.Now(),
	}
}

// Allow takes one token from userID's bucket. A non-positive rate disables
// limiting.
func (rl *RateLimiter) Allow(userID string) bool {
	if rl.r <= 0 {
		return true
	}
	now := time.Now()

	rl.mu.Lock()
	if now.Sub(rl.lastSweep) > rl.ttl {
		rl.lastSweep = now
		for k, v := range rl.m {
			if now.Sub(v.seen) > rl.ttl {
				delete(rl.m, k)
			}
		}
	}
	ul, ok := rl.m[userID]
	if !ok {
		ul = &userLimiter{lim: rate.NewLimiter(rl.r, rl.b)}
		rl.m[userID] = ul
	}
	ul.seen = now
	rl.mu.Unlock()

	return ul.lim.AllowN(now, 1)
}

// Len is the number of tracked users.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.m)
}
