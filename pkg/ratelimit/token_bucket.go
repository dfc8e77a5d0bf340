package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket implements spec.md §4.5's token-bucket algorithm on top of
// golang.org/x/time/rate: one rate.Limiter per key, capacity = configured
// burst, refill = refill_rate per refill_interval. Idle-key tracking and
// cleanup mirror the teacher's hostPools sync.Map + cleanup pattern
// (pkg/transport/transport.go).
type TokenBucket struct {
	mu           sync.Mutex
	limiters     map[string]*bucketEntry
	capacity     int
	refillRate   float64 // tokens per second
	refillPeriod time.Duration
}

type bucketEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewTokenBucket builds a TokenBucket: capacity tokens, refilling at
// refillRate tokens per refillPeriod.
func NewTokenBucket(capacity int, refillRate int, refillPeriod time.Duration) *TokenBucket {
	perSecond := float64(refillRate) / refillPeriod.Seconds()
	return &TokenBucket{
		limiters:     make(map[string]*bucketEntry),
		capacity:     capacity,
		refillRate:   perSecond,
		refillPeriod: refillPeriod,
	}
}

func (tb *TokenBucket) Limit() int { return tb.capacity }

func (tb *TokenBucket) CheckRequest(key string) Result {
	now := time.Now()

	tb.mu.Lock()
	entry, ok := tb.limiters[key]
	if !ok {
		entry = &bucketEntry{limiter: rate.NewLimiter(rate.Limit(tb.refillRate), tb.capacity)}
		tb.limiters[key] = entry
	}
	entry.lastAccess = now
	lim := entry.limiter
	tb.mu.Unlock()

	allowed := lim.AllowN(now, 1)
	tokens := lim.TokensAt(now)
	remaining := int(tokens)
	if remaining < 0 {
		remaining = 0
	}
	if remaining > tb.capacity {
		remaining = tb.capacity
	}

	result := Result{
		Allowed:   allowed,
		Remaining: remaining,
		LimitType: LimitTypeTokenBucket,
	}
	if !allowed {
		result.Reason = "token bucket exhausted"
		if tb.refillRate > 0 {
			deficit := 1 - tokens
			if deficit < 0 {
				deficit = 0
			}
			result.ResetTime = time.Duration(deficit/tb.refillRate) * time.Second
		}
	}
	return result
}

func (tb *TokenBucket) Cleanup(idleTTL time.Duration) {
	cutoff := time.Now().Add(-idleTTL)
	tb.mu.Lock()
	defer tb.mu.Unlock()
	for key, entry := range tb.limiters {
		if entry.lastAccess.Before(cutoff) {
			delete(tb.limiters, key)
		}
	}
}
