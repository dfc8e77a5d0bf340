// Package ratelimit implements the three interchangeable rate-limit
// algorithms of spec.md §4.5: token bucket, fixed window, and sliding
// window, each keyed by a pluggable KeyFunc, with periodic idle-key
// cleanup and an HTTP middleware adapter.
package ratelimit

import (
	"strconv"
	"sync"
	"time"

	"github.com/corehttp/httpd/pkg/httpmsg"
)

// LimitType identifies which algorithm produced a Result.
type LimitType string

const (
	LimitTypeTokenBucket   LimitType = "token_bucket"
	LimitTypeFixedWindow   LimitType = "fixed_window"
	LimitTypeSlidingWindow LimitType = "sliding_window"
	LimitTypeDisabled      LimitType = "disabled"
)

// Result is the outcome of CheckRequest.
type Result struct {
	Allowed   bool
	Remaining int
	ResetTime time.Duration
	LimitType LimitType
	Reason    string
}

// Limiter is the pluggable algorithm contract (spec.md §4.5 "Public
// contract").
type Limiter interface {
	CheckRequest(key string) Result
	// Cleanup purges any key idle longer than idleTTL. Called
	// periodically by a background worker; it holds the algorithm's
	// per-key-map lock for the whole sweep, so a concurrent CheckRequest
	// waits until the sweep ends.
	Cleanup(idleTTL time.Duration)
	// Limit returns the configured request budget, for the
	// X-RateLimit-Limit response header.
	Limit() int
}

// disabledLimiter is a pass-through used when the rate limiter is
// disabled in configuration (spec.md §4.5 "Disabled mode").
type disabledLimiter struct{}

func (disabledLimiter) CheckRequest(string) Result {
	return Result{Allowed: true, Remaining: int(^uint(0) >> 1), LimitType: LimitTypeDisabled}
}
func (disabledLimiter) Cleanup(time.Duration) {}
func (disabledLimiter) Limit() int            { return 0 }

// RateLimiter wraps a Limiter with a KeyFunc, a background cleanup
// ticker, and the request→key plumbing. Configuration can be swapped
// atomically via Reconfigure (spec.md §4.5 "Configuration update").
type RateLimiter struct {
	mu       sync.RWMutex
	limiter  Limiter
	keyFunc  KeyFunc
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New builds a RateLimiter around the given algorithm and key function,
// and starts its background cleanup worker on the given interval/TTL
// (spec.md §4.5 "Cleanup": sleeps up to 5 minutes, purges keys idle more
// than an hour).
func New(limiter Limiter, keyFunc KeyFunc, cleanupInterval, idleTTL time.Duration) *RateLimiter {
	if keyFunc == nil {
		keyFunc = KeyByIP
	}
	rl := &RateLimiter{limiter: limiter, keyFunc: keyFunc, stopCh: make(chan struct{})}
	go rl.cleanupLoop(cleanupInterval, idleTTL)
	return rl
}

// Disabled returns a RateLimiter in pass-through mode.
func Disabled() *RateLimiter {
	return &RateLimiter{limiter: disabledLimiter{}, keyFunc: KeyByIP, stopCh: make(chan struct{})}
}

// CheckRequest extracts the key and delegates to the active algorithm.
func (rl *RateLimiter) CheckRequest(req *httpmsg.Request, peerAddr string) Result {
	rl.mu.RLock()
	limiter := rl.limiter
	keyFunc := rl.keyFunc
	rl.mu.RUnlock()

	key := keyFunc(req, peerAddr)
	return limiter.CheckRequest(key)
}

// Reconfigure atomically swaps the active algorithm. Any in-flight
// per-key state under the old algorithm is discarded (spec.md §4.5
// "Configuration update").
func (rl *RateLimiter) Reconfigure(limiter Limiter, keyFunc KeyFunc) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.limiter = limiter
	if keyFunc != nil {
		rl.keyFunc = keyFunc
	}
}

// Stop halts the background cleanup worker.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// cleanupLoop mirrors the teacher's transport.go cleanupIdleConnections
// ticker pattern: sleep on an interval, then sweep the active algorithm
// for idle keys.
func (rl *RateLimiter) cleanupLoop(interval, idleTTL time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.mu.RLock()
			limiter := rl.limiter
			rl.mu.RUnlock()
			limiter.Cleanup(idleTTL)
		case <-rl.stopCh:
			return
		}
	}
}

// Middleware adapts a RateLimiter into the router's middleware signature:
// on deny, it returns a 429 response carrying the X-RateLimit-* headers
// and a JSON body (spec.md §4.5 "middleware adapter"); on allow, it
// continues the pipeline without setting any header, since a middleware
// that continues has no response to set them on.
func (rl *RateLimiter) Middleware(req *httpmsg.Request, peerAddr string) (stop bool, resp *httpmsg.Response) {
	rl.mu.RLock()
	limiter := rl.limiter
	keyFunc := rl.keyFunc
	rl.mu.RUnlock()
	result := limiter.CheckRequest(keyFunc(req, peerAddr))

	if result.Allowed {
		return false, nil
	}

	resp = httpmsg.NewResponse(429)
	resp.Headers.Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
	resp.Headers.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	resp.Headers.Set("X-RateLimit-Reset", strconv.Itoa(int(result.ResetTime.Seconds())))
	resp.Headers.Set("X-RateLimit-Type", string(result.LimitType))
	resp.Headers.Set("Content-Type", "application/json")
	body := []byte(`{"error":"rate limit exceeded","reason":"` + result.Reason + `"}`)
	resp.SetBody(body)
	return true, resp
}

// ApplyHeaders sets the allow-path X-RateLimit-* headers on resp, per
// spec.md §4.5 "on allow, it sets X-RateLimit-Limit and
// X-RateLimit-Remaining".
func ApplyHeaders(resp *httpmsg.Response, result Result, limit int) {
	resp.Headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	resp.Headers.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	resp.Headers.Set("X-RateLimit-Type", string(result.LimitType))
}
