package ratelimit

import (
	"github.com/corehttp/httpd/pkg/config"
)

// FromConfig builds the configured algorithm and key function and wraps
// them in a RateLimiter, or returns a disabled pass-through RateLimiter
// when cfg.Enabled is false.
func FromConfig(cfg config.RateLimiterConfig) *RateLimiter {
	if !cfg.Enabled {
		return Disabled()
	}

	var limiter Limiter
	switch cfg.Strategy {
	case "fixed_window":
		limiter = NewFixedWindow(cfg.MaxRequests, cfg.WindowDuration())
	case "sliding_window":
		limiter = NewSlidingWindow(cfg.MaxRequests, cfg.WindowDuration())
	default:
		burst := cfg.BurstCapacity
		if burst <= 0 {
			burst = cfg.MaxRequests
		}
		limiter = NewTokenBucket(burst, cfg.MaxRequests, cfg.WindowDuration())
	}

	keyFunc := keyFuncByName(cfg.KeyStrategy)
	return New(limiter, keyFunc, cfg.CleanupInterval(), cfg.IdleTTL())
}

func keyFuncByName(name string) KeyFunc {
	switch name {
	case "api_key":
		return KeyByAPIKey
	case "endpoint":
		return KeyByEndpoint
	case "bearer_user":
		return KeyByBearerUser
	case "ip_user_agent":
		return KeyByIPAndUserAgent
	default:
		return KeyByIP
	}
}
