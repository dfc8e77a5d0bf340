package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindow implements spec.md §4.5's sliding-window-log algorithm:
// per-key ordered timestamps, purged of anything older than
// now-window_duration on every access.
type SlidingWindow struct {
	mu          sync.Mutex
	entries     map[string]*slidingWindowEntry
	maxRequests int
	window      time.Duration
}

type slidingWindowEntry struct {
	timestamps []time.Time
	lastAccess time.Time
}

// NewSlidingWindow builds a SlidingWindow allowing maxRequests within any
// trailing window.
func NewSlidingWindow(maxRequests int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		entries:     make(map[string]*slidingWindowEntry),
		maxRequests: maxRequests,
		window:      window,
	}
}

func (sw *SlidingWindow) Limit() int { return sw.maxRequests }

func (sw *SlidingWindow) CheckRequest(key string) Result {
	now := time.Now()
	cutoff := now.Add(-sw.window)

	sw.mu.Lock()
	defer sw.mu.Unlock()

	entry, ok := sw.entries[key]
	if !ok {
		entry = &slidingWindowEntry{}
		sw.entries[key] = entry
	}
	entry.lastAccess = now

	kept := entry.timestamps[:0]
	for _, ts := range entry.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	entry.timestamps = kept

	if len(entry.timestamps) < sw.maxRequests {
		entry.timestamps = append(entry.timestamps, now)
		return Result{
			Allowed:   true,
			Remaining: sw.maxRequests - len(entry.timestamps),
			LimitType: LimitTypeSlidingWindow,
		}
	}

	oldest := entry.timestamps[0]
	return Result{
		Allowed:   false,
		Remaining: 0,
		ResetTime: oldest.Add(sw.window).Sub(now),
		LimitType: LimitTypeSlidingWindow,
		Reason:    "sliding window exhausted",
	}
}

func (sw *SlidingWindow) Cleanup(idleTTL time.Duration) {
	cutoff := time.Now().Add(-idleTTL)
	sw.mu.Lock()
	defer sw.mu.Unlock()
	for key, entry := range sw.entries {
		if entry.lastAccess.Before(cutoff) {
			delete(sw.entries, key)
		}
	}
}
