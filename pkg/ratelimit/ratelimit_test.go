package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketDenyThenAllow(t *testing.T) {
	tb := NewTokenBucket(3, 1, time.Second)

	r1 := tb.CheckRequest("1.2.3.4")
	r2 := tb.CheckRequest("1.2.3.4")
	r3 := tb.CheckRequest("1.2.3.4")
	r4 := tb.CheckRequest("1.2.3.4")

	assert.True(t, r1.Allowed)
	assert.True(t, r2.Allowed)
	assert.True(t, r3.Allowed)
	assert.False(t, r4.Allowed)
	assert.Equal(t, 0, r4.Remaining)

	time.Sleep(1100 * time.Millisecond)
	r5 := tb.CheckRequest("1.2.3.4")
	assert.True(t, r5.Allowed)
}

func TestTokenBucketKeyIsolation(t *testing.T) {
	tb := NewTokenBucket(1, 1, time.Second)

	r1 := tb.CheckRequest("key-a")
	r2 := tb.CheckRequest("key-b")
	require.True(t, r1.Allowed)
	require.True(t, r2.Allowed, "distinct keys must not share budget")
}

func TestFixedWindowResetsAfterWindow(t *testing.T) {
	fw := NewFixedWindow(2, 100*time.Millisecond)

	require.True(t, fw.CheckRequest("k").Allowed)
	require.True(t, fw.CheckRequest("k").Allowed)
	assert.False(t, fw.CheckRequest("k").Allowed)

	time.Sleep(120 * time.Millisecond)
	assert.True(t, fw.CheckRequest("k").Allowed)
}

func TestSlidingWindowPurgesOldEntries(t *testing.T) {
	sw := NewSlidingWindow(2, 100*time.Millisecond)

	require.True(t, sw.CheckRequest("k").Allowed)
	require.True(t, sw.CheckRequest("k").Allowed)
	assert.False(t, sw.CheckRequest("k").Allowed)

	time.Sleep(120 * time.Millisecond)
	assert.True(t, sw.CheckRequest("k").Allowed)
}

func TestCleanupPurgesIdleKeys(t *testing.T) {
	fw := NewFixedWindow(5, time.Minute)
	fw.CheckRequest("stale-key")

	fw.mu.Lock()
	fw.entries["stale-key"].lastAccess = time.Now().Add(-2 * time.Hour)
	fw.mu.Unlock()

	fw.Cleanup(time.Hour)

	fw.mu.Lock()
	_, exists := fw.entries["stale-key"]
	fw.mu.Unlock()
	assert.False(t, exists, "expected idle key to be purged")
}

func TestDisabledLimiterAlwaysAllows(t *testing.T) {
	rl := Disabled()
	defer rl.Stop()

	result := rl.limiter.CheckRequest("anyone")
	assert.True(t, result.Allowed)
	assert.Equal(t, LimitTypeDisabled, result.LimitType)
}
