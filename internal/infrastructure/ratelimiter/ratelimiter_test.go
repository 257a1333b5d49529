package ratelimiter

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLimiter(t *testing.T, rate, burst int) (*RateLimiter, *clock) {
	t.Helper()

	cache := NewInMemory()
	t.Cleanup(func() { _ = cache.Close() })

	c := &clock{t: time.Unix(1_700_000_000, 0)}
	rl := newRateLimiter(Options{MaxRatePerSecond: rate, MaxBurst: burst, Cache: cache, CacheTTL: time.Hour})
	rl.now = c.now
	return rl, c
}

func TestAllowConsumesBurst(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, 3)

	for i := 0; i < 3; i++ {
		require.True(t, rl.Allow("conn-a"), "request %d", i)
	}
	assert.False(t, rl.Allow("conn-a"))
	assert.Equal(t, 0, rl.Remaining("conn-a"))

	// other sources have their own bucket
	assert.True(t, rl.Allow("conn-b"))
}

func TestRefillOverTime(t *testing.T) {
	rl, c := newTestLimiter(t, 2, 2)

	require.True(t, rl.Allow("k"))
	require.True(t, rl.Allow("k"))
	require.False(t, rl.Allow("k"))

	c.t = c.t.Add(250 * time.Millisecond)
	assert.False(t, rl.Allow("k"), "half a token is not enough")

	c.t = c.t.Add(250 * time.Millisecond)
	assert.True(t, rl.Allow("k"))
	assert.False(t, rl.Allow("k"))

	c.t = c.t.Add(10 * time.Second)
	assert.Equal(t, 2, rl.Remaining("k"), "refill is capped at burst")
}

func TestGetSourceKey(t *testing.T) {
	t.Run("peer host by default", func(t *testing.T) {
		rl := newRateLimiter(Options{MaxRatePerSecond: 1})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		req.Header.Set("X-RateLimit-Key", "anything")
		assert.Equal(t, "10.0.0.1", rl.GetSourceKey(req))

		req.RemoteAddr = "10.0.0.1:5678"
		assert.Equal(t, "10.0.0.1", rl.GetSourceKey(req), "new connections from one host share a key")

		req.RemoteAddr = "10.0.0.2"
		assert.Equal(t, "10.0.0.2", rl.GetSourceKey(req))
	})

	t.Run("configured header", func(t *testing.T) {
		rl := newRateLimiter(Options{MaxRatePerSecond: 1, SourceHeaderKey: "X-Forwarded-For"})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		assert.Equal(t, "10.0.0.1", rl.GetSourceKey(req))

		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		assert.Equal(t, "203.0.113.9", rl.GetSourceKey(req))
	})
}

func TestForgedHeadersDoNotBypassLimit(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, 1)

	allowed := 0
	for i := 0; i < 500; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = fmt.Sprintf("10.0.0.1:%d", 10000+i)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i%250))
		if rl.Allow(rl.GetSourceKey(req)) {
			allowed++
		}
	}

	assert.Equal(t, 1, allowed)
	assert.Equal(t, 1, lockCount(rl))
}

func lockCount(rl *RateLimiter) int {
	n := 0
	rl.locks.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func TestIdleLocksAreEvicted(t *testing.T) {
	rl, c := newTestLimiter(t, 1, 1)

	for i := 0; i < 1000; i++ {
		rl.Allow(fmt.Sprintf("source-%d", i))
	}
	require.Equal(t, 1000, lockCount(rl))

	c.t = c.t.Add(30 * time.Minute)
	rl.Allow("recent")
	assert.Equal(t, 1001, lockCount(rl), "nothing is idle for a full TTL yet")

	c.t = c.t.Add(45 * time.Minute)
	rl.Allow("fresh")
	assert.Equal(t, 2, lockCount(rl), "only sources used within the TTL keep a lock")

	_, ok := rl.locks.Load("recent")
	assert.True(t, ok)
}

func TestReleaseForgetsSource(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, 1)

	require.True(t, rl.Allow("conn-a"))
	require.False(t, rl.Allow("conn-a"))

	rl.Release("conn-a")
	assert.Zero(t, lockCount(rl))

	_, err := rl.cache.Get(rl.getBucketKeyFor("conn-a"))
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.True(t, rl.Allow("conn-a"), "a released source starts with a full bucket")
}

func TestInMemoryExpiry(t *testing.T) {
	cache := newInMemory(time.Hour)
	defer cache.Close()

	now := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.SetWithExpiration("a", 1, time.Second))
	require.NoError(t, cache.Set("forever", 2))

	v, err := cache.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	now = now.Add(2 * time.Second)
	_, err = cache.Get("a")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 1, cache.Len(), "expired keys are dropped on read")

	v, err = cache.Get("forever")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestInMemorySweep(t *testing.T) {
	cache := newInMemory(time.Hour)
	defer cache.Close()

	now := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		require.NoError(t, cache.SetWithExpiration(fmt.Sprintf("k%d", i), i, time.Duration(i+1)*time.Second))
	}
	require.NoError(t, cache.Set("forever", 1))

	now = now.Add(5500 * time.Millisecond)
	assert.Equal(t, 5, cache.sweep())
	assert.Equal(t, 6, cache.Len())

	require.NoError(t, cache.Delete("forever", "k9", "missing"))
	assert.Equal(t, 4, cache.Len())
}
