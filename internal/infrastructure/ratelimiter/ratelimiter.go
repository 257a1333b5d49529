package ratelimiter

import (
	"errors"
	"math"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	bucketKeyPrefix   = "rl:bucket:"
	lastFillKeyPrefix = "rl:fill:"
)

type Limiter interface {
	Allow(sourceKey string) bool
	GetSourceKey(r *http.Request) string
	Remaining(sourceKey string) int
	GetMaxBurst() int
	// Release forgets a source that is gone for good.
	Release(sourceKey string)
}

// RateLimiter is a token bucket whose state lives in a GetterSetter, so the
// same bucket can be shared between instances when backed by Redis.
type RateLimiter struct {
	maxRatePerMillisecond float64
	maxBurst              int
	cache                 GetterSetter
	cacheTTL              time.Duration
	sourceHeaderKey       string
	now                   func() time.Time
	// Per-key locks to ensure atomic operations for each source
	locks     sync.Map // map[string]*sourceLock
	lastSweep atomic.Int64
}

type sourceLock struct {
	sync.Mutex
	lastUsed atomic.Int64 // Unix milliseconds
}

func (rl *RateLimiter) getLock(sourceKey string, now int64) *sourceLock {
	v, _ := rl.locks.LoadOrStore(sourceKey, &sourceLock{})
	lock := v.(*sourceLock)
	lock.lastUsed.Store(now)

	rl.sweepLocks(now)
	return lock
}

// sweepLocks drops locks of sources idle for longer than the bucket TTL.
// Their buckets have expired as well, so no state is lost. It runs at most
// once per TTL.
func (rl *RateLimiter) sweepLocks(now int64) {
	ttl := rl.cacheTTL.Milliseconds()
	last := rl.lastSweep.Load()
	if now-last < ttl || !rl.lastSweep.CompareAndSwap(last, now) {
		return
	}

	rl.locks.Range(func(key, v any) bool {
		lock := v.(*sourceLock)
		if now-lock.lastUsed.Load() < ttl {
			return true
		}
		if lock.TryLock() {
			rl.locks.CompareAndDelete(key, lock)
			lock.Unlock()
		}
		return true
	})
}

func (rl *RateLimiter) getBucketKeyFor(sourceKey string) string {
	return bucketKeyPrefix + sourceKey
}

func (rl *RateLimiter) getLastFillKeyFor(sourceKey string) string {
	return lastFillKeyPrefix + sourceKey
}

type bucketState struct {
	tokens   int
	lastFill int64 // Unix milliseconds
}

func (rl *RateLimiter) getState(sourceKey string) bucketState {
	bucket, bucketErr := rl.cache.Get(rl.getBucketKeyFor(sourceKey))
	lastFill, fillErr := rl.cache.Get(rl.getLastFillKeyFor(sourceKey))

	if errors.Is(bucketErr, ErrCacheMiss) || errors.Is(fillErr, ErrCacheMiss) {
		return bucketState{
			tokens:   rl.maxBurst,
			lastFill: rl.now().UnixMilli(),
		}
	}

	// On cache error (not miss), fail open with full bucket
	if bucketErr != nil || fillErr != nil {
		return bucketState{
			tokens:   rl.maxBurst,
			lastFill: rl.now().UnixMilli(),
		}
	}

	return bucketState{
		tokens:   bucket,
		lastFill: int64(lastFill),
	}
}

func (rl *RateLimiter) setState(sourceKey string, state bucketState) {
	_ = rl.cache.SetWithExpiration(rl.getBucketKeyFor(sourceKey), state.tokens, rl.cacheTTL)
	_ = rl.cache.SetWithExpiration(rl.getLastFillKeyFor(sourceKey), int(state.lastFill), rl.cacheTTL)
}

func (rl *RateLimiter) refillTokens(state bucketState, now int64) bucketState {
	elapsed := now - state.lastFill
	if elapsed <= 0 {
		return state
	}

	tokensToAdd := float64(elapsed) * rl.maxRatePerMillisecond
	whole := math.Floor(tokensToAdd)
	if whole < 1 {
		// keep lastFill so fractional progress accumulates
		return state
	}

	newTokens := float64(state.tokens) + whole
	if newTokens >= float64(rl.maxBurst) {
		return bucketState{
			tokens:   rl.maxBurst,
			lastFill: now,
		}
	}

	// advance lastFill only by the time that produced whole tokens
	consumed := int64(math.Round(whole / rl.maxRatePerMillisecond))
	return bucketState{
		tokens:   int(newTokens),
		lastFill: state.lastFill + consumed,
	}
}

func (rl *RateLimiter) Remaining(sourceKey string) int {
	now := rl.now().UnixMilli()
	lock := rl.getLock(sourceKey, now)
	lock.Lock()
	defer lock.Unlock()

	state := rl.getState(sourceKey)
	newState := rl.refillTokens(state, now)

	if newState != state {
		rl.setState(sourceKey, newState)
	}

	return newState.tokens
}

func (rl *RateLimiter) GetMaxBurst() int {
	return rl.maxBurst
}

func (rl *RateLimiter) Allow(sourceKey string) bool {
	now := rl.now().UnixMilli()
	lock := rl.getLock(sourceKey, now)
	lock.Lock()
	defer lock.Unlock()

	state := rl.getState(sourceKey)
	newState := rl.refillTokens(state, now)

	if newState.tokens > 0 {
		newState.tokens--
		rl.setState(sourceKey, newState)
		return true
	}

	if newState.lastFill != state.lastFill {
		rl.setState(sourceKey, newState)
	}

	return false
}

func (rl *RateLimiter) Release(sourceKey string) {
	rl.locks.Delete(sourceKey)
	_ = rl.cache.Delete(rl.getBucketKeyFor(sourceKey), rl.getLastFillKeyFor(sourceKey))
}

// GetSourceKey keys on the peer host. A header is only consulted when one
// is configured, which is safe only behind a proxy that overwrites it.
func (rl *RateLimiter) GetSourceKey(r *http.Request) string {
	if rl.sourceHeaderKey != "" {
		if key := r.Header.Get(rl.sourceHeaderKey); key != "" {
			return key
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

type Options struct {
	MaxRatePerSecond int
	MaxBurst         int
	Cache            GetterSetter
	CacheTTL         time.Duration
	SourceHeaderKey  string
}

func New(options Options) Limiter {
	return newRateLimiter(options)
}

func newRateLimiter(options Options) *RateLimiter {
	if options.Cache == nil {
		options.Cache = NewInMemory()
	}

	if options.CacheTTL == 0 {
		options.CacheTTL = 10 * time.Second
	}

	if options.MaxRatePerSecond <= 0 {
		options.MaxRatePerSecond = 1
	}

	if options.MaxBurst <= 0 {
		options.MaxBurst = options.MaxRatePerSecond // Reasonable default
	}

	return &RateLimiter{
		maxRatePerMillisecond: float64(options.MaxRatePerSecond) / 1000.0,
		maxBurst:              options.MaxBurst,
		cache:                 options.Cache,
		cacheTTL:              options.CacheTTL,
		sourceHeaderKey:       options.SourceHeaderKey,
		now:                   time.Now,
	}
}
