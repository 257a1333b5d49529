package ratelimiter

import (
	"errors"
	"time"
)

// ErrCacheMiss reports a key that is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// GetterSetter is the bucket store behind RateLimiter. Values are token
// counts and Unix millisecond timestamps.
type GetterSetter interface {
	Get(key string) (int, error)
	Set(key string, value int) error
	SetWithExpiration(key string, value int, expiration time.Duration) error
	Delete(keys ...string) error
	Close() error
}
