package ratelimiter

import (
	"sync"
	"time"
)

const defaultSweepInterval = time.Minute

type memoryEntry struct {
	value     int
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// InMemory is the bucket store for a single process. Expired keys are
// dropped when read and by a background sweep, so buckets of sources that
// went quiet do not pile up.
type InMemory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

func NewInMemory() GetterSetter {
	return newInMemory(defaultSweepInterval)
}

func newInMemory(sweepEvery time.Duration) *InMemory {
	m := &InMemory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	go m.sweepLoop(sweepEvery)

	return m
}

func (m *InMemory) Get(key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return 0, ErrCacheMiss
	}
	if entry.expired(m.now()) {
		delete(m.entries, key)
		return 0, ErrCacheMiss
	}

	return entry.value, nil
}

func (m *InMemory) Set(key string, value int) error {
	return m.SetWithExpiration(key, value, 0)
}

func (m *InMemory) SetWithExpiration(key string, value int, expiration time.Duration) error {
	entry := memoryEntry{value: value}
	if expiration > 0 {
		entry.expiresAt = m.now().Add(expiration)
	}

	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()

	return nil
}

func (m *InMemory) Delete(keys ...string) error {
	m.mu.Lock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	m.mu.Unlock()

	return nil
}

// Len counts stored keys, expired ones included until they are swept.
func (m *InMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// sweep removes expired keys and reports how many went.
func (m *InMemory) sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, entry := range m.entries {
		if entry.expired(now) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

func (m *InMemory) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

func (m *InMemory) Close() error {
	m.closeOnce.Do(func() {
		close(m.stop)
	})
	return nil
}
