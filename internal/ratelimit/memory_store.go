package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const memoryStoreSize = 100_000

type counter struct {
	value   int64
	expires time.Time
}

// MemoryStore keeps counters in an expiring LRU. Limits are per process.
type MemoryStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *counter]
	now   func() time.Time
}

// NewMemoryStore evicts counters after maxWindow, the longest window of any
// rule that uses the store.
func NewMemoryStore(maxWindow time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: expirable.NewLRU[string, *counter](memoryStoreSize, nil, maxWindow),
		now:   time.Now,
	}
}

func (m *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	c, ok := m.cache.Get(key)
	if !ok || !c.expires.After(now) {
		c = &counter{expires: now.Add(ttl)}
		m.cache.Add(key, c)
	}
	c.value++
	return c.value, nil
}

// Len reports the number of live counters.
func (m *MemoryStore) Len() int {
	return m.cache.Len()
}
