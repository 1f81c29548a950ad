package session

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const memoryStoreSize = 100_000

// MemoryStore is an in-process store. Entries are evicted after ttl or when
// the store is full, whichever comes first.
type MemoryStore struct {
	cache *expirable.LRU[string, Record]
	now   func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: expirable.NewLRU[string, Record](memoryStoreSize, nil, ttl),
		now:   time.Now,
	}
}

func (m *MemoryStore) Put(_ context.Context, rec Record) error {
	if rec.ID == "" || rec.ProfileID == "" {
		return errors.New("session: missing id or profile id")
	}
	m.cache.Add(rec.ID, rec)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	rec, ok := m.cache.Get(id)
	if !ok {
		return nil, nil
	}
	if !rec.ExpiresAt.After(m.now()) {
		m.cache.Remove(id)
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.cache.Remove(id)
	return nil
}
