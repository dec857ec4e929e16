// internal/cache/lru.go
//
// In-process LRU store with per-entry expiry.  Used when no Redis URL is
// configured and by unit tests.  No external deps; good for a few thousand
// entries.  Unlike Redis, entries are not shared between processes, so a
// multi-instance deployment must use RedisStore.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded least-recently-used cache that satisfies
// Store.
type MemoryStore struct {
	mu   sync.Mutex
	cap  int
	ll   *list.List
	dict map[string]*list.Element
	now  func() time.Time
}

type pair struct {
	key string
	val []byte
	exp time.Time // zero means no expiry
}

// NewMemoryStore returns a MemoryStore with the given capacity.  Panics on
// capacity < 1.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity < 1 {
		panic("cache: capacity must be >= 1")
	}
	return &MemoryStore{
		cap:  capacity,
		ll:   list.New(),
		dict: make(map[string]*list.Element, capacity),
		now:  time.Now,
	}
}

// Get retrieves a value and marks it MRU.  Expired entries are dropped.
func (c *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ele, hit := c.dict[key]
	if !hit {
		return nil, false, nil
	}
	p := ele.Value.(pair)
	if !p.exp.IsZero() && !c.now().Before(p.exp) {
		c.ll.Remove(ele)
		delete(c.dict, key)
		return nil, false, nil
	}
	c.ll.MoveToFront(ele)
	out := make([]byte, len(p.val))
	copy(out, p.val)
	return out, true, nil
}

// Set inserts or updates a value.  ttl <= 0 stores without expiry.
func (c *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := pair{key: key, val: append([]byte(nil), value...)}
	if ttl > 0 {
		p.exp = c.now().Add(ttl)
	}
	if ele, hit := c.dict[key]; hit {
		ele.Value = p
		c.ll.MoveToFront(ele)
		return nil
	}
	c.dict[key] = c.ll.PushFront(p)
	if c.ll.Len() > c.cap {
		last := c.ll.Back()
		c.ll.Remove(last)
		delete(c.dict, last.Value.(pair).key)
	}
	return nil
}

// Delete removes keys; absent keys are ignored.
func (c *MemoryStore) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		if ele, hit := c.dict[k]; hit {
			c.ll.Remove(ele)
			delete(c.dict, k)
		}
	}
	return nil
}

func (c *MemoryStore) Ping(context.Context) error { return nil }
func (c *MemoryStore) Close() error               { return nil }

// Len reports current size, expired entries included.
func (c *MemoryStore) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
