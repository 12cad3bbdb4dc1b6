package tokeninfo

import (
	"sync"
	"time"
)

// ttlCache кэширует значения с ограниченным временем жизни.
type ttlCache[T any] struct {
	entries sync.Map
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry[T any] struct {
	value    T
	storedAt time.Time
}

func newTTLCache[T any](ttl time.Duration) *ttlCache[T] {
	return &ttlCache[T]{ttl: ttl, now: time.Now}
}

// get returns a fresh value; stale entries are dropped.
func (c *ttlCache[T]) get(key string) (T, bool) {
	if value, ok := c.entries.Load(key); ok {
		entry := value.(cacheEntry[T])
		if c.now().Sub(entry.storedAt) < c.ttl {
			return entry.value, true
		}
		c.entries.Delete(key)
	}
	var zero T
	return zero, false
}

func (c *ttlCache[T]) put(key string, value T) {
	c.entries.Store(key, cacheEntry[T]{value: value, storedAt: c.now()})
}
