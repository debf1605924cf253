package stable

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value T
	at    time.Time
}

// Cache хранит последний результат по ключу
type Cache[T any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry[T]
}

// NewCache создает кэш; записи старше ttl помечаются устаревшими
func NewCache[T any](ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry[T]),
	}
}

// WithClock подменяет источник времени
func (c *Cache[T]) WithClock(now func() time.Time) *Cache[T] {
	c.now = now
	return c
}

// Put сохраняет значение
func (c *Cache[T]) Put(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[T]{value: value, at: c.now()}
}

// Get возвращает значение, признак устаревания и наличие
func (c *Cache[T]) Get(key string) (value T, stale bool, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return value, false, false
	}
	stale = c.ttl > 0 && c.now().Sub(e.at) >= c.ttl
	return e.value, stale, true
}

// Keys возвращает все ключи кэша
func (c *Cache[T]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

// Reset очищает кэш
func (c *Cache[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[T])
}
