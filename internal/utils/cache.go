package utils

import (
	"os"
	"sync"
	"time"
)

// fileStamp records the on-disk state a cached value was derived from
type fileStamp struct {
	modTime time.Time
	size    int64
}

func stampOf(path string) (fileStamp, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, err
	}
	return fileStamp{modTime: stat.ModTime(), size: stat.Size()}, nil
}

type cacheEntry[V any] struct {
	value V
	stamp fileStamp
}

// Cache is a concurrency-safe map whose entries can be tied to a file and
// dropped once that file changes.
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]cacheEntry[V]
}

// NewCache creates an empty cache
func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{entries: make(map[K]cacheEntry[V])}
}

// Get returns the cached value for key
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	return entry.value, ok
}

// GetWithFileValidation returns the value for key only if filePath still has
// the modification time and size recorded by SetWithFileInfo. Stale entries
// are evicted.
func (c *Cache[K, V]) GetWithFileValidation(key K, filePath string) (V, bool) {
	var zero V

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}

	if current, err := stampOf(filePath); err == nil && current.modTime.Equal(entry.stamp.modTime) && current.size == entry.stamp.size {
		return entry.value, true
	}

	c.Delete(key)
	return zero, false
}

// Set stores value under key without file tracking
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[V]{value: value}
}

// SetWithFileInfo stores value under key along with the current state of filePath
func (c *Cache[K, V]) SetWithFileInfo(key K, value V, filePath string) error {
	stamp, err := stampOf(filePath)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[V]{value: value, stamp: stamp}
	return nil
}

// Delete removes key
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes every entry
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]cacheEntry[V])
}

// Size returns the number of entries
func (c *Cache[K, V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
