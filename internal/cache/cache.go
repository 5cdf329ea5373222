package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"weatherproxy/internal/models"
)

// Cache is implemented by forecast cache backends.
// Get returns cached data if present and not expired, Set stores data with TTL.
type Cache interface {
	Get(ctx context.Context, key string) (models.ForecastPayload, bool, error)
	Set(ctx context.Context, key string, value models.ForecastPayload, ttl time.Duration) error
}

// BoundedCache implements Cache with an in-memory map bounded to a fixed
// number of entries. When full, Set evicts the oldest inserted entry. Entries
// also expire after their TTL independent of capacity pressure; expired
// entries are removed on access. Safe for concurrent use.
type BoundedCache struct {
	mu       sync.Mutex
	maxSize  int
	data     map[string]*list.Element
	order    *list.List // front = oldest insertion

	// onEvict, when set, is called with the eviction reason ("capacity" or
	// "expired") while the lock is held. Used for metrics.
	onEvict func(reason string)
}

type boundedEntry struct {
	key       string
	value     models.ForecastPayload
	expiresAt time.Time
}

// NewBoundedCache creates a BoundedCache holding at most maxSize entries.
// maxSize values below 1 fall back to 1.
func NewBoundedCache(maxSize int) *BoundedCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &BoundedCache{
		maxSize: maxSize,
		data:    make(map[string]*list.Element, maxSize),
		order:   list.New(),
	}
}

// SetEvictionHook registers a callback invoked on every eviction. Call before
// the cache is shared between goroutines.
func (c *BoundedCache) SetEvictionHook(fn func(reason string)) {
	c.onEvict = fn
}

// Get retrieves the cached payload for key if present and not expired.
// Returns (payload, true, nil) on hit, (zero, false, nil) on miss or expiry.
func (c *BoundedCache) Get(ctx context.Context, key string) (models.ForecastPayload, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.data[key]
	if !ok {
		return models.ForecastPayload{}, false, nil
	}

	entry := elem.Value.(*boundedEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeLocked(elem, "expired")
		return models.ForecastPayload{}, false, nil
	}

	return entry.value, true, nil
}

// Set stores the payload under key with the given TTL. Re-setting an existing
// key refreshes both its value and its insertion position. When the cache is
// at capacity, the oldest inserted entry is evicted first.
func (c *BoundedCache) Set(ctx context.Context, key string, value models.ForecastPayload, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.data[key]; ok {
		c.order.Remove(elem)
		delete(c.data, key)
	}

	for len(c.data) >= c.maxSize {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest, "capacity")
	}

	elem := c.order.PushBack(&boundedEntry{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
	c.data[key] = elem
	return nil
}

// Len returns the current number of entries, including any not yet reaped
// expired ones.
func (c *BoundedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

func (c *BoundedCache) removeLocked(elem *list.Element, reason string) {
	entry := elem.Value.(*boundedEntry)
	c.order.Remove(elem)
	delete(c.data, entry.key)
	if c.onEvict != nil {
		c.onEvict(reason)
	}
}
