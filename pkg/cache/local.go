package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/labstack/gommon/bytes"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultMaxItems = 256
	DefaultMaxSize  = 32 * bytes.MiB
)

// LocalCache is an in-process LRU bounded by item count and total blob size.
// It is safe for concurrent use.
type LocalCache struct {
	mu          sync.Mutex
	items       *expirable.LRU[string, *Item]
	maxSize     int64
	currentSize atomic.Int64
}

// NewLocalCache returns a cache holding at most maxItems entries and maxSize
// bytes of blobs. A positive ttl expires entries that were never refreshed.
func NewLocalCache(maxItems int, maxSize int64, ttl time.Duration) *LocalCache {
	l := &LocalCache{maxSize: maxSize}
	l.items = expirable.NewLRU[string, *Item](maxItems, func(_ string, item *Item) {
		l.currentSize.Add(-int64(len(item.Blob)))
	}, ttl)
	return l
}

// Get returns a copy of the item so callers never share the cached entry.
func (l *LocalCache) Get(_ context.Context, key string) (*Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, found := l.items.Get(key)
	if !found {
		return nil, redis.Nil
	}
	if item.expired(time.Now()) {
		l.items.Remove(key)
		return nil, redis.Nil
	}
	item.Accessed()
	shallow := *item
	return &shallow, nil
}

// Set stores item. A zero duration keeps it until evicted.
func (l *LocalCache) Set(_ context.Context, key string, item *Item, duration time.Duration) error {
	if duration > 0 {
		item.Expires = time.Now().UTC().Add(duration)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, found := l.items.Peek(key); found {
		l.items.Remove(key)
	}
	l.currentSize.Add(int64(len(item.Blob)))
	l.items.Add(key, item)

	for l.currentSize.Load() > l.maxSize && l.items.Len() > 1 {
		l.items.RemoveOldest()
	}
	return nil
}

// Len returns the number of cached items.
func (l *LocalCache) Len() int {
	return l.items.Len()
}

// Size returns the total size of the cached blobs in bytes.
func (l *LocalCache) Size() int64 {
	return l.currentSize.Load()
}
