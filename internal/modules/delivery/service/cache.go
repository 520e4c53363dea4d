package service

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"
)

// cacheItem is a downloaded file kept for a short while
type cacheItem struct {
	data      []byte
	expiresAt time.Time
}

// Cache shares downloaded media between the chats of one refresh cycle
type Cache struct {
	items      map[string]*cacheItem
	ttl        time.Duration
	maxEntries int
	mu         sync.RWMutex
}

// NewCache creates a download cache
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		items:      make(map[string]*cacheItem),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// Get returns the cached bytes for url if they have not expired
func (c *Cache) Get(url string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[url]
	if !ok || time.Now().After(item.expiresAt) {
		return nil, false
	}
	return item.data, true
}

// Put stores bytes for url, evicting the entry closest to expiry when full
func (c *Cache) Put(url string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[url]; !exists && c.maxEntries > 0 && len(c.items) >= c.maxEntries {
		oldest := lo.MinBy(lo.Keys(c.items), func(a, b string) bool {
			return c.items[a].expiresAt.Before(c.items[b].expiresAt)
		})
		delete(c.items, oldest)
	}

	c.items[url] = &cacheItem{
		data:      data,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Len returns the number of entries, expired ones included
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// CleanupExpired removes expired entries
func (c *Cache) CleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for url, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, url)
		}
	}
}

// StartCleanupTicker periodically removes expired entries until ctx is done
func (c *Cache) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.CleanupExpired()
			}
		}
	}()
}
