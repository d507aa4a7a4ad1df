// internal/amnet/cache.go
package amnet

import (
	"sync"
	"time"
)

// RecordCache memoizes fetched events and products for the duration of a
// sync batch. It is owned by the caller and passed into the reconciler
// explicitly; cached entries expire after the TTL or when Clear is called.
type RecordCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	events   map[string]cachedEvent
	products map[string]cachedProduct
	now      func() time.Time
}

type cachedEvent struct {
	event   *Event
	fetched time.Time
}

type cachedProduct struct {
	product *Product
	fetched time.Time
}

// NewRecordCache creates a cache whose entries expire after ttl.
// A ttl of zero disables expiry; entries live until Clear.
func NewRecordCache(ttl time.Duration) *RecordCache {
	return &RecordCache{
		ttl:      ttl,
		events:   make(map[string]cachedEvent),
		products: make(map[string]cachedProduct),
		now:      time.Now,
	}
}

// Event returns the cached record for the key, if present and fresh.
func (c *RecordCache) Event(key string) (*Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.events[key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(entry.fetched) > c.ttl {
		delete(c.events, key)
		return nil, false
	}
	return entry.event, true
}

// PutEvent stores a freshly fetched record under the key.
func (c *RecordCache) PutEvent(key string, ev *Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[key] = cachedEvent{event: ev, fetched: c.now()}
}

// Product returns the cached record for the code, if present and fresh.
func (c *RecordCache) Product(code string) (*Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.products[code]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(entry.fetched) > c.ttl {
		delete(c.products, code)
		return nil, false
	}
	return entry.product, true
}

// PutProduct stores a freshly fetched record under the code.
func (c *RecordCache) PutProduct(code string, p *Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[code] = cachedProduct{product: p, fetched: c.now()}
}

// Clear drops every cached entry.
func (c *RecordCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = make(map[string]cachedEvent)
	c.products = make(map[string]cachedProduct)
}
