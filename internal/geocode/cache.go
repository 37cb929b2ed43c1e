package geocode

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/i474232898/weather-risk/internal/observability"
	"github.com/i474232898/weather-risk/internal/weather"
)

// Cached wraps a Geocoder with an in-memory LRU cache.
type Cached struct {
	inner   weather.Geocoder
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCached creates a cache decorator around a geocoder. metrics may be nil.
func NewCached(inner weather.Geocoder, maxEntries int, metrics *observability.Metrics) *Cached {
	return &Cached{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *Cached) Resolve(ctx context.Context, query string) (weather.Place, error) {
	key := "fwd:" + strings.ToLower(strings.TrimSpace(query))
	return c.lookup(key, "forward", func() (weather.Place, error) {
		return c.inner.Resolve(ctx, query)
	})
}

func (c *Cached) Reverse(ctx context.Context, at weather.Coordinates) (weather.Place, error) {
	key := fmt.Sprintf("rev:%.4f,%.4f", at.Lat, at.Lon)
	return c.lookup(key, "reverse", func() (weather.Place, error) {
		return c.inner.Reverse(ctx, at)
	})
}

func (c *Cached) lookup(key, method string, fetch func() (weather.Place, error)) (weather.Place, error) {
	if place, ok := c.cache.get(key); ok {
		c.record(method, "hit")
		return place, nil
	}
	c.record(method, "miss")

	place, err := fetch()
	if err != nil {
		return place, err
	}
	// Only cache named results so transient upstream gaps can be retried.
	if place.City != "" {
		c.cache.put(key, place)
	}
	return place, nil
}

func (c *Cached) record(method, result string) {
	if c.metrics != nil {
		c.metrics.GeocodeCache.WithLabelValues(method, result).Inc()
	}
}

// lruCache is a thread-safe LRU cache of places.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value weather.Place
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (weather.Place, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return weather.Place{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value weather.Place) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.pushFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictOldest()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *lruCache) pushFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictOldest() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlink(c.tail)
}
