// Package cache provides a bounded in-process cache with per-item expiry.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU evicts the least recently used item once Cap is exceeded; items also
// expire TTL after they were stored.
type LRU[T any] struct {
	mu    sync.Mutex
	cap   int
	ttl   time.Duration
	now   func() time.Time
	items map[string]*list.Element
	order *list.List
}

type item[T any] struct {
	key       string
	value     T
	expiresAt time.Time
}

// NewLRU returns an empty cache holding at most capacity items.
func NewLRU[T any](capacity int, ttl time.Duration) *LRU[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &LRU[T]{
		cap:   capacity,
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]*list.Element),
		order: list.New(),
	}
}

// Get returns the live value for key and marks it recently used.
func (c *LRU[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	it := el.Value.(*item[T])
	if !c.now().Before(it.expiresAt) {
		c.remove(el)
		return zero, false
	}
	c.order.MoveToFront(el)
	return it.value, true
}

// Set stores value under key, replacing any previous value.
func (c *LRU[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it := &item[T]{key: key, value: value, expiresAt: c.now().Add(c.ttl)}
	if el, ok := c.items[key]; ok {
		el.Value = it
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(it)
	for c.order.Len() > c.cap {
		c.remove(c.order.Back())
	}
}

// Delete drops key if present.
func (c *LRU[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
}

// Len reports the number of stored items, expired or not.
func (c *LRU[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Purge removes expired items and returns how many were dropped.
func (c *LRU[T]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*item[T]).expiresAt) {
			c.remove(el)
			n++
		}
		el = prev
	}
	return n
}

func (c *LRU[T]) remove(el *list.Element) {
	delete(c.items, el.Value.(*item[T]).key)
	c.order.Remove(el)
}
