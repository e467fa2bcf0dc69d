// Package cache provides a bounded in-process cache mapping representative
// names to their database ids, so long crawls do not re-resolve the same name
// on every case while memory stays bounded.
package cache

import "container/list"

// NameCache is a fixed-capacity LRU map from representative name to id.
// It is not safe for concurrent use: the crawl loops are single-threaded, and
// the cache is owned by one run.
type NameCache struct {
	capacity int
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
}

type nameEntry struct {
	name string
	id   int64
}

// NewNameCache creates a cache holding at most capacity entries. A capacity
// below 1 is treated as 1.
func NewNameCache(capacity int) *NameCache {
	if capacity < 1 {
		capacity = 1
	}
	return &NameCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// Get returns the cached id for a name and refreshes its recency.
func (c *NameCache) Get(name string) (int64, bool) {
	elem, ok := c.entries[name]
	if !ok {
		return 0, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*nameEntry).id, true
}

// Put stores a name→id mapping, evicting the least recently used entry when
// the cache is full.
func (c *NameCache) Put(name string, id int64) {
	if elem, ok := c.entries[name]; ok {
		elem.Value.(*nameEntry).id = id
		c.order.MoveToFront(elem)
		return
	}
	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*nameEntry).name)
		}
	}
	c.entries[name] = c.order.PushFront(&nameEntry{name: name, id: id})
}

// Len returns the number of cached entries.
func (c *NameCache) Len() int {
	return c.order.Len()
}

// Clear drops all entries.
func (c *NameCache) Clear() {
	c.order.Init()
	c.entries = make(map[string]*list.Element, c.capacity)
}
