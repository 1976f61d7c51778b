/*
Copyright 2025 The replend Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package scenario

import (
	"container/list"
	"sync"
	"time"

	"github.com/replenlab/replend/pkg/core"
)

// CacheReader provides read-only access to the scenario cache.
type CacheReader interface {
	// Get returns the cached Solution for the key, if present and fresh.
	Get(key Key) (*core.Solution, bool)

	// Len returns the number of live entries.
	Len() int
}

// CacheWriter provides write access to the scenario cache.
type CacheWriter interface {
	// Add stores the Solution unless the key is already present, and returns
	// the stored value. On a race the first writer wins and the losing
	// result is discarded — both are equal by construction, so a lost
	// update only means one redundant solve.
	Add(key Key, sol *core.Solution) *core.Solution
}

// Cache is a bounded LRU cache of scenario solutions, safe for concurrent
// readers and writers across sessions. Entries are immutable once stored.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front = most recently used
	maxEntries int
	ttl        time.Duration

	// now is swappable in tests.
	now func() time.Time
}

type cacheEntry struct {
	key      string
	solution *core.Solution
	storedAt time.Time
}

// DefaultCacheSize bounds the cache when no size is configured.
const DefaultCacheSize = 256

// NewCache creates a Cache. maxEntries <= 0 selects DefaultCacheSize;
// ttl <= 0 disables time-based expiry.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheSize
	}
	return &Cache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get implements CacheReader.
func (c *Cache) Get(key Key) (*core.Solution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key.String()]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		c.order.Remove(el)
		delete(c.entries, entry.key)
		return nil, false
	}
	c.order.MoveToFront(el)
	return entry.solution, true
}

// Add implements CacheWriter.
func (c *Cache) Add(key Key, sol *core.Solution) *core.Solution {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key.String()
	if el, ok := c.entries[k]; ok {
		// First writer wins; entries are never mutated.
		c.order.MoveToFront(el)
		return el.Value.(*cacheEntry).solution
	}
	el := c.order.PushFront(&cacheEntry{key: k, solution: sol, storedAt: c.now()})
	c.entries[k] = el
	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	return sol
}

// Len implements CacheReader.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
