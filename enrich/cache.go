/*
 * Copyright 2023 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package enrich

import (
	"container/list"
	"sync"
	"time"
)

// lookupCache is a bounded, TTL-aware, threadsafe LRU cache for per-
// enrichment lookup results (spec §4.5: "cache is on, consult the per-
// enrichment cache first... eviction is LRU, TTL = cacheTtlSeconds").
type lookupCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*list.Element
	order    *list.List
	now      func() time.Time
}

type cacheItem struct {
	key     string
	value   map[string]any
	found   bool
	expires time.Time
}

func newLookupCache(capacity int, ttl time.Duration) *lookupCache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &lookupCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

func (c *lookupCache) get(key string) (map[string]any, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil, false, false
	}
	item := el.Value.(*cacheItem)
	if c.ttl > 0 && c.now().After(item.expires) {
		c.order.Remove(el)
		delete(c.entries, key)
		return nil, false, false
	}
	c.order.MoveToFront(el)
	return item.value, item.found, true
}

func (c *lookupCache) put(key string, value map[string]any, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	expires := c.now().Add(c.ttl)
	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheItem).value = value
		el.Value.(*cacheItem).found = found
		el.Value.(*cacheItem).expires = expires
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&cacheItem{key: key, value: value, found: found, expires: expires})
	c.entries[key] = el
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheItem).key)
	}
}
