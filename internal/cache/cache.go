// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package cache implements the sharded LRU block cache described in spec
// §4.6: entries are keyed by (file number, block offset), sharded by a hash
// of the key, and evicted from the tail of each shard's LRU list unless
// externally pinned.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/ekvdb/ekv/internal/base"
)

// Key identifies a cached block.
type Key struct {
	FileNum uint64
	Offset  uint64
}

// Metrics reports cumulative cache statistics. Aliased as CacheMetrics by
// the root package's Metrics type.
type Metrics struct {
	Count  int64
	Size   int64
	Hits   int64
	Misses int64
}

// Handle is an owning, shared reference to a cached value. The value stays
// pinned (ineligible for eviction) for as long as at least one Handle
// referencing it is live; callers must call Release when done.
type Handle struct {
	entry *entry
}

// Value returns the cached bytes. Valid until Release.
func (h Handle) Value() []byte {
	if h.entry == nil {
		return nil
	}
	return h.entry.value
}

// Release drops this handle's pin on the entry.
func (h Handle) Release() {
	if h.entry == nil {
		return
	}
	atomic.AddInt32(&h.entry.refs, -1)
}

type entry struct {
	key    Key
	value  []byte
	refs   int32 // external references; >0 means pinned against eviction
	elem   *list.Element
	charge int64
}

type shard struct {
	mu       sync.Mutex
	capacity int64
	used     int64
	items    map[Key]*entry
	lru      *list.List // MRU at front
	hits     int64
	misses   int64
}

// Cache is the top-level sharded LRU. The number of shards is rounded up to
// a power of two so the shard index can be computed with a mask.
type Cache struct {
	shards []shard
	mask   uint64
}

// New creates a cache with the given total capacity split across shards
// shards (rounded up to the next power of two).
func New(capacity int64, shards int) *Cache {
	if shards <= 0 {
		shards = 1
	}
	n := 1
	for n < shards {
		n <<= 1
	}
	c := &Cache{shards: make([]shard, n), mask: uint64(n - 1)}
	per := capacity / int64(n)
	for i := range c.shards {
		c.shards[i] = shard{
			capacity: per,
			items:    make(map[Key]*entry),
			lru:      list.New(),
		}
	}
	return c
}

func (c *Cache) shardFor(key Key) *shard {
	var kb [16]byte
	base.PutFixed64(kb[:8], key.FileNum)
	base.PutFixed64(kb[8:], key.Offset)
	h := base.Hash64(kb[:])
	return &c.shards[h&c.mask]
}

// Get looks up key, returning a pinned Handle and true on hit.
func (c *Cache) Get(key Key) (Handle, bool) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		s.misses++
		return Handle{}, false
	}
	s.hits++
	s.lru.MoveToFront(e.elem)
	atomic.AddInt32(&e.refs, 1)
	return Handle{entry: e}, true
}

// Insert adds value under key with the given charge (byte cost), returning
// a pinned Handle for the caller's immediate use. If key is already
// present, its value and charge are updated in place.
func (c *Cache) Insert(key Key, value []byte, charge int64) Handle {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.items[key]; ok {
		s.used += charge - e.charge
		e.value, e.charge = value, charge
		s.lru.MoveToFront(e.elem)
		atomic.AddInt32(&e.refs, 1)
		c.evictLocked(s)
		return Handle{entry: e}
	}

	e := &entry{key: key, value: value, charge: charge, refs: 1}
	e.elem = s.lru.PushFront(e)
	s.items[key] = e
	s.used += charge
	c.evictLocked(s)
	return Handle{entry: e}
}

// Erase removes key from the cache, if present.
func (c *Cache) Erase(key Key) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		return
	}
	s.lru.Remove(e.elem)
	delete(s.items, key)
	s.used -= e.charge
}

// evictLocked evicts from the tail while usage exceeds capacity, skipping
// (and re-splicing to the front) entries that are externally pinned. The
// scan is bounded by the shard's current entry count so pinned-heavy
// workloads cannot spin unboundedly.
func (c *Cache) evictLocked(s *shard) {
	scanned := 0
	for s.used > s.capacity && scanned < s.lru.Len() {
		back := s.lru.Back()
		if back == nil {
			return
		}
		e := back.Value.(*entry)
		if atomic.LoadInt32(&e.refs) > 0 {
			// Pinned: move to front so repeated scans don't keep hammering
			// the same entry (tail starvation), and keep looking.
			s.lru.MoveToFront(back)
			scanned++
			continue
		}
		s.lru.Remove(back)
		delete(s.items, e.key)
		s.used -= e.charge
		scanned++
	}
}

// Metrics returns a snapshot of cumulative cache statistics summed across
// shards.
func (c *Cache) Metrics() Metrics {
	var m Metrics
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		m.Count += int64(len(s.items))
		m.Size += s.used
		m.Hits += s.hits
		m.Misses += s.misses
		s.mu.Unlock()
	}
	return m
}
