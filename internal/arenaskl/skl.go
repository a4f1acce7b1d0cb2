// Copyright 2017 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package arenaskl

import (
	"math/rand"
	"sync/atomic"

	"github.com/ekvdb/ekv/internal/base"
)

const (
	maxHeight  = 12
	pBranching = 4 // 1/4 probability of growing the tower at each level
)

// node is heap-allocated (not arena-allocated): only the key/value bytes it
// references live in the Arena. Its tower of next pointers is updated with
// atomic.Pointer so that concurrent readers observing a node via Load never
// tear a partially-constructed link, while a single writer mutates via
// Store after the node is fully built.
type node struct {
	key   base.InternalKey
	value []byte
	next  [maxHeight]atomic.Pointer[node]
	height int
}

// Skiplist is the ordered container backing a memtable. A single writer may
// call Add; any number of readers may concurrently call NewIter and read
// through it without locking.
type Skiplist struct {
	arena  *Arena
	cmp    func(a, b []byte) int
	head   *node
	height atomic.Int32 // 1-based current max tower height in use
	rnd    rand.Source
	size   atomic.Uint32
}

// NewSkiplist creates an empty skiplist over the given arena using cmp to
// order user keys.
func NewSkiplist(arena *Arena, cmp func(a, b []byte) int) *Skiplist {
	s := &Skiplist{
		arena: arena,
		cmp:   cmp,
		head:  &node{height: maxHeight},
		rnd:   rand.NewSource(int64(uintptrSeed(arena))),
	}
	s.height.Store(1)
	return s
}

// uintptrSeed derives a seed from the arena's capacity mixed with a fixed
// constant, so each skiplist owns its own rand.Source instead of sharing
// math/rand's global lock. Arenas of equal capacity yield the same seed.
func uintptrSeed(a *Arena) uintptr {
	return uintptr(len(a.buf)) ^ 0x9e3779b97f4a7c15
}

func (s *Skiplist) randomHeight() int {
	h := 1
	for h < maxHeight && (s.rnd.Int63()%pBranching) == 0 {
		h++
	}
	return h
}

// Size returns the approximate number of bytes consumed in the backing
// arena, used by the memtable to decide when it has exceeded its
// write-buffer threshold.
func (s *Skiplist) Size() uint32 { return s.arena.Size() }

// entrySize estimates the footprint of an entry including node/link
// overhead; Add accumulates it in s.size.
func entrySize(key base.InternalKey, value []byte) uint32 {
	return uint32(len(key.UserKey) + len(value) + 48) // + node/link overhead
}

// Add inserts a new internal key/value pair. Internal keys inserted with
// distinct sequence numbers may share a user key; Add never overwrites an
// existing internal key; it is the caller's responsibility (the memtable)
// to only ever pass strictly fresh sequence numbers. Add is not safe for
// concurrent use with itself — the memtable set serializes all writers.
func (s *Skiplist) Add(key base.InternalKey, value []byte) error {
	kOff, err := s.arena.putBytes(key.UserKey)
	if err != nil {
		return err
	}
	vOff, err := s.arena.putBytes(value)
	if err != nil {
		return err
	}
	// Reserve arena space for link/metadata overhead so Size() reflects an
	// approximate but monotonically accurate accounting even though the
	// node itself lives on the Go heap.
	if _, err := s.arena.alloc(40, 8); err != nil {
		return err
	}

	if len(key.UserKey) > 0 {
		key.UserKey = s.arena.getBytes(kOff, uint32(len(key.UserKey)))
	}
	if len(value) > 0 {
		value = s.arena.getBytes(vOff, uint32(len(value)))
	}
	height := s.randomHeight()
	n := &node{key: key, value: value, height: height}

	if int(s.height.Load()) < height {
		s.height.Store(int32(height))
	}

	prev := [maxHeight]*node{}
	s.findSpliceForLevel(key, height, &prev)
	for i := 0; i < height; i++ {
		n.next[i].Store(prev[i].next[i].Load())
		prev[i].next[i].Store(n)
	}
	s.size.Add(entrySize(key, value))
	return nil
}

// findSpliceForLevel walks down from the top of the tower, filling prev[i]
// with the last node at level i whose key is less than key (per
// base.Compare using s.cmp as the user-key comparator).
func (s *Skiplist) findSpliceForLevel(key base.InternalKey, height int, prev *[maxHeight]*node) {
	x := s.head
	for level := maxHeight - 1; level >= 0; level-- {
		for {
			next := x.next[level].Load()
			if next == nil || base.Compare(s.cmp, next.key, key) >= 0 {
				break
			}
			x = next
		}
		if level < height {
			prev[level] = x
		}
	}
}

// Iterator walks the skiplist in internal-key order.
type Iterator struct {
	list *Skiplist
	n    *node
}

// NewIter returns an unpositioned iterator over the skiplist.
func (s *Skiplist) NewIter() *Iterator { return &Iterator{list: s} }

// SeekGE positions the iterator at the first entry whose internal key is >=
// key, returning whether such an entry exists.
func (it *Iterator) SeekGE(key base.InternalKey) bool {
	x := it.list.head
	for level := maxHeight - 1; level >= 0; level-- {
		for {
			next := x.next[level].Load()
			if next == nil || base.Compare(it.list.cmp, next.key, key) >= 0 {
				break
			}
			x = next
		}
	}
	it.n = x.next[0].Load()
	return it.n != nil
}

// First positions the iterator at the smallest entry.
func (it *Iterator) First() bool {
	it.n = it.list.head.next[0].Load()
	return it.n != nil
}

// Next advances the iterator, returning whether it is still valid.
func (it *Iterator) Next() bool {
	if it.n == nil {
		return false
	}
	it.n = it.n.next[0].Load()
	return it.n != nil
}

// Valid reports whether the iterator is positioned at an entry.
func (it *Iterator) Valid() bool { return it.n != nil }

// Key returns the current entry's internal key. Only valid while Valid().
func (it *Iterator) Key() base.InternalKey { return it.n.key }

// Value returns the current entry's value. Only valid while Valid().
func (it *Iterator) Value() []byte { return it.n.value }
