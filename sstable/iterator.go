// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"github.com/ekvdb/ekv/internal/cache"
)

// InternalIterator is the capability set shared by every iterator in the
// engine (spec §4.9): block iterators, the two-level SST iterator, the
// k-way merging iterator, and the memtable iterator all implement it.
type InternalIterator interface {
	SeekGE(key []byte) bool
	First() bool
	Next() bool
	Valid() bool
	Key() []byte
	Value() []byte
	Close() error
}

// cachedBlockIter adapts a blockIter to InternalIterator, holding the
// cache.Handle that pins the decoded block in memory for as long as the
// iterator is positioned on it.
type cachedBlockIter struct {
	*blockIter
	handle cache.Handle
}

func (it *cachedBlockIter) Close() error {
	it.handle.Release()
	return nil
}

// twoLevelIterator implements spec §4.9's TwoLevelIter: an outer iterator
// over index entries (separator key -> BlockHandle) and, for whichever
// index entry is current, an inner iterator over that data block. Seeking
// the outer iterator always repositions (or clears) the inner one.
type twoLevelIterator struct {
	r     *Reader
	index *blockIter
	data  *cachedBlockIter
	err   error
}

func (r *Reader) newTwoLevelIterator() *twoLevelIterator {
	return &twoLevelIterator{r: r, index: r.indexBlock.newIter(ikeyCompare(r.cmp))}
}

func (it *twoLevelIterator) loadData() bool {
	if it.data != nil {
		it.data.Close()
		it.data = nil
	}
	if !it.index.Valid() {
		return false
	}
	handle, _ := DecodeBlockHandle(it.index.Value())
	di, err := it.r.readDataBlock(handle)
	if err != nil {
		it.err = err
		return false
	}
	it.data = di
	return true
}

// First positions at the first entry of the first non-empty data block.
func (it *twoLevelIterator) First() bool {
	if !it.index.First() {
		return false
	}
	for {
		if !it.loadData() {
			return false
		}
		if it.data.First() {
			return true
		}
		if !it.index.Next() {
			return false
		}
	}
}

// SeekGE positions at the first entry whose (encoded internal) key is >=
// target.
func (it *twoLevelIterator) SeekGE(target []byte) bool {
	if !it.index.SeekGE(target) {
		return false
	}
	for {
		if !it.loadData() {
			return false
		}
		if it.data.SeekGE(target) {
			return true
		}
		if !it.index.Next() {
			return false
		}
	}
}

// Next advances within the current data block, rolling over to the next
// non-empty block as needed.
func (it *twoLevelIterator) Next() bool {
	if it.data == nil {
		return false
	}
	if it.data.Next() {
		return true
	}
	for it.index.Next() {
		if !it.loadData() {
			return false
		}
		if it.data.First() {
			return true
		}
	}
	return false
}

func (it *twoLevelIterator) Valid() bool { return it.data != nil && it.data.Valid() }
func (it *twoLevelIterator) Key() []byte { return it.data.Key() }
func (it *twoLevelIterator) Value() []byte { return it.data.Value() }
func (it *twoLevelIterator) Close() error {
	if it.data != nil {
		it.data.Close()
		it.data = nil
	}
	return it.err
}

// MergingIter performs a k-way merge over child InternalIterators in
// internal-key order (spec §4.9's MergingIter). Ties do not occur among
// well-formed internal keys since sequence numbers are globally unique,
// but if they did, the first child in the slice wins.
type MergingIter struct {
	cmp      func(a, b []byte) int
	children []InternalIterator
	heap     []int // indices into children that are currently valid
	current  int
}

// NewMergingIter builds a merging iterator over children using cmp (an
// encoded-internal-key comparator, e.g. ikeyCompare(userCmp)).
func NewMergingIter(cmp func(a, b []byte) int, children []InternalIterator) *MergingIter {
	return &MergingIter{cmp: cmp, children: children, current: -1}
}

func (m *MergingIter) rebuildHeap() {
	m.heap = m.heap[:0]
	for i, c := range m.children {
		if c.Valid() {
			m.heap = append(m.heap, i)
		}
	}
}

func (m *MergingIter) selectMin() bool {
	best := -1
	for _, i := range m.heap {
		if !m.children[i].Valid() {
			continue
		}
		if best == -1 || m.cmp(m.children[i].Key(), m.children[best].Key()) < 0 {
			best = i
		}
	}
	m.current = best
	return best != -1
}

// First positions every child at its first entry and selects the smallest.
func (m *MergingIter) First() bool {
	for _, c := range m.children {
		c.First()
	}
	m.rebuildHeap()
	return m.selectMin()
}

// SeekGE seeks every child and selects the smallest entry >= target.
func (m *MergingIter) SeekGE(target []byte) bool {
	for _, c := range m.children {
		c.SeekGE(target)
	}
	m.rebuildHeap()
	return m.selectMin()
}

// Next advances the current-minimum child, then reselects the minimum
// across all children, per spec §4.9.
func (m *MergingIter) Next() bool {
	if m.current < 0 {
		return false
	}
	m.children[m.current].Next()
	return m.selectMin()
}

func (m *MergingIter) Valid() bool { return m.current >= 0 && m.children[m.current].Valid() }
func (m *MergingIter) Key() []byte { return m.children[m.current].Key() }
func (m *MergingIter) Value() []byte { return m.children[m.current].Value() }
func (m *MergingIter) Close() error {
	var first error
	for _, c := range m.children {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
