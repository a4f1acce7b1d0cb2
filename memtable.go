// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package ekv

import (
	"sync/atomic"

	"github.com/ekvdb/ekv/internal/arenaskl"
	"github.com/ekvdb/ekv/internal/base"
)

// lookupResult distinguishes "found a live value", "found a tombstone", and
// "absent" — callers must tell a deleted key apart from one the table never
// saw at all (spec §9, memtable get semantics).
type lookupResult int

const (
	lookupAbsent lookupResult = iota
	lookupValue
	lookupTombstone
)

// memTable is a column-family-bound ordered container over an arena-backed
// skiplist (spec §4.2). It is created active; mark_immutable is a one-way
// transition after which it is observed only.
type memTable struct {
	cfID       uint32
	cmp        func(a, b []byte) int
	arena      *arenaskl.Arena
	skl        *arenaskl.Skiplist
	frontier   uint64 // lowest sequence this table can ever contain
	immutable  atomic.Bool
	approxSize atomic.Uint32
}

func newMemTable(cfID uint32, cmp func(a, b []byte) int, frontier uint64, arenaSize uint32) *memTable {
	arena := arenaskl.NewArena(arenaSize)
	return &memTable{
		cfID:     cfID,
		cmp:      cmp,
		arena:    arena,
		skl:      arenaskl.NewSkiplist(arena, cmp),
		frontier: frontier,
	}
}

// add inserts one internal-key/value pair. Forbidden once immutable.
func (m *memTable) add(seq uint64, userKey []byte, value []byte, kind base.InternalKeyKind) error {
	if m.immutable.Load() {
		panic("ekv: add on immutable memtable")
	}
	key := base.MakeInternalKey(userKey, seq, kind)
	if err := m.skl.Add(key, value); err != nil {
		return err
	}
	m.approxSize.Store(m.skl.Size())
	return nil
}

// get returns the newest entry for userKey visible at snapshotSeq. If the
// table's frontier exceeds snapshotSeq, the read short-circuits to absent:
// the table was created after the snapshot and cannot hold anything it
// could see.
func (m *memTable) get(snapshotSeq uint64, userKey []byte) ([]byte, lookupResult) {
	if m.frontier > snapshotSeq {
		return nil, lookupAbsent
	}
	it := m.skl.NewIter()
	search := base.MakeInternalKey(userKey, snapshotSeq, base.InternalKeyKindMax)
	if !it.SeekGE(search) {
		return nil, lookupAbsent
	}
	if m.cmp(it.Key().UserKey, userKey) != 0 {
		return nil, lookupAbsent
	}
	if it.Key().Kind() == base.InternalKeyKindDelete {
		return nil, lookupTombstone
	}
	return it.Value(), lookupValue
}

func (m *memTable) markImmutable() { m.immutable.Store(true) }

func (m *memTable) size() uint32 { return m.approxSize.Load() }

// newIter returns an InternalIterator (as defined by the sstable package)
// over every entry in the table, in internal-key order, so memtables can be
// merged alongside SST iterators by sstable.MergingIter.
func (m *memTable) newIter() *memTableIterator {
	return &memTableIterator{it: m.skl.NewIter()}
}

// memTableIterator adapts arenaskl.Iterator (which keys on decoded
// base.InternalKey) to the encoded-[]byte-keyed InternalIterator interface
// the sstable package's merging/two-level iterators use.
type memTableIterator struct {
	it *arenaskl.Iterator
}

func (it *memTableIterator) SeekGE(key []byte) bool {
	return it.it.SeekGE(base.DecodeInternalKey(key))
}
func (it *memTableIterator) First() bool      { return it.it.First() }
func (it *memTableIterator) Next() bool       { return it.it.Next() }
func (it *memTableIterator) Valid() bool      { return it.it.Valid() }
func (it *memTableIterator) Key() []byte      { return it.it.Key().EncodeToBytes() }
func (it *memTableIterator) Value() []byte    { return it.it.Value() }
func (it *memTableIterator) Close() error     { return nil }
