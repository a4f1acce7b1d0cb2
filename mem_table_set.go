// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package ekv

import (
	"sync"

	"github.com/ekvdb/ekv/internal/base"
	"github.com/ekvdb/ekv/record"
	"github.com/ekvdb/ekv/sstable"
)

// cfMemTables is one column family's (spec §4.3) active/immutables/flushing
// triple.
type cfMemTables struct {
	active     *memTable
	immutables []*memTable // oldest first
	flushing   map[*memTable]bool
}

// memTableSet owns every column family's memtables and the single lock that
// serializes structural changes (freeze/pick) across them. Reads inside an
// active or immutable memtable proceed lock-free.
type memTableSet struct {
	mu      sync.Mutex
	db      *DB
	cfs     map[uint32]*cfMemTables
	arenaSz uint32
}

func newMemTableSet(db *DB) *memTableSet {
	return &memTableSet{db: db, cfs: make(map[uint32]*cfMemTables), arenaSz: uint32(db.opts.WriteBufferSize)}
}

func (s *memTableSet) ensureCF(cf uint32, frontier uint64) *cfMemTables {
	c, ok := s.cfs[cf]
	if !ok {
		c = &cfMemTables{
			active:   newMemTable(cf, s.db.opts.Comparer.Compare, frontier, s.arenaSz),
			flushing: make(map[*memTable]bool),
		}
		s.cfs[cf] = c
	}
	return c
}

// makeRoomForWrite freezes active memtables that have exceeded the
// write-buffer threshold for every CF the batch touches, enqueueing a flush
// command for each. If a touched CF's immutable queue is already at
// MaxWriteBufferNumber it returns base.ErrBusy at once rather than waiting
// for a flush. Spec §4.3 "room-for-write policy" / §4.12 step 1.
func (s *memTableSet) makeRoomForWrite(cfs map[uint32]struct{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for cf := range cfs {
		c := s.ensureCF(cf, s.db.vs.LastSequence()+1)
		for len(c.immutables) >= s.db.opts.MaxWriteBufferNumber {
			// Backpressure: surfaced as ErrBusy rather than blocking
			// indefinitely, since nothing here can wake us — the caller is
			// expected to retry after the background worker drains a flush.
			return base.ErrBusy
		}
		if c.active.size() >= uint32(s.db.opts.WriteBufferSize) {
			frozen := c.active
			frozen.markImmutable()
			c.immutables = append(c.immutables, frozen)
			c.active = newMemTable(cf, s.db.opts.Comparer.Compare, s.db.vs.LastSequence()+1, s.arenaSz)
			s.db.worker.enqueue(&flushTask{cf: cf, table: frozen})
		}
	}
	return nil
}

// apply writes each entry into its CF's active memtable at sequences
// base_seq, base_seq+1, ... (spec §4.3's apply).
func (s *memTableSet) apply(baseSeq uint64, entries []record.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range entries {
		c := s.ensureCF(e.CF, baseSeq)
		if err := c.active.add(baseSeq+uint64(i), e.Key, e.Value, e.Kind); err != nil {
			return err
		}
	}
	return nil
}

// get consults active then immutables (newest first) then in-flight
// flushing tables, per spec §4.3.
func (s *memTableSet) get(cf uint32, snapshotSeq uint64, userKey []byte) ([]byte, lookupResult) {
	s.mu.Lock()
	c, ok := s.cfs[cf]
	if !ok {
		s.mu.Unlock()
		return nil, lookupAbsent
	}
	tables := make([]*memTable, 0, 2+len(c.immutables))
	tables = append(tables, c.active)
	for i := len(c.immutables) - 1; i >= 0; i-- {
		tables = append(tables, c.immutables[i])
	}
	for t := range c.flushing {
		tables = append(tables, t)
	}
	s.mu.Unlock()

	for _, t := range tables {
		if v, res := t.get(snapshotSeq, userKey); res != lookupAbsent {
			return v, res
		}
	}
	return nil, lookupAbsent
}

// freezeActive force-freezes cf's active memtable (used by flush(cf)),
// returning the frozen table, or nil if it was empty.
func (s *memTableSet) freezeActive(cf uint32) *memTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.ensureCF(cf, s.db.vs.LastSequence()+1)
	if c.active.size() == 0 {
		return nil
	}
	frozen := c.active
	frozen.markImmutable()
	c.immutables = append(c.immutables, frozen)
	c.active = newMemTable(cf, s.db.opts.Comparer.Compare, s.db.vs.LastSequence()+1, s.arenaSz)
	return frozen
}

// markFlushing adds table to the flushing set. The table stays in the
// immutables queue until flushDone removes it from both.
func (s *memTableSet) markFlushing(cf uint32, table *memTable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cfs[cf]
	if !ok {
		return
	}
	c.flushing[table] = true
}

// flushDone removes table from both the immutables queue and the flushing
// set after its SST has been installed.
func (s *memTableSet) flushDone(cf uint32, table *memTable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cfs[cf]
	if !ok {
		return
	}
	delete(c.flushing, table)
	for i, t := range c.immutables {
		if t == table {
			c.immutables = append(c.immutables[:i], c.immutables[i+1:]...)
			break
		}
	}
}

// allIterators returns a fresh InternalIterator over every memtable (active,
// immutable, and in-flight flushing) for a CF, for use by the iterator/get
// stack.
func (s *memTableSet) allIterators(cf uint32) []sstable.InternalIterator {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cfs[cf]
	if !ok {
		return nil
	}
	out := make([]sstable.InternalIterator, 0, 2+len(c.immutables))
	out = append(out, c.active.newIter())
	for i := len(c.immutables) - 1; i >= 0; i-- {
		out = append(out, c.immutables[i].newIter())
	}
	for t := range c.flushing {
		out = append(out, t.newIter())
	}
	return out
}
