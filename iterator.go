// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package ekv

import (
	"github.com/ekvdb/ekv/internal/base"
	"github.com/ekvdb/ekv/sstable"
)

// snapshotIterator wraps a MergingIter over every memtable and SST iterator
// for a CF and applies MVCC visibility plus tombstone suppression (spec
// §4.9's SnapshotIterator): entries with sequence > the snapshot are
// skipped; for each user key, the first visible entry wins — a Put emits
// (key, value) then skips the rest of that user key's versions, a Delete
// skips the whole user key.
type snapshotIterator struct {
	cmp      func(a, b []byte) int
	merged   *sstable.MergingIter
	snapSeq  uint64
	valid    bool
	userKey  []byte
	value    []byte
}

func newSnapshotIterator(cmp func(a, b []byte) int, children []sstable.InternalIterator, snapSeq uint64) *snapshotIterator {
	return &snapshotIterator{
		cmp:     cmp,
		merged:  sstable.NewMergingIter(func(a, b []byte) int { return base.EncodedCompare(cmp, a, b) }, children),
		snapSeq: snapSeq,
	}
}

// settle advances the underlying merged iterator (if advance is true, calls
// Next first) until it lands on a visible, non-tombstone entry or is
// exhausted.
func (it *snapshotIterator) settle(advance bool) bool {
	ok := it.merged.Valid()
	if advance {
		ok = it.merged.Next()
	}
	for ok {
		ik := base.DecodeInternalKey(it.merged.Key())
		if !ik.Valid() {
			ok = it.merged.Next()
			continue
		}
		if ik.SeqNum() > it.snapSeq {
			ok = it.merged.Next()
			continue
		}
		// First visible entry for this user key: decide Put vs Delete, then
		// skip every remaining entry sharing the same user key regardless
		// of outcome.
		userKey := append([]byte(nil), ik.UserKey...)
		isPut := ik.Kind() == base.InternalKeyKindSet
		var value []byte
		if isPut {
			value = append([]byte(nil), it.merged.Value()...)
		}
		for ok {
			ok = it.merged.Next()
			if !ok {
				break
			}
			next := base.DecodeInternalKey(it.merged.Key())
			if it.cmp(next.UserKey, userKey) != 0 {
				break
			}
		}
		if isPut {
			it.userKey, it.value, it.valid = userKey, value, true
			return true
		}
		// Delete: this user key is absent; continue scanning for the next.
	}
	it.valid = false
	return false
}

func (it *snapshotIterator) First() bool {
	it.merged.First()
	return it.settle(false)
}

func (it *snapshotIterator) SeekGE(userKey []byte) bool {
	target := base.MakeInternalKey(userKey, it.snapSeq, base.InternalKeyKindMax).EncodeToBytes()
	it.merged.SeekGE(target)
	return it.settle(false)
}

func (it *snapshotIterator) Next() bool { return it.settle(true) }
func (it *snapshotIterator) Valid() bool { return it.valid }
func (it *snapshotIterator) Key() []byte { return it.userKey }
func (it *snapshotIterator) Value() []byte { return it.value }
func (it *snapshotIterator) Close() error { return it.merged.Close() }

// Iterator is the DB-facing, user-key-level cursor (SUPPLEMENTED FEATURES,
// grounded on original_source/db_iterator.rs): it hides the internal-key
// machinery and exposes SeekGE/First/Next/Valid/Key/Value/Close.
type Iterator struct {
	inner *snapshotIterator
}

// SeekGE repositions the iterator at the first key >= target.
func (it *Iterator) SeekGE(target []byte) bool { return it.inner.SeekGE(target) }

// First repositions the iterator at the smallest key.
func (it *Iterator) First() bool { return it.inner.First() }

// Next advances the iterator.
func (it *Iterator) Next() bool { return it.inner.Next() }

// Valid reports whether the iterator is positioned at an entry.
func (it *Iterator) Valid() bool { return it.inner.Valid() }

// Key returns the current user key. Valid only while Valid().
func (it *Iterator) Key() []byte { return it.inner.Key() }

// Value returns the current value. Valid only while Valid().
func (it *Iterator) Value() []byte { return it.inner.Value() }

// Close releases resources (cache handles pinned by open SST blocks) held
// by the iterator.
func (it *Iterator) Close() error { return it.inner.Close() }
