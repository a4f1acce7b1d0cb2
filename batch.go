// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package ekv

import (
	"github.com/ekvdb/ekv/internal/base"
	"github.com/ekvdb/ekv/record"
)

// Batch is an ordered sequence of (kind, cf, key, [value]) entries applied
// atomically at a single base sequence number (spec §3's WriteBatch).
type Batch struct {
	entries []record.Entry
	cfs     map[uint32]struct{}
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{cfs: make(map[uint32]struct{})}
}

// Set stages a Put of key=value in column family cf.
func (b *Batch) Set(cf uint32, key, value []byte) {
	b.entries = append(b.entries, record.Entry{Kind: base.InternalKeyKindSet, CF: cf, Key: key, Value: value})
	b.cfs[cf] = struct{}{}
}

// Delete stages a tombstone for key in column family cf.
func (b *Batch) Delete(cf uint32, key []byte) {
	b.entries = append(b.entries, record.Entry{Kind: base.InternalKeyKindDelete, CF: cf, Key: key})
	b.cfs[cf] = struct{}{}
}

// Len returns the number of staged entries.
func (b *Batch) Len() int { return len(b.entries) }

// Empty reports whether the batch has no staged entries.
func (b *Batch) Empty() bool { return len(b.entries) == 0 }
