// Copyright 2017 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package arenaskl implements the memtable container described in spec
// §4.2: an arena-backed, lock-free-read probabilistic skiplist keyed by
// InternalKey. Key and value bytes are copied into a fixed-size arena and
// never individually freed; the nodes themselves are Go heap objects. The
// whole arena is dropped at once when its owning memtable is flushed and
// discarded.
package arenaskl

import (
	"sync/atomic"

	"github.com/ekvdb/ekv/internal/base"
)

// Arena is a bump allocator. Allocation is lock-free via a single atomic
// offset counter; it never reclaims individual allocations.
type Arena struct {
	buf    []byte
	offset uint32
}

// NewArena allocates an arena of the given capacity. Capacity is a hard
// limit: a request that would overflow it fails with base.ErrArenaFull
// rather than growing, so callers can freeze the memtable and retry against
// a fresh one.
func NewArena(capacity uint32) *Arena {
	// Offset 0 is never handed out by alloc, so it can stand for "no bytes"
	// (putBytes returns it for an empty slice); waste the first byte.
	return &Arena{buf: make([]byte, capacity), offset: 1}
}

// Size returns the number of bytes allocated so far.
func (a *Arena) Size() uint32 { return atomic.LoadUint32(&a.offset) }

// Capacity returns the arena's total capacity.
func (a *Arena) Capacity() uint32 { return uint32(len(a.buf)) }

// alloc reserves size bytes aligned to align (a power of two) and returns
// the offset of the reserved region, or (0, ErrArenaFull).
func (a *Arena) alloc(size, align uint32) (uint32, error) {
	// Pad for alignment; align-1 must be a valid mask (align is a power of
	// two in every caller below).
	padded := size + align - 1
	offset := atomic.AddUint32(&a.offset, padded)
	if int(offset) > len(a.buf) {
		return 0, base.ErrArenaFull
	}
	start := (offset - padded + align - 1) &^ (align - 1)
	return start, nil
}

func (a *Arena) getBytes(offset uint32, size uint32) []byte {
	if size == 0 {
		return nil
	}
	return a.buf[offset : offset+size : offset+size]
}

// putBytes copies b into the arena and returns its offset.
func (a *Arena) putBytes(b []byte) (uint32, error) {
	if len(b) == 0 {
		return 0, nil
	}
	offset, err := a.alloc(uint32(len(b)), 1)
	if err != nil {
		return 0, err
	}
	copy(a.buf[offset:], b)
	return offset, nil
}
