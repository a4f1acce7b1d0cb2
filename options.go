// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package ekv implements an embedded, single-process, ordered key/value
// storage engine on the LSM-tree discipline: a write-ahead log, an
// MVCC-aware memtable set, sorted-run (SST) files merged by background
// compaction, and a multi-level Version/VersionSet journaled through a
// MANIFEST.
package ekv

import (
	"github.com/ekvdb/ekv/internal/base"
)

const (
	// SystemCF is the reserved column family the engine itself may use for
	// bookkeeping; it exists from first open alongside DefaultCF.
	SystemCF uint32 = 0
	// DefaultCF is the column family callers use unless they created others.
	DefaultCF uint32 = 1
)

// Options configures a DB at Open. The zero value is valid; EnsureDefaults
// fills every unset field, mirroring the teacher's own db.Options shape.
type Options struct {
	// Comparer defines user-key ordering. Only one Comparer may ever be used
	// across the lifetime of a given on-disk database.
	Comparer *base.Comparer

	// WriteBufferSize is the per-CF memtable byte threshold that triggers a
	// freeze-and-flush.
	WriteBufferSize int
	// MaxWriteBufferNumber bounds the immutable memtable queue; while a
	// CF's queue holds this many tables, writes touching that CF return
	// ErrBusy instead of waiting for a flush.
	MaxWriteBufferNumber int

	// EnableWAL controls whether put/write wait for the WAL fsync before
	// returning. When false, writes still reach the WAL but a crash may lose
	// the unsynced tail.
	EnableWAL bool

	// BlockCacheCapacity and BlockCacheShards size the shared LRU block
	// cache; shard count is rounded to a power of two.
	BlockCacheCapacity int64
	BlockCacheShards   int

	// L0CompactionTrigger is the level-0 file count that schedules an
	// automatic compaction.
	L0CompactionTrigger int
	// MaxBackgroundCompactions and MaxBackgroundFlushes bound the
	// background worker's concurrent fan-out.
	MaxBackgroundCompactions int
	MaxBackgroundFlushes    int

	// Compression selects the SST block codec.
	Compression base.Compression
	// MaxOpenFiles is not enforced: the table cache is an uncapped map that
	// keeps every opened SST open until it is evicted or the DB closes.
	MaxOpenFiles int
	// FilterPolicy, if set, causes the SST builder to emit a filter block
	// and the reader to consult it.
	FilterPolicy base.FilterPolicy

	// Logger receives background-worker retry diagnostics; corruption found
	// during recovery is returned as an error, not logged.
	Logger base.Logger

	// CreateIfMissing bootstraps a fresh DB when CURRENT is absent.
	CreateIfMissing bool
}

// EnsureDefaults returns a copy of opts with every zero field filled in.
func (o *Options) EnsureDefaults() *Options {
	out := *o
	if out.Comparer == nil {
		out.Comparer = base.DefaultComparer
	}
	if out.WriteBufferSize == 0 {
		out.WriteBufferSize = 4 << 20
	}
	if out.MaxWriteBufferNumber == 0 {
		out.MaxWriteBufferNumber = 2
	}
	if out.BlockCacheCapacity == 0 {
		out.BlockCacheCapacity = 8 << 20
	}
	if out.BlockCacheShards == 0 {
		out.BlockCacheShards = 16
	}
	if out.L0CompactionTrigger == 0 {
		out.L0CompactionTrigger = 4
	}
	if out.MaxBackgroundCompactions == 0 {
		out.MaxBackgroundCompactions = 1
	}
	if out.MaxBackgroundFlushes == 0 {
		out.MaxBackgroundFlushes = 1
	}
	if out.MaxOpenFiles == 0 {
		out.MaxOpenFiles = 1000
	}
	if out.Logger == nil {
		out.Logger = base.DefaultLogger
	}
	return &out
}
