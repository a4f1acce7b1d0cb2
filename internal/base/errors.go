// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/errors"

// Sentinel errors returned by the public API. Callers compare against these
// with errors.Is; internal code wraps the underlying cause with
// github.com/cockroachdb/errors so the sentinel survives wrapping.
var (
	// ErrNotFound is returned by Get when the key does not exist at the
	// requested snapshot, including when the newest visible entry is a
	// tombstone.
	ErrNotFound = errors.New("ekv: not found")
	// ErrClosed is returned by any operation invoked after DB.Close.
	ErrClosed = errors.New("ekv: closed")
	// ErrArenaFull is returned by the memtable arena allocator when a
	// memtable has no room left for an entry; callers must freeze and
	// retry against a fresh memtable.
	ErrArenaFull = errors.New("ekv: arena full")
	// ErrBusy is returned when the immutable memtable queue is over its
	// configured cap and a caller has chosen not to block.
	ErrBusy = errors.New("ekv: busy, retry after flush")
	// ErrInvalidArgument covers caller errors such as non-increasing keys
	// passed to the SST builder or an unknown column family.
	ErrInvalidArgument = errors.New("ekv: invalid argument")
	// ErrCorruption covers framing, checksum, magic, or structural
	// validation failures in on-disk state.
	ErrCorruption = errors.New("ekv: corruption")
)

// CorruptionErrorf builds an ErrCorruption-flavored error with a formatted
// message, preserving errors.Is(err, ErrCorruption).
func CorruptionErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrCorruption)
}

// InvalidArgumentErrorf builds an ErrInvalidArgument-flavored error.
func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidArgument)
}
