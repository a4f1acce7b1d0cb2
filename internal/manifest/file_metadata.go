// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package manifest implements the Version/VersionSet/VersionEdit triple
// described in spec §4.8: per-column-family immutable Versions (one file
// list per level), VersionEdits describing deltas, and a VersionSet that
// owns sequence/file-number allocation and MANIFEST journaling.
package manifest

import "github.com/ekvdb/ekv/internal/base"

// NumLevels is the number of levels in the LSM tree, L0 through L6.
const NumLevels = 7

// FileMetadata describes one immutable SST file (spec §4.4/§4.8).
type FileMetadata struct {
	FileNum      uint64
	Size         uint64
	Smallest     base.InternalKey
	Largest      base.InternalKey
	AllowedSeeks int64
}

// Overlaps reports whether [smallest, largest] (user keys) intersects the
// file's key range.
func (m *FileMetadata) Overlaps(cmp func(a, b []byte) int, smallest, largest []byte) bool {
	if smallest != nil && cmp(m.Largest.UserKey, smallest) < 0 {
		return false
	}
	if largest != nil && cmp(m.Smallest.UserKey, largest) > 0 {
		return false
	}
	return true
}
