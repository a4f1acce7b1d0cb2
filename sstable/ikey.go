// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import "github.com/ekvdb/ekv/internal/base"

// ikeyCompare returns a byte-slice comparator over *encoded* internal keys
// (user_key || 8-byte trailer) that matches base.Compare's semantics: user
// key ascending, then sequence descending, then kind descending. Block and
// index entries inside an SST are always encoded internal keys, so a plain
// bytes.Compare would get the trailer ordering backwards (it's a
// little-endian uint64, not something byte-comparable); every block
// iterator in this package must be constructed with this comparator
// instead of the bare user-key one.
func ikeyCompare(userCmp func(a, b []byte) int) func(a, b []byte) int {
	return func(a, b []byte) int {
		return base.EncodedCompare(userCmp, a, b)
	}
}
