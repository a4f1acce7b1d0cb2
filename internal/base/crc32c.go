// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "hash/crc32"

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC is a CRC32C (Castagnoli) checksum, matching the WAL/SST on-disk
// format's mask convention (LevelDB/RocksDB/Pebble all mask the raw CRC
// before storing it, so a stored value of zero never collides with "no
// checksum present").
type CRC uint32

// NewCRC computes the CRC32C of b.
func NewCRC(b []byte) CRC { return CRC(crc32.Checksum(b, crc32cTable)) }

// Update extends the checksum with additional bytes.
func (c CRC) Update(b []byte) CRC {
	return CRC(crc32.Update(uint32(c), crc32cTable, b))
}

// Value returns the unmasked checksum.
func (c CRC) Value() uint32 { return uint32(c) }

// Mask returns a masked checksum, as stored on disk. The masking (rotate
// plus constant offset) avoids the checksum of a block of zeros being
// zero, which historically confused some on-disk formats' "is this slot
// populated" checks.
func (c CRC) Mask() uint32 {
	v := uint32(c)
	return ((v >> 15) | (v << 17)) + 0xa282ead8
}

// Unmask reverses Mask.
func Unmask(masked uint32) CRC {
	v := masked - 0xa282ead8
	return CRC((v >> 17) | (v << 15))
}
