// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Coding primitives shared by the WAL, SST, and MANIFEST formats: fixed
// little-endian integers, varint32/64, length-prefixed byte strings, and a
// masked CRC32C checksum. Kept free of allocation on the hot path.

// PutFixed32 encodes v as a 4-byte little-endian integer.
func PutFixed32(buf []byte, v uint32) { binary.LittleEndian.PutUint32(buf, v) }

// DecodeFixed32 decodes a 4-byte little-endian integer.
func DecodeFixed32(buf []byte) uint32 { return binary.LittleEndian.Uint32(buf) }

// PutFixed64 encodes v as an 8-byte little-endian integer.
func PutFixed64(buf []byte, v uint64) { binary.LittleEndian.PutUint64(buf, v) }

// DecodeFixed64 decodes an 8-byte little-endian integer.
func DecodeFixed64(buf []byte) uint64 { return binary.LittleEndian.Uint64(buf) }

// MaxVarintLen32/64 bound the encoded size of a varint.
const (
	MaxVarintLen32 = 5
	MaxVarintLen64 = 10
)

// PutUvarint32 appends a varint32 encoding of v to dst and returns the
// extended slice.
func PutUvarint32(dst []byte, v uint32) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// PutUvarint64 appends a varint64 encoding of v to dst and returns the
// extended slice.
func PutUvarint64(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// DecodeUvarint32 decodes a varint32 from the front of buf, returning the
// value and the number of bytes consumed (0 on error).
func DecodeUvarint32(buf []byte) (uint32, int) {
	v, n := DecodeUvarint64(buf)
	return uint32(v), n
}

// DecodeUvarint64 decodes a varint64 from the front of buf, returning the
// value and the number of bytes consumed (0 on error).
func DecodeUvarint64(buf []byte) (uint64, int) {
	var x uint64
	var s uint
	for i, b := range buf {
		if i == MaxVarintLen64 {
			return 0, 0
		}
		if b < 0x80 {
			if i == MaxVarintLen64-1 && b > 1 {
				return 0, 0
			}
			return x | uint64(b)<<s, i + 1
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	return 0, 0
}

// PutLengthPrefixedBytes appends a varint32 length followed by the bytes
// themselves.
func PutLengthPrefixedBytes(dst []byte, b []byte) []byte {
	dst = PutUvarint32(dst, uint32(len(b)))
	return append(dst, b...)
}

// DecodeLengthPrefixedBytes decodes a length-prefixed byte string from the
// front of buf, returning the bytes (sharing buf's backing array) and the
// number of bytes consumed, or (nil, 0) on error.
func DecodeLengthPrefixedBytes(buf []byte) ([]byte, int) {
	n, k := DecodeUvarint32(buf)
	if k == 0 || k+int(n) > len(buf) {
		return nil, 0
	}
	return buf[k : k+int(n)], k + int(n)
}

// Hash64 is the engine's 64-bit non-cryptographic hash, used for block-cache
// shard routing. The bloom filter hashes keys with its own library.
func Hash64(b []byte) uint64 { return xxhash.Sum64(b) }

// crc32cTable and the Castagnoli polynomial are provided by crc32c.go.
