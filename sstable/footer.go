// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"github.com/ekvdb/ekv/internal/base"
)

// FooterSize is the fixed on-disk footer size: varint-encoded metaindex and
// index BlockHandles, zero-padded to 40 bytes, followed by an 8-byte magic.
const FooterSize = 48

var magicNumber = [8]byte{0xf0, 0x9f, 0xaa, 0xb3, 0x70, 0x65, 0x62, 0x31} // "pebble 1"-ish, ekv's own magic

type footer struct {
	metaindex BlockHandle
	index     BlockHandle
}

func (f footer) encode() []byte {
	buf := make([]byte, 0, FooterSize-8)
	buf = f.metaindex.EncodeTo(buf)
	buf = f.index.EncodeTo(buf)
	out := make([]byte, FooterSize)
	copy(out, buf)
	copy(out[FooterSize-8:], magicNumber[:])
	return out
}

func decodeFooter(buf []byte) (footer, error) {
	if len(buf) != FooterSize {
		return footer{}, base.CorruptionErrorf("sstable: invalid footer length")
	}
	if !bytesEqual(buf[FooterSize-8:], magicNumber[:]) {
		return footer{}, base.CorruptionErrorf("sstable: invalid footer magic")
	}
	metaindex, n1 := DecodeBlockHandle(buf)
	if n1 == 0 {
		return footer{}, base.CorruptionErrorf("sstable: invalid metaindex handle")
	}
	index, n2 := DecodeBlockHandle(buf[n1:])
	if n2 == 0 {
		return footer{}, base.CorruptionErrorf("sstable: invalid index handle")
	}
	return footer{metaindex: metaindex, index: index}, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// blockTrailerSize is the on-disk trailer following every block: 1 byte
// compression type, 4 bytes masked CRC32C over (raw block || type byte).
const blockTrailerSize = 1 + 4

// compressionType identifies the codec used for one block's on-disk bytes,
// independent of the engine-wide Compression option so a table written
// under one setting remains readable if defaults change later.
type compressionType byte

const (
	noCompression     compressionType = 0
	snappyCompression compressionType = 1
	zstdCompression   compressionType = 2
)
