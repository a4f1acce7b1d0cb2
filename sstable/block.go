// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package sstable implements the on-disk sorted-run file format described
// in spec §4.4-§4.7: block builder/reader with restart-interval prefix
// compression, a table builder that assembles data/filter/properties/
// metaindex/index blocks and a footer, a reader backed by a shared block
// cache, and a file-number-keyed table cache.
package sstable

import (
	"github.com/ekvdb/ekv/internal/base"
)

// DefaultRestartInterval is the number of entries between restart points
// in a block, matching the teacher's default.
const DefaultRestartInterval = 16

// DefaultBlockSize is the target uncompressed size of a data block before
// the builder rolls over to a new one.
const DefaultBlockSize = 4096

// BlockHandle is an (offset, size) pointer to a block within an SST file.
type BlockHandle struct {
	Offset uint64
	Size   uint64
}

// EncodeTo appends the varint encoding of h to dst.
func (h BlockHandle) EncodeTo(dst []byte) []byte {
	dst = base.PutUvarint64(dst, h.Offset)
	dst = base.PutUvarint64(dst, h.Size)
	return dst
}

// DecodeBlockHandle decodes a BlockHandle from the front of buf, returning
// it and the number of bytes consumed (0 on error).
func DecodeBlockHandle(buf []byte) (BlockHandle, int) {
	offset, n1 := base.DecodeUvarint64(buf)
	if n1 == 0 {
		return BlockHandle{}, 0
	}
	size, n2 := base.DecodeUvarint64(buf[n1:])
	if n2 == 0 {
		return BlockHandle{}, 0
	}
	return BlockHandle{Offset: offset, Size: size}, n1 + n2
}

// blockWriter builds one block (data, index, or metaindex) using
// restart-interval prefix compression: every restartInterval entries, the
// shared-prefix length resets to zero and the block offset is recorded as
// a restart point, enabling a binary search down to the right prefix group
// followed by a linear scan.
type blockWriter struct {
	restartInterval int
	buf             []byte
	restarts        []uint32
	counter         int
	lastKey         []byte
	nEntries        int
}

func newBlockWriter(restartInterval int) *blockWriter {
	return &blockWriter{restartInterval: restartInterval, restarts: []uint32{0}}
}

func sharedPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// add appends one entry. Keys must be added in ascending order (the
// caller, Writer.Add, enforces this).
func (w *blockWriter) add(key, value []byte) {
	shared := 0
	if w.counter < w.restartInterval {
		shared = sharedPrefixLen(w.lastKey, key)
	} else {
		w.restarts = append(w.restarts, uint32(len(w.buf)))
		w.counter = 0
	}
	nonShared := key[shared:]

	w.buf = base.PutUvarint32(w.buf, uint32(shared))
	w.buf = base.PutUvarint32(w.buf, uint32(len(nonShared)))
	w.buf = base.PutUvarint32(w.buf, uint32(len(value)))
	w.buf = append(w.buf, nonShared...)
	w.buf = append(w.buf, value...)

	w.lastKey = append(w.lastKey[:0], key...)
	w.counter++
	w.nEntries++
}

// estimatedSize returns the block's current encoded size, including the
// restart array that would be appended by finish.
func (w *blockWriter) estimatedSize() int {
	return len(w.buf) + 4*len(w.restarts) + 4
}

func (w *blockWriter) empty() bool { return w.nEntries == 0 }

// finish appends the restart array and count, returning the complete block
// bytes. The blockWriter must not be reused afterward.
func (w *blockWriter) finish() []byte {
	buf := w.buf
	for _, r := range w.restarts {
		var tmp [4]byte
		base.PutFixed32(tmp[:], r)
		buf = append(buf, tmp[:]...)
	}
	var tmp [4]byte
	base.PutFixed32(tmp[:], uint32(len(w.restarts)))
	buf = append(buf, tmp[:]...)
	return buf
}

// blockReader decodes a finished block's bytes for seeking/iteration.
type blockReader struct {
	data     []byte
	restarts []uint32
	numEntries int
}

func newBlockReader(data []byte) (*blockReader, error) {
	if len(data) < 4 {
		return nil, base.CorruptionErrorf("sstable: block too small")
	}
	numRestarts := base.DecodeFixed32(data[len(data)-4:])
	restartsOff := len(data) - 4 - int(numRestarts)*4
	if restartsOff < 0 {
		return nil, base.CorruptionErrorf("sstable: invalid restart count")
	}
	restarts := make([]uint32, numRestarts)
	for i := range restarts {
		restarts[i] = base.DecodeFixed32(data[restartsOff+4*i:])
	}
	return &blockReader{data: data[:restartsOff], restarts: restarts}, nil
}

// decodeAt decodes one entry at offset off, returning the full
// reconstructed key (built from lastKey's shared prefix), value, and the
// offset of the following entry. ok is false once off reaches the end of
// entry data.
func (b *blockReader) decodeAt(off int, lastKey []byte) (key, value []byte, next int, ok bool) {
	if off >= len(b.data) {
		return nil, nil, off, false
	}
	p := b.data[off:]
	shared, n1 := base.DecodeUvarint32(p)
	if n1 == 0 {
		return nil, nil, off, false
	}
	p = p[n1:]
	nonShared, n2 := base.DecodeUvarint32(p)
	if n2 == 0 {
		return nil, nil, off, false
	}
	p = p[n2:]
	valLen, n3 := base.DecodeUvarint32(p)
	if n3 == 0 {
		return nil, nil, off, false
	}
	p = p[n3:]
	if uint32(len(p)) < nonShared+valLen {
		return nil, nil, off, false
	}
	key = make([]byte, 0, int(shared)+int(nonShared))
	key = append(key, lastKey[:shared]...)
	key = append(key, p[:nonShared]...)
	value = p[nonShared : nonShared+valLen]
	next = off + n1 + n2 + n3 + int(nonShared) + int(valLen)
	return key, value, next, true
}

// blockIter walks a blockReader in key order and supports seeking via
// binary search over the restart array followed by a linear scan, exactly
// as spec §4.9 specifies for DataBlockIter.
type blockIter struct {
	b      *blockReader
	cmp    func(a, b []byte) int
	off    int
	key    []byte
	value  []byte
	valid  bool
}

func (b *blockReader) newIter(cmp func(a, b []byte) int) *blockIter {
	return &blockIter{b: b, cmp: cmp}
}

func (it *blockIter) First() bool {
	it.key = nil
	return it.advanceFrom(0)
}

func (it *blockIter) advanceFrom(off int) bool {
	key, value, next, ok := it.b.decodeAt(off, it.key)
	if !ok {
		it.valid = false
		return false
	}
	it.key, it.value, it.off = key, value, next
	it.valid = true
	return true
}

// Next moves to the next entry.
func (it *blockIter) Next() bool {
	if !it.valid {
		return false
	}
	return it.advanceFrom(it.off)
}

// SeekGE positions at the first entry whose key is >= target, using a
// binary search over restart points (each restart's entry has shared=0, so
// its key suffix is the full key) followed by a linear scan within the
// restart group.
func (it *blockIter) SeekGE(target []byte) bool {
	restarts := it.b.restarts
	lo, hi := 0, len(restarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		key, _, _, ok := it.b.decodeAt(int(restarts[mid]), nil)
		if !ok {
			hi = mid - 1
			continue
		}
		if it.cmp(key, target) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	it.key = nil
	off := 0
	if len(restarts) > 0 {
		off = int(restarts[lo])
	}
	for it.advanceFrom(off) {
		if it.cmp(it.key, target) >= 0 {
			return true
		}
		off = it.off
	}
	return false
}

func (it *blockIter) Valid() bool   { return it.valid }
func (it *blockIter) Key() []byte   { return it.key }
func (it *blockIter) Value() []byte { return it.value }
