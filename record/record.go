// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package record implements the block-framed log used for both the WAL and
// the MANIFEST (spec §4.1 and §4.8): a sequence of 32-KiB blocks, each
// holding one or more length-prefixed, checksummed, possibly-fragmented
// records.
package record

import (
	"io"

	"github.com/ekvdb/ekv/internal/base"
)

const (
	// BlockSize is the fixed physical block size every record is framed
	// into.
	BlockSize = 32 * 1024
	// HeaderSize is the per-fragment header: 4-byte CRC32C, 2-byte length,
	// 1-byte type.
	HeaderSize = 7
)

type recordType byte

const (
	recordTypeInvalid recordType = 0
	recordTypeFull     recordType = 1
	recordTypeFirst    recordType = 2
	recordTypeMiddle   recordType = 3
	recordTypeLast     recordType = 4
)

// Writer frames payloads into BlockSize blocks with 7-byte fragment
// headers, zero-padding a block's tail when a header would not fit.
// Writer buffers a partially-filled block in memory and flushes whole
// blocks to the underlying io.Writer as they fill.
type Writer struct {
	w          io.Writer
	block      [BlockSize]byte
	blockOff   int // logical fill level of the current in-memory block
	flushedOff int // bytes of the current block already written to w
}

// NewWriter wraps w. w should be positioned at a block boundary (e.g. a
// newly created file, or an existing one padded to a multiple of
// BlockSize).
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteRecord frames payload as one or more fragments, returning any error
// from the underlying writer.
func (w *Writer) WriteRecord(payload []byte) error {
	first := true
	for {
		leftover := BlockSize - w.blockOff
		if leftover < HeaderSize {
			if leftover > 0 {
				for i := 0; i < leftover; i++ {
					w.block[w.blockOff+i] = 0
				}
			}
			if err := w.flushBlock(); err != nil {
				return err
			}
			leftover = BlockSize
		}

		avail := leftover - HeaderSize
		n := len(payload)
		last := true
		if n > avail {
			n = avail
			last = false
		}

		var typ recordType
		switch {
		case first && last:
			typ = recordTypeFull
		case first && !last:
			typ = recordTypeFirst
		case !first && last:
			typ = recordTypeLast
		default:
			typ = recordTypeMiddle
		}

		w.writeFragment(typ, payload[:n])
		payload = payload[n:]
		first = false

		if last {
			return nil
		}
	}
}

func (w *Writer) writeFragment(typ recordType, data []byte) {
	crc := base.NewCRC([]byte{byte(typ)}).Update(data).Mask()
	hdr := w.block[w.blockOff : w.blockOff+HeaderSize]
	base.PutFixed32(hdr[:4], crc)
	hdr[4] = byte(len(data))
	hdr[5] = byte(len(data) >> 8)
	hdr[6] = byte(typ)
	copy(w.block[w.blockOff+HeaderSize:], data)
	w.blockOff += HeaderSize + len(data)
}

// flushBlock is called once the in-memory block has been completely filled
// (possibly zero-padded). It writes whatever bytes of the block have not
// yet reached the underlying writer and resets for the next block.
func (w *Writer) flushBlock() error {
	if _, err := w.w.Write(w.block[w.flushedOff:]); err != nil {
		return err
	}
	w.blockOff, w.flushedOff = 0, 0
	return nil
}

// Flush pushes any bytes appended since the last Flush/flushBlock to the
// underlying io.Writer, without waiting for the block to fill. The
// in-memory block continues accumulating at its current offset — this is
// purely "get bytes to the kernel", not a block boundary. Durability
// (fsync) is a separate concern left to the caller (the WAL manager, spec
// §4.1).
func (w *Writer) Flush() error {
	if w.blockOff == w.flushedOff {
		return nil
	}
	if _, err := w.w.Write(w.block[w.flushedOff:w.blockOff]); err != nil {
		return err
	}
	w.flushedOff = w.blockOff
	return nil
}
