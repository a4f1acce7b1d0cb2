// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package record

import (
	"io"

	"github.com/ekvdb/ekv/internal/base"
)

// Reader reassembles fragmented records written by Writer, tolerating a
// corrupt or truncated trailing block: a short read, a CRC mismatch, an
// unknown fragment type, or an all-zero header are all treated as
// "end of log" for the *current block* — the reader stops there rather
// than erroring, except when the corruption is discovered in the middle of
// reassembling a multi-fragment record, which surfaces as ErrCorruption
// (an incomplete record cannot be silently dropped once its First fragment
// has been consumed, since the caller may have already observed effects
// of a logically half-applied decode — simplest correct rule is to fail
// loudly).
type Reader struct {
	r       io.Reader
	block   [BlockSize]byte
	buf     []byte // unconsumed bytes of the current block
	eof     bool
	scratch []byte // reassembly buffer for fragmented records
}

// NewReader wraps r, which must yield the raw framed byte stream from the
// start of a block boundary.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// nextBlock reads the next physical block, returning false at true EOF.
func (r *Reader) nextBlock() bool {
	if r.eof {
		return false
	}
	n, err := io.ReadFull(r.r, r.block[:])
	if n == 0 {
		r.eof = true
		return false
	}
	if err != nil {
		// Short block: the tail of the file was truncated mid-block. Use
		// what we have and mark EOF for next time.
		r.eof = true
	}
	r.buf = r.block[:n]
	return true
}

// ReadRecord returns the next fully-reassembled record payload, or
// (nil, io.EOF) once the log is exhausted, or a wrapped ErrCorruption if a
// record is corrupt mid-reassembly.
func (r *Reader) ReadRecord() ([]byte, error) {
	r.scratch = r.scratch[:0]
	inFragment := false

	for {
		if len(r.buf) < HeaderSize {
			if !r.nextBlock() {
				if inFragment {
					return nil, base.CorruptionErrorf("record: incomplete record at EOF")
				}
				return nil, io.EOF
			}
			continue
		}

		hdr := r.buf[:HeaderSize]
		crc := base.DecodeFixed32(hdr[:4])
		length := int(hdr[4]) | int(hdr[5])<<8
		typ := recordType(hdr[6])

		if crc == 0 && length == 0 && typ == recordTypeInvalid {
			// Zero-filled header: end of the written portion of this
			// block. Treat the rest of the block as padding and move on.
			if inFragment {
				return nil, base.CorruptionErrorf("record: incomplete record, zero header mid-record")
			}
			r.buf = nil
			continue
		}

		if HeaderSize+length > len(r.buf) {
			// Truncated fragment: can't possibly be valid.
			if inFragment {
				return nil, base.CorruptionErrorf("record: incomplete record, truncated fragment")
			}
			r.buf = nil
			continue
		}

		data := r.buf[HeaderSize : HeaderSize+length]
		wantCRC := base.NewCRC([]byte{byte(typ)}).Update(data).Mask()
		if wantCRC != crc {
			if inFragment {
				return nil, base.CorruptionErrorf("record: incomplete record, crc mismatch")
			}
			r.buf = nil
			continue
		}

		r.buf = r.buf[HeaderSize+length:]

		switch typ {
		case recordTypeFull:
			if inFragment {
				return nil, base.CorruptionErrorf("record: unexpected full fragment mid-record")
			}
			return data, nil
		case recordTypeFirst:
			if inFragment {
				return nil, base.CorruptionErrorf("record: unexpected first fragment mid-record")
			}
			r.scratch = append(r.scratch[:0], data...)
			inFragment = true
		case recordTypeMiddle:
			if !inFragment {
				return nil, base.CorruptionErrorf("record: unexpected middle fragment")
			}
			r.scratch = append(r.scratch, data...)
		case recordTypeLast:
			if !inFragment {
				return nil, base.CorruptionErrorf("record: unexpected last fragment")
			}
			r.scratch = append(r.scratch, data...)
			return r.scratch, nil
		default:
			if inFragment {
				return nil, base.CorruptionErrorf("record: unknown fragment type %d mid-record", typ)
			}
			// Unknown type outside of a record: treat as end of log for
			// this block, same as a zero header.
			r.buf = nil
			continue
		}
	}
}
