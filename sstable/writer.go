// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"io"

	"github.com/cockroachdb/errors"

	"github.com/ekvdb/ekv/internal/base"
)

// WriterOptions configures a Writer (Builder in spec terms).
type WriterOptions struct {
	CFID            uint32
	Compare         func(a, b []byte) int
	BlockSize       int
	RestartInterval int
	Compression     base.Compression
	FilterPolicy    base.FilterPolicy
}

func (o *WriterOptions) ensureDefaults() {
	if o.Compare == nil {
		o.Compare = base.DefaultComparer.Compare
	}
	if o.BlockSize <= 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.RestartInterval <= 0 {
		o.RestartInterval = DefaultRestartInterval
	}
}

// Metadata is returned by Finish: the file's size, smallest and largest
// internal keys, and summary statistics. It carries no file number; the
// Writer never learns which number its file was given.
type Metadata struct {
	FileSize    uint64
	SmallestKey base.InternalKey
	LargestKey  base.InternalKey
	Properties  Properties
}

// Writer (the "Builder" of spec §4.4) assembles one SST file by receiving
// keys in strictly ascending internal-key order.
type Writer struct {
	w       io.Writer
	opts    WriterOptions
	typ     compressionType
	offset  uint64

	dataBlock  *blockWriter
	indexBlock *blockWriter

	filterWriter base.FilterWriter

	smallestKey    base.InternalKey
	lastKey        base.InternalKey
	haveSmallest   bool
	haveLast       bool
	numEntries     uint64
	maxSeqNum      uint64
	dataSize       uint64

	pendingIndexEntry bool
	pendingHandle     BlockHandle
	pendingLastKey    []byte

	err error
}

// NewWriter constructs a Writer for CF opts.CFID writing to w.
func NewWriter(w io.Writer, opts WriterOptions) *Writer {
	opts.ensureDefaults()
	bw := &Writer{
		w:          w,
		opts:       opts,
		typ:        toCompressionType(opts.Compression),
		dataBlock:  newBlockWriter(opts.RestartInterval),
		indexBlock: newBlockWriter(opts.RestartInterval),
	}
	if opts.FilterPolicy != nil {
		bw.filterWriter = opts.FilterPolicy.NewFilterWriter()
	}
	return bw
}

// Add appends one internal key/value pair. Keys must be strictly
// ascending; a violation is an InvalidArgument error (spec §4.4: "keys
// must be strictly ascending (implementation errors on violation)").
func (w *Writer) Add(key base.InternalKey, value []byte) error {
	if w.err != nil {
		return w.err
	}
	if w.haveLast && base.Compare(w.opts.Compare, key, w.lastKey) <= 0 {
		w.err = base.InvalidArgumentErrorf("sstable: keys must be added in strictly ascending order")
		return w.err
	}

	if w.pendingIndexEntry {
		if err := w.finishIndexEntry(); err != nil {
			w.err = err
			return err
		}
	}

	if w.filterWriter != nil {
		w.filterWriter.Add(key.UserKey)
	}

	ikeyBytes := key.EncodeToBytes()
	w.dataBlock.add(ikeyBytes, value)

	if !w.haveSmallest {
		w.smallestKey = key.Clone()
		w.haveSmallest = true
	}
	w.lastKey = key.Clone()
	w.haveLast = true
	w.numEntries++
	if key.SeqNum() > w.maxSeqNum {
		w.maxSeqNum = key.SeqNum()
	}

	if w.dataBlock.estimatedSize() >= w.opts.BlockSize {
		if err := w.flushDataBlock(); err != nil {
			w.err = err
			return err
		}
	}
	return nil
}

// finishIndexEntry adds the deferred index entry for the most recently
// flushed data block: its last key (the simplest correct separator, per
// spec §4.4) mapped to its BlockHandle.
func (w *Writer) finishIndexEntry() error {
	var handleBuf []byte
	handleBuf = w.pendingHandle.EncodeTo(handleBuf)
	w.indexBlock.add(w.pendingLastKey, handleBuf)
	w.pendingIndexEntry = false
	return nil
}

func (w *Writer) flushDataBlock() error {
	if w.dataBlock.empty() {
		return nil
	}
	raw := w.dataBlock.finish()
	handle, err := w.writeBlock(raw)
	if err != nil {
		return err
	}
	w.dataSize += handle.Size + blockTrailerSize
	w.pendingHandle = handle
	w.pendingLastKey = append([]byte(nil), w.lastKey.EncodeToBytes()...)
	w.pendingIndexEntry = true
	w.dataBlock = newBlockWriter(w.opts.RestartInterval)
	return nil
}

// writeBlock compresses raw, appends the trailer, writes both to the
// underlying sink, and returns the handle pointing at the compressed
// payload (trailer excluded from Size, as the reader knows to read exactly
// blockTrailerSize additional bytes after any block).
func (w *Writer) writeBlock(raw []byte) (BlockHandle, error) {
	compressed := compressBlock(w.typ, raw)
	if _, err := w.w.Write(compressed); err != nil {
		return BlockHandle{}, errors.Wrap(err, "sstable: write block")
	}
	crc := base.NewCRC(compressed).Update([]byte{byte(w.typ)}).Mask()
	var trailer [blockTrailerSize]byte
	trailer[0] = byte(w.typ)
	base.PutFixed32(trailer[1:], crc)
	if _, err := w.w.Write(trailer[:]); err != nil {
		return BlockHandle{}, errors.Wrap(err, "sstable: write block trailer")
	}
	h := BlockHandle{Offset: w.offset, Size: uint64(len(compressed))}
	w.offset += uint64(len(compressed)) + blockTrailerSize
	return h, nil
}

// Finish flushes any buffered data, writes the filter (if configured),
// properties, metaindex, and index blocks, then the footer, and returns
// the file's metadata.
func (w *Writer) Finish() (Metadata, error) {
	if w.err != nil {
		return Metadata{}, w.err
	}
	if err := w.flushDataBlock(); err != nil {
		return Metadata{}, err
	}
	if w.pendingIndexEntry {
		if err := w.finishIndexEntry(); err != nil {
			return Metadata{}, err
		}
	}

	var filterHandle BlockHandle
	var filterSize uint64
	haveFilter := w.filterWriter != nil
	if haveFilter {
		data := w.filterWriter.Finish()
		h, err := w.writeBlock(data)
		if err != nil {
			return Metadata{}, err
		}
		filterHandle = h
		filterSize = h.Size + blockTrailerSize
	}

	props := Properties{
		CFID:        w.opts.CFID,
		NumEntries:  w.numEntries,
		DataSize:    w.dataSize,
		FilterSize:  filterSize,
		MaxSeqNum:   w.maxSeqNum,
		SmallestKey: append([]byte(nil), w.smallestKey.EncodeToBytes()...),
		LargestKey:  append([]byte(nil), w.lastKey.EncodeToBytes()...),
	}
	propsHandle, err := w.writeBlock(props.encode())
	if err != nil {
		return Metadata{}, err
	}

	metaBlock := newBlockWriter(w.opts.RestartInterval)
	if haveFilter {
		var hb []byte
		hb = filterHandle.EncodeTo(hb)
		metaBlock.add([]byte("filter."+w.opts.FilterPolicy.Name()), hb)
	}
	var propsHB []byte
	propsHB = propsHandle.EncodeTo(propsHB)
	metaBlock.add([]byte("properties"), propsHB)
	metaindexHandle, err := w.writeBlock(metaBlock.finish())
	if err != nil {
		return Metadata{}, err
	}

	// IndexSize is only known once the index block itself is about to be
	// written; record it into props for completeness of the in-memory
	// Metadata even though the on-disk properties block was already
	// written above (matches the teacher's own two-pass approach of
	// estimating index size post hoc for metrics, not for correctness).
	indexRaw := w.indexBlock.finish()
	indexHandle, err := w.writeBlock(indexRaw)
	if err != nil {
		return Metadata{}, err
	}
	props.IndexSize = indexHandle.Size + blockTrailerSize

	f := footer{metaindex: metaindexHandle, index: indexHandle}
	if _, err := w.w.Write(f.encode()); err != nil {
		return Metadata{}, errors.Wrap(err, "sstable: write footer")
	}

	return Metadata{
		FileSize:    w.offset + uint64(len(f.encode())),
		SmallestKey: w.smallestKey,
		LargestKey:  w.lastKey,
		Properties:  props,
	}, nil
}
