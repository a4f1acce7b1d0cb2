// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"io"

	"github.com/cockroachdb/errors"

	"github.com/ekvdb/ekv/internal/base"
	"github.com/ekvdb/ekv/internal/cache"
)

// Reader opens one SST file for point lookups and iteration (spec §4.5).
// At open it reads the footer, index block, and metaindex block; if a
// filter policy is configured it also resolves and loads the filter
// block. Data blocks are loaded lazily through the shared block cache.
type Reader struct {
	ra       io.ReaderAt
	size     int64
	fileNum  uint64
	cmp      func(a, b []byte) int
	cache    *cache.Cache
	filterPolicy base.FilterPolicy

	indexBlock *blockReader
	filterData []byte

	Properties Properties
}

// Open constructs a Reader over ra (size bytes long), identified by
// fileNum for block-cache keying.
func Open(ra io.ReaderAt, size int64, fileNum uint64, cmp func(a, b []byte) int, blockCache *cache.Cache, filterPolicy base.FilterPolicy) (*Reader, error) {
	if size < FooterSize {
		return nil, base.CorruptionErrorf("sstable: file too small to contain a footer")
	}
	footerBuf := make([]byte, FooterSize)
	if _, err := ra.ReadAt(footerBuf, size-FooterSize); err != nil {
		return nil, errors.Wrap(err, "sstable: read footer")
	}
	f, err := decodeFooter(footerBuf)
	if err != nil {
		return nil, err
	}

	r := &Reader{ra: ra, size: size, fileNum: fileNum, cmp: cmp, cache: blockCache, filterPolicy: filterPolicy}

	indexRaw, err := r.readBlockRaw(f.index)
	if err != nil {
		return nil, errors.Wrap(err, "sstable: read index block")
	}
	r.indexBlock, err = newBlockReader(indexRaw)
	if err != nil {
		return nil, err
	}

	metaRaw, err := r.readBlockRaw(f.metaindex)
	if err != nil {
		return nil, errors.Wrap(err, "sstable: read metaindex block")
	}
	metaBlock, err := newBlockReader(metaRaw)
	if err != nil {
		return nil, err
	}
	meta := metaBlock.newIter(base.DefaultComparer.Compare)
	var propsHandle BlockHandle
	havePropsHandle := false
	for ok := meta.First(); ok; ok = meta.Next() {
		switch string(meta.Key()) {
		case "properties":
			propsHandle, _ = DecodeBlockHandle(meta.Value())
			havePropsHandle = true
		default:
			if filterPolicy != nil && string(meta.Key()) == "filter."+filterPolicy.Name() {
				fh, _ := DecodeBlockHandle(meta.Value())
				data, err := r.readBlockRaw(fh)
				if err != nil {
					return nil, errors.Wrap(err, "sstable: read filter block")
				}
				r.filterData = data
			}
		}
	}
	if havePropsHandle {
		propsRaw, err := r.readBlockRaw(propsHandle)
		if err != nil {
			return nil, errors.Wrap(err, "sstable: read properties block")
		}
		r.Properties, err = decodeProperties(propsRaw)
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}

// readBlockRaw reads, checksums, and decompresses the block at h directly
// (bypassing the cache) — used for index/metaindex/filter/properties,
// which are read once per Open rather than repeatedly per Get.
func (r *Reader) readBlockRaw(h BlockHandle) ([]byte, error) {
	buf := make([]byte, h.Size+blockTrailerSize)
	if _, err := r.ra.ReadAt(buf, int64(h.Offset)); err != nil {
		return nil, err
	}
	compressed := buf[:h.Size]
	trailer := buf[h.Size:]
	typ := compressionType(trailer[0])
	wantCRC := base.DecodeFixed32(trailer[1:])
	gotCRC := base.NewCRC(compressed).Update([]byte{byte(typ)}).Mask()
	if gotCRC != wantCRC {
		return nil, base.CorruptionErrorf("sstable: block checksum mismatch at offset %d", h.Offset)
	}
	return decompressBlock(typ, compressed)
}

// readDataBlock loads a data block through the shared block cache, keyed
// by (fileNum, offset), and wraps the result with a pinning handle.
func (r *Reader) readDataBlock(h BlockHandle) (*cachedBlockIter, error) {
	key := cache.Key{FileNum: r.fileNum, Offset: h.Offset}
	if hnd, ok := r.cache.Get(key); ok {
		br, err := newBlockReader(hnd.Value())
		if err != nil {
			hnd.Release()
			return nil, err
		}
		return &cachedBlockIter{blockIter: br.newIter(ikeyCompare(r.cmp)), handle: hnd}, nil
	}
	raw, err := r.readBlockRaw(h)
	if err != nil {
		return nil, err
	}
	hnd := r.cache.Insert(key, raw, int64(len(raw))+64)
	br, err := newBlockReader(hnd.Value())
	if err != nil {
		hnd.Release()
		return nil, err
	}
	return &cachedBlockIter{blockIter: br.newIter(ikeyCompare(r.cmp)), handle: hnd}, nil
}

// Get implements spec §4.5's point lookup algorithm: seek the index to the
// candidate data block, consult the filter (if any), then binary-search
// plus linear-scan the data block. searchKey should be built with
// base.MakeInternalKey(userKey, snapshotSeq, base.InternalKeyKindMax) (or
// base.MakeSearchKey) so the first match found is the newest version
// visible at the snapshot.
func (r *Reader) Get(searchKey base.InternalKey) (key base.InternalKey, value []byte, found bool, err error) {
	if r.filterPolicy != nil && !r.filterPolicy.MayContain(r.filterData, searchKey.UserKey) {
		return base.InternalKey{}, nil, false, nil
	}

	idx := r.indexBlock.newIter(ikeyCompare(r.cmp))
	target := searchKey.EncodeToBytes()
	if !idx.SeekGE(target) {
		return base.InternalKey{}, nil, false, nil
	}
	handle, _ := DecodeBlockHandle(idx.Value())
	data, err := r.readDataBlock(handle)
	if err != nil {
		return base.InternalKey{}, nil, false, err
	}
	defer data.Close()

	if !data.SeekGE(target) {
		return base.InternalKey{}, nil, false, nil
	}
	ik := base.DecodeInternalKey(data.Key())
	if r.cmp(ik.UserKey, searchKey.UserKey) != 0 {
		return base.InternalKey{}, nil, false, nil
	}
	return ik, append([]byte(nil), data.Value()...), true, nil
}

// NewIter returns a forward iterator over every entry in the file, in
// internal-key order.
func (r *Reader) NewIter() InternalIterator {
	return r.newTwoLevelIterator()
}
