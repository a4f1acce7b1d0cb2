// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import "github.com/ekvdb/ekv/internal/base"

// Properties is the decoded form of an SST's properties block (spec §4.4).
type Properties struct {
	CFID         uint32
	NumEntries   uint64
	DataSize     uint64
	IndexSize    uint64
	FilterSize   uint64
	MaxSeqNum    uint64
	SmallestKey  []byte
	LargestKey   []byte
}

func (p Properties) encode() []byte {
	buf := make([]byte, 0, 64+len(p.SmallestKey)+len(p.LargestKey))
	var tmp4 [4]byte
	base.PutFixed32(tmp4[:], p.CFID)
	buf = append(buf, tmp4[:]...)
	buf = base.PutUvarint64(buf, p.NumEntries)
	buf = base.PutUvarint64(buf, p.DataSize)
	buf = base.PutUvarint64(buf, p.IndexSize)
	buf = base.PutUvarint64(buf, p.FilterSize)
	buf = base.PutUvarint64(buf, p.MaxSeqNum)
	buf = base.PutLengthPrefixedBytes(buf, p.SmallestKey)
	buf = base.PutLengthPrefixedBytes(buf, p.LargestKey)
	return buf
}

func decodeProperties(data []byte) (Properties, error) {
	var p Properties
	if len(data) < 4 {
		return p, base.CorruptionErrorf("sstable: truncated properties block")
	}
	p.CFID = base.DecodeFixed32(data[:4])
	buf := data[4:]

	readVarint := func() (uint64, bool) {
		v, n := base.DecodeUvarint64(buf)
		if n == 0 {
			return 0, false
		}
		buf = buf[n:]
		return v, true
	}
	var ok bool
	if p.NumEntries, ok = readVarint(); !ok {
		return p, base.CorruptionErrorf("sstable: truncated properties (entries)")
	}
	if p.DataSize, ok = readVarint(); !ok {
		return p, base.CorruptionErrorf("sstable: truncated properties (data size)")
	}
	if p.IndexSize, ok = readVarint(); !ok {
		return p, base.CorruptionErrorf("sstable: truncated properties (index size)")
	}
	if p.FilterSize, ok = readVarint(); !ok {
		return p, base.CorruptionErrorf("sstable: truncated properties (filter size)")
	}
	if p.MaxSeqNum, ok = readVarint(); !ok {
		return p, base.CorruptionErrorf("sstable: truncated properties (max seq)")
	}
	smallest, n := base.DecodeLengthPrefixedBytes(buf)
	if n == 0 && len(buf) != 0 {
		return p, base.CorruptionErrorf("sstable: truncated properties (smallest key)")
	}
	buf = buf[n:]
	p.SmallestKey = append([]byte(nil), smallest...)
	largest, n2 := base.DecodeLengthPrefixedBytes(buf)
	if n2 == 0 && len(buf) != 0 {
		return p, base.CorruptionErrorf("sstable: truncated properties (largest key)")
	}
	p.LargestKey = append([]byte(nil), largest...)
	return p, nil
}
