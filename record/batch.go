// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package record

import (
	"github.com/ekvdb/ekv/internal/base"
)

// batchRecordTag identifies the one record kind written to the WAL: a
// write batch. The MANIFEST uses the same framing package but its own
// VersionEdit encoding (internal/manifest), not this tag.
const batchRecordTag = 1

// Entry is one write in a batch, as framed on the wire (spec §4.1):
// kind (1B), cf (4B), key-length (4B) + key bytes, and for Put only,
// value-length (4B) + value bytes.
type Entry struct {
	Kind  base.InternalKeyKind
	CF    uint32
	Key   []byte
	Value []byte
}

// EncodeBatch appends the wire encoding of a batch to dst: a tag byte,
// base_seq (8B), count (4B), then the entries themselves.
func EncodeBatch(dst []byte, baseSeq uint64, entries []Entry) []byte {
	dst = append(dst, batchRecordTag)
	var tmp [8]byte
	base.PutFixed64(tmp[:], baseSeq)
	dst = append(dst, tmp[:]...)
	var tmp4 [4]byte
	base.PutFixed32(tmp4[:], uint32(len(entries)))
	dst = append(dst, tmp4[:]...)
	for _, e := range entries {
		dst = append(dst, byte(e.Kind))
		base.PutFixed32(tmp4[:], e.CF)
		dst = append(dst, tmp4[:]...)
		base.PutFixed32(tmp4[:], uint32(len(e.Key)))
		dst = append(dst, tmp4[:]...)
		dst = append(dst, e.Key...)
		if e.Kind == base.InternalKeyKindSet {
			base.PutFixed32(tmp4[:], uint32(len(e.Value)))
			dst = append(dst, tmp4[:]...)
			dst = append(dst, e.Value...)
		}
	}
	return dst
}

// DecodeBatch parses a record payload previously produced by EncodeBatch.
func DecodeBatch(payload []byte) (baseSeq uint64, entries []Entry, err error) {
	if len(payload) < 1 || payload[0] != batchRecordTag {
		return 0, nil, base.CorruptionErrorf("record: unrecognized batch tag")
	}
	buf := payload[1:]
	if len(buf) < 12 {
		return 0, nil, base.CorruptionErrorf("record: truncated batch header")
	}
	baseSeq = base.DecodeFixed64(buf[:8])
	count := base.DecodeFixed32(buf[8:12])
	buf = buf[12:]

	entries = make([]Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(buf) < 1+4+4 {
			return 0, nil, base.CorruptionErrorf("record: truncated batch entry")
		}
		kind := base.InternalKeyKind(buf[0])
		cf := base.DecodeFixed32(buf[1:5])
		keyLen := base.DecodeFixed32(buf[5:9])
		buf = buf[9:]
		if uint32(len(buf)) < keyLen {
			return 0, nil, base.CorruptionErrorf("record: truncated batch key")
		}
		key := buf[:keyLen]
		buf = buf[keyLen:]

		var value []byte
		if kind == base.InternalKeyKindSet {
			if len(buf) < 4 {
				return 0, nil, base.CorruptionErrorf("record: truncated batch value length")
			}
			valLen := base.DecodeFixed32(buf[:4])
			buf = buf[4:]
			if uint32(len(buf)) < valLen {
				return 0, nil, base.CorruptionErrorf("record: truncated batch value")
			}
			value = buf[:valLen]
			buf = buf[valLen:]
		}
		entries = append(entries, Entry{Kind: kind, CF: cf, Key: key, Value: value})
	}
	return baseSeq, entries, nil
}
