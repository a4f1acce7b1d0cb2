// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package base defines the primitives shared by every layer of the storage
// engine: the internal key encoding, comparer, and the sentinel errors and
// options types that the rest of the packages build on.
package base

import (
	"bytes"
	"encoding/binary"
)

// InternalKeyKind enumerates the kind of entry an InternalKey represents.
// Only two kinds are part of the wire format; the values below are stable
// and must not be renumbered once written to disk.
type InternalKeyKind uint8

const (
	// InternalKeyKindDelete marks a tombstone: the key is considered absent
	// at any sequence number greater than or equal to this entry's.
	InternalKeyKindDelete InternalKeyKind = 0
	// InternalKeyKindSet is a Put: the entry carries a value.
	InternalKeyKindSet InternalKeyKind = 1

	// InternalKeyKindMax is the largest kind that may appear in a real
	// entry. Used to build a key that sorts before any real key sharing the
	// same user key and sequence number.
	InternalKeyKindMax InternalKeyKind = 1

	// InternalKeyKindInvalid marks a key that failed to decode.
	InternalKeyKindInvalid InternalKeyKind = 255
)

// SeqNumMax is the largest representable sequence number. Sequence numbers
// are stored in 56 bits alongside the 8-bit kind.
const SeqNumMax = uint64(1<<56 - 1)

// InternalKey is the (user_key, sequence, kind) triple used throughout the
// memtable, SST, and iterator layers. It is encoded on disk as
// user_key ∥ little-endian uint64 trailer, trailer = (seq<<8)|kind.
type InternalKey struct {
	UserKey []byte
	Trailer uint64
}

// MakeInternalKey builds an InternalKey from its three logical fields.
func MakeInternalKey(userKey []byte, seqNum uint64, kind InternalKeyKind) InternalKey {
	return InternalKey{
		UserKey: userKey,
		Trailer: (seqNum << 8) | uint64(kind),
	}
}

// MakeSearchKey builds a key suitable for seeking: it sorts before any real
// key sharing the same user key, regardless of sequence number, because it
// carries SeqNumMax and InternalKeyKindMax, the largest possible trailer,
// and a larger trailer sorts first.
func MakeSearchKey(userKey []byte) InternalKey {
	return MakeInternalKey(userKey, SeqNumMax, InternalKeyKindMax)
}

// DecodeInternalKey decodes the trailing 8-byte trailer off an encoded key.
func DecodeInternalKey(encoded []byte) InternalKey {
	n := len(encoded) - 8
	if n < 0 {
		return InternalKey{UserKey: encoded, Trailer: uint64(InternalKeyKindInvalid)}
	}
	return InternalKey{
		UserKey: encoded[:n:n],
		Trailer: binary.LittleEndian.Uint64(encoded[n:]),
	}
}

// SeqNum returns the sequence number component.
func (k InternalKey) SeqNum() uint64 { return k.Trailer >> 8 }

// Kind returns the kind component.
func (k InternalKey) Kind() InternalKeyKind { return InternalKeyKind(k.Trailer & 0xff) }

// Valid reports whether the key decoded to a recognised kind.
func (k InternalKey) Valid() bool { return k.Kind() <= InternalKeyKindMax }

// Size returns the encoded size of the key.
func (k InternalKey) Size() int { return len(k.UserKey) + 8 }

// Encode writes the encoded key into buf, which must be at least Size() long.
func (k InternalKey) Encode(buf []byte) {
	i := copy(buf, k.UserKey)
	binary.LittleEndian.PutUint64(buf[i:], k.Trailer)
}

// EncodeToBytes is a convenience allocating wrapper around Encode.
func (k InternalKey) EncodeToBytes() []byte {
	buf := make([]byte, k.Size())
	k.Encode(buf)
	return buf
}

// Clone returns a deep copy of the key.
func (k InternalKey) Clone() InternalKey {
	if k.UserKey == nil {
		return k
	}
	return InternalKey{UserKey: append([]byte(nil), k.UserKey...), Trailer: k.Trailer}
}

// Compare implements the Compare func shape used throughout the engine: it
// compares two internal keys under the given user-key comparator. Ordering:
// user_key ascending; within equal user_key, sequence descending; within
// equal (user_key, sequence), kind descending. This places the newest
// version of a user key first.
func Compare(userCmp func(a, b []byte) int, a, b InternalKey) int {
	if x := userCmp(a.UserKey, b.UserKey); x != 0 {
		return x
	}
	// Trailers compare in reverse: a larger trailer (higher seq, or same
	// seq higher kind) sorts first.
	switch {
	case a.Trailer > b.Trailer:
		return -1
	case a.Trailer < b.Trailer:
		return 1
	default:
		return 0
	}
}

// EncodedCompare compares two encoded internal keys (user_key ∥ trailer) by
// decoding both and applying Compare. SST block iterators and merging
// iterators use it, since the keys they hold are in encoded form; the
// memtable skiplist stores decoded InternalKeys and calls Compare directly.
func EncodedCompare(userCmp func(a, b []byte) int, a, b []byte) int {
	return Compare(userCmp, DecodeInternalKey(a), DecodeInternalKey(b))
}

// DefaultComparer compares user keys lexicographically with bytes.Compare.
var DefaultComparer = &Comparer{
	Compare: bytes.Compare,
	Name:    "ekv.BytewiseComparator",
}

// Comparer defines the user-key ordering for a DB. Only one Comparer may be
// used across the lifetime of a given on-disk database.
type Comparer struct {
	Compare func(a, b []byte) int
	Name    string
}

// Separator returns a short key, at most as long as b's common prefix with a
// extended by a single differing byte, that sorts in [a, b). When no such
// key exists (e.g. a >= b lexicographically beyond a shared prefix), a is
// returned unchanged. This mirrors the teacher's index-entry shortening;
// this engine keeps it simple and uses the full key as its own separator
// (see SST §4.4), so Separator is provided for callers that want the
// optimization without forcing it on the builder.
func Separator(cmp func(a, b []byte) int, a, b []byte) []byte {
	if len(b) == 0 {
		return a
	}
	n := len(a)
	if n > len(b) {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	if i >= n || i >= len(a) {
		return a
	}
	if a[i] < 0xff && a[i]+1 < b[i] {
		short := append([]byte(nil), a[:i+1]...)
		short[i]++
		if cmp(short, b) < 0 {
			return short
		}
	}
	return a
}
