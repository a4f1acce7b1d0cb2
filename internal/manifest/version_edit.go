// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"github.com/ekvdb/ekv/internal/base"
)

// Tags for the VersionEdit wire format (spec §4.8). Each MANIFEST record is
// one edit encoded as a stream of tagged fields; it starts with a single
// CFID tag naming the column family its AddFile/DeleteFile tags apply to.
const (
	tagCFID           = 1
	tagCFAdd          = 2
	tagCFDrop         = 3
	tagAddFile        = 4
	tagDeleteFile     = 5
	tagNextFileNumber = 6
	tagLastSequence   = 7
)

// NewFile pairs a FileMetadata with the level it lives on.
type NewFile struct {
	Level int
	Meta  FileMetadata
}

// DeletedFile identifies a file to remove from a level.
type DeletedFile struct {
	Level   int
	FileNum uint64
}

// VersionEdit describes a delta to apply to the current Version of one
// column family (CFID), plus optionally the global file-number/sequence
// counters (spec §4.8).
type VersionEdit struct {
	CFID   uint32
	NewCF  bool
	DropCF bool

	NewFiles     []NewFile
	DeletedFiles []DeletedFile

	HasNextFileNumber bool
	NextFileNumber    uint64

	HasLastSequence bool
	LastSequence    uint64
}

// Encode serializes the edit as a single MANIFEST/record payload.
func (v *VersionEdit) Encode() []byte {
	var buf []byte

	putUvarint := func(x uint64) { buf = base.PutUvarint64(buf, x) }
	putTag := func(tag uint32) { putUvarint(uint64(tag)) }
	putBytes := func(b []byte) { buf = base.PutLengthPrefixedBytes(buf, b) }

	putTag(tagCFID)
	putUvarint(uint64(v.CFID))
	if v.NewCF {
		putTag(tagCFAdd)
	}
	if v.DropCF {
		putTag(tagCFDrop)
	}
	for _, nf := range v.NewFiles {
		putTag(tagAddFile)
		putUvarint(uint64(nf.Level))
		putUvarint(nf.Meta.FileNum)
		putUvarint(nf.Meta.Size)
		putBytes(nf.Meta.Smallest.EncodeToBytes())
		putBytes(nf.Meta.Largest.EncodeToBytes())
	}
	for _, df := range v.DeletedFiles {
		putTag(tagDeleteFile)
		putUvarint(uint64(df.Level))
		putUvarint(df.FileNum)
	}
	if v.HasNextFileNumber {
		putTag(tagNextFileNumber)
		putUvarint(v.NextFileNumber)
	}
	if v.HasLastSequence {
		putTag(tagLastSequence)
		putUvarint(v.LastSequence)
	}
	return buf
}

// Decode parses a single edit from a MANIFEST record payload.
func Decode(payload []byte) (*VersionEdit, error) {
	v := &VersionEdit{}
	buf := payload

	readUvarint := func() (uint64, error) {
		x, n := base.DecodeUvarint64(buf)
		if n == 0 {
			return 0, base.CorruptionErrorf("manifest: bad varint")
		}
		buf = buf[n:]
		return x, nil
	}
	readBytes := func() ([]byte, error) {
		b, n := base.DecodeLengthPrefixedBytes(buf)
		if n == 0 {
			return nil, base.CorruptionErrorf("manifest: truncated edit")
		}
		buf = buf[n:]
		return append([]byte(nil), b...), nil
	}

	for len(buf) > 0 {
		tag, err := readUvarint()
		if err != nil {
			return nil, err
		}
		switch tag {
		case tagCFID:
			id, err := readUvarint()
			if err != nil {
				return nil, err
			}
			v.CFID = uint32(id)
		case tagCFAdd:
			v.NewCF = true
		case tagCFDrop:
			v.DropCF = true
		case tagAddFile:
			level, err := readUvarint()
			if err != nil {
				return nil, err
			}
			fileNum, err := readUvarint()
			if err != nil {
				return nil, err
			}
			size, err := readUvarint()
			if err != nil {
				return nil, err
			}
			smallest, err := readBytes()
			if err != nil {
				return nil, err
			}
			largest, err := readBytes()
			if err != nil {
				return nil, err
			}
			v.NewFiles = append(v.NewFiles, NewFile{
				Level: int(level),
				Meta: FileMetadata{
					FileNum:  fileNum,
					Size:     size,
					Smallest: base.DecodeInternalKey(smallest),
					Largest:  base.DecodeInternalKey(largest),
				},
			})
		case tagDeleteFile:
			level, err := readUvarint()
			if err != nil {
				return nil, err
			}
			fileNum, err := readUvarint()
			if err != nil {
				return nil, err
			}
			v.DeletedFiles = append(v.DeletedFiles, DeletedFile{Level: int(level), FileNum: fileNum})
		case tagNextFileNumber:
			n, err := readUvarint()
			if err != nil {
				return nil, err
			}
			v.HasNextFileNumber = true
			v.NextFileNumber = n
		case tagLastSequence:
			n, err := readUvarint()
			if err != nil {
				return nil, err
			}
			v.HasLastSequence = true
			v.LastSequence = n
		default:
			return nil, base.CorruptionErrorf("manifest: unknown tag %d", tag)
		}
	}
	return v, nil
}
