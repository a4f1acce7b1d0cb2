// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"sort"

	"golang.org/x/exp/slices"

	"github.com/ekvdb/ekv/internal/base"
)

// TableReader is the subset of sstable.Reader/TableCache that Version.Get
// needs, kept abstract here so internal/manifest has no import-cycle
// dependency on the sstable package.
type TableReader interface {
	Get(fileNum uint64, searchKey base.InternalKey) (key base.InternalKey, value []byte, found bool, err error)
}

// Version is an immutable snapshot of one column family's file organization:
// an array of file lists, one per level (spec §4.8). L0 files may overlap in
// key range and are ordered newest-file-number-first; L1 and below are
// disjoint and sorted by smallest key.
type Version struct {
	Levels [NumLevels][]*FileMetadata
}

// NewVersion returns an empty Version (used when a column family is first
// created).
func NewVersion() *Version {
	return &Version{}
}

// clone returns a shallow copy of v, suitable as the basis for applying a
// VersionEdit (the FileMetadata values themselves are never mutated once
// created, only the per-level slices are replaced).
func (v *Version) clone() *Version {
	nv := &Version{}
	for l := 0; l < NumLevels; l++ {
		if len(v.Levels[l]) > 0 {
			nv.Levels[l] = append([]*FileMetadata(nil), v.Levels[l]...)
		}
	}
	return nv
}

// Apply returns a new Version reflecting edit applied on top of v. Deleted
// files are removed before added files are inserted; L0 keeps newest-first
// file-number order, L1+ is kept sorted by smallest user key.
func (v *Version) Apply(edit *VersionEdit, cmp func(a, b []byte) int) *Version {
	nv := v.clone()

	for _, df := range edit.DeletedFiles {
		files := nv.Levels[df.Level]
		out := files[:0]
		for _, f := range files {
			if f.FileNum != df.FileNum {
				out = append(out, f)
			}
		}
		nv.Levels[df.Level] = out
	}

	for _, nf := range edit.NewFiles {
		meta := nf.Meta
		nv.Levels[nf.Level] = append(nv.Levels[nf.Level], &meta)
	}

	for l := 1; l < NumLevels; l++ {
		slices.SortFunc(nv.Levels[l], func(a, b *FileMetadata) bool {
			return cmp(a.Smallest.UserKey, b.Smallest.UserKey) < 0
		})
	}
	// L0 is kept in newest-file-number-first order so Get's linear scan
	// checks the most recent file first.
	slices.SortFunc(nv.Levels[0], func(a, b *FileMetadata) bool {
		return a.FileNum > b.FileNum
	})

	return nv
}

// Get implements spec §4.8's lookup algorithm: scan L0 newest-file-first,
// skipping files whose range excludes userKey; then for each L1..L6 binary
// search for the one file that might contain userKey. reader.Get is called
// with a search key built at the requested snapshot sequence, so the first
// visible version found is the correct one under MVCC.
func (v *Version) Get(cmp func(a, b []byte) int, reader TableReader, userKey []byte, snapshotSeq uint64) (value []byte, found bool, err error) {
	search := base.MakeInternalKey(userKey, snapshotSeq, base.InternalKeyKindMax)

	for _, f := range v.Levels[0] {
		if !f.Overlaps(cmp, userKey, userKey) {
			continue
		}
		ik, val, ok, err := reader.Get(f.FileNum, search)
		if err != nil {
			return nil, false, err
		}
		if ok {
			if ik.Kind() == base.InternalKeyKindDelete {
				return nil, false, nil
			}
			return val, true, nil
		}
	}

	for l := 1; l < NumLevels; l++ {
		files := v.Levels[l]
		if len(files) == 0 {
			continue
		}
		i := sort.Search(len(files), func(i int) bool {
			return cmp(files[i].Largest.UserKey, userKey) >= 0
		})
		if i >= len(files) || !files[i].Overlaps(cmp, userKey, userKey) {
			continue
		}
		ik, val, ok, err := reader.Get(files[i].FileNum, search)
		if err != nil {
			return nil, false, err
		}
		if ok {
			if ik.Kind() == base.InternalKeyKindDelete {
				return nil, false, nil
			}
			return val, true, nil
		}
	}
	return nil, false, nil
}

// Overlaps returns the files on level l overlapping [smallest, largest].
// For L0, all files are scanned (ranges may overlap); for L1+ the disjoint
// sorted array is binary-searched for the starting point.
func (v *Version) Overlaps(l int, cmp func(a, b []byte) int, smallest, largest []byte) []*FileMetadata {
	var out []*FileMetadata
	if l == 0 {
		for _, f := range v.Levels[0] {
			if f.Overlaps(cmp, smallest, largest) {
				out = append(out, f)
			}
		}
		return out
	}
	files := v.Levels[l]
	i := sort.Search(len(files), func(i int) bool {
		return smallest == nil || cmp(files[i].Largest.UserKey, smallest) >= 0
	})
	for ; i < len(files); i++ {
		if !files[i].Overlaps(cmp, smallest, largest) {
			break
		}
		out = append(out, files[i])
	}
	return out
}
