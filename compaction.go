// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package ekv

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ekvdb/ekv/internal/base"
	"github.com/ekvdb/ekv/internal/manifest"
	"github.com/ekvdb/ekv/sstable"
)

// levelFileBudget is the simple per-level file-count threshold that
// triggers an automatic compaction of that level into the next one,
// separate from L0CompactionTrigger which governs L0 specifically (spec
// §4.10's "intentionally simple" picker).
const levelFileBudget = 8

// pickCompaction chooses the source level and input files for an automatic
// compaction, or returns ok=false if nothing crosses a trigger.
func pickCompaction(v *manifest.Version, opts *Options) (level int, inputs []*manifest.FileMetadata, ok bool) {
	if len(v.Levels[0]) >= opts.L0CompactionTrigger {
		return 0, append([]*manifest.FileMetadata(nil), v.Levels[0]...), true
	}
	for l := 1; l < manifest.NumLevels-1; l++ {
		if len(v.Levels[l]) >= levelFileBudget {
			return l, append([]*manifest.FileMetadata(nil), v.Levels[l]...), true
		}
	}
	return 0, nil, false
}

func rangeOf(cmp func(a, b []byte) int, files []*manifest.FileMetadata) (smallest, largest []byte) {
	for _, f := range files {
		if smallest == nil || cmp(f.Smallest.UserKey, smallest) < 0 {
			smallest = f.Smallest.UserKey
		}
		if largest == nil || cmp(f.Largest.UserKey, largest) > 0 {
			largest = f.Largest.UserKey
		}
	}
	return smallest, largest
}

// runCompaction merges inputs at a chosen level (or the caller-specified
// [begin, end] window) into the next level, dropping superseded versions
// and tombstones no live snapshot still needs (spec §4.10/§4.11). Output is
// written as a single SST per compaction; splitting into multiple outputs
// once a size target is crossed is a follow-up (see DESIGN.md).
func (db *DB) runCompaction(cf uint32, begin, end []byte) error {
	version := db.vs.CurrentVersion(cf)
	if version == nil {
		return nil
	}

	var level int
	var inputs []*manifest.FileMetadata
	if begin != nil || end != nil {
		found := false
		for l := 0; l < manifest.NumLevels-1; l++ {
			if files := version.Overlaps(l, db.cmp, begin, end); len(files) > 0 {
				level, inputs, found = l, files, true
				break
			}
		}
		if !found {
			return nil
		}
	} else {
		var ok bool
		level, inputs, ok = pickCompaction(version, db.opts)
		if !ok {
			return nil
		}
	}

	start := time.Now()
	db.compactInProgress.Add(1)
	defer func() {
		db.compactInProgress.Add(-1)
		db.recordCompaction(time.Since(start))
	}()

	outputLevel := level + 1
	if level == 0 {
		// L0 ranges overlap; pull in every L0 file overlapping the selected
		// set's combined range (spec §4.10's "additionally pull in all
		// level-0 files whose ranges overlap the selected set").
		smallest, largest := rangeOf(db.cmp, inputs)
		inputs = version.Overlaps(0, db.cmp, smallest, largest)
	}
	smallest, largest := rangeOf(db.cmp, inputs)
	outputInputs := version.Overlaps(outputLevel, db.cmp, smallest, largest)

	edit := &manifest.VersionEdit{CFID: cf}
	for _, f := range inputs {
		edit.DeletedFiles = append(edit.DeletedFiles, manifest.DeletedFile{Level: level, FileNum: f.FileNum})
	}
	for _, f := range outputInputs {
		edit.DeletedFiles = append(edit.DeletedFiles, manifest.DeletedFile{Level: outputLevel, FileNum: f.FileNum})
	}

	allInputs := append(append([]*manifest.FileMetadata(nil), inputs...), outputInputs...)
	children := make([]sstable.InternalIterator, 0, len(allInputs))
	for _, f := range allInputs {
		it, err := db.tableCache.NewIter(f.FileNum)
		if err != nil {
			return errors.Wrap(err, "ekv: compaction open input")
		}
		children = append(children, it)
	}
	merged := sstable.NewMergingIter(func(a, b []byte) int { return base.EncodedCompare(db.cmp, a, b) }, children)
	defer merged.Close()

	snapFloor := db.snapshots.floor(db.vs.LastSequence())
	// isBottomLevel is true when outputLevel is the last level AND this
	// compaction's own outputInputs account for every file currently there
	// — i.e. nothing will be left behind in the bottom level that could
	// still hold an older version of a key underneath a dropped tombstone.
	// Comparing against pre-compaction level-emptiness instead would make
	// this permanently false after the first file ever lands in the bottom
	// level, silently disabling tombstone elision forever.
	isBottomLevel := outputLevel == manifest.NumLevels-1 && len(outputInputs) == len(version.Levels[outputLevel])

	outFileNum := db.vs.NextFileNum()
	outFile, err := os.OpenFile(db.sstPath(outFileNum), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrap(err, "ekv: compaction create output")
	}
	w := sstable.NewWriter(outFile, sstable.WriterOptions{
		CFID:         cf,
		Compare:      db.cmp,
		Compression:  db.opts.Compression,
		FilterPolicy: db.opts.FilterPolicy,
	})

	var lastUserKey []byte
	haveLast := false
	for ok := merged.First(); ok; ok = merged.Next() {
		ik := base.DecodeInternalKey(merged.Key())
		if !ik.Valid() {
			continue
		}
		if haveLast && db.cmp(ik.UserKey, lastUserKey) == 0 {
			// An older version of a user key already emitted in this
			// compaction: drop it (spec §4.10's "keeps the newest entry").
			continue
		}
		lastUserKey = append(lastUserKey[:0], ik.UserKey...)
		haveLast = true

		if ik.Kind() == base.InternalKeyKindDelete {
			// Conservative rule (spec §4.10): a tombstone is only dropped
			// once no live snapshot could observe the pre-delete value and
			// this compaction reaches the bottom level, so no lower level
			// could resurrect an older version underneath it.
			if ik.SeqNum() < snapFloor && isBottomLevel {
				continue
			}
		}
		if err := w.Add(ik, append([]byte(nil), merged.Value()...)); err != nil {
			outFile.Close()
			return errors.Wrap(err, "ekv: compaction write entry")
		}
	}

	meta, err := w.Finish()
	if err != nil {
		outFile.Close()
		return errors.Wrap(err, "ekv: compaction finish output")
	}
	if err := outFile.Sync(); err != nil {
		outFile.Close()
		return errors.Wrap(err, "ekv: compaction sync output")
	}
	if err := outFile.Close(); err != nil {
		return errors.Wrap(err, "ekv: compaction close output")
	}
	if err := syncDir(filepath.Dir(db.sstPath(outFileNum))); err != nil {
		return err
	}

	if meta.Properties.NumEntries > 0 {
		edit.NewFiles = append(edit.NewFiles, manifest.NewFile{
			Level: outputLevel,
			Meta: manifest.FileMetadata{
				FileNum:      outFileNum,
				Size:         meta.FileSize,
				Smallest:     meta.SmallestKey,
				Largest:      meta.LargestKey,
				AllowedSeeks: 1 << 30,
			},
		})
	} else {
		os.Remove(db.sstPath(outFileNum))
	}

	if len(edit.NewFiles) == 0 && len(edit.DeletedFiles) == 0 {
		return nil
	}
	if err := db.vs.LogAndApply(edit); err != nil {
		return errors.Wrap(err, "ekv: compaction install")
	}
	for _, f := range allInputs {
		db.tableCache.Evict(f.FileNum)
		os.Remove(db.sstPath(f.FileNum))
	}
	return nil
}
