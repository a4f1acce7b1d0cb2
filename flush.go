// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package ekv

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ekvdb/ekv/internal/manifest"
	"github.com/ekvdb/ekv/sstable"
)

// runFlush builds one L0 SST from table's contents and installs it via a
// VersionEdit (spec §4.11's FlushMemTable). table must already be frozen
// (immutable) and present in the CF's immutables queue.
func (db *DB) runFlush(cf uint32, table *memTable) error {
	start := time.Now()
	db.flushInProgress.Add(1)
	defer func() {
		db.flushInProgress.Add(-1)
		db.recordFlush(time.Since(start))
	}()

	db.memtables.markFlushing(cf, table)

	fileNum := db.vs.NextFileNum()
	path := db.sstPath(fileNum)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrap(err, "ekv: create sst file")
	}

	w := sstable.NewWriter(f, sstable.WriterOptions{
		CFID:         cf,
		Compare:      db.cmp,
		Compression:  db.opts.Compression,
		FilterPolicy: db.opts.FilterPolicy,
	})

	it := table.skl.NewIter()
	for ok := it.First(); ok; ok = it.Next() {
		if err := w.Add(it.Key(), it.Value()); err != nil {
			f.Close()
			return errors.Wrap(err, "ekv: flush write entry")
		}
	}
	meta, err := w.Finish()
	if err != nil {
		f.Close()
		return errors.Wrap(err, "ekv: flush finish")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrap(err, "ekv: flush sync")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "ekv: flush close")
	}
	if err := syncDir(filepath.Dir(path)); err != nil {
		return err
	}

	if meta.Properties.NumEntries == 0 {
		// Nothing to install; drop the empty file and just retire the
		// memtable.
		os.Remove(path)
		db.memtables.flushDone(cf, table)
		return nil
	}

	edit := &manifest.VersionEdit{
		CFID: cf,
		NewFiles: []manifest.NewFile{{
			Level: 0,
			Meta: manifest.FileMetadata{
				FileNum:      fileNum,
				Size:         meta.FileSize,
				Smallest:     meta.SmallestKey,
				Largest:      meta.LargestKey,
				AllowedSeeks: 1 << 30,
			},
		}},
	}
	if err := db.vs.LogAndApply(edit); err != nil {
		return errors.Wrap(err, "ekv: flush install")
	}

	db.memtables.flushDone(cf, table)

	if db.vs.CurrentVersion(cf) != nil && len(db.vs.CurrentVersion(cf).Levels[0]) >= db.opts.L0CompactionTrigger {
		db.worker.enqueue(&compactionTask{cf: cf})
	}
	return nil
}
