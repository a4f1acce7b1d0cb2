// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package ekv

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"

	"github.com/ekvdb/ekv/internal/base"
	"github.com/ekvdb/ekv/internal/cache"
	"github.com/ekvdb/ekv/internal/manifest"
	"github.com/ekvdb/ekv/record"
	"github.com/ekvdb/ekv/sstable"
)

// latencyHistMin/Max bound the flush/compaction latency histograms: a
// microsecond floor and a 10-minute ceiling, three significant figures,
// matching the precision pebble itself asks hdrhistogram for.
const (
	latencyHistMin = 1
	latencyHistMax = int64(10 * time.Minute / time.Microsecond)
	latencyHistSig = 3
)

// DB is the facade described in spec §4.12: put/delete/write/get/
// new_iterator/flush/compact_range/get_snapshot/release_snapshot/close.
type DB struct {
	dirname string
	opts    *Options
	cmp     func(a, b []byte) int

	vs         *manifest.VersionSet
	blockCache *cache.Cache
	tableCache *sstable.TableCache
	memtables  *memTableSet
	worker     *worker
	snapshots  *snapshotList

	walMu      sync.Mutex
	walNum     uint64
	walFile    *os.File
	walManager *record.Manager

	flushCount      atomic.Int64
	flushInProgress atomic.Int64
	compactCount    atomic.Int64
	compactInProgress atomic.Int64
	histMu      sync.Mutex
	flushHist   *hdrhistogram.Histogram
	compactHist *hdrhistogram.Histogram

	closed bool
}

// Open bootstraps or recovers a DB rooted at dirname.
func Open(dirname string, opts *Options) (*DB, error) {
	if opts == nil {
		opts = &Options{}
	}
	opts = opts.EnsureDefaults()

	walDir := filepath.Join(dirname, "wal")
	sstDir := filepath.Join(dirname, "sst")
	currentPath := filepath.Join(dirname, "CURRENT")

	_, err := os.Stat(currentPath)
	fresh := os.IsNotExist(err)
	if fresh && !opts.CreateIfMissing {
		return nil, errors.Wrap(base.ErrInvalidArgument, "ekv: db does not exist and CreateIfMissing is false")
	}
	if fresh {
		if err := os.MkdirAll(walDir, 0755); err != nil {
			return nil, errors.Wrap(err, "ekv: create wal dir")
		}
		if err := os.MkdirAll(sstDir, 0755); err != nil {
			return nil, errors.Wrap(err, "ekv: create sst dir")
		}
		if err := syncDir(dirname); err != nil {
			return nil, err
		}
	}

	cmp := opts.Comparer.Compare

	var vs *manifest.VersionSet
	if fresh {
		vs, err = manifest.Create(dirname, cmp)
	} else {
		vs, err = manifest.Open(dirname, cmp)
	}
	if err != nil {
		return nil, err
	}

	db := &DB{dirname: dirname, opts: opts, cmp: cmp, vs: vs, snapshots: newSnapshotList()}
	db.flushHist = hdrhistogram.New(latencyHistMin, latencyHistMax, latencyHistSig)
	db.compactHist = hdrhistogram.New(latencyHistMin, latencyHistMax, latencyHistSig)
	db.blockCache = cache.New(opts.BlockCacheCapacity, opts.BlockCacheShards)
	db.tableCache = sstable.NewTableCache(db.openSSTFile, cmp, db.blockCache, opts.FilterPolicy)
	db.memtables = newMemTableSet(db)

	if fresh {
		if _, err := vs.CreateColumnFamily("system"); err != nil {
			return nil, err
		}
		if _, err := vs.CreateColumnFamily("default"); err != nil {
			return nil, err
		}
	}

	if err := db.recoverWAL(walDir); err != nil {
		return nil, err
	}
	if err := db.rotateWAL(walDir); err != nil {
		return nil, err
	}

	db.worker = newWorker(db)
	return db, nil
}

// syncDir fsyncs a directory inode so a preceding create/rename inside it
// (a fresh WAL file, a renamed CURRENT) survives a crash; matches the
// fsync-the-directory discipline internal/manifest applies around CURRENT.
func syncDir(path string) error {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return errors.Wrap(err, "ekv: open dir for sync")
	}
	defer unix.Close(fd)
	return unix.Fsync(fd)
}

func (db *DB) sstPath(fileNum uint64) string {
	return filepath.Join(db.dirname, "sst", fmt.Sprintf("%06d.sst", fileNum))
}

func (db *DB) openSSTFile(fileNum uint64) (*os.File, int64, error) {
	f, err := os.Open(db.sstPath(fileNum))
	if err != nil {
		return nil, 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, fi.Size(), nil
}

// recoverWAL replays every wal/*.log file, oldest first, rebuilding every
// CF's memtable from scratch. Nothing is skipped: since WAL files are never
// pruned (see DESIGN.md), an entry already incorporated into a flushed SST
// may be replayed a second time, but replaying it just reinserts the exact
// same (key, sequence, value) the SST already holds, which is harmless — a
// memtable lookup that matches it returns the same answer either source
// would have given. Afterwards the sequence counter is advanced to the
// highest replayed sequence, so reads see the replayed entries.
func (db *DB) recoverWAL(walDir string) error {
	nums, err := listLogFiles(walDir)
	if err != nil {
		return err
	}
	const recovered = 0
	maxSeq := db.vs.LastSequence()
	for _, n := range nums {
		f, err := os.Open(filepath.Join(walDir, fmt.Sprintf("%06d.log", n)))
		if err != nil {
			return errors.Wrap(err, "ekv: open wal for replay")
		}
		err = record.Replay(f, recovered, func(baseSeq uint64, entries []record.Entry) error {
			if n := uint64(len(entries)); n > 0 && baseSeq+n-1 > maxSeq {
				maxSeq = baseSeq + n - 1
			}
			return db.memtables.apply(baseSeq, entries)
		})
		f.Close()
		if err != nil {
			return errors.Wrap(err, "ekv: wal replay")
		}
	}
	if last := db.vs.LastSequence(); maxSeq > last {
		db.vs.AllocateSequence(maxSeq - last)
	}
	return nil
}

func listLogFiles(walDir string) ([]uint64, error) {
	entries, err := os.ReadDir(walDir)
	if err != nil {
		return nil, errors.Wrap(err, "ekv: read wal dir")
	}
	var nums []uint64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".log") {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSuffix(name, ".log"), 10, 64)
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	return nums, nil
}

// rotateWAL opens a fresh WAL file for new writes to append to. Called once
// after recovery, since record.Writer must start at a block boundary and a
// replayed file's tail position is not guaranteed to be one. WAL files are
// never pruned (see DESIGN.md), so this is never called again afterward.
func (db *DB) rotateWAL(walDir string) error {
	db.walMu.Lock()
	defer db.walMu.Unlock()
	if db.walManager != nil {
		db.walManager.Close()
		db.walFile.Close()
	}
	num := db.vs.NextFileNum()
	// The file-number counter can repeat a number handed out before a
	// reopen (see VersionSet.NextFileNum); never truncate an existing WAL.
	for {
		if _, err := os.Stat(filepath.Join(walDir, fmt.Sprintf("%06d.log", num))); os.IsNotExist(err) {
			break
		}
		num = db.vs.NextFileNum()
	}
	f, err := os.OpenFile(filepath.Join(walDir, fmt.Sprintf("%06d.log", num)), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrap(err, "ekv: create wal file")
	}
	if err := syncDir(walDir); err != nil {
		f.Close()
		return err
	}
	db.walNum = num
	db.walFile = f
	db.walManager = record.NewManager(f)
	return nil
}

// Put stages and applies a single Put (spec §4.12's put).
func (db *DB) Put(cf uint32, key, value []byte) error {
	b := NewBatch()
	b.Set(cf, key, value)
	return db.Write(b)
}

// Delete stages and applies a single Delete.
func (db *DB) Delete(cf uint32, key []byte) error {
	b := NewBatch()
	b.Delete(cf, key)
	return db.Write(b)
}

// Write applies batch atomically (spec §4.12's write(batch) sequence).
func (db *DB) Write(b *Batch) error {
	if db.closed {
		return base.ErrClosed
	}
	if b.Empty() {
		return nil
	}
	if err := db.memtables.makeRoomForWrite(b.cfs); err != nil {
		return err
	}

	baseSeq := db.vs.AllocateSequence(uint64(b.Len()))
	payload := record.EncodeBatch(nil, baseSeq, b.entries)

	db.walMu.Lock()
	wm := db.walManager
	db.walMu.Unlock()

	count := uint64(b.Len())
	var err error
	if db.opts.EnableWAL {
		err = wm.AppendSync(baseSeq, count, payload)
	} else {
		err = wm.AppendNoSync(baseSeq, count, payload)
	}
	if err != nil {
		return errors.Wrap(err, "ekv: wal append")
	}

	return db.memtables.apply(baseSeq, b.entries)
}

// Get returns the value for key in cf at the current sequence, or
// base.ErrNotFound if absent (spec §4.12's get).
func (db *DB) Get(cf uint32, key []byte) ([]byte, error) {
	return db.getAt(cf, key, db.vs.LastSequence())
}

func (db *DB) getAt(cf uint32, key []byte, snapshotSeq uint64) ([]byte, error) {
	if db.closed {
		return nil, base.ErrClosed
	}
	if v, res := db.memtables.get(cf, snapshotSeq, key); res != lookupAbsent {
		if res == lookupTombstone {
			return nil, base.ErrNotFound
		}
		return v, nil
	}
	version := db.vs.CurrentVersion(cf)
	if version == nil {
		return nil, base.ErrNotFound
	}
	val, found, err := version.Get(db.cmp, db.tableCache, key, snapshotSeq)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, base.ErrNotFound
	}
	return val, nil
}

// buildChildren returns one InternalIterator per live memtable and per SST
// file currently visible for cf, for use by NewIterator.
func (db *DB) buildChildren(cf uint32) ([]sstable.InternalIterator, error) {
	children := db.memtables.allIterators(cf)
	version := db.vs.CurrentVersion(cf)
	if version != nil {
		for _, files := range version.Levels {
			for _, f := range files {
				it, err := db.tableCache.NewIter(f.FileNum)
				if err != nil {
					return nil, err
				}
				children = append(children, it)
			}
		}
	}
	return children, nil
}

// NewIterator returns a user-key-level cursor over cf at the current
// sequence.
func (db *DB) NewIterator(cf uint32) (*Iterator, error) {
	return db.newIteratorAt(cf, db.vs.LastSequence())
}

func (db *DB) newIteratorAt(cf uint32, snapshotSeq uint64) (*Iterator, error) {
	children, err := db.buildChildren(cf)
	if err != nil {
		return nil, err
	}
	return &Iterator{inner: newSnapshotIterator(db.cmp, children, snapshotSeq)}, nil
}

// Flush freezes cf's active memtable and schedules a flush, returning once
// the command has been enqueued (not once it has run).
func (db *DB) Flush(cf uint32) error {
	frozen := db.memtables.freezeActive(cf)
	if frozen == nil {
		return nil
	}
	db.worker.enqueue(&flushTask{cf: cf, table: frozen})
	return nil
}

// CompactRange schedules a compaction over [begin, end] (nil bounds mean
// the whole keyspace).
func (db *DB) CompactRange(cf uint32, begin, end []byte) error {
	db.worker.enqueue(&compactionTask{cf: cf, begin: begin, end: end})
	return nil
}

// GetSnapshot returns an opaque handle pinning the current sequence number
// so subsequent reads through it see a consistent point in time (spec
// §4.12's get_snapshot, strengthened per SUPPLEMENTED FEATURES to track
// live snapshots for tombstone elision).
func (db *DB) GetSnapshot() *Snapshot {
	return db.snapshots.acquire(db.vs.LastSequence())
}

// ReleaseSnapshot retires a snapshot handle, allowing the compactor to drop
// tombstones below the new oldest-live-snapshot floor.
func (db *DB) ReleaseSnapshot(s *Snapshot) {
	db.snapshots.release(s)
}

// recordFlush records one flush's wall-clock duration and increments the
// flush counter, regardless of whether the flush succeeded (the teacher's
// own metrics count attempts, not just successes).
func (db *DB) recordFlush(d time.Duration) {
	db.flushCount.Add(1)
	db.histMu.Lock()
	db.flushHist.RecordValue(d.Microseconds())
	db.histMu.Unlock()
}

// recordCompaction records one compaction's wall-clock duration and
// increments the compaction counter.
func (db *DB) recordCompaction(d time.Duration) {
	db.compactCount.Add(1)
	db.histMu.Lock()
	db.compactHist.RecordValue(d.Microseconds())
	db.histMu.Unlock()
}

// Metrics returns a point-in-time snapshot of cache, level, and snapshot
// statistics across every column family.
func (db *DB) Metrics() *Metrics {
	m := &Metrics{}
	m.BlockCache = db.blockCache.Metrics()
	m.Snapshots.Count = db.snapshots.count()
	m.Snapshots.EarliestSeqNum = db.snapshots.floor(db.vs.LastSequence())
	m.Flush.Count = db.flushCount.Load()
	m.Flush.NumInProgress = db.flushInProgress.Load()
	m.Compact.Count = db.compactCount.Load()
	m.Compact.NumInProgress = db.compactInProgress.Load()
	db.histMu.Lock()
	m.Compact.Duration = time.Duration(db.compactHist.Mean()) * time.Microsecond
	db.histMu.Unlock()
	for cf := range db.vs.ColumnFamilies() {
		v := db.vs.CurrentVersion(cf)
		if v == nil {
			continue
		}
		for l := 0; l < manifest.NumLevels; l++ {
			for _, f := range v.Levels[l] {
				m.Levels[l].NumFiles++
				m.Levels[l].Size += int64(f.Size)
			}
		}
	}
	return m
}

// Close stops the background worker and closes open files.
func (db *DB) Close() error {
	if db.closed {
		return nil
	}
	db.closed = true
	db.worker.close()
	db.walMu.Lock()
	if db.walManager != nil {
		db.walManager.Close()
		db.walFile.Close()
	}
	db.walMu.Unlock()
	db.tableCache.Close()
	return db.vs.Close()
}
