// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package ekv

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ekvdb/ekv/internal/base"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir, &Options{CreateIfMissing: true, EnableWAL: true})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// S1: basic put/get/delete.
func TestBasicPutGetDelete(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Put(DefaultCF, []byte("a"), []byte("1")))
	v, err := db.Get(DefaultCF, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	require.NoError(t, db.Put(DefaultCF, []byte("a"), []byte("2")))
	v, err = db.Get(DefaultCF, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), v)

	require.NoError(t, db.Delete(DefaultCF, []byte("a")))
	_, err = db.Get(DefaultCF, []byte("a"))
	require.ErrorIs(t, err, base.ErrNotFound)

	_, err = db.Get(DefaultCF, []byte("never-written"))
	require.ErrorIs(t, err, base.ErrNotFound)
}

// S2: snapshot isolation — a snapshot taken before a write must not observe it.
func TestSnapshotIsolation(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Put(DefaultCF, []byte("k"), []byte("v1")))
	snap := db.GetSnapshot()
	defer db.ReleaseSnapshot(snap)

	require.NoError(t, db.Put(DefaultCF, []byte("k"), []byte("v2")))

	v, err := db.getAt(DefaultCF, []byte("k"), snap.Sequence())
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), v)

	v, err = db.Get(DefaultCF, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), v)
}

// S3: flush boundary — a value survives being frozen and flushed to an SST,
// and is still reachable through Get once the memtable no longer has it.
func TestFlushBoundary(t *testing.T) {
	db := openTestDB(t)

	for i := 0; i < 50; i++ {
		require.NoError(t, db.Put(DefaultCF, []byte{byte(i)}, []byte("value")))
	}
	frozen := db.memtables.freezeActive(DefaultCF)
	require.NotNil(t, frozen)
	require.NoError(t, db.runFlush(DefaultCF, frozen))

	v := db.vs.CurrentVersion(DefaultCF)
	require.NotNil(t, v)
	require.Len(t, v.Levels[0], 1)

	val, err := db.Get(DefaultCF, []byte{10})
	require.NoError(t, err)
	require.Equal(t, []byte("value"), val)
}

// S4: a tombstone that survives a flush with no memtable copy left behind
// must still make the key read as absent, not as a present nil value.
func TestDeleteSurvivesFlush(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Put(DefaultCF, []byte("a"), []byte("1")))
	frozen := db.memtables.freezeActive(DefaultCF)
	require.NoError(t, db.runFlush(DefaultCF, frozen))

	require.NoError(t, db.Delete(DefaultCF, []byte("a")))
	frozen = db.memtables.freezeActive(DefaultCF)
	require.NoError(t, db.runFlush(DefaultCF, frozen))

	v := db.vs.CurrentVersion(DefaultCF)
	require.Len(t, v.Levels[0], 2)

	_, err := db.Get(DefaultCF, []byte("a"))
	require.ErrorIs(t, err, base.ErrNotFound)
}

// S4: compaction correctness — after compacting L0 into L1, the newest
// version of each key is still the one returned, and older versions are
// gone from the tree.
func TestCompactionCorrectness(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir, &Options{CreateIfMissing: true, EnableWAL: true, L0CompactionTrigger: 2})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Put(DefaultCF, []byte("k"), []byte("old")))
	frozen := db.memtables.freezeActive(DefaultCF)
	require.NoError(t, db.runFlush(DefaultCF, frozen))

	require.NoError(t, db.Put(DefaultCF, []byte("k"), []byte("new")))
	frozen = db.memtables.freezeActive(DefaultCF)
	require.NoError(t, db.runFlush(DefaultCF, frozen))

	v := db.vs.CurrentVersion(DefaultCF)
	require.Len(t, v.Levels[0], 2)

	require.NoError(t, db.runCompaction(DefaultCF, nil, nil))

	v = db.vs.CurrentVersion(DefaultCF)
	require.Len(t, v.Levels[0], 0)
	require.Len(t, v.Levels[1], 1)

	val, err := db.Get(DefaultCF, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("new"), val)
}

// S5: crash recovery — reopening a DB replays the WAL and restores all
// durable writes made before close.
func TestCrashRecovery(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir, &Options{CreateIfMissing: true, EnableWAL: true})
	require.NoError(t, err)

	require.NoError(t, db.Put(DefaultCF, []byte("a"), []byte("1")))
	require.NoError(t, db.Put(DefaultCF, []byte("b"), []byte("2")))
	require.NoError(t, db.Delete(DefaultCF, []byte("a")))
	require.NoError(t, db.Close())

	db2, err := Open(dir, &Options{CreateIfMissing: false, EnableWAL: true})
	require.NoError(t, err)
	defer db2.Close()

	_, err = db2.Get(DefaultCF, []byte("a"))
	require.ErrorIs(t, err, base.ErrNotFound)
	v, err := db2.Get(DefaultCF, []byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), v)
}

// S6: iterator across memtable and SSTs — new_iterator sees a merged,
// deduplicated, tombstone-free view regardless of where each key's latest
// version currently lives.
func TestIteratorAcrossMemtableAndSST(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Put(DefaultCF, []byte("a"), []byte("1")))
	require.NoError(t, db.Put(DefaultCF, []byte("b"), []byte("2")))
	frozen := db.memtables.freezeActive(DefaultCF)
	require.NoError(t, db.runFlush(DefaultCF, frozen))

	require.NoError(t, db.Put(DefaultCF, []byte("c"), []byte("3")))
	require.NoError(t, db.Delete(DefaultCF, []byte("b")))

	it, err := db.NewIterator(DefaultCF)
	require.NoError(t, err)
	defer it.Close()

	var got []string
	for ok := it.First(); ok; ok = it.Next() {
		got = append(got, string(it.Key())+"="+string(it.Value()))
	}
	require.Equal(t, []string{"a=1", "c=3"}, got)
}

func TestWriteBatchMultiCF(t *testing.T) {
	db := openTestDB(t)

	b := NewBatch()
	b.Set(SystemCF, []byte("x"), []byte("sys"))
	b.Set(DefaultCF, []byte("x"), []byte("def"))
	require.NoError(t, db.Write(b))

	v, err := db.Get(SystemCF, []byte("x"))
	require.NoError(t, err)
	require.Equal(t, []byte("sys"), v)

	v, err = db.Get(DefaultCF, []byte("x"))
	require.NoError(t, err)
	require.Equal(t, []byte("def"), v)
}
