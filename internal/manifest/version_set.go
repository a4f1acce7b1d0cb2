// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"

	"github.com/ekvdb/ekv/record"
)

// syncDir fsyncs a directory's inode so a preceding file create/rename
// inside it is durable even if the machine crashes before the directory
// entry itself is flushed — the same directory-durability discipline
// pebble's own vfs layer applies around CURRENT/MANIFEST updates.
func syncDir(path string) error {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return errors.Wrap(err, "manifest: open dir for sync")
	}
	defer unix.Close(fd)
	return unix.Fsync(fd)
}

// cfState is a column family's live, mutable view: its name and current
// Version. VersionSet.cfs is updated in place, and every access after Open
// or Create returns holds mu.
type cfState struct {
	id      uint32
	name    string
	current *Version
}

// VersionSet owns the file-number and sequence-number counters, the set of
// column families and their current Versions, and the MANIFEST log that
// makes every change durable (spec §4.8).
type VersionSet struct {
	dirname string
	cmp     func(a, b []byte) int

	mu  sync.Mutex
	cfs map[uint32]*cfState

	nextFileNumber atomic.Uint64
	lastSequence   atomic.Uint64

	manifestFile   *os.File
	manifestWriter *record.Writer
	manifestNum    uint64
}

// FileName returns the path for fileNum with the given suffix ("sst", "log",
// "MANIFEST").
func FileName(dirname, suffix string, fileNum uint64) string {
	if suffix == "MANIFEST" {
		return filepath.Join(dirname, fmt.Sprintf("MANIFEST-%06d", fileNum))
	}
	return filepath.Join(dirname, fmt.Sprintf("%06d.%s", fileNum, suffix))
}

// Create bootstraps a brand-new VersionSet: allocates MANIFEST file number
// 1, writes the bootstrap edit (NEXT_FILE_NUMBER + LAST_SEQUENCE), and
// writes CURRENT pointing at it.
func Create(dirname string, cmp func(a, b []byte) int) (*VersionSet, error) {
	vs := &VersionSet{dirname: dirname, cmp: cmp, cfs: make(map[uint32]*cfState)}
	vs.nextFileNumber.Store(1)

	manifestNum := vs.allocateFileNum()
	f, err := os.OpenFile(FileName(dirname, "MANIFEST", manifestNum), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "manifest: create")
	}
	vs.manifestFile = f
	vs.manifestWriter = record.NewWriter(f)
	vs.manifestNum = manifestNum

	edit := &VersionEdit{HasNextFileNumber: true, NextFileNumber: vs.nextFileNumber.Load(), HasLastSequence: true, LastSequence: 0}
	if err := vs.writeEditLocked(edit); err != nil {
		return nil, err
	}
	if err := vs.setCurrent(manifestNum); err != nil {
		return nil, err
	}
	return vs, nil
}

// Open recovers a VersionSet by reading CURRENT then replaying the MANIFEST
// it names.
func Open(dirname string, cmp func(a, b []byte) int) (*VersionSet, error) {
	currentBytes, err := os.ReadFile(filepath.Join(dirname, "CURRENT"))
	if err != nil {
		return nil, errors.Wrap(err, "manifest: read CURRENT")
	}
	manifestName := string(currentBytes)
	for len(manifestName) > 0 && (manifestName[len(manifestName)-1] == '\n' || manifestName[len(manifestName)-1] == '\r') {
		manifestName = manifestName[:len(manifestName)-1]
	}

	vs := &VersionSet{dirname: dirname, cmp: cmp, cfs: make(map[uint32]*cfState)}

	manifestPath := filepath.Join(dirname, manifestName)
	rf, err := os.Open(manifestPath)
	if err != nil {
		return nil, errors.Wrap(err, "manifest: open manifest")
	}
	defer rf.Close()

	r := record.NewReader(rf)
	for {
		payload, err := r.ReadRecord()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "manifest: replay")
		}
		edit, err := Decode(payload)
		if err != nil {
			return nil, err
		}
		vs.applyLocked(edit)
	}

	f, err := os.OpenFile(manifestPath, os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "manifest: reopen for append")
	}
	// record.Writer counts block offsets from zero, so pad the replayed tail
	// out to a block boundary before appending new records.
	if fi, err := f.Stat(); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "manifest: stat manifest")
	} else if rem := fi.Size() % record.BlockSize; rem != 0 {
		if _, err := f.Write(make([]byte, record.BlockSize-rem)); err != nil {
			f.Close()
			return nil, errors.Wrap(err, "manifest: pad manifest tail")
		}
	}
	vs.manifestFile = f
	vs.manifestWriter = record.NewWriter(f)
	fmt.Sscanf(manifestName, "MANIFEST-%d", &vs.manifestNum)
	return vs, nil
}

// applyLocked folds edit into the in-memory state without touching the
// MANIFEST file; used both during replay and after a successful durable
// write in LogAndApply.
func (vs *VersionSet) applyLocked(edit *VersionEdit) {
	if edit.HasNextFileNumber && edit.NextFileNumber > vs.nextFileNumber.Load() {
		vs.nextFileNumber.Store(edit.NextFileNumber)
	}
	if edit.HasLastSequence && edit.LastSequence > vs.lastSequence.Load() {
		vs.lastSequence.Store(edit.LastSequence)
	}

	cf, ok := vs.cfs[edit.CFID]
	if edit.NewCF && !ok {
		cf = &cfState{id: edit.CFID, current: NewVersion()}
		vs.cfs[edit.CFID] = cf
		ok = true
	}
	if edit.DropCF {
		delete(vs.cfs, edit.CFID)
		return
	}
	if !ok {
		return
	}
	if len(edit.NewFiles) > 0 || len(edit.DeletedFiles) > 0 {
		cf.current = cf.current.Apply(edit, vs.cmp)
	}
}

func (vs *VersionSet) writeEditLocked(edit *VersionEdit) error {
	if err := vs.manifestWriter.WriteRecord(edit.Encode()); err != nil {
		return errors.Wrap(err, "manifest: write edit")
	}
	if err := vs.manifestWriter.Flush(); err != nil {
		return errors.Wrap(err, "manifest: flush")
	}
	return vs.manifestFile.Sync()
}

func (vs *VersionSet) setCurrent(manifestNum uint64) error {
	tmp := filepath.Join(vs.dirname, "CURRENT.tmp")
	name := filepath.Base(FileName(vs.dirname, "MANIFEST", manifestNum))
	if err := os.WriteFile(tmp, []byte(name+"\n"), 0644); err != nil {
		return errors.Wrap(err, "manifest: write CURRENT.tmp")
	}
	if err := os.Rename(tmp, filepath.Join(vs.dirname, "CURRENT")); err != nil {
		return errors.Wrap(err, "manifest: rename CURRENT")
	}
	return syncDir(vs.dirname)
}

// allocateFileNum atomically hands out the next file number.
func (vs *VersionSet) allocateFileNum() uint64 {
	return vs.nextFileNumber.Add(1) - 1
}

// NextFileNum returns a freshly allocated file number. The counter reaches
// the MANIFEST only in the NextFileNumber field of the next LogAndApply, so
// after a reopen a number handed out since the last edit can be handed out
// again.
func (vs *VersionSet) NextFileNum() uint64 {
	return vs.allocateFileNum()
}

// AllocateSequence reserves count consecutive sequence numbers and returns
// the first one (spec §4.2's allocate_sequence).
func (vs *VersionSet) AllocateSequence(count uint64) uint64 {
	return vs.lastSequence.Add(count) - count + 1
}

// LastSequence returns the highest sequence number allocated so far.
func (vs *VersionSet) LastSequence() uint64 {
	return vs.lastSequence.Load()
}

// LogAndApply durably appends edit to the MANIFEST and, only on success,
// folds it into the live in-memory Version map. Serialized by vs.mu so
// MANIFEST records are written in the same order they're applied.
func (vs *VersionSet) LogAndApply(edit *VersionEdit) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if !edit.HasNextFileNumber {
		edit.HasNextFileNumber = true
		edit.NextFileNumber = vs.nextFileNumber.Load()
	}
	if !edit.HasLastSequence {
		edit.HasLastSequence = true
		edit.LastSequence = vs.lastSequence.Load()
	}

	if err := vs.writeEditLocked(edit); err != nil {
		return err
	}
	vs.applyLocked(edit)
	return nil
}

// CreateColumnFamily allocates a fresh CF id and durably records its
// creation, returning the id.
func (vs *VersionSet) CreateColumnFamily(name string) (uint32, error) {
	vs.mu.Lock()
	id := uint32(len(vs.cfs))
	for {
		if _, ok := vs.cfs[id]; !ok {
			break
		}
		id++
	}
	vs.mu.Unlock()

	edit := &VersionEdit{CFID: id, NewCF: true}
	if err := vs.LogAndApply(edit); err != nil {
		return 0, err
	}
	vs.mu.Lock()
	vs.cfs[id].name = name
	vs.mu.Unlock()
	return id, nil
}

// CurrentVersion returns CF id's current Version, or nil if no such CF
// exists.
func (vs *VersionSet) CurrentVersion(id uint32) *Version {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	cf, ok := vs.cfs[id]
	if !ok {
		return nil
	}
	return cf.current
}

// ColumnFamilies returns every known (id, name) pair.
func (vs *VersionSet) ColumnFamilies() map[uint32]string {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	out := make(map[uint32]string, len(vs.cfs))
	for id, cf := range vs.cfs {
		out[id] = cf.name
	}
	return out
}

// Close stops accepting MANIFEST writes.
func (vs *VersionSet) Close() error {
	if vs.manifestFile == nil {
		return nil
	}
	return vs.manifestFile.Close()
}
