// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package ekv

import "sync"

// Snapshot pins a sequence number so reads through it never observe writes
// committed after it was taken (spec §4.12's get_snapshot, strengthened per
// SUPPLEMENTED FEATURES: the engine tracks every live snapshot so
// compaction can tell which tombstones are still needed).
type Snapshot struct {
	seq uint64
}

// Sequence returns the pinned sequence number.
func (s *Snapshot) Sequence() uint64 { return s.seq }

// snapshotList is the live-snapshot registry: a multiset of held sequence
// numbers, consulted by compaction to compute the floor below which a
// Delete can be safely dropped instead of carried forward (REDESIGN FLAGS).
type snapshotList struct {
	mu    sync.Mutex
	held  map[uint64]int
}

func newSnapshotList() *snapshotList {
	return &snapshotList{held: make(map[uint64]int)}
}

func (l *snapshotList) acquire(seq uint64) *Snapshot {
	l.mu.Lock()
	l.held[seq]++
	l.mu.Unlock()
	return &Snapshot{seq: seq}
}

func (l *snapshotList) release(s *Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n, ok := l.held[s.seq]; ok {
		if n <= 1 {
			delete(l.held, s.seq)
		} else {
			l.held[s.seq] = n - 1
		}
	}
}

// count returns the number of currently open snapshots.
func (l *snapshotList) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.held {
		n += c
	}
	return n
}

// floor returns the lowest sequence number any live snapshot still pins, or
// fallback if none are held. A Delete with sequence strictly below this
// floor is invisible to every current and future snapshot and can be
// elided by compaction.
func (l *snapshotList) floor(fallback uint64) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	min := fallback
	first := true
	for seq := range l.held {
		if first || seq < min {
			min = seq
			first = false
		}
	}
	return min
}
