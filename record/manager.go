// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package record

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// Syncer abstracts the durability primitive a Manager drives. *os.File
// satisfies it.
type Syncer interface {
	Write(p []byte) (int, error)
	Sync() error
}

// Manager owns one log file (a WAL segment or the MANIFEST) and serializes
// appends behind a mutex, per spec §4.1. It tracks two watermarks:
// pendingSeq, the highest sequence number whose bytes have reached the
// kernel (via Write/Flush), and syncedSeq, the highest fsynced. A dedicated
// goroutine observes pendingSeq > syncedSeq, calls Sync, and wakes callers
// blocked in AppendSync.
type Manager struct {
	mu         sync.Mutex
	f          Syncer
	w          *Writer
	pendingSeq uint64
	syncedSeq  uint64
	cond       *sync.Cond
	closed     bool
	closeCh    chan struct{}
	syncReq    chan struct{}
	doneCh     chan struct{}
}

// NewManager wraps f (already positioned for appending) and starts its
// background sync goroutine.
func NewManager(f Syncer) *Manager {
	m := &Manager{
		f:       f,
		w:       NewWriter(f),
		closeCh: make(chan struct{}),
		syncReq: make(chan struct{}, 1),
		doneCh:  make(chan struct{}),
	}
	m.cond = sync.NewCond(&m.mu)
	go m.syncLoop()
	return m
}

func (m *Manager) syncLoop() {
	defer close(m.doneCh)
	for {
		select {
		case <-m.syncReq:
		case <-m.closeCh:
			return
		}
		m.mu.Lock()
		target := m.pendingSeq
		m.mu.Unlock()

		var err error
		if target > 0 {
			err = m.f.Sync()
		}

		m.mu.Lock()
		if err == nil {
			m.syncedSeq = target
		}
		m.cond.Broadcast()
		m.mu.Unlock()

		select {
		case <-m.closeCh:
			return
		default:
		}
	}
}

func (m *Manager) wakeSyncer() {
	select {
	case m.syncReq <- struct{}{}:
	default:
	}
}

// AppendSync encodes and appends payload covering sequence numbers
// [baseSeq, baseSeq+count-1], flushes it to the kernel, and blocks until it
// has been fsynced. It returns once syncedSeq >= baseSeq+count-1.
func (m *Manager) AppendSync(baseSeq, count uint64, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("record: manager closed")
	}
	if err := m.w.WriteRecord(payload); err != nil {
		return errors.Wrap(err, "record: write")
	}
	if err := m.w.Flush(); err != nil {
		return errors.Wrap(err, "record: flush")
	}
	last := baseSeq + count - 1
	if last > m.pendingSeq {
		m.pendingSeq = last
	}
	m.wakeSyncer()
	for m.syncedSeq < last && !m.closed {
		m.cond.Wait()
	}
	if m.closed && m.syncedSeq < last {
		return errors.New("record: manager closed before sync completed")
	}
	return nil
}

// AppendNoSync appends payload and flushes it to the kernel but returns
// without waiting for fsync (used when EnableWAL is false).
func (m *Manager) AppendNoSync(baseSeq, count uint64, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("record: manager closed")
	}
	if err := m.w.WriteRecord(payload); err != nil {
		return errors.Wrap(err, "record: write")
	}
	if err := m.w.Flush(); err != nil {
		return errors.Wrap(err, "record: flush")
	}
	last := baseSeq + count - 1
	if last > m.pendingSeq {
		m.pendingSeq = last
	}
	return nil
}

// Close stops the sync goroutine. It does not close the underlying file.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
	close(m.closeCh)
	<-m.doneCh
	return nil
}
