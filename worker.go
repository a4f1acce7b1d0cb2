// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package ekv

import (
	"time"

	"golang.org/x/sync/errgroup"
)

// command is the background worker's unit of work (spec §4.11), grounded on
// original_source/background/task.rs's closed Command interface: a typed
// task with an explicit Execute contract, rather than a bare closure, so
// retries and logging can name the task kind.
type command interface {
	execute(db *DB) error
	name() string
}

// flushTask builds an SST from one frozen memtable and installs it at
// level 0 (spec §4.11's FlushMemTable).
type flushTask struct {
	cf    uint32
	table *memTable
}

func (t *flushTask) name() string { return "flush" }
func (t *flushTask) execute(db *DB) error { return db.runFlush(t.cf, t.table) }

// compactionTask runs one compaction pass over [begin, end] (spec §4.11's
// Compaction). A nil begin/end means "the whole keyspace".
type compactionTask struct {
	cf          uint32
	begin, end  []byte
}

func (t *compactionTask) name() string { return "compaction" }
func (t *compactionTask) execute(db *DB) error { return db.runCompaction(t.cf, t.begin, t.end) }

// worker pops commands from a FIFO on a single goroutine and runs each one
// on its own goroutine from an errgroup.Group: flushes on a group limited
// to MaxBackgroundFlushes, compactions on one limited to
// MaxBackgroundCompactions. Commands start in FIFO order within each group,
// but a flush and a compaction can run at the same time, and with a limit
// above one so can two commands of the same kind. MANIFEST edits are
// ordered by VersionSet.LogAndApply's mutex, not by the worker.
type worker struct {
	db      *DB
	queue   chan command
	done    chan struct{}
	flushGroup *errgroup.Group
	compactGroup *errgroup.Group
}

func newWorker(db *DB) *worker {
	fg := &errgroup.Group{}
	fg.SetLimit(db.opts.MaxBackgroundFlushes)
	cg := &errgroup.Group{}
	cg.SetLimit(db.opts.MaxBackgroundCompactions)
	w := &worker{
		db:           db,
		queue:        make(chan command, 64),
		done:         make(chan struct{}),
		flushGroup:   fg,
		compactGroup: cg,
	}
	go w.run()
	return w
}

func (w *worker) enqueue(c command) {
	select {
	case w.queue <- c:
	case <-w.done:
	}
}

func (w *worker) run() {
	backoff := 50 * time.Millisecond
	for {
		select {
		case c := <-w.queue:
			w.dispatch(c, backoff)
		case <-w.done:
			// Drain whatever is already queued before exiting, per spec
			// §4.11's "honors a shutdown flag, draining ... pending
			// commands" — a closed db should still persist pending flushes.
			for {
				select {
				case c := <-w.queue:
					w.dispatch(c, backoff)
				default:
					return
				}
			}
		}
	}
}

func (w *worker) dispatch(c command, backoff time.Duration) {
	var g *errgroup.Group
	switch c.(type) {
	case *flushTask:
		g = w.flushGroup
	default:
		g = w.compactGroup
	}
	g.Go(func() error {
		if err := c.execute(w.db); err != nil {
			w.db.opts.Logger.Infof("ekv: %s failed, retrying: %v", c.name(), err)
			time.Sleep(backoff)
			if err := c.execute(w.db); err != nil {
				w.db.opts.Logger.Infof("ekv: %s failed again, dropping retry: %v", c.name(), err)
			}
		}
		return nil
	})
}

// close stops accepting new work and waits for in-flight tasks to finish.
func (w *worker) close() {
	close(w.done)
	_ = w.flushGroup.Wait()
	_ = w.compactGroup.Wait()
}
