// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"os"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ekvdb/ekv/internal/base"
	"github.com/ekvdb/ekv/internal/cache"
)

// OpenFileFunc opens the backing file for a given SST file number. The
// root package supplies one that maps file numbers to paths under
// sst/<6-digit>.sst.
type OpenFileFunc func(fileNum uint64) (*os.File, int64, error)

// TableCache is keyed by file number (spec §4.7). On miss it opens the SST
// file, constructs a Reader bound to the shared block cache and filter
// policy, and caches it; a simple uncapped map is acceptable per spec
// ("capped eviction is a follow-up"). Concurrent Gets for the same
// not-yet-open file number are collapsed into a single open via
// singleflight, so N goroutines racing to read a freshly-installed SST
// open it exactly once.
type TableCache struct {
	openFile     OpenFileFunc
	cmp          func(a, b []byte) int
	blockCache   *cache.Cache
	filterPolicy base.FilterPolicy

	mu      sync.RWMutex
	readers map[uint64]*openReader
	group   singleflight.Group
}

type openReader struct {
	f *os.File
	r *Reader
}

// NewTableCache constructs an empty table cache.
func NewTableCache(openFile OpenFileFunc, cmp func(a, b []byte) int, blockCache *cache.Cache, filterPolicy base.FilterPolicy) *TableCache {
	return &TableCache{
		openFile:     openFile,
		cmp:          cmp,
		blockCache:   blockCache,
		filterPolicy: filterPolicy,
		readers:      make(map[uint64]*openReader),
	}
}

func (tc *TableCache) getOrOpen(fileNum uint64) (*Reader, error) {
	tc.mu.RLock()
	if or, ok := tc.readers[fileNum]; ok {
		tc.mu.RUnlock()
		return or.r, nil
	}
	tc.mu.RUnlock()

	key := strconv.FormatUint(fileNum, 10)
	v, err, _ := tc.group.Do(key, func() (interface{}, error) {
		tc.mu.RLock()
		if or, ok := tc.readers[fileNum]; ok {
			tc.mu.RUnlock()
			return or.r, nil
		}
		tc.mu.RUnlock()

		f, size, err := tc.openFile(fileNum)
		if err != nil {
			return nil, err
		}
		r, err := Open(f, size, fileNum, tc.cmp, tc.blockCache, tc.filterPolicy)
		if err != nil {
			f.Close()
			return nil, err
		}
		tc.mu.Lock()
		tc.readers[fileNum] = &openReader{f: f, r: r}
		tc.mu.Unlock()
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Reader), nil
}

// Get delegates to the Reader for fileNum, opening it on first use.
func (tc *TableCache) Get(fileNum uint64, searchKey base.InternalKey) (key base.InternalKey, value []byte, found bool, err error) {
	r, err := tc.getOrOpen(fileNum)
	if err != nil {
		return base.InternalKey{}, nil, false, err
	}
	return r.Get(searchKey)
}

// NewIter opens (if needed) and returns an iterator over fileNum.
func (tc *TableCache) NewIter(fileNum uint64) (InternalIterator, error) {
	r, err := tc.getOrOpen(fileNum)
	if err != nil {
		return nil, err
	}
	return r.NewIter(), nil
}

// Evict closes and drops fileNum from the cache, used when a file is
// removed after a compaction's VersionEdit is installed.
func (tc *TableCache) Evict(fileNum uint64) {
	tc.mu.Lock()
	or, ok := tc.readers[fileNum]
	if ok {
		delete(tc.readers, fileNum)
	}
	tc.mu.Unlock()
	if ok {
		or.f.Close()
	}
}

// Close closes every open file.
func (tc *TableCache) Close() error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	for fn, or := range tc.readers {
		or.f.Close()
		delete(tc.readers, fn)
	}
	return nil
}
