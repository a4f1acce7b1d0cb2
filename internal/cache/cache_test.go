// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheGetInsertEvict(t *testing.T) {
	c := New(64, 1)
	k1 := Key{FileNum: 1, Offset: 0}
	c.Insert(k1, []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), 32).Release()
	if h, ok := c.Get(k1); !ok {
		t.Fatal("expected hit")
	} else {
		h.Release()
	}

	k2 := Key{FileNum: 1, Offset: 32}
	c.Insert(k2, []byte("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"), 32).Release()

	// Capacity is 64 bytes total (1 shard); inserting a third 32-byte entry
	// must evict the least-recently-used one (k1, since k2 was touched
	// last).
	k3 := Key{FileNum: 1, Offset: 64}
	c.Insert(k3, []byte("cccccccccccccccccccccccccccccccc"), 32).Release()

	if _, ok := c.Get(k1); ok {
		t.Fatal("expected k1 evicted")
	}
	if _, ok := c.Get(k2); !ok {
		t.Fatal("expected k2 present")
	}
}

func TestCachePinnedNotEvicted(t *testing.T) {
	c := New(32, 1)
	k1 := Key{FileNum: 1, Offset: 0}
	h := c.Insert(k1, make([]byte, 32), 32)
	// h pins k1; a second insert that would normally evict it must instead
	// skip over it.
	k2 := Key{FileNum: 1, Offset: 32}
	c.Insert(k2, make([]byte, 32), 32).Release()

	_, ok := c.Get(k1)
	require.True(t, ok, "pinned entry must survive eviction pressure")
	h.Release()
}
