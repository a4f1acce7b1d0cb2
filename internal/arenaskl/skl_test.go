// Copyright 2017 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package arenaskl

import (
	"fmt"
	"testing"

	"github.com/ekvdb/ekv/internal/base"
	"github.com/stretchr/testify/require"
)

func TestSkiplistAddAndIterate(t *testing.T) {
	arena := NewArena(1 << 20)
	skl := NewSkiplist(arena, base.DefaultComparer.Compare)

	for i := 99; i >= 0; i-- {
		key := base.MakeInternalKey([]byte(fmt.Sprintf("key%03d", i)), uint64(i), base.InternalKeyKindSet)
		require.NoError(t, skl.Add(key, []byte(fmt.Sprintf("val%03d", i))))
	}

	it := skl.NewIter()
	require.True(t, it.First())
	count := 0
	for i := 0; it.Valid(); i++ {
		want := fmt.Sprintf("key%03d", i)
		require.Equal(t, want, string(it.Key().UserKey))
		count++
		if !it.Next() {
			break
		}
	}
	require.Equal(t, 100, count)
}

func TestSkiplistSeekGE(t *testing.T) {
	arena := NewArena(1 << 20)
	skl := NewSkiplist(arena, base.DefaultComparer.Compare)
	for i := 0; i < 10; i++ {
		key := base.MakeInternalKey([]byte(fmt.Sprintf("k%d", i*2)), 1, base.InternalKeyKindSet)
		require.NoError(t, skl.Add(key, nil))
	}
	it := skl.NewIter()
	require.True(t, it.SeekGE(base.MakeSearchKey([]byte("k5"))))
	require.Equal(t, "k6", string(it.Key().UserKey))
}

func TestSkiplistArenaFull(t *testing.T) {
	arena := NewArena(256)
	skl := NewSkiplist(arena, base.DefaultComparer.Compare)
	var err error
	for i := 0; i < 1000 && err == nil; i++ {
		key := base.MakeInternalKey([]byte(fmt.Sprintf("key-%08d", i)), uint64(i), base.InternalKeyKindSet)
		err = skl.Add(key, []byte("some-value-padding"))
	}
	require.ErrorIs(t, err, base.ErrArenaFull)
}
