// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"testing"

	"github.com/kr/pretty"
	"github.com/stretchr/testify/require"

	"github.com/ekvdb/ekv/internal/base"
)

func TestVersionEditRoundTrip(t *testing.T) {
	edit := &VersionEdit{
		CFID:  2,
		NewCF: true,
		NewFiles: []NewFile{
			{Level: 0, Meta: FileMetadata{
				FileNum:  7,
				Size:     1024,
				Smallest: base.MakeInternalKey([]byte("a"), 10, base.InternalKeyKindSet),
				Largest:  base.MakeInternalKey([]byte("m"), 1, base.InternalKeyKindSet),
			}},
		},
		DeletedFiles:      []DeletedFile{{Level: 1, FileNum: 3}},
		HasNextFileNumber: true,
		NextFileNumber:    8,
		HasLastSequence:   true,
		LastSequence:      10,
	}

	got, err := Decode(edit.Encode())
	require.NoError(t, err)
	if diff := pretty.Diff(edit.NewFiles[0].Meta, got.NewFiles[0].Meta); len(diff) > 0 {
		t.Fatalf("decoded file metadata diverged from original:\n%s", pretty.Sprint(diff))
	}
	require.Equal(t, edit.CFID, got.CFID)
	require.True(t, got.NewCF)
	require.Len(t, got.NewFiles, 1)
	require.Equal(t, uint64(7), got.NewFiles[0].Meta.FileNum)
	require.Equal(t, "a", string(got.NewFiles[0].Meta.Smallest.UserKey))
	require.Equal(t, "m", string(got.NewFiles[0].Meta.Largest.UserKey))
	require.Len(t, got.DeletedFiles, 1)
	require.Equal(t, uint64(3), got.DeletedFiles[0].FileNum)
	require.Equal(t, uint64(8), got.NextFileNumber)
	require.Equal(t, uint64(10), got.LastSequence)
}

func TestVersionApply(t *testing.T) {
	v := NewVersion()
	cmp := base.DefaultComparer.Compare

	add := &VersionEdit{NewFiles: []NewFile{
		{Level: 1, Meta: FileMetadata{FileNum: 1, Smallest: base.MakeInternalKey([]byte("d"), 1, base.InternalKeyKindSet), Largest: base.MakeInternalKey([]byte("f"), 1, base.InternalKeyKindSet)}},
		{Level: 1, Meta: FileMetadata{FileNum: 2, Smallest: base.MakeInternalKey([]byte("a"), 1, base.InternalKeyKindSet), Largest: base.MakeInternalKey([]byte("c"), 1, base.InternalKeyKindSet)}},
	}}
	v2 := v.Apply(add, cmp)
	require.Len(t, v2.Levels[1], 2)
	require.Equal(t, uint64(2), v2.Levels[1][0].FileNum) // sorted by smallest key: "a" before "d"
	require.Equal(t, uint64(1), v2.Levels[1][1].FileNum)

	del := &VersionEdit{DeletedFiles: []DeletedFile{{Level: 1, FileNum: 2}}}
	v3 := v2.Apply(del, cmp)
	require.Len(t, v3.Levels[1], 1)
	require.Equal(t, uint64(1), v3.Levels[1][0].FileNum)
	// v2 is untouched by the edit applied to produce v3.
	require.Len(t, v2.Levels[1], 2)
}

type fakeReader struct {
	entries map[uint64]map[string]string
}

func (f *fakeReader) Get(fileNum uint64, searchKey base.InternalKey) (base.InternalKey, []byte, bool, error) {
	m, ok := f.entries[fileNum]
	if !ok {
		return base.InternalKey{}, nil, false, nil
	}
	v, ok := m[string(searchKey.UserKey)]
	if !ok {
		return base.InternalKey{}, nil, false, nil
	}
	return searchKey, []byte(v), true, nil
}

func TestVersionGet(t *testing.T) {
	cmp := base.DefaultComparer.Compare
	v := NewVersion()
	edit := &VersionEdit{NewFiles: []NewFile{
		{Level: 0, Meta: FileMetadata{FileNum: 5, Smallest: base.MakeInternalKey([]byte("n"), 1, base.InternalKeyKindSet), Largest: base.MakeInternalKey([]byte("z"), 1, base.InternalKeyKindSet)}},
		{Level: 1, Meta: FileMetadata{FileNum: 1, Smallest: base.MakeInternalKey([]byte("a"), 1, base.InternalKeyKindSet), Largest: base.MakeInternalKey([]byte("m"), 1, base.InternalKeyKindSet)}},
	}}
	v = v.Apply(edit, cmp)

	reader := &fakeReader{entries: map[uint64]map[string]string{
		5: {"x": "from-l0"},
		1: {"k": "from-l1"},
	}}

	val, found, err := v.Get(cmp, reader, []byte("x"), base.SeqNumMax)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "from-l0", string(val))

	val, found, err = v.Get(cmp, reader, []byte("k"), base.SeqNumMax)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "from-l1", string(val))

	_, found, err = v.Get(cmp, reader, []byte("missing"), base.SeqNumMax)
	require.NoError(t, err)
	require.False(t, found)
}
