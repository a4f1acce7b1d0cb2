// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ekvdb/ekv/internal/base"
)

func TestVersionSetCreateAndReopen(t *testing.T) {
	dir := t.TempDir()
	cmp := base.DefaultComparer.Compare

	vs, err := Create(dir, cmp)
	require.NoError(t, err)

	id, err := vs.CreateColumnFamily("default")
	require.NoError(t, err)

	fileNum := vs.NextFileNum()
	edit := &VersionEdit{
		CFID: id,
		NewFiles: []NewFile{
			{Level: 0, Meta: FileMetadata{
				FileNum:  fileNum,
				Size:     100,
				Smallest: base.MakeInternalKey([]byte("a"), 1, base.InternalKeyKindSet),
				Largest:  base.MakeInternalKey([]byte("z"), 1, base.InternalKeyKindSet),
			}},
		},
	}
	require.NoError(t, vs.LogAndApply(edit))
	require.Equal(t, uint64(1), vs.AllocateSequence(3))
	require.Equal(t, uint64(3), vs.LastSequence())
	require.NoError(t, vs.Close())

	vs2, err := Open(dir, cmp)
	require.NoError(t, err)
	defer vs2.Close()

	v := vs2.CurrentVersion(id)
	require.NotNil(t, v)
	require.Len(t, v.Levels[0], 1)
	require.Equal(t, fileNum, v.Levels[0][0].FileNum)
	require.Equal(t, "default", vs2.ColumnFamilies()[id])
}
