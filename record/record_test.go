// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package record

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	records := [][]byte{
		[]byte("short"),
		bytes.Repeat([]byte("x"), 5000),
		bytes.Repeat([]byte("y"), BlockSize*2+123), // spans several blocks
		[]byte(""),
	}
	for _, r := range records {
		require.NoError(t, w.WriteRecord(r))
	}
	require.NoError(t, w.Flush())

	reader := NewReader(&buf)
	for _, want := range records {
		got, err := reader.ReadRecord()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := reader.ReadRecord()
	require.Equal(t, io.EOF, err)
}

func TestReaderTailTruncation(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	records := [][]byte{
		bytes.Repeat([]byte("a"), 100),
		bytes.Repeat([]byte("b"), 100),
		bytes.Repeat([]byte("c"), 100),
	}
	for _, r := range records {
		require.NoError(t, w.WriteRecord(r))
	}
	require.NoError(t, w.Flush())

	full := buf.Bytes()
	// Truncate partway through the third record's fragment; the reader
	// must still recover the first two complete records without error.
	truncated := full[:len(full)-50]

	reader := NewReader(bytes.NewReader(truncated))
	got0, err := reader.ReadRecord()
	require.NoError(t, err)
	require.Equal(t, records[0], got0)
	got1, err := reader.ReadRecord()
	require.NoError(t, err)
	require.Equal(t, records[1], got1)

	_, err = reader.ReadRecord()
	require.Error(t, err)
}

func TestBatchEncodeDecode(t *testing.T) {
	entries := []Entry{
		{Kind: 1, CF: 0, Key: []byte("a"), Value: []byte("1")},
		{Kind: 0, CF: 0, Key: []byte("b")},
		{Kind: 1, CF: 7, Key: []byte("c"), Value: []byte("")},
	}
	payload := EncodeBatch(nil, 42, entries)
	baseSeq, got, err := DecodeBatch(payload)
	require.NoError(t, err)
	require.Equal(t, uint64(42), baseSeq)
	require.Equal(t, entries, got)
}

func TestReplaySkipsAlreadyDurableEntries(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	b1 := EncodeBatch(nil, 1, []Entry{{Kind: 1, Key: []byte("a"), Value: []byte("1")}})
	b2 := EncodeBatch(nil, 2, []Entry{{Kind: 1, Key: []byte("b"), Value: []byte("2")}})
	require.NoError(t, w.WriteRecord(b1))
	require.NoError(t, w.WriteRecord(b2))
	require.NoError(t, w.Flush())

	var applied []uint64
	err := Replay(&buf, 1, func(baseSeq uint64, entries []Entry) error {
		applied = append(applied, baseSeq)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{2}, applied)
}
