// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package record

import (
	"io"

	"github.com/cockroachdb/errors"
)

// ApplyFunc is invoked once per decoded batch during Replay.
type ApplyFunc func(baseSeq uint64, entries []Entry) error

// Replay scans every record in r in order, decodes it as a batch, and
// invokes apply for each batch whose last sequence number exceeds
// recoveredLastSeq (spec §4.1); a batch at or below it is skipped whole, and
// a batch that straddles it is applied whole. A torn tail the reader
// tolerates, or a record that does not decode as a batch, ends replay
// without error; a corruption error from the reader (such as a record cut
// off mid-reassembly) is returned to the caller.
func Replay(r io.Reader, recoveredLastSeq uint64, apply ApplyFunc) error {
	reader := NewReader(r)
	for {
		payload, err := reader.ReadRecord()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "record: replay")
		}
		baseSeq, entries, err := DecodeBatch(payload)
		if err != nil {
			// A batch record that doesn't even decode is treated the same
			// as a torn tail: stop replay here rather than failing open.
			return nil
		}
		last := baseSeq + uint64(len(entries)) - 1
		if last <= recoveredLastSeq {
			continue
		}
		if err := apply(baseSeq, entries); err != nil {
			return err
		}
	}
}
