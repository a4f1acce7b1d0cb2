// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/require"
)

// TestBlockDataDriven drives the block builder/reader through scripted
// add/seek commands, in the teacher's own datadriven test style.
//
// Commands:
//   build <restart-interval>
//     key1=value1
//     key2=value2
//   seek <key>
func TestBlockDataDriven(t *testing.T) {
	datadriven.RunTest(t, "testdata/block", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "build":
			restart := 16
			fmt.Sscanf(d.CmdArgs[0].String(), "%d", &restart)
			w := newBlockWriter(restart)
			for _, line := range strings.Split(strings.TrimSpace(d.Input), "\n") {
				parts := strings.SplitN(line, "=", 2)
				w.add([]byte(parts[0]), []byte(parts[1]))
			}
			data := w.finish()
			lastBlock = data
			return fmt.Sprintf("size=%d entries=%d\n", len(data), w.nEntries)

		case "seek":
			br, err := newBlockReader(lastBlock)
			require.NoError(t, err)
			it := br.newIter(func(a, b []byte) int { return strings.Compare(string(a), string(b)) })
			target := strings.TrimSpace(d.Input)
			if !it.SeekGE([]byte(target)) {
				return "not found\n"
			}
			return fmt.Sprintf("%s=%s\n", it.Key(), it.Value())

		default:
			t.Fatalf("unknown command %q", d.Cmd)
			return ""
		}
	})
}

var lastBlock []byte
