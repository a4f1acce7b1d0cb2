// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Command ekvtool provides offline introspection of an ekv database
// directory: dumping the WAL, the MANIFEST, and an SST file, plus a
// quick ASCII line plot of per-level file counts. Grounded on the pack's
// cobra-based pebble tool commands (see wal.go/manifest.go/sst.go).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "ekvtool",
		Short: "Offline introspection for ekv database directories",
	}
	root.AddCommand(newWALCommand())
	root.AddCommand(newManifestCommand())
	root.AddCommand(newSSTCommand())
	root.AddCommand(newLevelsCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
