// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ekvdb/ekv/internal/base"
	"github.com/ekvdb/ekv/internal/cache"
	"github.com/ekvdb/ekv/sstable"
)

func newSSTCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sstable <sst-files>",
		Short: "print SST contents",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSSTDump,
	}
}

func runSSTDump(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	blockCache := cache.New(1<<20, 1)
	for _, arg := range args {
		f, err := os.Open(arg)
		if err != nil {
			return err
		}
		fi, err := f.Stat()
		if err != nil {
			f.Close()
			return err
		}
		r, err := sstable.Open(f, fi.Size(), 0, base.DefaultComparer.Compare, blockCache, nil)
		if err != nil {
			f.Close()
			return err
		}
		fmt.Fprintf(out, "%s\n", arg)
		it := r.NewIter()
		for ok := it.First(); ok; ok = it.Next() {
			ik := base.DecodeInternalKey(it.Key())
			fmt.Fprintf(out, "  %q @ %d.%d = %q\n", ik.UserKey, ik.SeqNum(), ik.Kind(), it.Value())
		}
		it.Close()
		f.Close()
	}
	return nil
}
