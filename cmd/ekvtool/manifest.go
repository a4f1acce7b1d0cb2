// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ekvdb/ekv/internal/manifest"
	"github.com/ekvdb/ekv/record"
)

func newManifestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "manifest <MANIFEST-files>",
		Short: "print MANIFEST version edits",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runManifestDump,
	}
}

func runManifestDump(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, arg := range args {
		f, err := os.Open(arg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", arg)

		r := record.NewReader(f)
		for {
			payload, err := r.ReadRecord()
			if err != nil {
				break
			}
			edit, err := manifest.Decode(payload)
			if err != nil {
				fmt.Fprintf(out, "  corrupt edit: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "  cf=%d new_cf=%v drop_cf=%v\n", edit.CFID, edit.NewCF, edit.DropCF)
			for _, nf := range edit.NewFiles {
				fmt.Fprintf(out, "    +L%d %06d [%q, %q]\n", nf.Level, nf.Meta.FileNum, nf.Meta.Smallest.UserKey, nf.Meta.Largest.UserKey)
			}
			for _, df := range edit.DeletedFiles {
				fmt.Fprintf(out, "    -L%d %06d\n", df.Level, df.FileNum)
			}
			if edit.HasNextFileNumber {
				fmt.Fprintf(out, "    next_file_number=%d\n", edit.NextFileNumber)
			}
			if edit.HasLastSequence {
				fmt.Fprintf(out, "    last_sequence=%d\n", edit.LastSequence)
			}
		}
		f.Close()
	}
	return nil
}
