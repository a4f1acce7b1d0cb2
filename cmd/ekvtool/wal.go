// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ekvdb/ekv/internal/base"
	"github.com/ekvdb/ekv/record"
)

func newWALCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "wal <log-files>",
		Short: "print WAL contents",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runWALDump,
	}
}

func runWALDump(cmd *cobra.Command, args []string) error {
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
				f.Close()
				break
			}
			baseSeq, entries, err := record.DecodeBatch(payload)
			if err != nil {
				fmt.Fprintf(out, "  corrupt batch: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "  seq=%d count=%d\n", baseSeq, len(entries))
			for i, e := range entries {
				kind := "SET"
				if e.Kind == base.InternalKeyKindDelete {
					kind = "DEL"
				}
				fmt.Fprintf(out, "    %d %s cf=%d key=%q", baseSeq+uint64(i), kind, e.CF, e.Key)
				if e.Kind != base.InternalKeyKindDelete {
					fmt.Fprintf(out, " value=%q", e.Value)
				}
				fmt.Fprintln(out)
			}
		}
	}
	return nil
}
