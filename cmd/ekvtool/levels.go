// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/ekvdb/ekv"
)

func newLevelsCommand() *cobra.Command {
	var cf uint32
	cmd := &cobra.Command{
		Use:   "levels <db-dir>",
		Short: "chart per-level SST file counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLevels(cmd, args[0], cf)
		},
	}
	cmd.Flags().Uint32Var(&cf, "cf", ekv.DefaultCF, "column family id")
	return cmd
}

func runLevels(cmd *cobra.Command, dir string, cf uint32) error {
	db, err := ekv.Open(dir, &ekv.Options{})
	if err != nil {
		return err
	}
	defer db.Close()

	m := db.Metrics()
	series := make([]float64, len(m.Levels))
	for l, lm := range m.Levels {
		series[l] = float64(lm.NumFiles)
	}
	graph := asciigraph.Plot(series, asciigraph.Height(10), asciigraph.Caption("SST files per level (L0..L6)"))
	fmt.Fprintln(cmd.OutOrStdout(), graph)
	return nil
}
