// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package ekv

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// Checkpoint writes a consistent, hard-linked snapshot of the database into
// dir (SUPPLEMENTED FEATURES, grounded on original_source's checkpoint
// support): every currently-live SST is hard-linked rather than copied,
// since SST files are never mutated after Finish; the WAL and MANIFEST are
// copied byte-for-byte since they are still being appended to. dir must not
// already exist.
func (db *DB) Checkpoint(dir string) error {
	if _, err := os.Stat(dir); err == nil {
		return errors.New("ekv: checkpoint destination already exists")
	}
	if err := os.MkdirAll(filepath.Join(dir, "sst"), 0755); err != nil {
		return errors.Wrap(err, "ekv: checkpoint mkdir")
	}
	if err := os.MkdirAll(filepath.Join(dir, "wal"), 0755); err != nil {
		return errors.Wrap(err, "ekv: checkpoint mkdir")
	}

	for cf := range db.vs.ColumnFamilies() {
		v := db.vs.CurrentVersion(cf)
		if v == nil {
			continue
		}
		for _, files := range v.Levels {
			for _, f := range files {
				src := db.sstPath(f.FileNum)
				dst := filepath.Join(dir, "sst", filepath.Base(src))
				if err := os.Link(src, dst); err != nil {
					return errors.Wrap(err, "ekv: checkpoint link sst")
				}
			}
		}
	}

	if err := copyFile(filepath.Join(db.dirname, "CURRENT"), filepath.Join(dir, "CURRENT")); err != nil {
		return err
	}
	manifestName, err := os.ReadFile(filepath.Join(dir, "CURRENT"))
	if err != nil {
		return errors.Wrap(err, "ekv: checkpoint read CURRENT")
	}
	name := trimNewline(string(manifestName))
	if err := copyFile(filepath.Join(db.dirname, name), filepath.Join(dir, name)); err != nil {
		return err
	}

	entries, err := os.ReadDir(filepath.Join(db.dirname, "wal"))
	if err != nil {
		return errors.Wrap(err, "ekv: checkpoint read wal dir")
	}
	for _, e := range entries {
		src := filepath.Join(db.dirname, "wal", e.Name())
		dst := filepath.Join(dir, "wal", e.Name())
		if err := copyFile(src, dst); err != nil {
			return err
		}
	}
	return nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return errors.Wrap(err, "ekv: checkpoint read")
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return errors.Wrap(err, "ekv: checkpoint write")
	}
	return nil
}
