// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"log"
	"os"
)

// Logger is the injectable logging sink used across the engine. It mirrors
// the teacher's db.Options.Logger shape so ambient logging needs no new
// abstraction beyond what pebble already exposes.
type Logger interface {
	Infof(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// DefaultLogger logs to the standard library's log package.
var DefaultLogger Logger = stdLogger{}

type stdLogger struct{}

func (stdLogger) Infof(format string, args ...interface{}) {
	log.Printf(format, args...)
}

func (stdLogger) Fatalf(format string, args ...interface{}) {
	log.Printf(format, args...)
	os.Exit(1)
}

// Compression identifies an SST block compression codec. The zero value,
// NoCompression, is always supported.
type Compression int

const (
	NoCompression Compression = iota
	SnappyCompression
	ZstdCompression
)

// FilterPolicy builds and consults a per-SST filter (e.g. a bloom filter).
// A nil *FilterPolicy disables filter blocks entirely.
type FilterPolicy interface {
	Name() string
	// NewFilterWriter returns a fresh filter builder for one SST file.
	NewFilterWriter() FilterWriter
	// MayContain reports whether key might be present in the filter data
	// previously produced by a FilterWriter. False negatives are
	// forbidden; false positives are permitted.
	MayContain(data []byte, key []byte) bool
}

// FilterWriter accumulates keys for one SST file's filter block.
type FilterWriter interface {
	Add(key []byte)
	Finish() []byte
}
