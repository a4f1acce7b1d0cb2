// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"math"

	bloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/ekvdb/ekv/internal/base"
)

// BloomFilterPolicy is the engine's built-in base.FilterPolicy, backed by
// github.com/bits-and-blooms/bloom/v3. Its bits-per-key setting controls
// the filter's size/false-positive-rate trade-off, per spec §4.4's
// "bits-per-key and hash count derive from the policy".
type BloomFilterPolicy struct {
	BitsPerKey int
}

// NewBloomFilterPolicy returns a policy targeting bitsPerKey bits of filter
// data per key (10 is a common default, ~1% false-positive rate).
func NewBloomFilterPolicy(bitsPerKey int) *BloomFilterPolicy {
	if bitsPerKey <= 0 {
		bitsPerKey = 10
	}
	return &BloomFilterPolicy{BitsPerKey: bitsPerKey}
}

// Name implements base.FilterPolicy.
func (p *BloomFilterPolicy) Name() string { return "ekv.BuiltinBloomFilter" }

// falsePositiveRate approximates a standard bloom filter's FP rate for an
// optimally-chosen hash count at the configured bits-per-key ratio.
func (p *BloomFilterPolicy) falsePositiveRate() float64 {
	return math.Pow(0.6185, float64(p.BitsPerKey))
}

type bloomFilterWriter struct {
	policy *BloomFilterPolicy
	keys   [][]byte
}

// NewFilterWriter implements base.FilterPolicy.
func (p *BloomFilterPolicy) NewFilterWriter() base.FilterWriter {
	return &bloomFilterWriter{policy: p}
}

func (w *bloomFilterWriter) Add(key []byte) {
	w.keys = append(w.keys, append([]byte(nil), key...))
}

func (w *bloomFilterWriter) Finish() []byte {
	n := len(w.keys)
	if n == 0 {
		n = 1
	}
	filter := bloom.NewWithEstimates(uint(n), w.policy.falsePositiveRate())
	for _, k := range w.keys {
		filter.Add(k)
	}
	data, err := filter.MarshalBinary()
	if err != nil {
		// MarshalBinary on an in-memory bloom.BloomFilter cannot fail; a
		// nil filter block is the only possible outcome, which MayContain
		// below treats as "no filter, consult the data block directly".
		return nil
	}
	return data
}

// MayContain implements base.FilterPolicy.
func (p *BloomFilterPolicy) MayContain(data []byte, key []byte) bool {
	if len(data) == 0 {
		// No usable filter data: fail open so callers fall back to
		// consulting the data block, never producing a false negative.
		return true
	}
	var filter bloom.BloomFilter
	if err := filter.UnmarshalBinary(data); err != nil {
		return true
	}
	return filter.Test(key)
}
