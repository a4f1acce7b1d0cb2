// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/ekvdb/ekv/internal/base"
)

// toCompressionType maps the engine-wide base.Compression option to the
// per-block on-disk codec tag.
func toCompressionType(c base.Compression) compressionType {
	switch c {
	case base.SnappyCompression:
		return snappyCompression
	case base.ZstdCompression:
		return zstdCompression
	default:
		return noCompression
	}
}

func compressBlock(typ compressionType, raw []byte) []byte {
	switch typ {
	case snappyCompression:
		return snappy.Encode(nil, raw)
	case zstdCompression:
		enc := zstdEncoder()
		return enc.EncodeAll(raw, nil)
	default:
		return raw
	}
}

func decompressBlock(typ compressionType, compressed []byte) ([]byte, error) {
	switch typ {
	case noCompression:
		return compressed, nil
	case snappyCompression:
		raw, err := snappy.Decode(nil, compressed)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "sstable: snappy decompress"), base.ErrCorruption)
		}
		return raw, nil
	case zstdCompression:
		dec := zstdDecoder()
		raw, err := dec.DecodeAll(compressed, nil)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "sstable: zstd decompress"), base.ErrCorruption)
		}
		return raw, nil
	default:
		return nil, base.CorruptionErrorf("sstable: unknown compression type %d", typ)
	}
}

// zstd encoders/decoders are expensive to construct and safe for concurrent
// use once built, so each is a lazily-initialized singleton.
var (
	zstdEncOnce sync.Once
	zstdEnc     *zstd.Encoder
	zstdDecOnce sync.Once
	zstdDec     *zstd.Decoder
)

func zstdEncoder() *zstd.Encoder {
	zstdEncOnce.Do(func() {
		zstdEnc, _ = zstd.NewWriter(nil)
	})
	return zstdEnc
}

func zstdDecoder() *zstd.Decoder {
	zstdDecOnce.Do(func() {
		zstdDec, _ = zstd.NewReader(nil)
	})
	return zstdDec
}
