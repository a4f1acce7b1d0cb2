// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package ekv

import (
	"strconv"
	"time"

	"github.com/cockroachdb/redact"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ekvdb/ekv/internal/cache"
	"github.com/ekvdb/ekv/internal/manifest"
)

// CacheMetrics holds metrics for the block and table cache.
type CacheMetrics = cache.Metrics

// LevelMetrics holds per-level metrics: file count and total size.
// BytesCompacted and TablesCompacted are summed by Total but DB.Metrics
// never fills them, so they stay zero.
type LevelMetrics struct {
	NumFiles       int64
	Size           int64
	BytesCompacted uint64
	TablesCompacted uint64
}

func (m *LevelMetrics) add(u *LevelMetrics) {
	m.NumFiles += u.NumFiles
	m.Size += u.Size
	m.BytesCompacted += u.BytesCompacted
	m.TablesCompacted += u.TablesCompacted
}

// Metrics holds metrics for the cache, compactions, flushes, WAL, and
// per-level file organization, grounded on the teacher's Metrics struct but
// trimmed (no ingestion, no multi-level/rewrite compaction kinds, no value
// blocks). DB.Metrics does not fill TableCache, WAL or Uptime; they stay
// zero.
type Metrics struct {
	BlockCache CacheMetrics
	TableCache CacheMetrics

	Compact struct {
		Count        int64
		NumInProgress int64
		Duration     time.Duration
	}
	Flush struct {
		Count         int64
		NumInProgress int64
	}
	Levels [manifest.NumLevels]LevelMetrics

	Snapshots struct {
		Count          int
		EarliestSeqNum uint64
	}

	WAL struct {
		Files        int64
		BytesWritten uint64
	}

	Uptime time.Duration
}

func hitRate(hits, misses int64) float64 {
	sum := hits + misses
	if sum == 0 {
		return 0
	}
	return 100 * float64(hits) / float64(sum)
}

// ReadAmp returns the number of non-empty levels a read may need to probe,
// used as a crude read-amplification estimate (L0 files are allowed to
// overlap, so they all count individually; L1+ count as at most one each).
func (m *Metrics) ReadAmp() int {
	n := 0
	n += int(m.Levels[0].NumFiles)
	for l := 1; l < manifest.NumLevels; l++ {
		if m.Levels[l].NumFiles > 0 {
			n++
		}
	}
	return n
}

// Total returns the sum of the per-level metrics.
func (m *Metrics) Total() LevelMetrics {
	var total LevelMetrics
	for l := 0; l < manifest.NumLevels; l++ {
		total.add(&m.Levels[l])
	}
	return total
}

func formatCacheMetrics(w redact.SafePrinter, m *CacheMetrics, name redact.SafeString) {
	w.Printf("%7s %9d %7d %6.1f%%  (score == hit-rate)\n", name, redact.Safe(m.Count), redact.Safe(m.Size), redact.Safe(hitRate(m.Hits, m.Misses)))
}

// String pretty-prints the metrics: a line per level, cache hit rates, and
// compaction/flush counters, in the teacher's "__level_____count" style.
func (m *Metrics) String() string {
	return redact.StringWithoutMarkers(m)
}

var _ redact.SafeFormatter = &Metrics{}

// SafeFormat implements redact.SafeFormatter.
func (m *Metrics) SafeFormat(w redact.SafePrinter, _ rune) {
	w.SafeString("__level_____count_____size\n")
	for l := 0; l < manifest.NumLevels; l++ {
		lm := &m.Levels[l]
		w.Printf("%7d %9d %9d\n", redact.Safe(l), redact.Safe(lm.NumFiles), redact.Safe(lm.Size))
	}
	total := m.Total()
	w.Printf("  total %9d %9d\n", redact.Safe(total.NumFiles), redact.Safe(total.Size))
	w.Printf("compact %9d %7d\n", redact.Safe(m.Compact.Count), redact.Safe(m.Compact.NumInProgress))
	w.Printf("  flush %9d %7d\n", redact.Safe(m.Flush.Count), redact.Safe(m.Flush.NumInProgress))
	formatCacheMetrics(w, &m.BlockCache, "bcache")
	formatCacheMetrics(w, &m.TableCache, "tcache")
	w.Printf("  snaps %9d %7d  (score == earliest seq num)\n", redact.Safe(m.Snapshots.Count), redact.Safe(m.Snapshots.EarliestSeqNum))
}

// prometheusCollector adapts (*DB).Metrics into a prometheus.Collector so
// callers can register it with their own registry, per SPEC_FULL's DOMAIN
// STACK wiring of prometheus/client_golang.
type prometheusCollector struct {
	db *DB

	blockCacheHits   *prometheus.Desc
	blockCacheMisses *prometheus.Desc
	levelFiles       *prometheus.Desc
	levelSize        *prometheus.Desc
	compactCount     *prometheus.Desc
	flushCount       *prometheus.Desc
}

// NewPrometheusCollector returns a prometheus.Collector reporting db's
// live metrics on every scrape.
func NewPrometheusCollector(db *DB) prometheus.Collector {
	return &prometheusCollector{
		db:               db,
		blockCacheHits:   prometheus.NewDesc("ekv_block_cache_hits_total", "Block cache hits.", nil, nil),
		blockCacheMisses: prometheus.NewDesc("ekv_block_cache_misses_total", "Block cache misses.", nil, nil),
		levelFiles:       prometheus.NewDesc("ekv_level_files", "Number of SST files at a level.", []string{"level"}, nil),
		levelSize:        prometheus.NewDesc("ekv_level_size_bytes", "Total SST bytes at a level.", []string{"level"}, nil),
		compactCount:     prometheus.NewDesc("ekv_compactions_total", "Number of compactions run, failed ones included.", nil, nil),
		flushCount:       prometheus.NewDesc("ekv_flushes_total", "Number of flushes run, failed ones included.", nil, nil),
	}
}

func levelLabel(l int) string { return strconv.Itoa(l) }

func (c *prometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.blockCacheHits
	ch <- c.blockCacheMisses
	ch <- c.levelFiles
	ch <- c.levelSize
	ch <- c.compactCount
	ch <- c.flushCount
}

func (c *prometheusCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.db.Metrics()
	ch <- prometheus.MustNewConstMetric(c.blockCacheHits, prometheus.CounterValue, float64(m.BlockCache.Hits))
	ch <- prometheus.MustNewConstMetric(c.blockCacheMisses, prometheus.CounterValue, float64(m.BlockCache.Misses))
	for l := 0; l < manifest.NumLevels; l++ {
		lvl := levelLabel(l)
		ch <- prometheus.MustNewConstMetric(c.levelFiles, prometheus.GaugeValue, float64(m.Levels[l].NumFiles), lvl)
		ch <- prometheus.MustNewConstMetric(c.levelSize, prometheus.GaugeValue, float64(m.Levels[l].Size), lvl)
	}
	ch <- prometheus.MustNewConstMetric(c.compactCount, prometheus.CounterValue, float64(m.Compact.Count))
	ch <- prometheus.MustNewConstMetric(c.flushCount, prometheus.CounterValue, float64(m.Flush.Count))
}
