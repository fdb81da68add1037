// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobdb

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds metrics for various subsystems of the DB such as the blob
// files, the file cache and eviction.
type Metrics struct {
	Files struct {
		// The number of registered blob files, active and sealed.
		Count int64
		// The number of files accepting appends.
		ActiveCount int64
		// The number of sealed files whose TTL range is unknown because they
		// were recovered without a footer.
		UnknownTTLCount int64
		// The total size in bytes of the registered files.
		Size uint64
	}
	Put struct {
		Count int64
		// The number of value bytes written, before compression.
		Bytes int64
		// The number of record frame bytes appended to blob files.
		FrameBytes int64
		Errors     int64
		// The number of durability syncs issued on blob files.
		Syncs int64
	}
	Get struct {
		Count    int64
		NotFound int64
		// The number of Gets that failed with a corruption error.
		Corruption int64
	}
	FileCache struct {
		Size   int64
		Hits   int64
		Misses int64
	}
	Eviction struct {
		// The number of completed eviction passes.
		Runs            int64
		TTLFiles        int64
		FIFOFiles       int64
		Bytes           uint64
		SkippedLive     int64
		SkippedInFlight int64
	}
	Deletion struct {
		// The number of evicted files physically removed (or archived).
		Files  int64
		Bytes  uint64
		Errors int64
	}
}

// String pretty-prints the metrics.
func (m *Metrics) String() string {
	var buf bytes.Buffer
	size := func(v uint64) string {
		return string(crhumanize.Bytes(v, crhumanize.Compact, crhumanize.OmitI))
	}
	fmt.Fprintf(&buf, "    files   active  no-ttl     size\n")
	fmt.Fprintf(&buf, "%9d %8d %7d %8s\n",
		m.Files.Count, m.Files.ActiveCount, m.Files.UnknownTTLCount, size(m.Files.Size))
	fmt.Fprintf(&buf, "     puts    bytes  frames  errors  syncs\n")
	fmt.Fprintf(&buf, "%9d %8s %7s %7d %6d\n",
		m.Put.Count, size(uint64(m.Put.Bytes)), size(uint64(m.Put.FrameBytes)), m.Put.Errors, m.Put.Syncs)
	fmt.Fprintf(&buf, "     gets notfound corrupt\n")
	fmt.Fprintf(&buf, "%9d %8d %7d\n", m.Get.Count, m.Get.NotFound, m.Get.Corruption)
	fmt.Fprintf(&buf, "fcache: %d entries (%s hit rate)\n", m.FileCache.Size,
		hitRate(m.FileCache.Hits, m.FileCache.Misses))
	fmt.Fprintf(&buf, "evict: %d runs, %d ttl + %d fifo files (%s), skipped %d live %d in-flight\n",
		m.Eviction.Runs, m.Eviction.TTLFiles, m.Eviction.FIFOFiles, size(m.Eviction.Bytes),
		m.Eviction.SkippedLive, m.Eviction.SkippedInFlight)
	fmt.Fprintf(&buf, "delete: %d files (%s), %d errors\n",
		m.Deletion.Files, size(m.Deletion.Bytes), m.Deletion.Errors)
	return buf.String()
}

func hitRate(hits, misses int64) string {
	sum := hits + misses
	if sum == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(hits)/float64(sum))
}

// dbMetrics holds the DB's running counters.
type dbMetrics struct {
	puts, putBytes, putFrameBytes, putErrors, syncs atomic.Int64
	gets, getNotFound, getCorruption                atomic.Int64
	evictRuns, evictTTL, evictFIFO                  atomic.Int64
	evictBytes                                      atomic.Uint64
	evictSkippedLive, evictSkippedInFlight          atomic.Int64
	deletedFiles, deleteErrors                      atomic.Int64
	deletedBytes                                    atomic.Uint64

	putLatency prometheus.Histogram
	getLatency prometheus.Histogram
}

func (m *dbMetrics) init() {
	buckets := prometheus.ExponentialBucketsRange(float64(10*time.Microsecond), float64(10*time.Second), 40)
	m.putLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "blobdb",
		Name:      "put_latency_nanos",
		Help:      "Latency of Put operations in nanoseconds.",
		Buckets:   buckets,
	})
	m.getLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "blobdb",
		Name:      "get_latency_nanos",
		Help:      "Latency of Get operations in nanoseconds.",
		Buckets:   buckets,
	})
}

// Metrics returns metrics about the DB.
func (d *DB) Metrics() Metrics {
	var m Metrics
	for _, f := range d.registry.list() {
		info := f.info()
		m.Files.Count++
		m.Files.Size += info.Size
		if !info.Sealed {
			m.Files.ActiveCount++
		} else if !info.TTLKnown {
			m.Files.UnknownTTLCount++
		}
	}
	dm := &d.metrics
	m.Put.Count = dm.puts.Load()
	m.Put.Bytes = dm.putBytes.Load()
	m.Put.FrameBytes = dm.putFrameBytes.Load()
	m.Put.Errors = dm.putErrors.Load()
	m.Put.Syncs = dm.syncs.Load()
	m.Get.Count = dm.gets.Load()
	m.Get.NotFound = dm.getNotFound.Load()
	m.Get.Corruption = dm.getCorruption.Load()
	m.FileCache.Size = int64(d.fileCache.len())
	m.FileCache.Hits = d.fileCache.hits.Load()
	m.FileCache.Misses = d.fileCache.misses.Load()
	m.Eviction.Runs = dm.evictRuns.Load()
	m.Eviction.TTLFiles = dm.evictTTL.Load()
	m.Eviction.FIFOFiles = dm.evictFIFO.Load()
	m.Eviction.Bytes = dm.evictBytes.Load()
	m.Eviction.SkippedLive = dm.evictSkippedLive.Load()
	m.Eviction.SkippedInFlight = dm.evictSkippedInFlight.Load()
	m.Deletion.Files = dm.deletedFiles.Load()
	m.Deletion.Bytes = dm.deletedBytes.Load()
	m.Deletion.Errors = dm.deleteErrors.Load()
	return m
}

// collector exports DB metrics to prometheus.
type collector struct {
	d     *DB
	descs struct {
		files, fileBytes, puts, putBytes, syncs, gets, getErrors *prometheus.Desc
		cacheHits, cacheMisses, evicted, evictedBytes, skipped  *prometheus.Desc
	}
}

var _ prometheus.Collector = (*collector)(nil)

// Collector returns a prometheus.Collector exporting the DB's metrics,
// including put and get latency histograms.
func (d *DB) Collector() prometheus.Collector {
	c := &collector{d: d}
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("blobdb", "", name), help, labels, nil)
	}
	c.descs.files = desc("files", "Number of blob files.", "state")
	c.descs.fileBytes = desc("file_bytes", "Total size of blob files.")
	c.descs.puts = desc("puts_total", "Number of Put operations.", "result")
	c.descs.putBytes = desc("put_bytes_total", "Value bytes written.", "kind")
	c.descs.syncs = desc("syncs_total", "Blob file durability syncs.")
	c.descs.gets = desc("gets_total", "Number of Get operations.")
	c.descs.getErrors = desc("get_errors_total", "Failed Get operations.", "kind")
	c.descs.cacheHits = desc("file_cache_hits_total", "File cache hits.")
	c.descs.cacheMisses = desc("file_cache_misses_total", "File cache misses.")
	c.descs.evicted = desc("evicted_files_total", "Blob files evicted.", "policy")
	c.descs.evictedBytes = desc("evicted_bytes_total", "Bytes of blob files evicted.")
	c.descs.skipped = desc("eviction_skipped_total", "Eviction candidates skipped.", "reason")
	return c
}

// Describe implements prometheus.Collector.
func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.descs.files, c.descs.fileBytes, c.descs.puts, c.descs.putBytes, c.descs.syncs,
		c.descs.gets, c.descs.getErrors, c.descs.cacheHits, c.descs.cacheMisses,
		c.descs.evicted, c.descs.evictedBytes, c.descs.skipped,
	} {
		ch <- d
	}
	c.d.metrics.putLatency.Describe(ch)
	c.d.metrics.getLatency.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *collector) Collect(ch chan<- prometheus.Metric) {
	m := c.d.Metrics()
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	counter := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, labels...)
	}
	gauge(c.descs.files, float64(m.Files.ActiveCount), "active")
	gauge(c.descs.files, float64(m.Files.Count-m.Files.ActiveCount), "sealed")
	gauge(c.descs.fileBytes, float64(m.Files.Size))
	counter(c.descs.puts, float64(m.Put.Count), "ok")
	counter(c.descs.puts, float64(m.Put.Errors), "error")
	counter(c.descs.putBytes, float64(m.Put.Bytes), "value")
	counter(c.descs.putBytes, float64(m.Put.FrameBytes), "frame")
	counter(c.descs.syncs, float64(m.Put.Syncs))
	counter(c.descs.gets, float64(m.Get.Count))
	counter(c.descs.getErrors, float64(m.Get.NotFound), "not_found")
	counter(c.descs.getErrors, float64(m.Get.Corruption), "corruption")
	counter(c.descs.cacheHits, float64(m.FileCache.Hits))
	counter(c.descs.cacheMisses, float64(m.FileCache.Misses))
	counter(c.descs.evicted, float64(m.Eviction.TTLFiles), "ttl")
	counter(c.descs.evicted, float64(m.Eviction.FIFOFiles), "fifo")
	counter(c.descs.evictedBytes, float64(m.Eviction.Bytes))
	counter(c.descs.skipped, float64(m.Eviction.SkippedLive), "live")
	counter(c.descs.skipped, float64(m.Eviction.SkippedInFlight), "in_flight")
	c.d.metrics.putLatency.Collect(ch)
	c.d.metrics.getLatency.Collect(ch)
}
