// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobdb

import (
	"context"
	"time"

	"github.com/cockroachdb/blobdb/blob"
	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
)

// EvictionStats summarizes an eviction pass.
type EvictionStats struct {
	// TTLFiles is the number of files evicted because all of their records
	// expired.
	TTLFiles int
	// FIFOFiles is the number of files evicted to bring the total size within
	// Options.MaxTotalSize.
	FIFOFiles int
	// Bytes is the total size of the evicted files.
	Bytes uint64
	// SkippedLive is the number of size eviction candidates skipped because a
	// live index entry still resolves into them.
	SkippedLive int
	// SkippedInFlight is the number of candidates skipped because a put that
	// appended to them had not yet written its index entry.
	SkippedInFlight int
}

// Evict runs one eviction pass and returns what it evicted. Evicted files are
// removed from the registry immediately and deleted once in-progress reads
// release them.
//
// Two policies compose. A sealed file is evicted by TTL once every record in
// it carries an expiration and the latest of them has passed; Gets through
// index entries referencing such a file already return ErrNotFound. While the
// total size of all blob files exceeds Options.MaxTotalSize, sealed files are
// evicted oldest first.
//
// Under EvictLiveChecked the primary store is scanned before size eviction and
// files that a decodable index entry still resolves into are skipped, as are
// files with puts in flight. Under EvictTolerateOrphans candidates are evicted
// unconditionally.
func (d *DB) Evict(ctx context.Context) (EvictionStats, error) {
	d.evictMu.Lock()
	defer d.evictMu.Unlock()
	start := crtime.NowMono()
	stats, err := d.evictLocked(ctx)
	d.metrics.evictRuns.Add(1)
	d.metrics.evictTTL.Add(int64(stats.TTLFiles))
	d.metrics.evictFIFO.Add(int64(stats.FIFOFiles))
	d.metrics.evictBytes.Add(stats.Bytes)
	d.metrics.evictSkippedLive.Add(int64(stats.SkippedLive))
	d.metrics.evictSkippedInFlight.Add(int64(stats.SkippedInFlight))
	d.opts.EventListener.EvictionEnd(EvictionInfo{
		Stats:    stats,
		Duration: start.Elapsed(),
		Err:      err,
	})
	return stats, err
}

func (d *DB) evictLocked(ctx context.Context) (EvictionStats, error) {
	var stats EvictionStats
	files := d.registry.list()
	liveChecked := d.opts.EvictionPolicy == EvictLiveChecked
	now := uint64(d.opts.Clock.Now().Unix())

	var total uint64
	for _, m := range files {
		total += m.size.Load()
	}

	evicted := make(map[base.FileNum]bool)
	evict := func(m *fileMetadata) {
		evicted[m.fileNum] = true
		size := m.size.Load()
		total -= size
		stats.Bytes += size
		d.evictFile(m)
	}
	// Sealed files accept no new puts, so once a file's in-flight count is seen
	// at zero every index entry pointing into it has been written.
	inFlight := func(m *fileMetadata) bool {
		if liveChecked && m.inFlight.Load() > 0 {
			stats.SkippedInFlight++
			return true
		}
		return false
	}

	if d.opts.TTLEnabled {
		for _, m := range files {
			if m.expired(now) && !inFlight(m) {
				evict(m)
				stats.TTLFiles++
			}
		}
	}

	budget := d.opts.MaxTotalSize
	if budget == 0 || total <= budget {
		return stats, nil
	}

	var candidates []*fileMetadata
	for _, m := range files {
		if !evicted[m.fileNum] && m.sealed() && !inFlight(m) {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return stats, nil
	}

	var live map[base.FileNum]bool
	if liveChecked {
		var err error
		if live, err = d.referencedFiles(ctx, candidates); err != nil {
			return stats, err
		}
	}
	for _, m := range candidates {
		if total <= budget {
			break
		}
		if live[m.fileNum] {
			stats.SkippedLive++
			continue
		}
		evict(m)
		stats.FIFOFiles++
	}
	return stats, nil
}

// referencedFiles scans the primary store and returns the subset of the
// candidate files that some index entry resolves into. Values that do not
// decode as index entries are ignored.
func (d *DB) referencedFiles(
	ctx context.Context, candidates []*fileMetadata,
) (map[base.FileNum]bool, error) {
	want := make(map[base.FileNum]bool, len(candidates))
	for _, m := range candidates {
		want[m.fileNum] = true
	}
	live := make(map[base.FileNum]bool)
	err := d.opts.Primary.Scan(ctx, func(_, value []byte) error {
		h, err := blob.DecodeIndexEntry(value)
		if err != nil {
			return nil
		}
		if want[h.FileNum] {
			live[h.FileNum] = true
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "blobdb: scanning primary store for live index entries")
	}
	return live, nil
}

// evictFile removes a file from the registry and drops the registry's
// reference. The file is deleted when the last reader releases it.
func (d *DB) evictFile(m *fileMetadata) {
	if _, ok := d.registry.remove(m.fileNum); !ok {
		return
	}
	d.releaseFile(m)
}

func (d *DB) onFileDeleted(of obsoleteFile, err error) {
	if err != nil {
		d.metrics.deleteErrors.Add(1)
		d.opts.EventListener.BackgroundError(errors.Wrapf(err, "deleting blob file %s", of.fileNum))
		return
	}
	d.metrics.deletedFiles.Add(1)
	d.metrics.deletedBytes.Add(of.fileSize)
}

// evictionLoop runs an eviction pass every Options.EvictionInterval until ctx
// is canceled.
func (d *DB) evictionLoop(ctx context.Context) {
	t := time.NewTicker(d.opts.EvictionInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := d.Evict(ctx); err != nil && ctx.Err() == nil {
				d.opts.EventListener.BackgroundError(err)
			}
		}
	}
}

// WaitForFileDeletions blocks until every evicted file whose last reference
// has been released has been deleted.
func (d *DB) WaitForFileDeletions() {
	d.cleanupManager.Wait()
}
