// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobdb

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/blobdb/blob"
	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/blobdb/internal/compression"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/swiss"
)

// fileMetadata describes a blob file known to the DB. The immutable fields are
// set at creation or recovery; size is updated by the owning writer after
// every append and frozen once the file is sealed.
type fileMetadata struct {
	fileNum     base.FileNum
	path        string
	headerLen   uint64
	compression compression.Algorithm
	createdAt   time.Time

	// size is the readable size of the file. Every handle produced for the file
	// lies within it.
	size atomic.Uint64
	// refs counts the registry's reference plus one per in-progress read. The
	// file is deleted when it drops to zero.
	refs atomic.Int32
	// inFlight counts puts that have appended to the file but not yet written
	// their index entry. Eviction under EvictLiveChecked skips such files.
	inFlight atomic.Int32

	mu struct {
		sync.Mutex
		sealed bool
		// ttlKnown is set when the TTL range and record counts are
		// authoritative: the file is active, or was sealed with a footer.
		ttlKnown    bool
		hasTTLRange bool
		earliest    uint64
		latest      uint64
		records     uint64
		nonExpiring uint64
	}
}

func newFileMetadata(fn base.FileNum, path string, createdAt time.Time) *fileMetadata {
	m := &fileMetadata{fileNum: fn, path: path, createdAt: createdAt}
	m.refs.Store(1)
	return m
}

func (m *fileMetadata) ref() {
	m.refs.Add(1)
}

// unref drops a reference, returning true if it was the last one.
func (m *fileMetadata) unref() bool {
	switch v := m.refs.Add(-1); {
	case v < 0:
		panic(errors.AssertionFailedf("blobdb: blob file %s has negative refcount %d", m.fileNum, v))
	case v == 0:
		return true
	default:
		return false
	}
}

// updateFromWriter copies the writer's running statistics. Called by the
// owning writer with its lock held.
func (m *fileMetadata) updateFromWriter(s blob.FileWriterStats) {
	m.size.Store(s.FileLen)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mu.hasTTLRange = s.HasTTLRange
	m.mu.earliest, m.mu.latest = s.Earliest, s.Latest
	m.mu.records, m.mu.nonExpiring = s.RecordCount, s.NonExpiringCount
}

// seal freezes the file. A nil footer marks the TTL range as unknown.
func (m *fileMetadata) seal(footer *blob.FileFooter, size uint64) {
	m.size.Store(size)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mu.sealed = true
	if footer == nil {
		m.mu.ttlKnown = false
		return
	}
	m.mu.ttlKnown = true
	m.mu.hasTTLRange = footer.HasTTLRange
	m.mu.earliest, m.mu.latest = footer.Earliest, footer.Latest
	m.mu.records, m.mu.nonExpiring = footer.RecordCount, footer.NonExpiringCount
}

func (m *fileMetadata) sealed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.sealed
}

// expired returns true if every record in the file carries an expiration and
// all of them are before now (unix seconds). Only sealed files with a known
// TTL range can expire.
func (m *fileMetadata) expired(now uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.sealed && m.mu.ttlKnown && m.mu.hasTTLRange &&
		m.mu.nonExpiring == 0 && m.mu.records > 0 && m.mu.latest < now
}

// FileInfo describes a blob file.
type FileInfo struct {
	FileNum FileNum
	Size    uint64
	Sealed  bool
	// TTLKnown is false for files recovered without a footer; their TTL range
	// and record counts are unknown and they are never evicted by TTL.
	TTLKnown bool
	// Earliest and Latest bound the expirations of the file's records. Both
	// are zero if no record carries an expiration.
	Earliest         time.Time
	Latest           time.Time
	Records          uint64
	NonExpiringCount uint64
	Compression      string
	CreatedAt        time.Time
	// Refs is the number of references held by the registry and in-progress
	// reads.
	Refs int32
}

func (m *fileMetadata) info() FileInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	fi := FileInfo{
		FileNum:          m.fileNum,
		Size:             m.size.Load(),
		Sealed:           m.mu.sealed,
		TTLKnown:         m.mu.ttlKnown,
		Records:          m.mu.records,
		NonExpiringCount: m.mu.nonExpiring,
		Compression:      m.compression.String(),
		CreatedAt:        m.createdAt,
		Refs:             m.refs.Load(),
	}
	if m.mu.hasTTLRange {
		fi.Earliest = time.Unix(int64(m.mu.earliest), 0).UTC()
		fi.Latest = time.Unix(int64(m.mu.latest), 0).UTC()
	}
	return fi
}

// fileRegistry maps file numbers to the metadata of every live blob file,
// active or sealed. It is read-mostly: readers take the shared lock only long
// enough to acquire a reference.
type fileRegistry struct {
	mu    sync.RWMutex
	files swiss.Map[base.FileNum, *fileMetadata]
	// nextFileNum is the next file number to allocate. File numbers below it
	// have been allocated at some point, though their files may since have
	// been evicted.
	nextFileNum base.FileNum
}

func (r *fileRegistry) init(nextFileNum base.FileNum) {
	r.files.Init(16)
	r.nextFileNum = nextFileNum
}

// acquire returns the metadata of the file with a reference that the caller
// must release with DB.releaseFile.
func (r *fileRegistry) acquire(fn base.FileNum) (*fileMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.files.Get(fn)
	if !ok {
		return nil, false
	}
	m.ref()
	return m, true
}

// allocated returns true if fn was ever handed out by allocFileNum or found
// during recovery.
func (r *fileRegistry) allocated(fn base.FileNum) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fn < r.nextFileNum
}

func (r *fileRegistry) allocFileNum() base.FileNum {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn := r.nextFileNum
	r.nextFileNum++
	return fn
}

func (r *fileRegistry) add(m *fileMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files.Get(m.fileNum); ok {
		panic(errors.AssertionFailedf("blobdb: blob file %s registered twice", m.fileNum))
	}
	r.files.Put(m.fileNum, m)
}

// remove unregisters the file. The registry's reference is transferred to the
// caller.
func (r *fileRegistry) remove(fn base.FileNum) (*fileMetadata, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.files.Get(fn)
	if ok {
		r.files.Delete(fn)
	}
	return m, ok
}

// list returns the registered files in file number order.
func (r *fileRegistry) list() []*fileMetadata {
	r.mu.RLock()
	files := make([]*fileMetadata, 0, r.files.Len())
	r.files.All(func(_ base.FileNum, m *fileMetadata) bool {
		files = append(files, m)
		return true
	})
	r.mu.RUnlock()
	slices.SortFunc(files, func(a, b *fileMetadata) int {
		return cmp.Compare(a.fileNum, b.fileNum)
	})
	return files
}
