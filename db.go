// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package blobdb stores large values in append-only blob files beside a
// primary ordered key-value store. The primary store keeps each key mapped to
// a small index entry locating the value's record in a blob file, so large
// values are never rewritten by the primary store's compactions.
//
// Blob files are written by a pool of log writers, sealed when they reach a
// size or age limit, recovered from their headers and footers on Open, and
// garbage collected by TTL and by a total size budget.
//
// Reads rely on the file system returning bytes that were appended and
// flushed through one handle to an independent read handle before those bytes
// are synced. A Put makes its index entry visible only after its record has
// been flushed.
package blobdb // import "github.com/cockroachdb/blobdb"

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/blobdb/blob"
	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/blobdb/internal/compression"
	"github.com/cockroachdb/blobdb/internal/rowblk"
	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
)

var (
	// ErrNotFound is returned when a get operation does not find the requested
	// key, or the key's record lives in a file that has been evicted.
	ErrNotFound = base.ErrNotFound
	// ErrCorruption marks errors caused by corrupt blob files or index entries.
	ErrCorruption = base.ErrCorruption
	// ErrNotSupported is returned by Open when the options lack a required
	// setting, such as the blob directory.
	ErrNotSupported = base.ErrNotSupported
	// ErrClosed is panicked when an operation is performed on a closed DB.
	ErrClosed = errors.New("blobdb: closed")
)

// IsCorruptionError returns true if the given error indicates corruption.
func IsCorruptionError(err error) bool {
	return base.IsCorruptionError(err)
}

// DB stores large values in blob files and their locators in a primary store.
// It is safe for concurrent use by multiple goroutines.
type DB struct {
	opts     *Options
	dirname  string
	fileLock io.Closer
	dataDir  vfs.File

	registry       fileRegistry
	writers        writerPool
	fileCache      *fileCache
	cleanupManager *cleanupManager
	metrics        dbMetrics

	// evictMu serializes eviction passes.
	evictMu sync.Mutex

	closed   atomic.Bool
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

var payloadWriterPool = sync.Pool{
	New: func() interface{} { return &rowblk.Writer{RestartInterval: 1} },
}

// Put stores value under key without an expiration.
func (d *DB) Put(opts WriteOptions, key, value []byte) error {
	return d.PutUntil(opts, key, value, time.Time{})
}

// PutWithTTL stores value under key, expiring ttl from now as read from
// Options.Clock. A non-positive ttl means the record never expires.
func (d *DB) PutWithTTL(opts WriteOptions, key, value []byte, ttl time.Duration) error {
	var expiration time.Time
	if ttl > 0 {
		expiration = d.opts.Clock.Now().Add(ttl)
	}
	return d.PutUntil(opts, key, value, expiration)
}

// PutUntil stores value under key with an absolute expiration. The zero time
// means the record never expires. Expirations have second granularity and are
// only tracked when Options.TTLEnabled is set.
//
// The record is appended and flushed to a blob file before its index entry is
// written to the primary store. If writing the index entry fails the record's
// bytes are orphaned; they are reclaimed when the file is evicted.
func (d *DB) PutUntil(opts WriteOptions, key, value []byte, expiration time.Time) error {
	if d.closed.Load() {
		panic(ErrClosed)
	}
	var exp uint64
	if !expiration.IsZero() {
		if expiration.Unix() <= 0 {
			d.metrics.putErrors.Add(1)
			return errors.Newf("blobdb: expiration %s is not after the unix epoch", expiration)
		}
		if d.opts.TTLEnabled {
			exp = uint64(expiration.Unix())
		}
	}
	start := crtime.NowMono()
	err := d.put(opts, key, value, exp)
	d.metrics.putLatency.Observe(float64(start.Elapsed()))
	if err != nil {
		d.metrics.putErrors.Add(1)
		return err
	}
	d.metrics.puts.Add(1)
	d.metrics.putBytes.Add(int64(len(value)))
	return nil
}

func (d *DB) put(opts WriteOptions, key, value []byte, expiration uint64) error {
	pw := payloadWriterPool.Get().(*rowblk.Writer)
	defer payloadWriterPool.Put(pw)
	payload, err := blob.EncodePayload(pw, key, value)
	if err != nil {
		return err
	}
	c := compression.GetCompressor(d.opts.Compression.algorithm())
	frame, _ := blob.EncodeRecord(nil, payload, c)
	c.Close()

	h, meta, err := d.writers.pick().append(frame, expiration)
	if err != nil {
		return err
	}
	defer meta.inFlight.Add(-1)
	d.metrics.putFrameBytes.Add(int64(len(frame)))

	if err := d.opts.Primary.Set(key, blob.EncodeIndexEntry(h), opts.Sync); err != nil {
		return errors.Wrapf(err, "blobdb: writing index entry for %s", h)
	}
	return nil
}

// Get returns the value stored under key. It returns ErrNotFound if the
// primary store has no entry for the key, if the record's file has been
// evicted, or if every record in the record's file has expired. The returned
// slice is owned by the caller.
func (d *DB) Get(opts ReadOptions, key []byte) ([]byte, error) {
	if d.closed.Load() {
		panic(ErrClosed)
	}
	start := crtime.NowMono()
	v, err := d.get(opts, key)
	d.metrics.getLatency.Observe(float64(start.Elapsed()))
	d.metrics.gets.Add(1)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		d.metrics.getNotFound.Add(1)
	case IsCorruptionError(err):
		d.metrics.getCorruption.Add(1)
	}
	return v, err
}

func (d *DB) get(opts ReadOptions, key []byte) ([]byte, error) {
	entry, err := d.opts.Primary.Get(key)
	if err != nil {
		return nil, err
	}
	h, err := blob.DecodeIndexEntry(entry)
	if err != nil {
		return nil, err
	}
	m, ok := d.registry.acquire(h.FileNum)
	if !ok {
		if d.registry.allocated(h.FileNum) {
			// The file was evicted while this entry still referenced it.
			return nil, ErrNotFound
		}
		return nil, base.CorruptionErrorf("blobdb: index entry references unknown blob file %s", h.FileNum)
	}
	defer d.releaseFile(m)
	if d.opts.TTLEnabled && m.expired(uint64(d.opts.Clock.Now().Unix())) {
		return nil, ErrNotFound
	}

	var r io.ReaderAt
	if opts.NoFileCache {
		f, err := d.opts.FS.Open(m.path)
		if err != nil {
			return nil, errors.Wrapf(err, "opening blob file %s", m.fileNum)
		}
		defer f.Close()
		r = f
	} else {
		cf, err := d.fileCache.get(m)
		if err != nil {
			return nil, err
		}
		defer cf.unref()
		r = cf.f
	}

	k, v, err := blob.ReadRecord(r, m.size.Load(), h)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(k, key) {
		return nil, base.CorruptionErrorf("blobdb: record at %s belongs to a different key", h)
	}
	return v, nil
}

// Delete removes the index entry for key from the primary store. The value's
// bytes remain in their blob file until the file is evicted.
func (d *DB) Delete(opts WriteOptions, key []byte) error {
	if d.closed.Load() {
		panic(ErrClosed)
	}
	return d.opts.Primary.Delete(key, opts.Sync)
}

// Rotate seals every active blob file and starts new ones.
func (d *DB) Rotate() error {
	if d.closed.Load() {
		panic(ErrClosed)
	}
	var err error
	for _, w := range d.writers.writers {
		err = errors.CombineErrors(err, w.rotate(sealReasonManual))
	}
	return err
}

// Files returns information about every registered blob file in file number
// order.
func (d *DB) Files() []FileInfo {
	files := d.registry.list()
	infos := make([]FileInfo, len(files))
	for i, m := range files {
		infos[i] = m.info()
	}
	return infos
}

// releaseFile drops a reference to the file. Once the file has been removed
// from the registry the last release schedules its deletion.
func (d *DB) releaseFile(m *fileMetadata) {
	if !m.unref() {
		return
	}
	d.fileCache.evict(m.fileNum)
	d.cleanupManager.EnqueueJob(obsoleteFile{
		fileNum:  m.fileNum,
		path:     m.path,
		fileSize: m.size.Load(),
	})
}

// Close seals the active blob files and releases the DB's resources. Close
// waits for queued file deletions to complete. It is not safe to call Close
// concurrently with other operations.
func (d *DB) Close() error {
	if d.closed.Swap(true) {
		panic(ErrClosed)
	}
	if d.bgCancel != nil {
		d.bgCancel()
	}
	d.bgWG.Wait()

	var err error
	for _, w := range d.writers.writers {
		err = errors.CombineErrors(err, w.close())
	}
	d.cleanupManager.Close()
	d.fileCache.close()
	err = errors.CombineErrors(err, d.dataDir.Close())
	err = errors.CombineErrors(err, d.fileLock.Close())
	return err
}
