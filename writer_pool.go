// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobdb

import (
	"sync"

	"github.com/cockroachdb/blobdb/blob"
	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/errors"
)

// Reasons a blob file is sealed.
const (
	sealReasonSize   = "size"
	sealReasonAge    = "age"
	sealReasonManual = "manual"
	sealReasonClose  = "close"
)

// logWriter owns one active blob file. Its mutex serializes the append of a
// frame, the flush, the conditional sync and the production of the handle, so
// handles describe disjoint byte ranges in append order.
type logWriter struct {
	d     *DB
	index int

	mu struct {
		sync.Mutex
		// fw is nil after a write failure until the next append creates a
		// replacement file, and after the DB is closed.
		fw     *blob.FileWriter
		meta   *fileMetadata
		// syncs is the sync count of fw already added to the DB metrics.
		syncs  uint64
		closed bool
	}
}

// writerPool distributes puts across the log writers round-robin. The
// selection lock is separate from, and never held with, a writer's lock.
type writerPool struct {
	mu      sync.Mutex
	next    int
	writers []*logWriter
}

func (p *writerPool) init(d *DB, n int) {
	p.writers = make([]*logWriter, n)
	for i := range p.writers {
		p.writers[i] = &logWriter{d: d, index: i}
	}
}

func (p *writerPool) pick() *logWriter {
	p.mu.Lock()
	defer p.mu.Unlock()
	w := p.writers[p.next]
	p.next = (p.next + 1) % len(p.writers)
	return w
}

// append writes a frame to the active file, creating one if needed. On
// success the file's in-flight count has been incremented and the caller must
// decrement it once the index entry has been written.
func (w *logWriter) append(frame []byte, expiration uint64) (blob.Handle, *fileMetadata, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mu.closed {
		return blob.Handle{}, nil, ErrClosed
	}
	if w.mu.fw == nil {
		if err := w.createLocked(); err != nil {
			return blob.Handle{}, nil, err
		}
	}

	meta := w.mu.meta
	meta.inFlight.Add(1)
	h, err := w.mu.fw.Append(frame, expiration)
	if err != nil {
		meta.inFlight.Add(-1)
		w.abandonLocked(err)
		return blob.Handle{}, nil, err
	}
	stats := w.mu.fw.Stats()
	meta.updateFromWriter(stats)
	w.accountSyncsLocked(stats)

	if reason := w.rotationReasonLocked(); reason != "" {
		if err := w.rotateLocked(reason); err != nil {
			// The record is durable in the old file; the next append retries
			// creating a file.
			w.d.opts.EventListener.BackgroundError(err)
		}
	}
	return h, meta, nil
}

func (w *logWriter) accountSyncsLocked(stats blob.FileWriterStats) {
	w.d.metrics.syncs.Add(int64(stats.Syncs - w.mu.syncs))
	w.mu.syncs = stats.Syncs
}

func (w *logWriter) rotationReasonLocked() string {
	if w.mu.fw.Offset() >= w.d.opts.MaxFileSize {
		return sealReasonSize
	}
	if age := w.d.opts.MaxFileAge; age > 0 && w.d.opts.Clock.Now().Sub(w.mu.meta.createdAt) >= age {
		return sealReasonAge
	}
	return ""
}

// rotate seals the active file, if any, and starts a new one.
func (w *logWriter) rotate(reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mu.closed {
		return ErrClosed
	}
	return w.rotateLocked(reason)
}

func (w *logWriter) rotateLocked(reason string) error {
	if err := w.sealLocked(reason); err != nil {
		return err
	}
	return w.createLocked()
}

// sealLocked writes the footer of the active file and freezes its metadata.
// A file that fails to seal is registered as sealed with an unknown TTL range,
// exactly as if it had been recovered without a footer.
func (w *logWriter) sealLocked(reason string) error {
	fw, meta := w.mu.fw, w.mu.meta
	if fw == nil {
		return nil
	}
	w.mu.fw, w.mu.meta = nil, nil
	footer, err := fw.Seal()
	w.accountSyncsLocked(fw.Stats())
	info := BlobFileSealInfo{
		Writer:  w.index,
		FileNum: meta.fileNum,
		Records: fw.Stats().RecordCount,
		Reason:  reason,
		Err:     err,
	}
	if err != nil {
		meta.seal(nil, meta.size.Load())
		w.d.opts.EventListener.BlobFileSealed(info)
		return err
	}
	size := footer.DataLength + blob.FooterLen
	meta.seal(&footer, size)
	info.Size = size
	w.d.opts.EventListener.BlobFileSealed(info)
	return nil
}

// abandonLocked drops a writer whose file can no longer be appended to. The
// bytes already acknowledged stay readable; the next append starts a new file.
func (w *logWriter) abandonLocked(cause error) {
	fw, meta := w.mu.fw, w.mu.meta
	w.mu.fw, w.mu.meta = nil, nil
	if err := fw.Abandon(); err != nil {
		w.d.opts.Logger.Errorf("closing abandoned blob file %s: %v", meta.fileNum, err)
	}
	meta.seal(nil, meta.size.Load())
	w.d.opts.EventListener.BlobFileSealed(BlobFileSealInfo{
		Writer:  w.index,
		FileNum: meta.fileNum,
		Reason:  "error",
		Err:     cause,
	})
}

// createLocked creates a new blob file with the next file number, writes its
// header and registers it.
func (w *logWriter) createLocked() error {
	d := w.d
	fn := d.registry.allocFileNum()
	path := base.MakeFilepath(d.opts.FS, d.dirname, base.FileTypeBlob, fn)
	fw, err := d.createBlobFile(fn, path)
	d.opts.EventListener.BlobFileCreated(BlobFileCreateInfo{
		Writer:  w.index,
		Path:    path,
		FileNum: fn,
		Err:     err,
	})
	if err != nil {
		return err
	}
	meta := newFileMetadata(fn, path, d.opts.Clock.Now())
	meta.compression = d.opts.Compression.algorithm()
	meta.headerLen = fw.Offset()
	meta.mu.ttlKnown = true
	meta.updateFromWriter(fw.Stats())
	d.registry.add(meta)
	w.mu.fw, w.mu.meta, w.mu.syncs = fw, meta, 0
	return nil
}

// close seals the active file and refuses further appends.
func (w *logWriter) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mu.closed {
		return nil
	}
	w.mu.closed = true
	return w.sealLocked(sealReasonClose)
}

// createBlobFile creates the file and writes its header. The file is synced
// before the directory so that a recovered directory entry always has a
// complete header.
func (d *DB) createBlobFile(fn base.FileNum, path string) (*blob.FileWriter, error) {
	f, err := d.opts.FS.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "creating blob file %s", fn)
	}
	header := blob.FileHeader{
		Version:     blob.FormatVersion,
		HasTTL:      d.opts.TTLEnabled,
		Compression: d.opts.Compression.algorithm(),
	}
	fw, err := blob.NewFileWriter(fn, f, header, blob.FileWriterOptions{BytesPerSync: d.opts.BytesPerSync})
	if err != nil {
		_ = f.Close()
		_ = d.opts.FS.Remove(path)
		return nil, err
	}
	if err := f.Sync(); err != nil {
		err = errors.Wrapf(err, "syncing header of blob file %s", fn)
		_ = fw.Abandon()
		_ = d.opts.FS.Remove(path)
		return nil, err
	}
	if err := d.dataDir.Sync(); err != nil {
		err = errors.Wrapf(err, "syncing blob directory %s", d.dirname)
		_ = fw.Abandon()
		_ = d.opts.FS.Remove(path)
		return nil, err
	}
	return fw, nil
}
