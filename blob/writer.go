// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blob

import (
	"bufio"
	"fmt"

	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
)

// DefaultBytesPerSync is the default sync cadence of a FileWriter.
const DefaultBytesPerSync = 128 << 20

const writeBufferSize = 64 << 10

// FileWriterOptions configures a FileWriter.
type FileWriterOptions struct {
	// BytesPerSync is the number of bytes appended between durability syncs.
	// Defaults to DefaultBytesPerSync.
	BytesPerSync uint64
}

// FileWriterStats aggregates statistics about a blob file written by a
// FileWriter.
type FileWriterStats struct {
	RecordCount      uint64
	NonExpiringCount uint64
	// HasTTLRange is set once a record with an expiration has been appended.
	HasTTLRange bool
	Earliest    uint64
	Latest      uint64
	// FileLen is the number of bytes written, including the header.
	FileLen uint64
	Syncs   uint64
}

// String implements the fmt.Stringer interface.
func (s FileWriterStats) String() string {
	return fmt.Sprintf("{RecordCount: %d, NonExpiringCount: %d, TTL: [%d, %d] (%t), FileLen: %d, Syncs: %d}",
		s.RecordCount, s.NonExpiringCount, s.Earliest, s.Latest, s.HasTTLRange, s.FileLen, s.Syncs)
}

// A FileWriter appends record frames to a single blob file.
//
// A FileWriter is not safe for concurrent use; callers serialize Append with
// their own lock. Once any write fails the error is sticky and the file must
// be abandoned.
type FileWriter struct {
	fileNum base.FileNum
	f       vfs.File
	bw      *bufio.Writer
	err     error
	// offset is the number of bytes written to the file.
	offset uint64
	// nextSyncOffset is the offset at which the next durability sync is due.
	// It advances by exactly bytesPerSync each time it is crossed.
	nextSyncOffset uint64
	bytesPerSync   uint64
	stats          FileWriterStats
}

// NewFileWriter writes the header to f and returns a FileWriter positioned
// after it. The header is flushed but not synced.
func NewFileWriter(
	fn base.FileNum, f vfs.File, header FileHeader, opts FileWriterOptions,
) (*FileWriter, error) {
	if opts.BytesPerSync == 0 {
		opts.BytesPerSync = DefaultBytesPerSync
	}
	w := &FileWriter{
		fileNum:        fn,
		f:              f,
		bw:             bufio.NewWriterSize(f, writeBufferSize),
		bytesPerSync:   opts.BytesPerSync,
		nextSyncOffset: opts.BytesPerSync,
	}
	if err := w.write(header.Encode()); err != nil {
		return nil, errors.Wrapf(err, "writing header of blob file %s", fn)
	}
	return w, nil
}

// Offset returns the number of bytes written so far.
func (w *FileWriter) Offset() uint64 { return w.offset }

// Err returns the sticky write error, if any.
func (w *FileWriter) Err() error { return w.err }

// Stats returns the writer's statistics.
func (w *FileWriter) Stats() FileWriterStats { return w.stats }

func (w *FileWriter) write(b []byte) error {
	if w.err != nil {
		return w.err
	}
	if _, err := w.bw.Write(b); err != nil {
		w.err = err
		return err
	}
	if err := w.bw.Flush(); err != nil {
		w.err = err
		return err
	}
	w.offset += uint64(len(b))
	w.stats.FileLen = w.offset
	return nil
}

// Append writes a complete record frame, as produced by EncodeRecord, and
// returns the handle locating its payload. The frame is flushed to the file
// before Append returns, so it is visible to independent read handles. If the
// write offset has crossed the sync watermark the file is synced and the
// watermark advanced by one increment.
//
// The expiration is in unix seconds; zero means the record never expires.
func (w *FileWriter) Append(frame []byte, expiration uint64) (Handle, error) {
	if len(frame) < FrameOverhead {
		return Handle{}, errors.AssertionFailedf("blob frame too short: %d bytes", len(frame))
	}
	start := w.offset
	if err := w.write(frame); err != nil {
		return Handle{}, errors.Wrapf(err, "appending to blob file %s", w.fileNum)
	}
	if w.offset >= w.nextSyncOffset {
		if err := w.f.Sync(); err != nil {
			w.err = err
			return Handle{}, errors.Wrapf(err, "syncing blob file %s", w.fileNum)
		}
		w.stats.Syncs++
		w.nextSyncOffset += w.bytesPerSync
	}

	w.stats.RecordCount++
	if expiration == 0 {
		w.stats.NonExpiringCount++
	} else if !w.stats.HasTTLRange {
		w.stats.HasTTLRange = true
		w.stats.Earliest, w.stats.Latest = expiration, expiration
	} else {
		w.stats.Earliest = min(w.stats.Earliest, expiration)
		w.stats.Latest = max(w.stats.Latest, expiration)
	}
	return Handle{
		FileNum: w.fileNum,
		Offset:  start + FrameHeaderLen,
		Length:  uint64(len(frame) - FrameOverhead),
	}, nil
}

// Seal writes the footer, syncs and closes the file. The FileWriter must not
// be used after Seal, even if it returns an error.
func (w *FileWriter) Seal() (FileFooter, error) {
	footer := FileFooter{
		HasTTLRange:      w.stats.HasTTLRange,
		Earliest:         w.stats.Earliest,
		Latest:           w.stats.Latest,
		RecordCount:      w.stats.RecordCount,
		NonExpiringCount: w.stats.NonExpiringCount,
		DataLength:       w.offset,
	}
	err := w.write(footer.Encode())
	if err == nil {
		if err = w.f.Sync(); err == nil {
			w.stats.Syncs++
		}
	}
	err = errors.CombineErrors(err, w.f.Close())
	w.f = nil
	if err != nil {
		return FileFooter{}, errors.Wrapf(err, "sealing blob file %s", w.fileNum)
	}
	return footer, nil
}

// Abandon closes the file without writing a footer. It is used when the
// writer has failed; the file is recovered as unsealed on the next open.
func (w *FileWriter) Abandon() error {
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
