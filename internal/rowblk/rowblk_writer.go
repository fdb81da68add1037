// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package rowblk defines facilities for row-oriented key/value blocks.
//
// A block is a sequence of prefix-compressed entries followed by a restart
// point table:
//
//	entry:   [uvarint shared][uvarint unshared][uvarint valueLen][key delta][value]
//	trailer: [uint32 restart offset]*numRestarts [uint32 numRestarts]
//
// Every RestartInterval entries the full key is written (shared=0) and its
// offset is recorded as a restart point. Blob records use a block with a single
// entry; blob file headers use a multi-entry block of named properties.
package rowblk

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

const (
	// MaximumRestartOffset indicates the maximum offset that we can encode
	// within a restart point of a row-oriented block.
	MaximumRestartOffset = 1 << 31
	// EmptySize holds the size of an empty block. Every block ends in a uint32
	// trailer encoding the number of restart points within the block.
	EmptySize = 4
)

// ErrBlockTooBig is surfaced when a block exceeds the maximum size.
var ErrBlockTooBig = errors.New("rowblk: block size exceeds maximum size")

// Writer buffers and serializes key/value pairs into a row-oriented block.
type Writer struct {
	// RestartInterval configures the interval at which the writer will write a
	// full key without prefix compression, and encode a corresponding restart
	// point. A value <= 0 is treated as 1.
	RestartInterval int
	nEntries        int
	nextRestart     int
	buf             []byte
	restarts        []uint32
	prevKey         []byte
	tmp             [4]byte
}

// Reset resets the block writer to empty, preserving buffers for reuse.
func (w *Writer) Reset() {
	*w = Writer{
		RestartInterval: w.RestartInterval,
		buf:             w.buf[:0],
		restarts:        w.restarts[:0],
		prevKey:         w.prevKey[:0],
	}
}

// EntryCount returns the count of entries written to the writer.
func (w *Writer) EntryCount() int {
	return w.nEntries
}

// AddRaw adds a key value pair to the block.
func (w *Writer) AddRaw(key, value []byte) error {
	// Check that the block does not already exceed MaximumRestartOffset. If it
	// does and we append the additional key-value pair, the new key-value pair's
	// offset in the block will be inexpressible as a restart point.
	if len(w.buf) >= MaximumRestartOffset {
		return errors.WithDetailf(ErrBlockTooBig, "block is %d bytes long", len(w.buf))
	}

	shared := 0
	if w.nEntries == w.nextRestart {
		interval := w.RestartInterval
		if interval <= 0 {
			interval = 1
		}
		w.nextRestart = w.nEntries + interval
		w.restarts = append(w.restarts, uint32(len(w.buf)))
	} else {
		n := min(len(key), len(w.prevKey))
		for shared < n && key[shared] == w.prevKey[shared] {
			shared++
		}
	}

	var lenBuf [3 * binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(shared))
	n += binary.PutUvarint(lenBuf[n:], uint64(len(key)-shared))
	n += binary.PutUvarint(lenBuf[n:], uint64(len(value)))
	w.buf = append(w.buf, lenBuf[:n]...)
	w.buf = append(w.buf, key[shared:]...)
	w.buf = append(w.buf, value...)

	w.prevKey = append(w.prevKey[:0], key...)
	w.nEntries++
	return nil
}

// AddRawString is AddRaw but with a string key.
func (w *Writer) AddRawString(key string, value []byte) error {
	return w.AddRaw([]byte(key), value)
}

// Finish finalizes the block, serializes it and returns the serialized data.
// The returned slice aliases the writer's buffer and is only valid until the
// next call to AddRaw or Reset.
func (w *Writer) Finish() []byte {
	// Write the restart points to the buffer.
	if w.nEntries == 0 {
		// Every block must have at least one restart point.
		w.restarts = append(w.restarts[:0], 0)
	}
	tmp4 := w.tmp[:4]
	for _, x := range w.restarts {
		binary.LittleEndian.PutUint32(tmp4, x)
		w.buf = append(w.buf, tmp4...)
	}
	binary.LittleEndian.PutUint32(tmp4, uint32(len(w.restarts)))
	w.buf = append(w.buf, tmp4...)
	result := w.buf

	// Reset the block state.
	w.nEntries = 0
	w.nextRestart = 0
	w.buf = w.buf[:0]
	w.restarts = w.restarts[:0]
	w.prevKey = w.prevKey[:0]
	return result
}

// EstimatedSize returns the estimated size of the block in bytes.
func (w *Writer) EstimatedSize() int {
	return len(w.buf) + 4*len(w.restarts) + EmptySize
}
