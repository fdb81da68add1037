// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package compression exposes the block compression algorithms a blob file may
// use. Each algorithm is identified by a one-byte tag that is persisted in the
// trailer of every record and in the file header.
package compression

import (
	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/errors"
)

// Algorithm identifies a compression algorithm. The numeric values are part of
// the durable format and must not be changed. Values not listed here (zlib,
// bzip2, lz4, lz4hc, xpress) are reserved.
type Algorithm uint8

// The supported algorithms.
const (
	NoCompression Algorithm = 0
	Snappy        Algorithm = 1
	Zstd          Algorithm = 7
	MinLZ         Algorithm = 8
)

// String implements fmt.Stringer.
func (a Algorithm) String() string {
	switch a {
	case NoCompression:
		return "none"
	case Snappy:
		return "snappy"
	case Zstd:
		return "zstd"
	case MinLZ:
		return "minlz"
	default:
		return "unknown"
	}
}

// Known returns true if the algorithm can be used to compress and decompress.
func (a Algorithm) Known() bool {
	switch a {
	case NoCompression, Snappy, Zstd, MinLZ:
		return true
	}
	return false
}

// Compressor compresses blocks with a single algorithm.
type Compressor interface {
	// Algorithm returns the algorithm used by Compress.
	Algorithm() Algorithm
	// Compress a block, appending the compressed data to dst[:0].
	Compress(dst, src []byte) []byte
	// Close must be called when the Compressor is no longer needed.
	// After Close is called, the Compressor must not be used again.
	Close()
}

// Decompressor decompresses blocks of a single algorithm.
type Decompressor interface {
	// DecompressInto decompresses compressed into buf. The buf slice must have
	// the exact size as the decompressed value. Callers may use
	// DecompressedLen to determine the correct size.
	DecompressInto(buf, compressed []byte) error

	// DecompressedLen returns the length of the provided block once
	// decompressed, allowing the caller to allocate a buffer exactly sized to
	// the decompressed payload.
	DecompressedLen(b []byte) (decompressedLen int, err error)

	// Close must be called when the Decompressor is no longer needed.
	// After Close is called, the Decompressor must not be used again.
	Close()
}

const zstdLevel = 3

// GetCompressor returns a Compressor for the algorithm. It panics if the
// algorithm is not Known; options validation is expected to catch that.
func GetCompressor(a Algorithm) Compressor {
	switch a {
	case NoCompression:
		return noopCompressor{}
	case Snappy:
		return snappyCompressor{}
	case Zstd:
		return getZstdCompressor(zstdLevel)
	case MinLZ:
		return minlzCompressorFastest
	default:
		panic(errors.AssertionFailedf("unknown compression algorithm %d", errors.Safe(a)))
	}
}

// GetDecompressor returns a Decompressor for the algorithm. The algorithm is
// usually read from disk, so an unknown value is reported as corruption.
func GetDecompressor(a Algorithm) (Decompressor, error) {
	switch a {
	case NoCompression:
		return noopDecompressor{}, nil
	case Snappy:
		return snappyDecompressor{}, nil
	case Zstd:
		return getZstdDecompressor(), nil
	case MinLZ:
		return minlzDecompressor{}, nil
	default:
		return nil, base.CorruptionErrorf("blobdb: unknown compression tag %d", errors.Safe(a))
	}
}

// Decompress decompresses b, which was compressed with the given algorithm,
// into a newly allocated buffer.
func Decompress(a Algorithm, b []byte) ([]byte, error) {
	d, err := GetDecompressor(a)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	n, err := d.DecompressedLen(b)
	if err != nil {
		return nil, base.MarkCorruptionError(err)
	}
	if n < 0 || n > maxDecompressedLen {
		return nil, base.CorruptionErrorf("blobdb: invalid decompressed length %d", errors.Safe(n))
	}
	buf := make([]byte, n)
	if err := d.DecompressInto(buf, b); err != nil {
		return nil, base.MarkCorruptionError(err)
	}
	return buf, nil
}

// maxDecompressedLen bounds the allocation made for a corrupt length prefix.
const maxDecompressedLen = 1 << 32
