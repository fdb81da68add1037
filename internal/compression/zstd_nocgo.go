// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build !cgo

package compression

import (
	"encoding/binary"

	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
)

type zstdCompressor struct {
	level int
}

var _ Compressor = (*zstdCompressor)(nil)

// UseStandardZstdLib indicates whether the zstd implementation is a port of the
// official one in the facebook/zstd repository.
//
// We cannot always use the official facebook/zstd implementation since it
// relies on CGo.
const UseStandardZstdLib = false

func getZstdCompressor(level int) *zstdCompressor {
	return &zstdCompressor{level: level}
}

func (z *zstdCompressor) Algorithm() Algorithm { return Zstd }

func (z *zstdCompressor) Compress(compressedBuf, b []byte) []byte {
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(z.level)),
		zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(errors.Wrap(err, "zstd compression"))
	}
	defer func() { _ = encoder.Close() }()

	if cap(compressedBuf) < binary.MaxVarintLen64 {
		compressedBuf = make([]byte, binary.MaxVarintLen64)
	}
	compressedBuf = compressedBuf[:binary.MaxVarintLen64]
	varIntLen := binary.PutUvarint(compressedBuf, uint64(len(b)))
	return encoder.EncodeAll(b, compressedBuf[:varIntLen])
}

func (z *zstdCompressor) Close() {}

type zstdDecompressor struct{}

var _ Decompressor = zstdDecompressor{}

func (zstdDecompressor) DecompressInto(dst, src []byte) error {
	// The payload is prefixed with a varint encoding the length of
	// the decompressed block.
	_, prefixLen := binary.Uvarint(src)
	if prefixLen <= 0 {
		return base.CorruptionErrorf("blobdb: zstd block has invalid length prefix")
	}
	src = src[prefixLen:]
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return err
	}
	defer decoder.Close()
	result, err := decoder.DecodeAll(src, dst[:0])
	if err != nil {
		return err
	}
	if len(result) != len(dst) || (len(result) > 0 && &result[0] != &dst[0]) {
		return base.CorruptionErrorf("blobdb: decompressed into unexpected buffer: %p != %p",
			errors.Safe(result), errors.Safe(dst))
	}
	return nil
}

func (zstdDecompressor) DecompressedLen(b []byte) (decompressedLen int, err error) {
	decodedLenU64, varIntLen := binary.Uvarint(b)
	if varIntLen <= 0 {
		return 0, base.CorruptionErrorf("blobdb: compression block has invalid length")
	}
	return int(decodedLenU64), nil
}

func (zstdDecompressor) Close() {}

func getZstdDecompressor() zstdDecompressor {
	return zstdDecompressor{}
}
