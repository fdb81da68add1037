// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build cgo

package compression

import (
	"encoding/binary"
	"sync"

	"github.com/DataDog/zstd"
	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/errors"
)

type zstdCompressor struct {
	level int
	ctx   zstd.Ctx
}

var _ Compressor = (*zstdCompressor)(nil)

var zstdCompressorPool = sync.Pool{
	New: func() any {
		return &zstdCompressor{ctx: zstd.NewCtx()}
	},
}

// UseStandardZstdLib indicates whether the zstd implementation is a port of the
// official one in the facebook/zstd repository.
const UseStandardZstdLib = true

func (z *zstdCompressor) Algorithm() Algorithm { return Zstd }

func (z *zstdCompressor) Compress(compressedBuf []byte, b []byte) []byte {
	// Get the bound and allocate the proper amount of memory instead of relying on
	// Datadog/zstd to do it for us. This allows us to avoid memcopying data around
	// for the varIntLen prefix.
	bound := zstd.CompressBound(len(b))
	if cap(compressedBuf) < binary.MaxVarintLen64+bound {
		compressedBuf = make([]byte, binary.MaxVarintLen64, binary.MaxVarintLen64+bound)
	} else {
		compressedBuf = compressedBuf[:binary.MaxVarintLen64]
	}

	varIntLen := binary.PutUvarint(compressedBuf, uint64(len(b)))
	result, err := z.ctx.CompressLevel(compressedBuf[varIntLen:varIntLen+bound], b, z.level)
	if err != nil {
		panic(errors.Wrap(err, "zstd compression"))
	}
	if &result[0] != &compressedBuf[varIntLen] {
		panic(errors.AssertionFailedf("allocated a new buffer despite checking CompressBound"))
	}
	return compressedBuf[:varIntLen+len(result)]
}

func (z *zstdCompressor) Close() {
	zstdCompressorPool.Put(z)
}

func getZstdCompressor(level int) *zstdCompressor {
	z := zstdCompressorPool.Get().(*zstdCompressor)
	z.level = level
	return z
}

type zstdDecompressor struct {
	ctx zstd.Ctx
}

var _ Decompressor = (*zstdDecompressor)(nil)

// DecompressInto decompresses src with the Zstandard algorithm. The destination
// buffer must already be sufficiently sized, otherwise DecompressInto may error.
func (z *zstdDecompressor) DecompressInto(dst, src []byte) error {
	// The payload is prefixed with a varint encoding the length of
	// the decompressed block.
	_, prefixLen := binary.Uvarint(src)
	if prefixLen <= 0 {
		return base.CorruptionErrorf("blobdb: zstd block has invalid length prefix")
	}
	src = src[prefixLen:]
	if len(src) == 0 {
		return errors.Errorf("decodeZstd: empty src buffer")
	}
	if len(dst) == 0 {
		return errors.Errorf("decodeZstd: empty dst buffer")
	}
	n, err := z.ctx.DecompressInto(dst, src)
	if err != nil {
		return err
	}
	if n != len(dst) {
		return base.CorruptionErrorf("blobdb: zstd decompressed %d bytes, expected %d",
			errors.Safe(n), errors.Safe(len(dst)))
	}
	return nil
}

func (*zstdDecompressor) DecompressedLen(b []byte) (decompressedLen int, err error) {
	decodedLenU64, varIntLen := binary.Uvarint(b)
	if varIntLen <= 0 {
		return 0, base.CorruptionErrorf("blobdb: compression block has invalid length")
	}
	return int(decodedLenU64), nil
}

func (z *zstdDecompressor) Close() {
	zstdDecompressorPool.Put(z)
}

var zstdDecompressorPool = sync.Pool{
	New: func() any {
		return &zstdDecompressor{ctx: zstd.NewCtx()}
	},
}

func getZstdDecompressor() *zstdDecompressor {
	return zstdDecompressorPool.Get().(*zstdDecompressor)
}
