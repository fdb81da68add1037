// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blob

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/blobdb/internal/compression"
	"github.com/cockroachdb/blobdb/internal/rowblk"
	"github.com/cockroachdb/errors"
)

// Magic identifies blob files. It is stored as the "magic" header property
// and, as its big-endian byte string, at the tail of the seal footer.
const Magic uint64 = 0xf09faab3f09fa680 // 🪳🦀

// FormatVersion is the only supported blob file format version.
const FormatVersion = 0

// maxHeaderLen bounds the header block length accepted by ReadFileHeader. Real
// headers are well under a hundred bytes.
const maxHeaderLen = 4 << 10

// Header property names. They are written in sorted order.
const (
	propCompression = "compression"
	propEarliest    = "earliest"
	propHasTTL      = "has_ttl"
	propLatest      = "latest"
	propMagic       = "magic"
	propVersion     = "version"
)

// FileHeader holds the metadata written once at the start of a blob file.
type FileHeader struct {
	Version uint64
	// HasTTL is set when the DB tracks record expirations for this file.
	HasTTL bool
	// Compression is the codec the writer was configured with. Individual
	// records may still be stored uncompressed; each record's trailer carries
	// the codec actually used.
	Compression compression.Algorithm
	// Earliest and Latest are the expiration range (unix seconds) known when
	// the header was written. Only encoded when HasTTL is set.
	Earliest uint64
	Latest   uint64
}

// Encode returns the encoded header: an 8-byte little-endian length followed
// by a property block.
func (h FileHeader) Encode() []byte {
	w := rowblk.Writer{RestartInterval: 16}
	add := func(name string, v uint64) {
		if err := w.AddRawString(name, binary.AppendUvarint(nil, v)); err != nil {
			panic(errors.NewAssertionErrorWithWrappedErrf(err, "encoding blob file header"))
		}
	}
	var hasTTL uint64
	if h.HasTTL {
		hasTTL = 1
	}
	add(propCompression, uint64(h.Compression))
	if h.HasTTL {
		add(propEarliest, h.Earliest)
	}
	add(propHasTTL, hasTTL)
	if h.HasTTL {
		add(propLatest, h.Latest)
	}
	add(propMagic, Magic)
	add(propVersion, h.Version)
	block := w.Finish()

	buf := make([]byte, FrameHeaderLen, FrameHeaderLen+len(block))
	binary.LittleEndian.PutUint64(buf, uint64(len(block)))
	return append(buf, block...)
}

// DecodeFileHeader decodes the property block of a header (without its length
// prefix).
func DecodeFileHeader(block []byte) (FileHeader, error) {
	var it rowblk.Iter
	if err := it.Init(block); err != nil {
		return FileHeader{}, errors.Wrap(err, "blobdb: malformed blob file header")
	}
	props := make(map[string]uint64)
	for ok := it.First(); ok; ok = it.Next() {
		v, n := binary.Uvarint(it.Value())
		if n <= 0 || n != len(it.Value()) {
			return FileHeader{}, base.CorruptionErrorf("blobdb: malformed header property %q", it.Key())
		}
		props[string(it.Key())] = v
	}
	if err := it.Error(); err != nil {
		return FileHeader{}, errors.Wrap(err, "blobdb: malformed blob file header")
	}

	get := func(name string) (uint64, error) {
		v, ok := props[name]
		if !ok {
			return 0, base.CorruptionErrorf("blobdb: blob file header missing property %q", errors.Safe(name))
		}
		return v, nil
	}
	var h FileHeader
	magic, err := get(propMagic)
	if err != nil {
		return FileHeader{}, err
	}
	if magic != Magic {
		return FileHeader{}, base.CorruptionErrorf("blobdb: invalid blob file magic %x", errors.Safe(magic))
	}
	if h.Version, err = get(propVersion); err != nil {
		return FileHeader{}, err
	}
	if h.Version != FormatVersion {
		return FileHeader{}, base.CorruptionErrorf("blobdb: unsupported blob file version %d", errors.Safe(h.Version))
	}
	hasTTL, err := get(propHasTTL)
	if err != nil {
		return FileHeader{}, err
	}
	if hasTTL > 1 {
		return FileHeader{}, base.CorruptionErrorf("blobdb: invalid has_ttl property %d", errors.Safe(hasTTL))
	}
	h.HasTTL = hasTTL == 1
	c, err := get(propCompression)
	if err != nil {
		return FileHeader{}, err
	}
	h.Compression = compression.Algorithm(c)
	if c > 0xff || !h.Compression.Known() {
		return FileHeader{}, base.CorruptionErrorf("blobdb: unknown header compression %d", errors.Safe(c))
	}
	if h.HasTTL {
		if h.Earliest, err = get(propEarliest); err != nil {
			return FileHeader{}, err
		}
		if h.Latest, err = get(propLatest); err != nil {
			return FileHeader{}, err
		}
	}
	return h, nil
}

// ReadFileHeader reads and decodes the header at the start of a blob file of
// the given size. It returns the header and the number of bytes it occupies.
// Only the header is read; record bodies are never scanned.
func ReadFileHeader(r io.ReaderAt, fileSize int64) (FileHeader, int64, error) {
	if fileSize < FrameHeaderLen {
		return FileHeader{}, 0, base.CorruptionErrorf("blobdb: blob file too short for header: %d bytes",
			errors.Safe(fileSize))
	}
	var lenBuf [FrameHeaderLen]byte
	if _, err := r.ReadAt(lenBuf[:], 0); err != nil {
		return FileHeader{}, 0, errors.Wrap(err, "reading blob file header length")
	}
	n := binary.LittleEndian.Uint64(lenBuf[:])
	if n > maxHeaderLen || n > uint64(fileSize-FrameHeaderLen) {
		return FileHeader{}, 0, base.CorruptionErrorf("blobdb: invalid blob file header length %d", errors.Safe(n))
	}
	block := make([]byte, n)
	if _, err := r.ReadAt(block, FrameHeaderLen); err != nil {
		return FileHeader{}, 0, errors.Wrap(err, "reading blob file header")
	}
	h, err := DecodeFileHeader(block)
	if err != nil {
		return FileHeader{}, 0, err
	}
	return h, FrameHeaderLen + int64(n), nil
}
