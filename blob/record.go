// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blob

import (
	"encoding/binary"

	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/blobdb/internal/compression"
	"github.com/cockroachdb/blobdb/internal/crc"
	"github.com/cockroachdb/blobdb/internal/rowblk"
	"github.com/cockroachdb/errors"
)

const (
	// FrameHeaderLen is the length of the little-endian payload length that
	// precedes every record payload.
	FrameHeaderLen = 8
	// TrailerLen is the length of the trailer at the end of a record frame:
	// a one byte codec tag followed by a four byte masked checksum.
	TrailerLen = 5
	// FrameOverhead is the number of bytes a frame adds to its payload.
	FrameOverhead = FrameHeaderLen + TrailerLen
)

// Trailer is the trailer at the end of a record frame, encoding the codec tag
// and a checksum.
type Trailer = [TrailerLen]byte

// MakeTrailer constructs a trailer from a codec tag and a checksum.
func MakeTrailer(codec compression.Algorithm, checksum uint32) (t Trailer) {
	t[0] = byte(codec)
	binary.LittleEndian.PutUint32(t[1:5], checksum)
	return t
}

// checksum computes the masked CRC32C of the payload followed by the codec
// tag.
func checksum(payload []byte, codec compression.Algorithm) uint32 {
	return crc.New(payload).Update([]byte{byte(codec)}).Value()
}

// EncodePayload builds the single-entry block holding key and value, appending
// it to w's buffer. The returned slice aliases w and is valid until w is used
// again.
func EncodePayload(w *rowblk.Writer, key, value []byte) ([]byte, error) {
	w.Reset()
	if err := w.AddRaw(key, value); err != nil {
		return nil, err
	}
	return w.Finish(), nil
}

// DecodePayload returns the key and value of the first entry of a payload
// block. The returned slices alias payload.
func DecodePayload(payload []byte) (key, value []byte, _ error) {
	var it rowblk.Iter
	if err := it.Init(payload); err != nil {
		return nil, nil, err
	}
	if !it.First() {
		if err := it.Error(); err != nil {
			return nil, nil, err
		}
		return nil, nil, base.CorruptionErrorf("blobdb: empty record payload")
	}
	// The key may live in the iterator's buffer if it were prefix compressed;
	// the first entry of a block never is, so it aliases payload.
	return it.Key(), it.Value(), nil
}

// EncodeRecord compresses payload with c and appends the complete frame to
// dst[:0]. Compression is declined, and the payload stored verbatim with the
// none codec, when it would not shrink the payload by at least an eighth. The
// returned algorithm is the one actually recorded in the frame.
func EncodeRecord(
	dst, payload []byte, c compression.Compressor,
) ([]byte, compression.Algorithm) {
	dst = append(dst[:0], make([]byte, FrameHeaderLen)...)
	algo := compression.NoCompression
	if c != nil && c.Algorithm() != compression.NoCompression {
		compressed := c.Compress(nil, payload)
		if len(compressed) < len(payload)-len(payload)/8 {
			dst = append(dst, compressed...)
			algo = c.Algorithm()
		}
	}
	if algo == compression.NoCompression {
		dst = append(dst, payload...)
	}
	body := dst[FrameHeaderLen:]
	binary.LittleEndian.PutUint64(dst[:FrameHeaderLen], uint64(len(body)))
	trailer := MakeTrailer(algo, checksum(body, algo))
	return append(dst, trailer[:]...), algo
}

// ValidateFrame checks the framing and checksum of a complete frame, returning
// the stored (possibly compressed) payload and its codec.
func ValidateFrame(frame []byte) ([]byte, compression.Algorithm, error) {
	if len(frame) < FrameOverhead {
		return nil, 0, base.CorruptionErrorf("blobdb: record frame too short: %d bytes", errors.Safe(len(frame)))
	}
	n := binary.LittleEndian.Uint64(frame[:FrameHeaderLen])
	if n != uint64(len(frame)-FrameOverhead) {
		return nil, 0, base.CorruptionErrorf("blobdb: record frame length %d does not match frame size %d",
			errors.Safe(n), errors.Safe(len(frame)))
	}
	body := frame[FrameHeaderLen : len(frame)-TrailerLen]
	trailer := frame[len(frame)-TrailerLen:]
	algo := compression.Algorithm(trailer[0])
	expected := binary.LittleEndian.Uint32(trailer[1:])
	if computed := checksum(body, algo); computed != expected {
		return nil, 0, base.CorruptionErrorf("blobdb: record checksum mismatch %08x != %08x",
			errors.Safe(expected), errors.Safe(computed))
	}
	return body, algo, nil
}

// DecodeRecord verifies a complete frame and returns the decompressed payload.
// Any checksum mismatch, framing error or decompression failure is reported
// as corruption.
func DecodeRecord(frame []byte) ([]byte, error) {
	body, algo, err := ValidateFrame(frame)
	if err != nil {
		return nil, err
	}
	if algo == compression.NoCompression {
		return body, nil
	}
	return compression.Decompress(algo, body)
}
