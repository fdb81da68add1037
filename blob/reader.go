// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blob

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/errors"
)

// ReadFrame reads the complete frame located by h from r, whose readable size
// is fileSize. A handle that does not lie entirely within the file is
// corruption.
func ReadFrame(r io.ReaderAt, fileSize uint64, h Handle) ([]byte, error) {
	if h.Offset < FrameHeaderLen || h.Offset > fileSize || h.Length > fileSize ||
		h.Offset-FrameHeaderLen+h.FrameLength() > fileSize {
		return nil, base.CorruptionErrorf("blobdb: handle %s out of range of blob file of size %d",
			h, errors.Safe(fileSize))
	}
	frame := make([]byte, h.FrameLength())
	if _, err := r.ReadAt(frame, int64(h.Offset-FrameHeaderLen)); err != nil {
		return nil, errors.Wrapf(err, "reading %s", h)
	}
	return frame, nil
}

// ReadRecord reads the record located by h and returns its key and value. The
// frame checksum is verified before the payload is decompressed.
func ReadRecord(r io.ReaderAt, fileSize uint64, h Handle) (key, value []byte, _ error) {
	frame, err := ReadFrame(r, fileSize, h)
	if err != nil {
		return nil, nil, err
	}
	payload, err := DecodeRecord(frame)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "decoding %s", h)
	}
	return DecodePayload(payload)
}

// Scan visits every record of a blob file in append order, starting just past
// the header and stopping at dataLen (the footer offset of a sealed file, or
// the file size of an unsealed one). A torn final frame is reported as
// corruption. Records are decoded and checksum-verified.
func Scan(
	r io.ReaderAt,
	fn base.FileNum,
	headerLen, dataLen uint64,
	visit func(h Handle, key, value []byte) error,
) error {
	var lenBuf [FrameHeaderLen]byte
	for off := headerLen; off < dataLen; {
		if dataLen-off < FrameOverhead {
			return base.CorruptionErrorf("blobdb: torn frame at offset %d of blob file %s",
				errors.Safe(off), fn)
		}
		if _, err := r.ReadAt(lenBuf[:], int64(off)); err != nil {
			return errors.Wrapf(err, "reading frame at offset %d", off)
		}
		h := Handle{
			FileNum: fn,
			Offset:  off + FrameHeaderLen,
			Length:  binary.LittleEndian.Uint64(lenBuf[:]),
		}
		key, value, err := ReadRecord(r, dataLen, h)
		if err != nil {
			return err
		}
		if err := visit(h, key, value); err != nil {
			return err
		}
		off += h.FrameLength()
	}
	return nil
}
