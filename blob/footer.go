// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blob

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/blobdb/internal/crc"
	"github.com/cockroachdb/errors"
)

const (
	// FooterLen is the length of the footer written when a file is sealed.
	FooterLen   = 53
	footerMagic = "\xf0\x9f\xaa\xb3\xf0\x9f\xa6\x80"

	footerFlagHasTTLRange = 1 << 0
)

// FileFooter is written at the end of a blob file when it is sealed. It
// records the file's final expiration range and record counts.
//
// Blob file footer format:
//   - checksum CRC over footer data (4 bytes)
//   - earliest expiration, unix seconds (8 bytes)
//   - latest expiration, unix seconds (8 bytes)
//   - record count (8 bytes)
//   - count of records without an expiration (8 bytes)
//   - data length, i.e. the offset of the footer (8 bytes)
//   - flags (1 byte)
//   - blob file magic string (8 bytes)
type FileFooter struct {
	// HasTTLRange is set if at least one record carried an expiration, in
	// which case Earliest <= Latest bound every such expiration.
	HasTTLRange      bool
	Earliest         uint64
	Latest           uint64
	RecordCount      uint64
	NonExpiringCount uint64
	DataLength       uint64
}

// Encode encodes the footer into a newly allocated buffer.
func (f *FileFooter) Encode() []byte {
	b := make([]byte, FooterLen)
	binary.LittleEndian.PutUint64(b[4:], f.Earliest)
	binary.LittleEndian.PutUint64(b[12:], f.Latest)
	binary.LittleEndian.PutUint64(b[20:], f.RecordCount)
	binary.LittleEndian.PutUint64(b[28:], f.NonExpiringCount)
	binary.LittleEndian.PutUint64(b[36:], f.DataLength)
	if f.HasTTLRange {
		b[44] |= footerFlagHasTTLRange
	}
	copy(b[45:], footerMagic)
	binary.LittleEndian.PutUint32(b[:4], crc.New(b[4:]).Value())
	return b
}

func (f *FileFooter) decode(b []byte) error {
	if len(b) != FooterLen {
		return errors.AssertionFailedf("invalid blob file footer length %d", len(b))
	}
	encodedChecksum := binary.LittleEndian.Uint32(b[0:])
	computedChecksum := crc.New(b[4:]).Value()
	if encodedChecksum != computedChecksum {
		return base.CorruptionErrorf("blobdb: invalid blob file footer checksum 0x%08x, expected: 0x%08x",
			errors.Safe(encodedChecksum), errors.Safe(computedChecksum))
	}
	f.Earliest = binary.LittleEndian.Uint64(b[4:])
	f.Latest = binary.LittleEndian.Uint64(b[12:])
	f.RecordCount = binary.LittleEndian.Uint64(b[20:])
	f.NonExpiringCount = binary.LittleEndian.Uint64(b[28:])
	f.DataLength = binary.LittleEndian.Uint64(b[36:])
	f.HasTTLRange = b[44]&footerFlagHasTTLRange != 0
	if f.HasTTLRange && f.Earliest > f.Latest {
		return base.CorruptionErrorf("blobdb: blob file footer expiration range [%d, %d] is inverted",
			errors.Safe(f.Earliest), errors.Safe(f.Latest))
	}
	return nil
}

// ReadFileFooter reads the footer of a blob file of the given size. It returns
// false, with a nil error, if the file does not end in a footer (the file was
// never sealed). A file that ends in the footer magic but whose footer fails
// validation is reported as corrupt.
func ReadFileFooter(r io.ReaderAt, fileSize int64) (FileFooter, bool, error) {
	var f FileFooter
	if fileSize < FooterLen+FrameHeaderLen {
		return f, false, nil
	}
	buf := make([]byte, FooterLen)
	if _, err := r.ReadAt(buf, fileSize-FooterLen); err != nil {
		return f, false, errors.Wrap(err, "reading blob file footer")
	}
	if string(buf[FooterLen-len(footerMagic):]) != footerMagic {
		return f, false, nil
	}
	if err := f.decode(buf); err != nil {
		return f, false, err
	}
	if f.DataLength != uint64(fileSize-FooterLen) {
		return f, false, base.CorruptionErrorf("blobdb: blob file footer data length %d does not match file size %d",
			errors.Safe(f.DataLength), errors.Safe(fileSize))
	}
	return f, true, nil
}
