// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blob

import (
	"encoding/binary"

	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// MaxIndexEntryLength is the maximum length of an encoded index entry.
//
// Index entry fields are varint encoded, so maximum 10 bytes each.
const MaxIndexEntryLength = 3 * binary.MaxVarintLen64

// Handle describes the location of a record stored within a blob file.
type Handle struct {
	FileNum base.FileNum
	// Offset is the offset within the file of the record's payload, just past
	// the frame's length header.
	Offset uint64
	// Length is the length of the (possibly compressed) payload. It excludes
	// the frame's length header and trailer.
	Length uint64
}

// String implements the fmt.Stringer interface.
func (h Handle) String() string {
	return redact.StringWithoutMarkers(h)
}

// SafeFormat implements redact.SafeFormatter.
func (h Handle) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("(%s,off%d,len%d)", h.FileNum, redact.SafeUint(h.Offset), redact.SafeUint(h.Length))
}

// FrameLength returns the length of the complete frame that the handle
// describes, including its length header and trailer.
func (h Handle) FrameLength() uint64 {
	return FrameHeaderLen + h.Length + TrailerLen
}

// AppendIndexEntry appends the index entry encoding of h to dst.
func (h Handle) AppendIndexEntry(dst []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(h.FileNum))
	dst = binary.AppendUvarint(dst, h.Offset)
	return binary.AppendUvarint(dst, h.Length)
}

// EncodeIndexEntry returns the index entry stored in the primary store for a
// record located by h.
func EncodeIndexEntry(h Handle) []byte {
	return h.AppendIndexEntry(make([]byte, 0, MaxIndexEntryLength))
}

// DecodeIndexEntry decodes an index entry. The entry must be exactly the
// length that was encoded; truncated entries, overflowing varints and trailing
// bytes are all reported as corruption.
func DecodeIndexEntry(src []byte) (Handle, error) {
	var vals [3]uint64
	n := 0
	for i := range vals {
		v, m := binary.Uvarint(src[n:])
		if m <= 0 {
			return Handle{}, base.CorruptionErrorf("blobdb: malformed index entry %x (field %d)",
				src, errors.Safe(i))
		}
		vals[i] = v
		n += m
	}
	if n != len(src) {
		return Handle{}, base.CorruptionErrorf("blobdb: index entry %x has %d trailing bytes",
			src, errors.Safe(len(src)-n))
	}
	return Handle{FileNum: base.FileNum(vals[0]), Offset: vals[1], Length: vals[2]}, nil
}
