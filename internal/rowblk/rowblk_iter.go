// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rowblk

import (
	"encoding/binary"

	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/errors"
)

// Iter is a forward iterator over a row-oriented block. Keys and values
// returned by the iterator alias the block data, except for prefix-compressed
// keys which are assembled in an internal buffer and are only valid until the
// next positioning call.
type Iter struct {
	data []byte
	// restartsOffset is the offset of the restart table; entries live in
	// data[:restartsOffset].
	restartsOffset int
	numRestarts    int
	offset         int
	nextOffset     int
	key            []byte
	val            []byte
	err            error
}

// NewIter constructs an iterator over the provided block.
func NewIter(data []byte) (*Iter, error) {
	i := &Iter{}
	if err := i.Init(data); err != nil {
		return nil, err
	}
	return i, nil
}

// Init initializes the iterator, validating the restart table.
func (i *Iter) Init(data []byte) error {
	*i = Iter{key: i.key[:0]}
	if len(data) < EmptySize {
		return base.CorruptionErrorf("rowblk: block too short: %d bytes", errors.Safe(len(data)))
	}
	numRestarts := int(binary.LittleEndian.Uint32(data[len(data)-4:]))
	if numRestarts == 0 || numRestarts > (len(data)-EmptySize)/4 {
		return base.CorruptionErrorf("rowblk: invalid restart count %d for %d byte block",
			errors.Safe(numRestarts), errors.Safe(len(data)))
	}
	i.data = data
	i.numRestarts = numRestarts
	i.restartsOffset = len(data) - EmptySize - 4*numRestarts
	return nil
}

// First positions the iterator at the first entry, returning false if the
// block is empty or the entry is malformed (see Error).
func (i *Iter) First() bool {
	i.nextOffset = 0
	i.key = i.key[:0]
	return i.Next()
}

// Next advances the iterator, returning false at the end of the block or if
// an entry is malformed (see Error).
func (i *Iter) Next() bool {
	if i.err != nil || i.nextOffset >= i.restartsOffset {
		return false
	}
	i.offset = i.nextOffset
	b := i.data[i.offset:i.restartsOffset]
	shared, n1 := binary.Uvarint(b)
	unshared, n2 := uvarintAt(b, n1)
	valueLen, n3 := uvarintAt(b, n1+n2)
	if n1 <= 0 || n2 <= 0 || n3 <= 0 {
		i.err = base.CorruptionErrorf("rowblk: malformed entry header at offset %d", errors.Safe(i.offset))
		return false
	}
	hdr := n1 + n2 + n3
	if shared > uint64(len(i.key)) || unshared > uint64(len(b)-hdr) ||
		valueLen > uint64(len(b)-hdr)-unshared {
		i.err = base.CorruptionErrorf("rowblk: entry at offset %d overflows block", errors.Safe(i.offset))
		return false
	}
	keyEnd := hdr + int(unshared)
	i.key = append(i.key[:shared], b[hdr:keyEnd]...)
	i.val = b[keyEnd : keyEnd+int(valueLen)]
	i.nextOffset = i.offset + keyEnd + int(valueLen)
	return true
}

func uvarintAt(b []byte, off int) (uint64, int) {
	if off <= 0 || off > len(b) {
		return 0, 0
	}
	return binary.Uvarint(b[off:])
}

// Key returns the key of the current entry.
func (i *Iter) Key() []byte { return i.key }

// Value returns the value of the current entry.
func (i *Iter) Value() []byte { return i.val }

// Error returns any corruption encountered while iterating.
func (i *Iter) Error() error { return i.err }

// Count returns the number of entries in the block, or an error if the block
// is malformed.
func (i *Iter) Count() (int, error) {
	n := 0
	for ok := i.First(); ok; ok = i.Next() {
		n++
	}
	return n, i.Error()
}
