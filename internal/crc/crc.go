// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package crc implements the checksum algorithm used throughout blobdb.
//
// The algorithm is CRC-32 with Castagnoli's polynomial, followed by a bit
// rotation and an additional delta. The additional processing is to lessen the
// probability of arbitrary key/value data coincidentally containing bytes that
// look like a checksum, and in particular keeps a run of zero bytes from
// carrying a zero checksum.
//
// To calculate the uint32 checksum of some data:
//
//	var u uint32 = crc.New(data).Value()
//
// In blobdb, the uint32 value is then stored in little-endian format.
package crc

import "hash/crc32"

var table = crc32.MakeTable(crc32.Castagnoli)

// CRC is a little-endian CRC-32 checksum.
type CRC uint32

// New returns the CRC of b.
func New(b []byte) CRC {
	return CRC(0).Update(b)
}

// Update updates the CRC with the bytes in b.
func (c CRC) Update(b []byte) CRC {
	return CRC(crc32.Update(uint32(c), table, b))
}

// Value returns the masked checksum.
func (c CRC) Value() uint32 {
	return Mask(uint32(c))
}

// Mask rotates the raw checksum and adds a constant delta.
func Mask(c uint32) uint32 {
	return uint32(c>>15|c<<17) + 0xa282ead8
}

// Unmask reverses Mask.
func Unmask(m uint32) uint32 {
	r := m - 0xa282ead8
	return r>>17 | r<<15
}
