// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package blob implements the on-disk format of blob log files: the record
// framing, the index entries stored in the primary store, the file header and
// the seal footer, along with a writer and reader for individual files.
//
// # Blob file format
//
// A blob file is an append-only log. It begins with a header, continues with
// a sequence of record frames, and once sealed ends with a fixed-size footer.
// A file that was never sealed (for example because the process crashed while
// it was being written) simply ends after its last complete or partial frame.
//
//	+---------------------------------------------------------------+
//	| Header length (8 bytes, little-endian)                         |
//	| Header property block (rowblk; magic, version, has_ttl,        |
//	|   compression, earliest, latest)                               |
//	+---------------------------------------------------------------+
//	| Record frame #0                                                |
//	|   Payload length (8 bytes, little-endian)                      |
//	|   Payload (possibly compressed single-entry rowblk block)      |  <- Handle.Offset
//	|   Codec tag (1 byte)                                           |
//	|   Masked CRC32C over payload and codec tag (4 bytes)           |
//	+---------------------------------------------------------------+
//	| ...                                                            |
//	| Record frame #N                                                |
//	+--------------------------- Footer (53 bytes, sealed only) -----+
//	| Masked CRC32C over the rest of the footer (4 bytes)            |
//	| Earliest expiration (8 bytes)                                  |
//	| Latest expiration (8 bytes)                                    |
//	| Record count (8 bytes)                                         |
//	| Records without expiration (8 bytes)                           |
//	| Data length, the offset of the footer (8 bytes)                |
//	| Flags (1 byte)                                                 |
//	| Magic string (8 bytes)                                         |
//	+---------------------------------------------------------------+
//
// The header is written once when the file is created. Its earliest and
// latest properties hold the expiration range observed at that moment, which
// for a freshly created file is always empty (zero). The final range of the
// records appended to the file is recorded in the footer when the file is
// sealed, so the header never needs to be rewritten in place.
//
// # Index entries
//
// The primary store maps each user key to an index entry that locates the
// key's record: three uvarints encoding the file number, the offset of the
// record's payload, and the payload's length (excluding the trailer).
package blob
