// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/errors"

// ErrNotFound means that a get or delete call did not find the requested key.
var ErrNotFound = errors.New("blobdb: not found")

// ErrCorruption is a marker to indicate that data in a file (a blob file
// header, a record frame or an index entry) is corrupt.
var ErrCorruption = errors.New("blobdb: corruption")

// ErrNotSupported is a marker to indicate that the DB was asked to do
// something its configuration does not allow, for example opening without a
// blob directory.
var ErrNotSupported = errors.New("blobdb: not supported")

// MarkCorruptionError marks given error as a corruption error.
func MarkCorruptionError(err error) error {
	if errors.Is(err, ErrCorruption) {
		return err
	}
	return errors.Mark(err, ErrCorruption)
}

// IsCorruptionError returns true if the given error indicates corruption.
func IsCorruptionError(err error) bool {
	return errors.Is(err, ErrCorruption)
}

// CorruptionErrorf formats according to a format specifier and returns
// the string as an error value that is marked as a corruption error.
func CorruptionErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrCorruption)
}

// NotSupportedErrorf formats according to a format specifier and returns the
// string as an error value that is marked as ErrNotSupported.
func NotSupportedErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotSupported)
}
