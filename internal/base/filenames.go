// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/cockroachdb/redact"
)

// FileNum identifies a blob file. File numbers are assigned in monotonically
// increasing order and are never reused within a directory.
type FileNum uint64

// String returns a string representation of the file number.
func (fn FileNum) String() string { return fmt.Sprintf("%06d", fn) }

// SafeFormat implements redact.SafeFormatter.
func (fn FileNum) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%06d", redact.SafeUint(fn))
}

// FileType enumerates the types of files found in a blob directory.
type FileType int

// The FileType enumeration.
const (
	FileTypeLock FileType = iota
	FileTypeBlob
)

var fileTypeStrings = [...]string{
	FileTypeLock: "lock",
	FileTypeBlob: "blob",
}

// SafeFormat implements redact.SafeFormatter.
func (ft FileType) SafeFormat(w redact.SafePrinter, _ rune) {
	if ft < 0 || int(ft) >= len(fileTypeStrings) {
		w.Print(redact.SafeString("unknown"))
		return
	}
	w.Print(redact.SafeString(fileTypeStrings[ft]))
}

// String implements fmt.Stringer.
func (ft FileType) String() string {
	return redact.StringWithoutMarkers(ft)
}

// MakeFilename builds a filename from components.
func MakeFilename(fileType FileType, fn FileNum) string {
	switch fileType {
	case FileTypeLock:
		return "LOCK"
	case FileTypeBlob:
		return fmt.Sprintf("%s.blob", fn)
	}
	panic(errors.AssertionFailedf("unknown file type %d", fileType))
}

// MakeFilepath builds a filepath from components.
func MakeFilepath(fs vfs.FS, dirname string, fileType FileType, fn FileNum) string {
	return fs.PathJoin(dirname, MakeFilename(fileType, fn))
}

// ParseFilename parses the components from a filename.
func ParseFilename(fs vfs.FS, filename string) (fileType FileType, fn FileNum, ok bool) {
	filename = fs.PathBase(filename)
	switch {
	case filename == "LOCK":
		return FileTypeLock, 0, true
	case strings.HasSuffix(filename, ".blob"):
		fn, ok = ParseFileNum(strings.TrimSuffix(filename, ".blob"))
		if !ok {
			break
		}
		return FileTypeBlob, fn, true
	}
	return 0, fn, false
}

// ParseFileNum parses the provided string as a file number.
func ParseFileNum(s string) (fn FileNum, ok bool) {
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fn, false
	}
	return FileNum(u), true
}
