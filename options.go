// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobdb

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/blobdb/blob"
	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/blobdb/internal/compression"
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
)

// Compression is the per-record compression algorithm to use.
type Compression int

// The available compression types.
const (
	DefaultCompression Compression = iota
	NoCompression
	SnappyCompression
	ZstdCompression
	MinLZCompression
	NCompression
)

var compressionNames = [...]string{
	DefaultCompression: "default",
	NoCompression:      "none",
	SnappyCompression:  "snappy",
	ZstdCompression:    "zstd",
	MinLZCompression:   "minlz",
}

// String implements fmt.Stringer.
func (c Compression) String() string {
	if c < 0 || c >= NCompression {
		return fmt.Sprintf("Compression(%d)", int(c))
	}
	return compressionNames[c]
}

// algorithm returns the codec used for the compression type.
func (c Compression) algorithm() compression.Algorithm {
	switch c {
	case NoCompression:
		return compression.NoCompression
	case ZstdCompression:
		return compression.Zstd
	case MinLZCompression:
		return compression.MinLZ
	default:
		return compression.Snappy
	}
}

// ParseCompression parses a compression name as printed by Compression.String.
func ParseCompression(s string) (Compression, error) {
	for c := DefaultCompression; c < NCompression; c++ {
		if compressionNames[c] == s {
			return c, nil
		}
	}
	return 0, errors.Newf("unknown compression %q", s)
}

// Logger exports the base.Logger type.
type Logger = base.Logger

// DefaultLogger exports the base.DefaultLogger type.
type DefaultLogger = base.DefaultLogger

// Clock exports the base.Clock type.
type Clock = base.Clock

// FileNum exports the base.FileNum type.
type FileNum = base.FileNum

// EvictionPolicy selects how the eviction coordinator treats blob files that
// may still be referenced by index entries in the primary store.
type EvictionPolicy int8

const (
	// EvictLiveChecked scans the primary store before deleting a file from the
	// size budget and skips any file that a live index entry still resolves
	// into. TTL-expired files are deleted without a scan, since Gets into them
	// already return ErrNotFound. Files with puts in flight are never deleted.
	EvictLiveChecked EvictionPolicy = iota
	// EvictTolerateOrphans deletes eviction candidates without consulting the
	// primary store. A later Get through a dangling index entry returns
	// ErrNotFound.
	EvictTolerateOrphans
)

// String implements fmt.Stringer.
func (p EvictionPolicy) String() string {
	switch p {
	case EvictLiveChecked:
		return "live-checked"
	case EvictTolerateOrphans:
		return "tolerate-orphans"
	default:
		return fmt.Sprintf("EvictionPolicy(%d)", int8(p))
	}
}

// ParseEvictionPolicy parses a policy name as printed by EvictionPolicy.String.
func ParseEvictionPolicy(s string) (EvictionPolicy, error) {
	switch s {
	case "live-checked":
		return EvictLiveChecked, nil
	case "tolerate-orphans":
		return EvictTolerateOrphans, nil
	}
	return 0, errors.Newf("unknown eviction policy %q", s)
}

// WriteOptions hold the optional per-query parameters for Put and Delete
// operations.
type WriteOptions struct {
	// Sync is whether to sync the index entry write to the primary store
	// before the operation returns. Blob file bytes are synced on the
	// Options.BytesPerSync cadence and when a file is sealed.
	Sync bool
}

// Sync specifies the default write options for writes which synchronize to
// disk.
var Sync = WriteOptions{Sync: true}

// NoSync specifies the default write options for writes which do not
// synchronize to disk.
var NoSync = WriteOptions{Sync: false}

// ReadOptions hold the optional per-query parameters for Get operations.
type ReadOptions struct {
	// NoFileCache reads through a transient file handle instead of the shared
	// file cache. It is useful for one-off reads that should not displace
	// cached handles.
	NoFileCache bool
}

// Options holds the optional parameters for configuring blobdb. These options
// apply to the DB at large; per-query options are defined by the WriteOptions
// and ReadOptions types.
type Options struct {
	// Dir is the directory holding blob files. It is required; Open fails
	// with ErrNotSupported when it is empty.
	Dir string

	// FS provides the interface for persistent file storage.
	//
	// The default value uses the underlying operating system's file system.
	FS vfs.FS

	// Primary is the ordered key-value store holding index entries. It is
	// required.
	Primary PrimaryStore

	// Compression is the codec records are compressed with. Records that do not
	// shrink by at least an eighth are stored uncompressed.
	//
	// The default value (DefaultCompression) uses snappy compression.
	Compression Compression

	// TTLEnabled enables tracking of record expirations. When disabled,
	// expirations passed to PutUntil and PutWithTTL are ignored and files are
	// never evicted by TTL.
	TTLEnabled bool

	// BytesPerSync is the number of bytes appended to a blob file between
	// durability syncs.
	//
	// The default value is 128 MB.
	BytesPerSync uint64

	// MaxFileSize is the size at which the active blob file is sealed and a new
	// one started.
	//
	// The default value is 256 MB.
	MaxFileSize uint64

	// MaxFileAge is the age at which the active blob file is sealed, checked on
	// each append. Zero disables age based rotation.
	MaxFileAge time.Duration

	// NumWriters is the number of blob files accepting appends concurrently.
	// Puts are assigned to writers round-robin.
	//
	// The default value is 1.
	NumWriters int

	// FileCacheSize is the number of read handles kept open.
	//
	// The default value is 64.
	FileCacheSize int

	// MaxTotalSize is the storage budget for all blob files. When exceeded, the
	// oldest sealed files are evicted first. Zero disables size based
	// eviction.
	MaxTotalSize uint64

	// EvictionInterval is the period of the background eviction pass. Zero
	// disables background eviction; DB.Evict can still be called.
	EvictionInterval time.Duration

	// EvictionPolicy is how eviction treats files that may still be
	// referenced. The default value is EvictLiveChecked.
	EvictionPolicy EvictionPolicy

	// TargetByteDeletionRate is the rate (in bytes per second) at which evicted
	// blob files are deleted. Zero disables pacing.
	TargetByteDeletionRate int

	// Cleaner cleans obsolete blob files.
	//
	// The default cleaner uses the DeleteCleaner.
	Cleaner Cleaner

	// Clock is the time source for expirations, file ages and TTL eviction.
	//
	// The default value reads the system clock.
	Clock Clock

	// Logger used to write log messages.
	//
	// The default logger uses the Go standard library log package.
	Logger Logger

	// EventListener provides hooks to listening to significant DB events such
	// as blob file creation and deletion.
	EventListener *EventListener
}

// EnsureDefaults ensures that the default values for all options are set if a
// valid value was not already specified. Returns the new options.
func (o *Options) EnsureDefaults() *Options {
	if o == nil {
		o = &Options{}
	}
	if o.FS == nil {
		o.FS = vfs.Default
	}
	if o.Compression == DefaultCompression {
		o.Compression = SnappyCompression
	}
	if o.BytesPerSync == 0 {
		o.BytesPerSync = blob.DefaultBytesPerSync
	}
	if o.MaxFileSize == 0 {
		o.MaxFileSize = 256 << 20
	}
	if o.NumWriters <= 0 {
		o.NumWriters = 1
	}
	if o.FileCacheSize <= 0 {
		o.FileCacheSize = 64
	}
	if o.Cleaner == nil {
		o.Cleaner = DeleteCleaner{}
	}
	if o.Clock == nil {
		o.Clock = base.DefaultClock{}
	}
	if o.Logger == nil {
		o.Logger = DefaultLogger{}
	}
	if o.EventListener == nil {
		o.EventListener = &EventListener{}
	}
	o.EventListener.EnsureDefaults(o.Logger)
	return o
}

// Validate verifies that the options are mutually consistent. It does not
// touch the file system.
func (o *Options) Validate() error {
	if o.Dir == "" {
		return base.NotSupportedErrorf("blobdb: no blob directory configured")
	}
	if o.Primary == nil {
		return base.NotSupportedErrorf("blobdb: no primary store configured")
	}
	var buf strings.Builder
	if o.Compression < DefaultCompression || o.Compression >= NCompression {
		fmt.Fprintf(&buf, "unsupported compression %s\n", o.Compression)
	}
	if o.EvictionPolicy != EvictLiveChecked && o.EvictionPolicy != EvictTolerateOrphans {
		fmt.Fprintf(&buf, "unknown eviction policy %s\n", o.EvictionPolicy)
	}
	if o.MaxTotalSize != 0 && o.MaxTotalSize < o.MaxFileSize {
		fmt.Fprintf(&buf, "MaxTotalSize (%s) is less than MaxFileSize (%s)\n",
			crhumanize.Bytes(o.MaxTotalSize, crhumanize.Compact, crhumanize.OmitI),
			crhumanize.Bytes(o.MaxFileSize, crhumanize.Compact, crhumanize.OmitI))
	}
	if buf.Len() == 0 {
		return nil
	}
	return errors.New(strings.TrimSpace(buf.String()))
}

// String implements fmt.Stringer, printing the options in an INI-like format.
func (o *Options) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "[Options]\n")
	fmt.Fprintf(&buf, "  dir=%s\n", o.Dir)
	fmt.Fprintf(&buf, "  compression=%s\n", o.Compression)
	fmt.Fprintf(&buf, "  ttl_enabled=%t\n", o.TTLEnabled)
	fmt.Fprintf(&buf, "  bytes_per_sync=%d\n", o.BytesPerSync)
	fmt.Fprintf(&buf, "  max_file_size=%d\n", o.MaxFileSize)
	fmt.Fprintf(&buf, "  max_file_age=%s\n", o.MaxFileAge)
	fmt.Fprintf(&buf, "  num_writers=%d\n", o.NumWriters)
	fmt.Fprintf(&buf, "  file_cache_size=%d\n", o.FileCacheSize)
	fmt.Fprintf(&buf, "  max_total_size=%d\n", o.MaxTotalSize)
	fmt.Fprintf(&buf, "  eviction_interval=%s\n", o.EvictionInterval)
	fmt.Fprintf(&buf, "  eviction_policy=%s\n", o.EvictionPolicy)
	fmt.Fprintf(&buf, "  target_byte_deletion_rate=%d\n", o.TargetByteDeletionRate)
	fmt.Fprintf(&buf, "  cleaner=%s\n", o.Cleaner)
	return buf.String()
}
