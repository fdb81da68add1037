// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobdb

import (
	"strings"
	"testing"

	"github.com/cockroachdb/blobdb/blob"
	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"
)

func TestOptionsDefaults(t *testing.T) {
	var opts *Options
	opts = opts.EnsureDefaults()
	require.Equal(t, vfs.Default, opts.FS)
	require.Equal(t, SnappyCompression, opts.Compression)
	require.Equal(t, uint64(blob.DefaultBytesPerSync), opts.BytesPerSync)
	require.Equal(t, uint64(256<<20), opts.MaxFileSize)
	require.Equal(t, 1, opts.NumWriters)
	require.Equal(t, 64, opts.FileCacheSize)
	require.Equal(t, EvictLiveChecked, opts.EvictionPolicy)
	require.Equal(t, DeleteCleaner{}, opts.Cleaner)
	require.NotNil(t, opts.EventListener.BlobFileSealed)

	// Explicit settings are kept.
	opts = (&Options{Compression: NoCompression, NumWriters: 4}).EnsureDefaults()
	require.Equal(t, NoCompression, opts.Compression)
	require.Equal(t, 4, opts.NumWriters)
}

func TestOptionsValidate(t *testing.T) {
	valid := func() *Options {
		return (&Options{Dir: "blobs", Primary: newMemPrimary()}).EnsureDefaults()
	}
	require.NoError(t, valid().Validate())

	opts := valid()
	opts.Dir = ""
	require.True(t, errors.Is(opts.Validate(), base.ErrNotSupported))

	opts = valid()
	opts.Primary = nil
	require.True(t, errors.Is(opts.Validate(), base.ErrNotSupported))

	opts = valid()
	opts.Compression = NCompression
	opts.EvictionPolicy = 7
	opts.MaxFileSize = 64 << 20
	opts.MaxTotalSize = 1 << 20
	err := opts.Validate()
	require.Error(t, err)
	lines := strings.Split(err.Error(), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "unsupported compression Compression(5)", lines[0])
	require.Equal(t, "unknown eviction policy EvictionPolicy(7)", lines[1])
	require.True(t, strings.HasPrefix(lines[2], "MaxTotalSize ("), lines[2])
}

func TestOpenValidatesOptions(t *testing.T) {
	_, err := Open(&Options{Dir: "blobs", FS: vfs.NewMem()})
	require.True(t, errors.Is(err, ErrNotSupported), "%v", err)

	opts := testOptions(vfs.NewMem(), newMemPrimary())
	opts.MaxFileSize = 2 << 20
	opts.MaxTotalSize = 1 << 20
	_, err = Open(opts)
	require.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	for c := DefaultCompression; c < NCompression; c++ {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		require.Equal(t, c, got)
	}
	_, err := ParseCompression("lz4")
	require.Error(t, err)
}

func TestParseEvictionPolicy(t *testing.T) {
	for _, p := range []EvictionPolicy{EvictLiveChecked, EvictTolerateOrphans} {
		got, err := ParseEvictionPolicy(p.String())
		require.NoError(t, err)
		require.Equal(t, p, got)
	}
	_, err := ParseEvictionPolicy("lru")
	require.Error(t, err)
}

func TestOptionsString(t *testing.T) {
	opts := testOptions(vfs.NewMem(), newMemPrimary())
	opts.TTLEnabled = true
	opts.EvictionPolicy = EvictTolerateOrphans
	s := opts.EnsureDefaults().String()
	require.True(t, strings.HasPrefix(s, "[Options]\n"))
	for _, line := range []string{
		"  dir=blobs\n",
		"  compression=snappy\n",
		"  ttl_enabled=true\n",
		"  eviction_policy=tolerate-orphans\n",
	} {
		require.Contains(t, s, line)
	}
}
