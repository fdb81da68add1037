// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobdb

import (
	"bytes"
	"context"
	"testing"

	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/crlib/testutils/leaktest"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"
)

func TestArchiveCleaner(t *testing.T) {
	defer leaktest.AfterTest(t)()
	fs := vfs.NewMem()
	opts := testOptions(fs, newMemPrimary())
	opts.Cleaner = ArchiveCleaner{}
	opts.Compression = NoCompression
	opts.EvictionPolicy = EvictTolerateOrphans
	opts.MaxFileSize = 1 << 10
	opts.MaxTotalSize = 1 << 10
	d := openTestDB(t, opts)

	require.NoError(t, d.Put(NoSync, []byte("a"), bytes.Repeat([]byte("x"), 2000)))
	stats, err := d.Evict(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.FIFOFiles)
	d.WaitForFileDeletions()

	ls, err := fs.List("blobs/archive")
	require.NoError(t, err)
	require.Equal(t, []string{"000000.blob"}, ls)
	_, err = fs.Stat("blobs/000000.blob")
	require.Error(t, err)
	require.NoError(t, d.Close())

	// Archived files are not recovered.
	d = openTestDB(t, opts)
	for _, fi := range d.Files() {
		require.NotEqual(t, FileNum(0), fi.FileNum)
	}
	require.NoError(t, d.Close())
}

func TestCleanupManagerMissingFile(t *testing.T) {
	defer leaktest.AfterTest(t)()
	fs := vfs.NewMem()
	opts := (&Options{FS: fs, Logger: base.NoopLoggerForTesting{}}).EnsureDefaults()
	var deleted []obsoleteFile
	var errs []error
	opts.EventListener.BlobFileDeleted = func(info BlobFileDeleteInfo) {
		errs = append(errs, info.Err)
	}
	cm := openCleanupManager(opts, func(of obsoleteFile, err error) {
		deleted = append(deleted, of)
	})
	cm.EnqueueJob(obsoleteFile{fileNum: 3, path: "000003.blob", fileSize: 10})
	cm.Wait()
	cm.Close()
	// A file that is already gone counts as deleted.
	require.Equal(t, []obsoleteFile{{fileNum: 3, path: "000003.blob", fileSize: 10}}, deleted)
	require.Equal(t, []error{nil}, errs)
}

func TestCleanupManagerPacing(t *testing.T) {
	defer leaktest.AfterTest(t)()
	fs := vfs.NewMem()
	opts := (&Options{
		FS:                     fs,
		Logger:                 base.NoopLoggerForTesting{},
		TargetByteDeletionRate: 1 << 30,
	}).EnsureDefaults()
	var errs []error
	cm := openCleanupManager(opts, func(of obsoleteFile, err error) {
		errs = append(errs, err)
	})
	require.NoError(t, fs.MkdirAll("blobs", 0755))
	for i := 0; i < 5; i++ {
		path := base.MakeFilepath(fs, "blobs", base.FileTypeBlob, FileNum(i))
		f, err := fs.Create(path)
		require.NoError(t, err)
		require.NoError(t, f.Close())
		cm.EnqueueJob(obsoleteFile{fileNum: FileNum(i), path: path, fileSize: 1 << 20})
	}
	cm.Close()
	require.Equal(t, make([]error, 5), errs)
	ls, err := fs.List("blobs")
	require.NoError(t, err)
	require.Empty(t, ls)
}
