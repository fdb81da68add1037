// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobdb

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"
)

// closeCountingFS counts the files opened and closed through it.
type closeCountingFS struct {
	vfs.FS
	opens  atomic.Int32
	closes atomic.Int32
}

type closeCountingFile struct {
	vfs.File
	fs *closeCountingFS
}

func (f *closeCountingFile) Close() error {
	f.fs.closes.Add(1)
	return f.File.Close()
}

func (fs *closeCountingFS) Open(name string, opts ...vfs.OpenOption) (vfs.File, error) {
	f, err := fs.FS.Open(name, opts...)
	if err != nil {
		return nil, err
	}
	fs.opens.Add(1)
	return &closeCountingFile{File: f, fs: fs}, nil
}

func newTestFileCache(t *testing.T, size int, n int) (*fileCache, *closeCountingFS, []*fileMetadata) {
	fs := &closeCountingFS{FS: vfs.NewMem()}
	var files []*fileMetadata
	for i := 0; i < n; i++ {
		fn := base.FileNum(i)
		path := base.MakeFilename(base.FileTypeBlob, fn)
		f, err := fs.Create(path)
		require.NoError(t, err)
		require.NoError(t, f.Close())
		files = append(files, newFileMetadata(fn, path, testEpoch))
	}
	c, err := newFileCache(fs, size, base.NoopLoggerForTesting{})
	require.NoError(t, err)
	return c, fs, files
}

func TestFileCacheHitMiss(t *testing.T) {
	c, fs, files := newTestFileCache(t, 2, 3)
	for _, i := range []int{0, 1, 0, 1, 0} {
		cf, err := c.get(files[i])
		require.NoError(t, err)
		cf.unref()
	}
	require.Equal(t, int64(3), c.hits.Load())
	require.Equal(t, int64(2), c.misses.Load())
	require.Equal(t, int32(2), fs.opens.Load())
	require.Equal(t, int32(0), fs.closes.Load())

	// File 1 is least recently used and makes room for file 2.
	cf, err := c.get(files[2])
	require.NoError(t, err)
	cf.unref()
	require.Equal(t, 2, c.len())
	require.Equal(t, int32(1), fs.closes.Load())

	c.close()
	require.Equal(t, 0, c.len())
	require.Equal(t, int32(3), fs.closes.Load())
}

func TestFileCacheEvictWhileInUse(t *testing.T) {
	c, fs, files := newTestFileCache(t, 1, 2)
	held, err := c.get(files[0])
	require.NoError(t, err)

	// Displacing the entry leaves the handle open for its reader.
	cf, err := c.get(files[1])
	require.NoError(t, err)
	cf.unref()
	require.Equal(t, int32(0), fs.closes.Load())
	held.unref()
	require.Equal(t, int32(1), fs.closes.Load())

	// Explicit eviction of a held handle.
	held, err = c.get(files[0])
	require.NoError(t, err)
	require.Equal(t, int32(2), fs.closes.Load())
	c.evict(files[0].fileNum)
	require.Equal(t, int32(2), fs.closes.Load())
	held.unref()
	require.Equal(t, int32(3), fs.closes.Load())
	c.close()
}

func TestFileCacheConcurrentMisses(t *testing.T) {
	c, fs, files := newTestFileCache(t, 4, 1)
	var wg sync.WaitGroup
	handles := make([]*cachedFile, 8)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cf, err := c.get(files[0])
			if err == nil {
				handles[i] = cf
			}
		}(i)
	}
	wg.Wait()
	for _, cf := range handles {
		require.NotNil(t, cf)
		require.Same(t, handles[0], cf)
	}
	// Handles opened by losing racers are closed immediately.
	require.Equal(t, fs.opens.Load()-1, fs.closes.Load())
	for _, cf := range handles {
		cf.unref()
	}
	c.close()
	require.Equal(t, fs.opens.Load(), fs.closes.Load())
}

func TestFileCacheMissingFile(t *testing.T) {
	c, _, _ := newTestFileCache(t, 1, 0)
	_, err := c.get(newFileMetadata(9, "000009.blob", testEpoch))
	require.Error(t, err)
	require.Equal(t, 0, c.len())
}
