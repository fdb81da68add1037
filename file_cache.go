// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobdb

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	lru "github.com/hashicorp/golang-lru"
)

// cachedFile is an open read handle shared by concurrent readers. The cache
// holds one reference while the entry is resident; each reader holds another
// for the duration of its read. The handle is closed when the last reference
// is released, so LRU eviction never closes a handle that is in use.
type cachedFile struct {
	fileNum base.FileNum
	f       vfs.File
	refs    atomic.Int32
	logger  Logger
}

func (c *cachedFile) unref() {
	switch v := c.refs.Add(-1); {
	case v < 0:
		panic(errors.AssertionFailedf("blobdb: cached file %s has negative refcount %d", c.fileNum, v))
	case v == 0:
		if err := c.f.Close(); err != nil {
			c.logger.Errorf("closing blob file %s: %v", c.fileNum, err)
		}
	}
}

// fileCache keeps a bounded number of blob files open for reading. Read
// handles are independent of the writers' handles: reads observe bytes as soon
// as a writer has flushed them, before any sync.
type fileCache struct {
	fs     vfs.FS
	logger Logger

	mu  sync.Mutex
	lru *lru.Cache // base.FileNum -> *cachedFile

	hits   atomic.Int64
	misses atomic.Int64
}

func newFileCache(fs vfs.FS, size int, logger Logger) (*fileCache, error) {
	c := &fileCache{fs: fs, logger: logger}
	var err error
	c.lru, err = lru.NewWithEvict(size, func(_, value interface{}) {
		value.(*cachedFile).unref()
	})
	if err != nil {
		return nil, errors.Wrap(err, "blobdb: creating file cache")
	}
	return c, nil
}

// get returns a referenced read handle for the file, opening it on a miss. The
// caller must unref the handle.
func (c *fileCache) get(m *fileMetadata) (*cachedFile, error) {
	if cf, ok := c.lookup(m.fileNum); ok {
		c.hits.Add(1)
		return cf, nil
	}
	c.misses.Add(1)

	f, err := c.fs.Open(m.path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening blob file %s", m.fileNum)
	}
	cf := &cachedFile{fileNum: m.fileNum, f: f, logger: c.logger}
	// One reference for the cache and one for the caller.
	cf.refs.Store(2)

	c.mu.Lock()
	if v, ok := c.lru.Get(m.fileNum); ok {
		// Lost a race with a concurrent miss on the same file.
		existing := v.(*cachedFile)
		existing.refs.Add(1)
		c.mu.Unlock()
		_ = f.Close()
		return existing, nil
	}
	c.lru.Add(m.fileNum, cf)
	c.mu.Unlock()
	return cf, nil
}

func (c *fileCache) lookup(fn base.FileNum) (*cachedFile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(fn)
	if !ok {
		return nil, false
	}
	cf := v.(*cachedFile)
	cf.refs.Add(1)
	return cf, true
}

// evict drops the cache's handle for the file, if any.
func (c *fileCache) evict(fn base.FileNum) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(fn)
}

func (c *fileCache) len() int {
	return c.lru.Len()
}

// close drops every cached handle.
func (c *fileCache) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}
