// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobdb

import (
	"cmp"
	"context"
	"runtime/pprof"
	"slices"
	"time"

	"github.com/cockroachdb/blobdb/blob"
	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"golang.org/x/sync/errgroup"
)

// maxRecoveryConcurrency bounds the number of blob files whose header and
// footer are read concurrently during Open.
const maxRecoveryConcurrency = 16

// Open opens the blob files in opts.Dir, creating the directory if it does not
// exist. Every existing blob file is registered from its header and footer
// before Open returns; record bodies are not read. A blob file whose header
// cannot be parsed fails Open with a corruption error.
//
// New active files are created with file numbers above every existing one,
// starting at 0 in an empty directory.
func Open(opts *Options) (db *DB, err error) {
	if opts == nil || opts.Dir == "" {
		return nil, base.NotSupportedErrorf("blobdb: no blob directory configured")
	}
	// Make a copy of the options so that we don't mutate the passed in options.
	o := *opts
	opts = o.EnsureDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	d := &DB{
		opts:    opts,
		dirname: opts.Dir,
	}
	d.metrics.init()
	fs := opts.FS

	if err := fs.MkdirAll(d.dirname, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating blob directory %s", d.dirname)
	}
	d.dataDir, err = fs.OpenDir(d.dirname)
	if err != nil {
		return nil, errors.Wrapf(err, "opening blob directory %s", d.dirname)
	}
	defer func() {
		if db == nil {
			_ = d.dataDir.Close()
		}
	}()

	// Lock the blob directory.
	fileLock, err := fs.Lock(base.MakeFilepath(fs, d.dirname, base.FileTypeLock, 0))
	if err != nil {
		return nil, errors.Wrapf(err, "locking blob directory %s", d.dirname)
	}
	defer func() {
		if db == nil {
			_ = fileLock.Close()
		}
	}()

	files, err := recoverBlobFiles(fs, d.dirname)
	if err != nil {
		return nil, err
	}
	var nextFileNum base.FileNum
	if n := len(files); n > 0 {
		nextFileNum = files[n-1].fileNum + 1
	}
	d.registry.init(nextFileNum)
	for _, m := range files {
		d.registry.add(m)
		if info := m.info(); !info.TTLKnown {
			opts.Logger.Infof("recovered unsealed blob file %s (%d bytes)", m.fileNum, info.Size)
		}
	}

	if d.fileCache, err = newFileCache(fs, opts.FileCacheSize, opts.Logger); err != nil {
		return nil, err
	}
	d.cleanupManager = openCleanupManager(opts, d.onFileDeleted)
	d.writers.init(d, opts.NumWriters)
	defer func() {
		if db == nil {
			for _, w := range d.writers.writers {
				_ = w.close()
			}
			d.cleanupManager.Close()
			d.fileCache.close()
		}
	}()
	for _, w := range d.writers.writers {
		if err := w.rotate(""); err != nil {
			return nil, err
		}
	}

	if opts.EvictionInterval > 0 {
		var ctx context.Context
		ctx, d.bgCancel = context.WithCancel(context.Background())
		d.bgWG.Add(1)
		go func() {
			defer d.bgWG.Done()
			pprof.Do(ctx, gcLabels, d.evictionLoop)
		}()
	}

	d.fileLock = fileLock
	return d, nil
}

// recoverBlobFiles reads the header and footer of every blob file in dirname
// and returns their metadata in file number order.
func recoverBlobFiles(fs vfs.FS, dirname string) ([]*fileMetadata, error) {
	ls, err := fs.List(dirname)
	if err != nil {
		return nil, errors.Wrapf(err, "listing blob directory %s", dirname)
	}
	var files []*fileMetadata
	for _, filename := range ls {
		ft, fn, ok := base.ParseFilename(fs, filename)
		if !ok || ft != base.FileTypeBlob {
			continue
		}
		files = append(files, newFileMetadata(fn, fs.PathJoin(dirname, filename), time.Time{}))
	}
	slices.SortFunc(files, func(a, b *fileMetadata) int {
		return cmp.Compare(a.fileNum, b.fileNum)
	})

	g := errgroup.Group{}
	g.SetLimit(maxRecoveryConcurrency)
	for _, m := range files {
		g.Go(func() error {
			return recoverBlobFile(fs, m)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func recoverBlobFile(fs vfs.FS, m *fileMetadata) error {
	f, err := fs.Open(m.path)
	if err != nil {
		return errors.Wrapf(err, "opening blob file %s", m.fileNum)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return errors.Wrapf(err, "stat blob file %s", m.fileNum)
	}
	size := st.Size()
	m.createdAt = st.ModTime()

	header, headerLen, err := blob.ReadFileHeader(f, size)
	if err != nil {
		return errors.Wrapf(err, "recovering blob file %s", m.fileNum)
	}
	m.compression = header.Compression
	m.headerLen = uint64(headerLen)

	footer, sealed, err := blob.ReadFileFooter(f, size)
	if err != nil && !base.IsCorruptionError(err) {
		return errors.Wrapf(err, "recovering blob file %s", m.fileNum)
	}
	if !sealed || err != nil {
		// The file was active when the process stopped. Its tail may hold a
		// torn frame, which no index entry references. A torn tail can also
		// end in bytes of a value that look like the footer magic.
		m.seal(nil, uint64(size))
		return nil
	}
	m.seal(&footer, uint64(size))
	return nil
}
