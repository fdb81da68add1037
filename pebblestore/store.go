// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package pebblestore implements the blobdb primary store on top of a Pebble
// database. Each key maps to the index entry locating its value in a blob
// file.
package pebblestore // import "github.com/cockroachdb/blobdb/pebblestore"

import (
	"context"

	"github.com/cockroachdb/blobdb"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// Options configures a Store.
type Options struct {
	// Dir is the directory holding the Pebble database.
	Dir string
	// FS is the file system the database is stored on. Defaults to vfs.Default.
	FS vfs.FS
	// Pebble allows tuning the underlying database. Its FS field is overridden
	// by FS when that is set.
	Pebble *pebble.Options
}

// Store is a blobdb.PrimaryStore backed by Pebble.
type Store struct {
	db *pebble.DB
}

var _ blobdb.PrimaryStore = (*Store)(nil)

// Open opens or creates the Pebble database in opts.Dir.
func Open(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, errors.New("pebblestore: Options.Dir is required")
	}
	po := opts.Pebble
	if po == nil {
		po = &pebble.Options{}
	}
	if opts.FS != nil {
		po.FS = opts.FS
	}
	db, err := pebble.Open(opts.Dir, po)
	if err != nil {
		return nil, errors.Wrapf(err, "pebblestore: opening %s", opts.Dir)
	}
	return &Store{db: db}, nil
}

func writeOptions(sync bool) *pebble.WriteOptions {
	if sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

// Set implements blobdb.PrimaryStore.
func (s *Store) Set(key, value []byte, sync bool) error {
	return s.db.Set(key, value, writeOptions(sync))
}

// Get implements blobdb.PrimaryStore. The returned value is a copy.
func (s *Store) Get(key []byte) ([]byte, error) {
	v, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, blobdb.ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

// Delete implements blobdb.PrimaryStore.
func (s *Store) Delete(key []byte, sync bool) error {
	return s.db.Delete(key, writeOptions(sync))
}

// Scan implements blobdb.PrimaryStore. It visits every key in order over an
// implicit snapshot taken when the scan starts.
func (s *Store) Scan(ctx context.Context, fn func(key, value []byte) error) error {
	it, err := s.db.NewIter(nil)
	if err != nil {
		return err
	}
	for valid := it.First(); valid; valid = it.Next() {
		if err := ctx.Err(); err != nil {
			return errors.CombineErrors(err, it.Close())
		}
		if err := fn(it.Key(), it.Value()); err != nil {
			return errors.CombineErrors(err, it.Close())
		}
	}
	return it.Close()
}

// Flush flushes the memtable to stable storage.
func (s *Store) Flush() error {
	return s.db.Flush()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
