// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"log"

	"github.com/cockroachdb/blobdb"
	"github.com/cockroachdb/blobdb/pebblestore"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
)

// store pairs a blob DB with the primary store holding its index entries.
type store struct {
	db      *blobdb.DB
	primary *pebblestore.Store
}

func openStore(fs vfs.FS) (*store, error) {
	c, err := blobdb.ParseCompression(compression)
	if err != nil {
		return nil, err
	}
	p, err := blobdb.ParseEvictionPolicy(policy)
	if err != nil {
		return nil, err
	}
	primary, err := pebblestore.Open(pebblestore.Options{Dir: primaryDir, FS: fs})
	if err != nil {
		return nil, err
	}
	opts := &blobdb.Options{
		Dir:            blobDir,
		FS:             fs,
		Primary:        primary,
		Compression:    c,
		TTLEnabled:     ttlEnabled,
		MaxFileSize:    maxFileSize,
		MaxTotalSize:   maxTotalSize,
		EvictionPolicy: p,
		NumWriters:     numWriters,
	}
	if verbose {
		lel := blobdb.MakeLoggingEventListener(nil)
		opts.EventListener = &lel
	}
	db, err := blobdb.Open(opts)
	if err != nil {
		return nil, errors.CombineErrors(err, primary.Close())
	}
	return &store{db: db, primary: primary}, nil
}

func (s *store) close() {
	if err := errors.CombineErrors(s.db.Close(), s.primary.Close()); err != nil {
		log.Fatal(err)
	}
}
