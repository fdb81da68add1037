// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobdb

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/blobdb/blob"
	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"
)

// memPrimary is an in-memory PrimaryStore.
type memPrimary struct {
	mu     sync.Mutex
	m      map[string][]byte
	setErr error
	scans  int
}

var _ PrimaryStore = (*memPrimary)(nil)

func newMemPrimary() *memPrimary {
	return &memPrimary{m: make(map[string][]byte)}
}

func (p *memPrimary) Set(key, value []byte, _ bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.setErr != nil {
		return p.setErr
	}
	p.m[string(key)] = slices.Clone(value)
	return nil
}

func (p *memPrimary) Get(key []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.m[string(key)]
	if !ok {
		return nil, base.ErrNotFound
	}
	return slices.Clone(v), nil
}

func (p *memPrimary) Delete(key []byte, _ bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, string(key))
	return nil
}

func (p *memPrimary) Scan(ctx context.Context, fn func(key, value []byte) error) error {
	p.mu.Lock()
	p.scans++
	keys := make([]string, 0, len(p.m))
	for k := range p.m {
		keys = append(keys, k)
	}
	snapshot := make(map[string][]byte, len(p.m))
	for k, v := range p.m {
		snapshot[k] = v
	}
	p.mu.Unlock()
	slices.Sort(keys)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn([]byte(k), snapshot[k]); err != nil {
			return err
		}
	}
	return nil
}

// handle returns the decoded index entry stored under key.
func (p *memPrimary) handle(t testing.TB, key string) blob.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.m[key]
	require.Truef(t, ok, "no index entry for %q", key)
	h, err := blob.DecodeIndexEntry(v)
	require.NoError(t, err)
	return h
}

// testEpoch is the time the manual clock starts at in tests.
var testEpoch = time.Unix(1000, 0)

func testOptions(fs vfs.FS, p *memPrimary) *Options {
	return &Options{
		Dir:     "blobs",
		FS:      fs,
		Primary: p,
		Logger:  base.NoopLoggerForTesting{},
		Clock:   base.NewManualClock(testEpoch),
	}
}

func openTestDB(t testing.TB, opts *Options) *DB {
	d, err := Open(opts)
	require.NoError(t, err)
	return d
}
