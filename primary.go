// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobdb

import "context"

// PrimaryStore is the ordered key-value store that holds index entries. The
// DB writes an index entry under the user's key for every successful Put and
// looks it up on every Get. The store's own durability guarantees apply to
// index entries; blobdb does not replicate them.
//
// Implementations must be safe for concurrent use. A write that has returned
// must be visible to subsequent Get and Scan calls.
type PrimaryStore interface {
	// Set writes value under key, syncing before returning if sync is set.
	Set(key, value []byte, sync bool) error
	// Get returns the value stored under key, or an error marked with
	// ErrNotFound if there is none. The returned slice is owned by the caller.
	Get(key []byte) ([]byte, error)
	// Delete removes key, syncing before returning if sync is set.
	Delete(key []byte, sync bool) error
	// Scan calls fn for every key-value pair in key order. The slices passed to
	// fn are only valid for the duration of the call. Scan stops at, and
	// returns, the first error returned by fn or encountered while iterating.
	Scan(ctx context.Context, fn func(key, value []byte) error) error
}
