// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobdb

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/crlib/testutils/leaktest"
	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"
)

func TestEvictionScenarios(t *testing.T) {
	defer leaktest.AfterTest(t)()

	var d *DB
	var ttlEnabled bool
	var clock *base.ManualClock
	var mu sync.Mutex
	var deleted []FileNum
	defer func() {
		if d != nil {
			require.NoError(t, d.Close())
		}
	}()

	datadriven.RunTest(t, "testdata/eviction", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "open":
			if d != nil {
				require.NoError(t, d.Close())
			}
			opts := testOptions(vfs.NewMem(), newMemPrimary())
			opts.Compression = NoCompression
			opts.TTLEnabled = td.HasArg("ttl")
			td.MaybeScanArgs(t, "max-file-size", &opts.MaxFileSize)
			td.MaybeScanArgs(t, "max-total-size", &opts.MaxTotalSize)
			if td.HasArg("policy") {
				var s string
				td.ScanArgs(t, "policy", &s)
				var err error
				opts.EvictionPolicy, err = ParseEvictionPolicy(s)
				require.NoError(t, err)
			}
			opts.EventListener = &EventListener{
				BlobFileDeleted: func(info BlobFileDeleteInfo) {
					mu.Lock()
					defer mu.Unlock()
					deleted = append(deleted, info.FileNum)
				},
			}
			clock = opts.Clock.(*base.ManualClock)
			ttlEnabled = opts.TTLEnabled
			d = openTestDB(t, opts)
			return ""

		case "put":
			var key string
			td.ScanArgs(t, "key", &key)
			value := []byte("val-" + key)
			if td.HasArg("len") {
				var n int
				td.ScanArgs(t, "len", &n)
				value = bytes.Repeat([]byte("x"), n)
			}
			var ttl time.Duration
			if td.HasArg("ttl") {
				var s string
				td.ScanArgs(t, "ttl", &s)
				var err error
				ttl, err = time.ParseDuration(s)
				require.NoError(t, err)
			}
			if err := d.PutWithTTL(NoSync, []byte(key), value, ttl); err != nil {
				return err.Error()
			}
			return ""

		case "get":
			var key string
			td.ScanArgs(t, "key", &key)
			switch _, err := d.Get(ReadOptions{}, []byte(key)); {
			case err == nil:
				return "ok"
			case errors.Is(err, ErrNotFound):
				return "not found"
			default:
				return err.Error()
			}

		case "delete":
			var key string
			td.ScanArgs(t, "key", &key)
			require.NoError(t, d.Delete(NoSync, []byte(key)))
			return ""

		case "rotate":
			require.NoError(t, d.Rotate())
			return ""

		case "advance":
			dur, err := time.ParseDuration(td.CmdArgs[0].Key)
			require.NoError(t, err)
			clock.Advance(dur)
			return ""

		case "evict":
			stats, err := d.Evict(context.Background())
			if err != nil {
				return err.Error()
			}
			d.WaitForFileDeletions()
			var buf strings.Builder
			fmt.Fprintf(&buf, "ttl=%d fifo=%d skipped-live=%d skipped-inflight=%d\n",
				stats.TTLFiles, stats.FIFOFiles, stats.SkippedLive, stats.SkippedInFlight)
			mu.Lock()
			if len(deleted) > 0 {
				slices.Sort(deleted)
				fmt.Fprintf(&buf, "deleted: %v\n", deleted)
				deleted = deleted[:0]
			}
			mu.Unlock()
			return buf.String()

		case "files":
			var buf strings.Builder
			for _, fi := range d.Files() {
				state := "active"
				if fi.Sealed {
					state = "sealed"
				}
				fmt.Fprintf(&buf, "%s %s records=%d", fi.FileNum, state, fi.Records)
				if ttlEnabled && fi.NonExpiringCount > 0 {
					fmt.Fprintf(&buf, " non-expiring=%d", fi.NonExpiringCount)
				}
				switch {
				case !fi.TTLKnown:
					fmt.Fprintf(&buf, " ttl=unknown")
				case !fi.Earliest.IsZero():
					fmt.Fprintf(&buf, " ttl=[%d,%d]", fi.Earliest.Unix(), fi.Latest.Unix())
				}
				buf.WriteString("\n")
			}
			return buf.String()

		default:
			return fmt.Sprintf("unknown command: %s", td.Cmd)
		}
	})
}
