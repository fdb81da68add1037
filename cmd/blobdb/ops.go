// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cockroachdb/blobdb"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/spf13/cobra"
)

var putTTL time.Duration

var putCmd = &cobra.Command{
	Use:   "put <key> <value>",
	Short: "store a value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(vfs.Default)
		if err != nil {
			return err
		}
		defer s.close()
		return s.db.PutWithTTL(blobdb.Sync, []byte(args[0]), []byte(args[1]), putTTL)
	},
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "print a stored value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(vfs.Default)
		if err != nil {
			return err
		}
		defer s.close()
		v, err := s.db.Get(blobdb.ReadOptions{}, []byte(args[0]))
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(append(v, '\n'))
		return err
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "delete a key's index entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(vfs.Default)
		if err != nil {
			return err
		}
		defer s.close()
		return s.db.Delete(blobdb.Sync, []byte(args[0]))
	},
}

var evictCmd = &cobra.Command{
	Use:   "evict",
	Short: "run an eviction pass",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(vfs.Default)
		if err != nil {
			return err
		}
		defer s.close()
		stats, err := s.db.Evict(context.Background())
		if err != nil {
			return err
		}
		s.db.WaitForFileDeletions()
		fmt.Fprintf(cmd.OutOrStdout(), "evicted %d ttl + %d fifo files (%d bytes)\n",
			stats.TTLFiles, stats.FIFOFiles, stats.Bytes)
		fmt.Fprintf(cmd.OutOrStdout(), "skipped %d live, %d in-flight\n",
			stats.SkippedLive, stats.SkippedInFlight)
		return nil
	},
}
