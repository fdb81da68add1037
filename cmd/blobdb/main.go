// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	blobDir      string
	primaryDir   string
	compression  string
	ttlEnabled   bool
	maxFileSize  uint64
	maxTotalSize uint64
	policy       string
	numWriters   int
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "blobdb [command] (flags)",
	Short: "blobdb introspection and benchmarking tool",
	Long:  ``,
}

func main() {
	log.SetFlags(0)

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		putCmd,
		getCmd,
		deleteCmd,
		lsCmd,
		evictCmd,
		dumpCmd,
		benchCmd,
	)

	for _, cmd := range []*cobra.Command{putCmd, getCmd, deleteCmd, lsCmd, evictCmd, benchCmd} {
		cmd.Flags().StringVar(
			&blobDir, "dir", "data/blobs", "directory holding the blob files")
		cmd.Flags().StringVar(
			&primaryDir, "primary", "data/primary", "directory holding the primary store")
		cmd.Flags().StringVar(
			&compression, "compression", "snappy", "record compression (none, snappy, zstd, minlz)")
		cmd.Flags().BoolVar(
			&ttlEnabled, "ttl", false, "track record expirations")
		cmd.Flags().Uint64Var(
			&maxFileSize, "max-file-size", 256<<20, "size at which blob files are sealed")
		cmd.Flags().Uint64Var(
			&maxTotalSize, "max-total-size", 0, "storage budget for all blob files (0 for none)")
		cmd.Flags().StringVar(
			&policy, "policy", "live-checked", "eviction policy (live-checked, tolerate-orphans)")
		cmd.Flags().IntVar(
			&numWriters, "writers", 1, "number of concurrent log writers")
		cmd.Flags().BoolVarP(
			&verbose, "verbose", "v", false, "enable verbose event logging")
	}

	putCmd.Flags().DurationVar(
		&putTTL, "expire-after", 0, "expire the record after this duration")

	benchCmd.Flags().IntVarP(
		&benchConfig.concurrency, "concurrency", "c", 1, "number of concurrent workers")
	benchCmd.Flags().DurationVarP(
		&benchConfig.duration, "duration", "d", 10*time.Second, "the duration to run (0, run forever)")
	benchCmd.Flags().IntVar(
		&benchConfig.valueSize, "value", 64<<10, "size of values to write")
	benchCmd.Flags().IntVar(
		&benchConfig.readPercent, "read-percent", 0,
		"Percent (0-100) of operations that are reads of existing keys")
	benchCmd.Flags().DurationVar(
		&benchConfig.ttl, "expire-after", 0, "expire written records after this duration")
	benchCmd.Flags().BoolVarP(
		&benchConfig.wipe, "wipe", "w", false, "wipe the directories before starting")

	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}
