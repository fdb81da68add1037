// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/blobdb/blob"
	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/spf13/cobra"
)

var dumpValues bool

var dumpCmd = &cobra.Command{
	Use:   "dump <blob-file>...",
	Short: "print the header, footer and records of blob files",
	Long: `
Print the header, footer and records of blob files. Every record is decoded and
checksum-verified. Files do not need to belong to an open DB.
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			if err := dumpBlobFile(cmd.OutOrStdout(), vfs.Default, path, dumpValues); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	dumpCmd.Flags().BoolVar(&dumpValues, "values", false, "print record values")
}

func dumpBlobFile(w io.Writer, fs vfs.FS, path string, values bool) error {
	fileType, fn, ok := base.ParseFilename(fs, fs.PathBase(path))
	if !ok || fileType != base.FileTypeBlob {
		return errors.Newf("%s: not a blob file", path)
	}
	f, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	size := st.Size()

	header, headerLen, err := blob.ReadFileHeader(f, size)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n", path)
	fmt.Fprintf(w, "  header: version=%d compression=%s has-ttl=%t\n",
		header.Version, header.Compression, header.HasTTL)

	footer, sealed, err := blob.ReadFileFooter(f, size)
	if err != nil {
		return err
	}
	dataLen := uint64(size)
	if sealed {
		dataLen = footer.DataLength
		fmt.Fprintf(w, "  footer: records=%d non-expiring=%d", footer.RecordCount, footer.NonExpiringCount)
		if footer.HasTTLRange {
			fmt.Fprintf(w, " ttl=[%s,%s]", unixTime(footer.Earliest), unixTime(footer.Latest))
		}
		fmt.Fprintf(w, "\n")
	} else {
		fmt.Fprintf(w, "  footer: none\n")
	}

	var n int
	err = blob.Scan(f, fn, uint64(headerLen), dataLen, func(h blob.Handle, key, value []byte) error {
		n++
		if values {
			fmt.Fprintf(w, "  %s %q=%q\n", h, key, value)
		} else {
			fmt.Fprintf(w, "  %s %q (%d bytes)\n", h, key, len(value))
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(w, "  %d records, then: %v\n", n, err)
		return nil
	}
	fmt.Fprintf(w, "  %d records\n", n)
	return nil
}

func unixTime(secs uint64) string {
	return time.Unix(int64(secs), 0).UTC().Format(time.RFC3339)
}
