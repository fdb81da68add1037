// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/cockroachdb/blobdb"
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "list the blob files and DB metrics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(vfs.Default)
		if err != nil {
			return err
		}
		defer s.close()
		formatFiles(cmd.OutOrStdout(), s.db.Files())
		m := s.db.Metrics()
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s", m.String())
		return nil
	},
}

func formatFiles(w io.Writer, files []blobdb.FileInfo) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"file", "state", "size", "records", "non-expiring", "earliest", "latest", "codec"})
	tw.SetBorder(false)
	tw.SetAutoFormatHeaders(false)
	tw.SetAlignment(tablewriter.ALIGN_RIGHT)
	ts := func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format(time.RFC3339)
	}
	for _, fi := range files {
		state := "active"
		switch {
		case fi.Sealed && !fi.TTLKnown:
			state = "unsealed"
		case fi.Sealed:
			state = "sealed"
		}
		records, nonExpiring := "?", "?"
		if fi.TTLKnown {
			records = strconv.FormatUint(fi.Records, 10)
			nonExpiring = strconv.FormatUint(fi.NonExpiringCount, 10)
		}
		tw.Append([]string{
			fi.FileNum.String(),
			state,
			string(crhumanize.Bytes(fi.Size, crhumanize.Compact, crhumanize.OmitI)),
			records,
			nonExpiring,
			ts(fi.Earliest),
			ts(fi.Latest),
			fi.Compression,
		})
	}
	tw.Render()
}
