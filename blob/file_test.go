// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blob

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/blobdb/internal/compression"
	"github.com/cockroachdb/blobdb/internal/rowblk"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"
)

// syncCountingFile counts calls to Sync.
type syncCountingFile struct {
	vfs.File
	syncs int
}

func (f *syncCountingFile) Sync() error {
	f.syncs++
	return f.File.Sync()
}

func TestFileHeaderRoundTrip(t *testing.T) {
	for _, h := range []FileHeader{
		{Compression: compression.Snappy},
		{HasTTL: true, Compression: compression.Zstd},
		{HasTTL: true, Compression: compression.NoCompression, Earliest: 100, Latest: 1 << 40},
	} {
		t.Run(fmt.Sprintf("%+v", h), func(t *testing.T) {
			enc := h.Encode()
			require.Equal(t, uint64(len(enc)-FrameHeaderLen), binary.LittleEndian.Uint64(enc))
			// Trailing record bytes must not be consulted.
			file := append(append([]byte(nil), enc...), bytes.Repeat([]byte{0xee}, 50)...)
			got, n, err := ReadFileHeader(bytes.NewReader(file), int64(len(file)))
			require.NoError(t, err)
			require.Equal(t, int64(len(enc)), n)
			require.Equal(t, h, got)
		})
	}
}

func TestFileHeaderTTLRangeOmitted(t *testing.T) {
	// Without TTL tracking the range is not encoded.
	h := FileHeader{Earliest: 5, Latest: 10}
	got, _, err := ReadFileHeader(bytes.NewReader(h.Encode()), int64(len(h.Encode())))
	require.NoError(t, err)
	require.Equal(t, FileHeader{}, got)
}

func encodeProps(props map[string]uint64, order ...string) []byte {
	w := rowblk.Writer{RestartInterval: 16}
	for _, name := range order {
		_ = w.AddRawString(name, binary.AppendUvarint(nil, props[name]))
	}
	block := w.Finish()
	buf := binary.LittleEndian.AppendUint64(nil, uint64(len(block)))
	return append(buf, block...)
}

func TestFileHeaderCorruption(t *testing.T) {
	valid := map[string]uint64{
		propCompression: uint64(compression.Snappy),
		propHasTTL:      0,
		propMagic:       Magic,
		propVersion:     FormatVersion,
	}
	with := func(name string, v uint64) map[string]uint64 {
		m := make(map[string]uint64)
		for k, val := range valid {
			m[k] = val
		}
		m[name] = v
		return m
	}
	all := []string{propCompression, propHasTTL, propMagic, propVersion}
	ok := encodeProps(valid, all...)
	_, _, err := ReadFileHeader(bytes.NewReader(ok), int64(len(ok)))
	require.NoError(t, err)

	cases := map[string][]byte{
		"empty":             nil,
		"short":             ok[:4],
		"truncated":         ok[:len(ok)-1],
		"huge-length":       binary.LittleEndian.AppendUint64(nil, 1<<40),
		"missing-magic":     encodeProps(valid, propCompression, propHasTTL, propVersion),
		"bad-magic":         encodeProps(with(propMagic, 12345), all...),
		"version":           encodeProps(with(propVersion, 1), all...),
		"unknown-codec":     encodeProps(with(propCompression, 4), all...),
		"has-ttl-2":         encodeProps(with(propHasTTL, 2), all...),
		"ttl-missing-range": encodeProps(with(propHasTTL, 1), all...),
		"garbage":           append(binary.LittleEndian.AppendUint64(nil, 8), 0xff, 0xff, 0xff, 0xff, 9, 9, 9, 9),
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ReadFileHeader(bytes.NewReader(b), int64(len(b)))
			require.Error(t, err)
			require.True(t, base.IsCorruptionError(err), "%v", err)
		})
	}
}

func TestFooter(t *testing.T) {
	f := FileFooter{
		HasTTLRange:      true,
		Earliest:         10,
		Latest:           20,
		RecordCount:      3,
		NonExpiringCount: 1,
		DataLength:       100,
	}
	enc := f.Encode()
	require.Len(t, enc, FooterLen)
	file := append(make([]byte, 100), enc...)

	got, ok, err := ReadFileFooter(bytes.NewReader(file), int64(len(file)))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, f, got)

	// No footer.
	_, ok, err = ReadFileFooter(bytes.NewReader(file[:100]), 100)
	require.NoError(t, err)
	require.False(t, ok)

	// Checksum mismatch.
	bad := append([]byte(nil), file...)
	bad[len(bad)-20] ^= 1
	_, _, err = ReadFileFooter(bytes.NewReader(bad), int64(len(bad)))
	require.True(t, base.IsCorruptionError(err), "%v", err)

	// Data length mismatch.
	_, _, err = ReadFileFooter(bytes.NewReader(file[40:]), int64(len(file)-40))
	require.True(t, base.IsCorruptionError(err), "%v", err)
}

func writeTestFile(
	t *testing.T, fs vfs.FS, opts FileWriterOptions,
) (*FileWriter, *syncCountingFile) {
	f, err := fs.Create("000001.blob")
	require.NoError(t, err)
	sf := &syncCountingFile{File: f}
	w, err := NewFileWriter(1, sf, FileHeader{HasTTL: true, Compression: compression.Snappy}, opts)
	require.NoError(t, err)
	return w, sf
}

// rawFrame returns a frame of exactly n bytes. Its payload is not a valid
// record block, which the FileWriter never inspects.
func rawFrame(n int) []byte {
	frame, _ := EncodeRecord(nil, bytes.Repeat([]byte("x"), n-FrameOverhead), nil)
	return frame
}

func TestFileWriterSyncCadence(t *testing.T) {
	fs := vfs.NewMem()
	w, sf := writeTestFile(t, fs, FileWriterOptions{BytesPerSync: 1000})
	require.Equal(t, uint64(1000), w.nextSyncOffset)
	require.Equal(t, 0, sf.syncs)

	small := rawFrame(100)
	for w.Offset()+uint64(len(small)) < 1000 {
		_, err := w.Append(small, 0)
		require.NoError(t, err)
		require.Equal(t, 0, sf.syncs)
	}
	// Crossing the watermark issues exactly one sync and advances the
	// watermark by one increment.
	_, err := w.Append(small, 0)
	require.NoError(t, err)
	require.Equal(t, 1, sf.syncs)
	require.Equal(t, uint64(2000), w.nextSyncOffset)

	// A single append spanning several increments syncs once and the watermark
	// still moves by a single increment.
	_, err = w.Append(rawFrame(2500), 0)
	require.NoError(t, err)
	require.Greater(t, w.Offset(), uint64(3000))
	require.Equal(t, 2, sf.syncs)
	require.Equal(t, uint64(3000), w.nextSyncOffset)

	// The watermark lags the offset, so the next append syncs again.
	_, err = w.Append(small, 0)
	require.NoError(t, err)
	require.Equal(t, 3, sf.syncs)
	require.Equal(t, uint64(4000), w.nextSyncOffset)

	_, err = w.Append(small, 0)
	require.NoError(t, err)
	require.Equal(t, 3, sf.syncs)
	require.Equal(t, uint64(sf.syncs), w.Stats().Syncs)
}

func TestFileWriterAppendReadSeal(t *testing.T) {
	fs := vfs.NewMem()
	w, _ := writeTestFile(t, fs, FileWriterOptions{})
	headerLen := len(FileHeader{HasTTL: true, Compression: compression.Snappy}.Encode())
	require.Equal(t, uint64(headerLen), w.Offset())

	// Read through an independent handle while the file is still active.
	r, err := fs.Open("000001.blob")
	require.NoError(t, err)
	defer r.Close()

	expirations := []uint64{0, 500, 100, 900, 0, 300}
	var handles []Handle
	for i, exp := range expirations {
		key := []byte(fmt.Sprintf("key%d", i))
		value := bytes.Repeat([]byte{byte('a' + i)}, 100*(i+1))
		frame, _ := encodeTestRecord(t, compression.Snappy, key, value)
		h, err := w.Append(frame, exp)
		require.NoError(t, err)
		require.Equal(t, base.FileNum(1), h.FileNum)
		if len(handles) > 0 {
			prev := handles[len(handles)-1]
			// Ranges are disjoint and increase in append order.
			require.Equal(t, prev.Offset-FrameHeaderLen+prev.FrameLength(), h.Offset-FrameHeaderLen)
		}
		handles = append(handles, h)

		k, v, err := ReadRecord(r, w.Offset(), h)
		require.NoError(t, err)
		require.Equal(t, key, k)
		require.Equal(t, value, v)
	}

	stats := w.Stats()
	require.Equal(t, uint64(6), stats.RecordCount)
	require.Equal(t, uint64(2), stats.NonExpiringCount)
	require.True(t, stats.HasTTLRange)
	require.Equal(t, uint64(100), stats.Earliest)
	require.Equal(t, uint64(900), stats.Latest)
	for _, exp := range expirations {
		if exp != 0 {
			require.True(t, stats.Earliest <= exp && exp <= stats.Latest)
		}
	}

	dataLen := w.Offset()
	footer, err := w.Seal()
	require.NoError(t, err)
	require.Equal(t, dataLen, footer.DataLength)

	st, err := fs.Stat("000001.blob")
	require.NoError(t, err)
	require.Equal(t, int64(dataLen)+FooterLen, st.Size())
	got, ok, err := ReadFileFooter(r, st.Size())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, footer, got)

	var scanned []Handle
	require.NoError(t, Scan(r, 1, uint64(headerLen), footer.DataLength, func(h Handle, key, value []byte) error {
		scanned = append(scanned, h)
		return nil
	}))
	require.Equal(t, handles, scanned)

	// A torn tail is corruption.
	err = Scan(r, 1, uint64(headerLen), footer.DataLength-1, func(Handle, []byte, []byte) error { return nil })
	require.True(t, base.IsCorruptionError(err), "%v", err)
}

func TestReadFrameOutOfRange(t *testing.T) {
	file := rawFrame(50)
	for _, h := range []Handle{
		{Offset: 0, Length: 37},
		{Offset: FrameHeaderLen, Length: 38},
		{Offset: 1 << 63, Length: 1},
		{Offset: FrameHeaderLen, Length: 1<<64 - 1},
	} {
		_, err := ReadFrame(bytes.NewReader(file), uint64(len(file)), h)
		require.True(t, base.IsCorruptionError(err), "%s: %v", h, err)
	}
	frame, err := ReadFrame(bytes.NewReader(file), uint64(len(file)), Handle{Offset: FrameHeaderLen, Length: 37})
	require.NoError(t, err)
	require.Equal(t, file, frame)
}

type failingFile struct {
	vfs.File
	failWrites bool
}

func (f *failingFile) Write(p []byte) (int, error) {
	if f.failWrites {
		return 0, errInjected
	}
	return f.File.Write(p)
}

var errInjected = errors.New("injected error")

func TestFileWriterStickyError(t *testing.T) {
	fs := vfs.NewMem()
	f, err := fs.Create("000002.blob")
	require.NoError(t, err)
	ff := &failingFile{File: f}
	w, err := NewFileWriter(2, ff, FileHeader{}, FileWriterOptions{})
	require.NoError(t, err)

	ff.failWrites = true
	_, err = w.Append(rawFrame(40), 0)
	require.ErrorIs(t, err, errInjected)
	ff.failWrites = false
	_, err = w.Append(rawFrame(40), 0)
	require.ErrorIs(t, err, errInjected)
	require.ErrorIs(t, w.Err(), errInjected)
	require.NoError(t, w.Abandon())
}
