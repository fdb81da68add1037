// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobdb

import (
	"time"

	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/redact"
)

// BlobFileCreateInfo contains info about a blob file creation event.
type BlobFileCreateInfo struct {
	// Writer is the index of the log writer the file was created for.
	Writer  int
	Path    string
	FileNum base.FileNum
	Err     error
}

func (i BlobFileCreateInfo) String() string {
	return redact.StringWithoutMarkers(i)
}

// SafeFormat implements redact.SafeFormatter.
func (i BlobFileCreateInfo) SafeFormat(w redact.SafePrinter, _ rune) {
	if i.Err != nil {
		w.Printf("[writer %d] blob file %s create error: %s", redact.Safe(i.Writer), i.FileNum, i.Err)
		return
	}
	w.Printf("[writer %d] blob file created %s", redact.Safe(i.Writer), i.FileNum)
}

// BlobFileSealInfo contains info about a blob file being sealed.
type BlobFileSealInfo struct {
	Writer  int
	FileNum base.FileNum
	// Size is the final size of the file, including its footer.
	Size    uint64
	Records uint64
	// Reason is why the file was sealed: "size", "age", "manual", "close" or
	// "error".
	Reason string
	Err    error
}

func (i BlobFileSealInfo) String() string {
	return redact.StringWithoutMarkers(i)
}

// SafeFormat implements redact.SafeFormatter.
func (i BlobFileSealInfo) SafeFormat(w redact.SafePrinter, _ rune) {
	if i.Err != nil {
		w.Printf("[writer %d] blob file %s seal error: %s", redact.Safe(i.Writer), i.FileNum, i.Err)
		return
	}
	w.Printf("[writer %d] blob file sealed %s (%s): %d records, %s",
		redact.Safe(i.Writer), i.FileNum, redact.SafeString(i.Reason), redact.Safe(i.Records),
		crhumanize.Bytes(i.Size, crhumanize.Compact, crhumanize.OmitI))
}

// BlobFileDeleteInfo contains the info for a blob file deletion event.
type BlobFileDeleteInfo struct {
	Path    string
	FileNum base.FileNum
	Size    uint64
	Err     error
}

func (i BlobFileDeleteInfo) String() string {
	return redact.StringWithoutMarkers(i)
}

// SafeFormat implements redact.SafeFormatter.
func (i BlobFileDeleteInfo) SafeFormat(w redact.SafePrinter, _ rune) {
	if i.Err != nil {
		w.Printf("blob file %s delete error: %s", i.FileNum, i.Err)
		return
	}
	w.Printf("blob file deleted %s (%s)", i.FileNum, crhumanize.Bytes(i.Size, crhumanize.Compact, crhumanize.OmitI))
}

// EvictionInfo contains the info for an eviction pass.
type EvictionInfo struct {
	Stats    EvictionStats
	Duration time.Duration
	Err      error
}

func (i EvictionInfo) String() string {
	return redact.StringWithoutMarkers(i)
}

// SafeFormat implements redact.SafeFormatter.
func (i EvictionInfo) SafeFormat(w redact.SafePrinter, _ rune) {
	if i.Err != nil {
		w.Printf("eviction error: %s", i.Err)
		return
	}
	w.Printf("eviction evicted %d ttl + %d fifo files (%s); skipped %d live, %d in-flight; in %.1fs",
		redact.Safe(i.Stats.TTLFiles), redact.Safe(i.Stats.FIFOFiles),
		crhumanize.Bytes(i.Stats.Bytes, crhumanize.Compact, crhumanize.OmitI),
		redact.Safe(i.Stats.SkippedLive), redact.Safe(i.Stats.SkippedInFlight),
		redact.Safe(i.Duration.Seconds()))
}

// EventListener contains a set of functions that will be invoked when various
// significant DB events occur. Note that the functions should not run for an
// excessive amount of time as they are invoked synchronously by the DB and may
// block continued DB work.
type EventListener struct {
	// BackgroundError is invoked whenever an error occurs during a background
	// operation such as eviction or the deletion of an obsolete file.
	BackgroundError func(error)

	// BlobFileCreated is invoked after a blob file has been created.
	BlobFileCreated func(BlobFileCreateInfo)

	// BlobFileSealed is invoked after a blob file has been sealed.
	BlobFileSealed func(BlobFileSealInfo)

	// BlobFileDeleted is invoked after a blob file has been deleted.
	BlobFileDeleted func(BlobFileDeleteInfo)

	// EvictionEnd is invoked after an eviction pass completes.
	EvictionEnd func(EvictionInfo)
}

// EnsureDefaults ensures that background error events are logged to the
// specified logger if a handler for those events hasn't been otherwise
// specified. Ensure all handlers are non-nil so that we don't have to check
// for nil-ness before invoking.
func (l *EventListener) EnsureDefaults(logger Logger) {
	if l.BackgroundError == nil {
		if logger != nil {
			l.BackgroundError = func(err error) {
				logger.Errorf("background error: %s", err)
			}
		} else {
			l.BackgroundError = func(error) {}
		}
	}
	if l.BlobFileCreated == nil {
		l.BlobFileCreated = func(info BlobFileCreateInfo) {}
	}
	if l.BlobFileSealed == nil {
		l.BlobFileSealed = func(info BlobFileSealInfo) {}
	}
	if l.BlobFileDeleted == nil {
		l.BlobFileDeleted = func(info BlobFileDeleteInfo) {}
	}
	if l.EvictionEnd == nil {
		l.EvictionEnd = func(info EvictionInfo) {}
	}
}

// MakeLoggingEventListener creates an EventListener that logs all events to the
// specified logger.
func MakeLoggingEventListener(logger Logger) EventListener {
	if logger == nil {
		logger = DefaultLogger{}
	}

	return EventListener{
		BackgroundError: func(err error) {
			logger.Errorf("background error: %s", err)
		},
		BlobFileCreated: func(info BlobFileCreateInfo) {
			logger.Infof("%s", info)
		},
		BlobFileSealed: func(info BlobFileSealInfo) {
			logger.Infof("%s", info)
		},
		BlobFileDeleted: func(info BlobFileDeleteInfo) {
			logger.Infof("%s", info)
		},
		EvictionEnd: func(info EvictionInfo) {
			logger.Infof("%s", info)
		},
	}
}

// TeeEventListener wraps two EventListeners, forwarding all events to both.
func TeeEventListener(a, b EventListener) EventListener {
	a.EnsureDefaults(nil)
	b.EnsureDefaults(nil)
	return EventListener{
		BackgroundError: func(err error) {
			a.BackgroundError(err)
			b.BackgroundError(err)
		},
		BlobFileCreated: func(info BlobFileCreateInfo) {
			a.BlobFileCreated(info)
			b.BlobFileCreated(info)
		},
		BlobFileSealed: func(info BlobFileSealInfo) {
			a.BlobFileSealed(info)
			b.BlobFileSealed(info)
		},
		BlobFileDeleted: func(info BlobFileDeleteInfo) {
			a.BlobFileDeleted(info)
			b.BlobFileDeleted(info)
		},
		EvictionEnd: func(info EvictionInfo) {
			a.EvictionEnd(info)
			b.EvictionEnd(info)
		},
	}
}
