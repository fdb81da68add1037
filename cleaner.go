// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobdb

import (
	"context"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/cockroachdb/blobdb/internal/base"
	"github.com/cockroachdb/errors/oserror"
	"github.com/cockroachdb/tokenbucket"
)

// Cleaner exports the base.Cleaner type.
type Cleaner = base.Cleaner

// DeleteCleaner exports the base.DeleteCleaner type.
type DeleteCleaner = base.DeleteCleaner

// ArchiveCleaner exports the base.ArchiveCleaner type.
type ArchiveCleaner = base.ArchiveCleaner

var gcLabels = pprof.Labels("blobdb", "gc")

type cleanupManager struct {
	opts *Options
	// onDelete is called after each file is cleaned, successfully or not.
	onDelete func(obsoleteFile, error)

	// jobsCh is used as the cleanup job queue.
	jobsCh chan obsoleteFile
	// waitGroup is used to wait for the background goroutine to exit.
	waitGroup sync.WaitGroup

	mu struct {
		sync.Mutex
		queuedJobs        int
		completedJobs     int
		completedJobsCond sync.Cond
	}
}

// Blob files are deleted one at a time, as their last reference is released.
const jobsChLen = 10000

// obsoleteFile holds information about a blob file that needs to be deleted
// soon.
type obsoleteFile struct {
	fileNum  base.FileNum
	path     string
	fileSize uint64
}

// openCleanupManager creates a cleanupManager and starts its background
// goroutine. The cleanupManager must be Close()d.
func openCleanupManager(opts *Options, onDelete func(obsoleteFile, error)) *cleanupManager {
	cm := &cleanupManager{
		opts:     opts,
		onDelete: onDelete,
		jobsCh:   make(chan obsoleteFile, jobsChLen),
	}
	cm.mu.completedJobsCond.L = &cm.mu.Mutex
	cm.waitGroup.Add(1)

	go func() {
		pprof.Do(context.Background(), gcLabels, func(context.Context) {
			cm.mainLoop()
		})
	}()

	return cm
}

// Close stops the background goroutine, waiting until all queued jobs are
// completed.
func (cm *cleanupManager) Close() {
	close(cm.jobsCh)
	cm.waitGroup.Wait()
}

// EnqueueJob adds an obsolete file to the manager's queue.
func (cm *cleanupManager) EnqueueJob(of obsoleteFile) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	select {
	case cm.jobsCh <- of:
		cm.mu.queuedJobs++

	default:
		// The file is left behind; it is recovered as a sealed file on the next
		// open and evicted again.
		cm.opts.Logger.Errorf("cleanup jobs queue full; not deleting blob file %s", of.fileNum)
	}
}

// Wait until the completion of all jobs that were already queued.
//
// Does not wait for jobs that are enqueued during the call.
func (cm *cleanupManager) Wait() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	n := cm.mu.queuedJobs
	for cm.mu.completedJobs < n {
		cm.mu.completedJobsCond.Wait()
	}
}

// mainLoop runs the manager's background goroutine.
func (cm *cleanupManager) mainLoop() {
	defer cm.waitGroup.Done()
	useLimiter := false
	var limiter tokenbucket.TokenBucket

	if r := cm.opts.TargetByteDeletionRate; r != 0 {
		useLimiter = true
		limiter.Init(tokenbucket.TokensPerSecond(r), tokenbucket.Tokens(r))
	}

	for of := range cm.jobsCh {
		if useLimiter {
			cm.maybePace(&limiter, of.fileSize)
		}
		cm.deleteObsoleteFile(of)
		cm.mu.Lock()
		cm.mu.completedJobs++
		cm.mu.completedJobsCond.Broadcast()
		cm.mu.Unlock()
	}
}

// maybePace sleeps before deleting a file if the deletion rate would otherwise
// exceed the target. It is always called from the background goroutine.
func (cm *cleanupManager) maybePace(limiter *tokenbucket.TokenBucket, fileSize uint64) {
	for {
		ok, d := limiter.TryToFulfill(tokenbucket.Tokens(fileSize))
		if ok {
			break
		}
		time.Sleep(d)
	}
}

// deleteObsoleteFile deletes a blob file that is no longer needed.
func (cm *cleanupManager) deleteObsoleteFile(of obsoleteFile) {
	err := cm.opts.Cleaner.Clean(cm.opts.FS, base.FileTypeBlob, of.path)
	if oserror.IsNotExist(err) {
		err = nil
	}
	cm.onDelete(of, err)
	cm.opts.EventListener.BlobFileDeleted(BlobFileDeleteInfo{
		Path:    of.path,
		FileNum: of.fileNum,
		Size:    of.fileSize,
		Err:     err,
	})
}
