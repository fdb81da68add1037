// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/blobdb"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"
)

var benchConfig struct {
	concurrency int
	duration    time.Duration
	valueSize   int
	readPercent int
	ttl         time.Duration
	wipe        bool
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "run a put/get benchmark",
	Long: `
Run a put/get benchmark against a blob DB backed by a Pebble primary store.
Workers write fixed-size values under sequential keys and read back randomly
chosen existing keys. Latency percentiles are reported every second.
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBench()
	},
}

func runBench() error {
	if benchConfig.wipe {
		for _, dir := range []string{blobDir, primaryDir} {
			fmt.Printf("wiping %s\n", dir)
			if err := os.RemoveAll(dir); err != nil {
				return err
			}
		}
	}
	fmt.Printf("dir %s\nconcurrency %d\n", blobDir, benchConfig.concurrency)

	s, err := openStore(vfs.Default)
	if err != nil {
		return err
	}
	defer s.close()

	reg := newHistogramRegistry()
	putHist := reg.Register("put")
	getHist := reg.Register("get")
	var written atomic.Uint64
	var errs atomic.Int64

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	for i := 0; i < benchConfig.concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(uint64(worker)))
			value := make([]byte, benchConfig.valueSize)
			for ctx.Err() == nil {
				n := written.Load()
				if n > 0 && rng.Intn(100) < benchConfig.readPercent {
					key := benchKey(rng.Uint64n(n))
					start := time.Now()
					_, err := s.db.Get(blobdb.ReadOptions{}, key)
					getHist.Record(time.Since(start))
					if err != nil && !errors.Is(err, blobdb.ErrNotFound) {
						errs.Add(1)
					}
					continue
				}
				_, _ = rng.Read(value)
				key := benchKey(written.Add(1) - 1)
				start := time.Now()
				err := s.db.PutWithTTL(blobdb.NoSync, key, value, benchConfig.ttl)
				putHist.Record(time.Since(start))
				if err != nil {
					errs.Add(1)
				}
			}
		}(i)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	done := make(chan os.Signal, 3)
	signal.Notify(done, os.Interrupt)
	var timeout <-chan time.Time
	if benchConfig.duration > 0 {
		timeout = time.After(benchConfig.duration)
	}

	start := time.Now()
	for i := 0; ; i++ {
		select {
		case <-ticker.C:
			if i%20 == 0 {
				fmt.Println("_elapsed____op__ops/sec__p50(ms)__p95(ms)__p99(ms)_pMax(ms)")
			}
			reg.Tick(func(tick histogramTick) {
				h := tick.Hist
				fmt.Printf("%8s %5s %8.1f %8.1f %8.1f %8.1f %8.1f\n",
					time.Duration(time.Since(start).Seconds()+0.5)*time.Second,
					tick.Name,
					float64(h.TotalCount())/tick.Elapsed.Seconds(),
					time.Duration(h.ValueAtQuantile(50)).Seconds()*1000,
					time.Duration(h.ValueAtQuantile(95)).Seconds()*1000,
					time.Duration(h.ValueAtQuantile(99)).Seconds()*1000,
					time.Duration(h.ValueAtQuantile(100)).Seconds()*1000,
				)
			})

		case <-timeout:
			return finishBench(cancel, &wg, reg, s, time.Since(start), errs.Load())
		case <-done:
			return finishBench(cancel, &wg, reg, s, time.Since(start), errs.Load())
		}
	}
}

func finishBench(
	cancel context.CancelFunc,
	wg *sync.WaitGroup,
	reg *histogramRegistry,
	s *store,
	elapsed time.Duration,
	errCount int64,
) error {
	cancel()
	wg.Wait()
	fmt.Println("\n_elapsed____op____ops(total)__ops/sec(cum)__avg(ms)__p50(ms)__p95(ms)__p99(ms)_pMax(ms)")
	reg.Tick(func(tick histogramTick) {
		h := tick.Cumulative
		fmt.Printf("%7.1fs %5s %14d %14.1f %8.1f %8.1f %8.1f %8.1f %8.1f\n",
			elapsed.Seconds(), tick.Name, h.TotalCount(),
			float64(h.TotalCount())/elapsed.Seconds(),
			time.Duration(h.Mean()).Seconds()*1000,
			time.Duration(h.ValueAtQuantile(50)).Seconds()*1000,
			time.Duration(h.ValueAtQuantile(95)).Seconds()*1000,
			time.Duration(h.ValueAtQuantile(99)).Seconds()*1000,
			time.Duration(h.ValueAtQuantile(100)).Seconds()*1000,
		)
	})
	m := s.db.Metrics()
	fmt.Printf("\n%s", m.String())
	if errCount > 0 {
		return errors.Newf("%d operations failed", errCount)
	}
	return nil
}

func benchKey(i uint64) []byte {
	return []byte(fmt.Sprintf("bench%016d", i))
}
