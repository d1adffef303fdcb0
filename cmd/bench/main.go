// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package main provides benchmarking tools for the lock-free sorted vector.
//
// This command-line tool drives the vector from many goroutines and reports
// throughput, contention and reclamation behaviour. Every concurrent run ends
// with a linearizability check: once all writers have returned, the vector
// must hold exactly the values they inserted, in order.
//
// # Benchmark Categories
//
//   - Single-threaded operations (baseline performance)
//   - Concurrent writes (publish contention)
//   - Mixed workload (writers plus rate-limited readers)
//
// # Usage
//
// Run all benchmarks:
//
//	go run ./cmd/bench
//
// Bound the publish loop and expose metrics to Prometheus:
//
//	go run ./cmd/bench -max-attempts 64 -listen :2112
//
// # Dangers and Warnings
//
//   - **Copy cost**: Every insert copies the whole snapshot, so insert
//     throughput falls as the vector grows. Keep -ops modest.
//   - **Capacity**: A small -capacity with a large -threshold exhausts the bank.
//
// # See Also
//
// For interactive testing, see the REPL tool.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kianostad/lfsv/internal/concurrency/retry"
	core "github.com/kianostad/lfsv/internal/core"
	"github.com/kianostad/lfsv/internal/monitoring/logging"
	"github.com/kianostad/lfsv/internal/monitoring/metrics"
)

var (
	opsPerWriter = flag.Int("ops", 2000, "inserts per writer goroutine")
	numReaders   = flag.Int("readers", 8, "reader goroutines in the mixed workload")
	readRate     = flag.Float64("read-rate", 50000, "reads per second per reader, 0 for unlimited")
	capacity     = flag.Int("capacity", core.DefaultCapacity, "memory bank slots")
	threshold    = flag.Int("threshold", 10, "retired snapshots per session before a scan")
	maxAttempts  = flag.Int("max-attempts", 0, "publish attempts before giving up, 0 for unbounded")
	listen       = flag.String("listen", "", "serve Prometheus metrics on this address and wait for interrupt")
	verbose      = flag.Bool("v", false, "debug logging")
)

func main() {
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := logging.NewTextLogger(level)

	m := metrics.NewMetrics()
	defer m.Close()

	if *listen != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(metrics.NewCollector(m))
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			fmt.Printf("Prometheus metrics available at http://%s/metrics\n", *listen)
			if err := http.ListenAndServe(*listen, nil); err != nil {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}

	opts := []core.Option{
		core.WithCapacity(*capacity),
		core.WithScanThreshold(*threshold),
		core.WithRetryPolicy(retry.Policy{
			MaxAttempts: *maxAttempts,
			BaseDelay:   time.Microsecond,
			MaxDelay:    time.Millisecond,
		}),
		core.WithLogger(logger),
		core.WithMetrics(m),
	}

	fmt.Println("Lock-Free Sorted Vector Benchmarks")
	fmt.Println("==================================")

	// Benchmark 1: Single-threaded operations
	if err := benchmarkSingleThreaded(opts); err != nil {
		log.Fatalf("single-threaded: %v", err)
	}

	// Benchmark 2: Concurrent writes
	if err := benchmarkConcurrentWrites(opts); err != nil {
		log.Fatalf("concurrent writes: %v", err)
	}

	// Benchmark 3: Mixed workload
	if err := benchmarkMixedWorkload(opts); err != nil {
		log.Fatalf("mixed workload: %v", err)
	}

	m.Flush()
	fmt.Println("\nMetrics")
	fmt.Println(string(m.ExportJSON()))

	if *listen != "" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		fmt.Println("Serving metrics, press Ctrl+C to exit")
		<-ctx.Done()
	}
}

func report(name string, ops int, d time.Duration) {
	fmt.Printf("   %s: %d ops in %v (%.0f ops/sec)\n", name, ops, d, float64(ops)/d.Seconds())
}

func benchmarkSingleThreaded(opts []core.Option) error {
	fmt.Println("\n1. Single-threaded operations")
	ctx := context.Background()
	v, err := core.New[int](opts...)
	if err != nil {
		return err
	}
	defer v.Close(ctx)

	n := *opsPerWriter
	start := time.Now()
	for i := 0; i < n; i++ {
		if err := v.Insert(ctx, (i*7919)%n); err != nil {
			return err
		}
	}
	report("Insert", n, time.Since(start))

	start = time.Now()
	for i := 0; i < n; i++ {
		if _, err := v.At(ctx, i); err != nil {
			return err
		}
	}
	report("At", n, time.Since(start))

	start = time.Now()
	for i := 0; i < n; i++ {
		if _, _, err := v.Search(ctx, i); err != nil {
			return err
		}
	}
	report("Search", n, time.Since(start))

	stats, err := v.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("   hazard records: %d, bank free: %d/%d\n", stats.HazardRecords, stats.BankFree, stats.BankCapacity)
	return nil
}

func benchmarkConcurrentWrites(opts []core.Option) error {
	fmt.Println("\n2. Concurrent writes")

	for _, writers := range []int{1, 2, 4, 8} {
		ctx := context.Background()
		v, err := core.New[int](opts...)
		if err != nil {
			return err
		}

		start := time.Now()
		landed, err := runWriters(ctx, v, writers)
		duration := time.Since(start)
		if err != nil {
			v.Close(ctx)
			return err
		}
		report(fmt.Sprintf("%d writers", writers), writers**opsPerWriter, duration)

		if err := verify(ctx, v, landed); err != nil {
			v.Close(ctx)
			return err
		}
		if err := v.Close(ctx); err != nil {
			return err
		}
	}
	return nil
}

func benchmarkMixedWorkload(opts []core.Option) error {
	fmt.Println("\n3. Mixed workload (writers plus paced readers)")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	v, err := core.New[int](opts...)
	if err != nil {
		return err
	}
	defer v.Close(context.Background())

	limit := rate.Inf
	if *readRate > 0 {
		limit = rate.Limit(*readRate)
	}

	var reads atomic.Int64
	readers, rctx := errgroup.WithContext(ctx)
	for r := 0; r < *numReaders; r++ {
		limiter := rate.NewLimiter(limit, 1)
		readers.Go(func() error {
			for {
				if err := limiter.Wait(rctx); err != nil {
					return nil
				}
				n, err := v.Len(rctx)
				if err != nil {
					return err
				}
				if n == 0 {
					continue
				}
				if _, err := v.At(rctx, n-1); err != nil {
					return err
				}
				reads.Add(1)
			}
		})
	}

	const writers = 4
	start := time.Now()
	landed, werr := runWriters(ctx, v, writers)
	duration := time.Since(start)
	cancel()
	if err := readers.Wait(); err != nil {
		return err
	}
	if werr != nil {
		return werr
	}

	report("writes", writers**opsPerWriter, duration)
	report("reads", int(reads.Load()), duration)
	if err := verify(context.Background(), v, landed); err != nil {
		return err
	}

	stats, err := v.Stats(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("   hazard records: %d, sessions: %d, retired: %d, violations: %d\n",
		stats.HazardRecords, stats.Sessions, stats.Retired, stats.Violations)
	return nil
}

// runWriters inserts disjoint values from each writer and returns the values
// that were published. Inserts abandoned under a bounded retry policy are
// skipped.
func runWriters(ctx context.Context, v *core.Vector[int], writers int) ([]int, error) {
	results := make([][]int, writers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < writers; w++ {
		g.Go(func() error {
			s, err := v.Session()
			if err != nil {
				return err
			}
			defer s.Close(gctx)

			for i := 0; i < *opsPerWriter; i++ {
				x := i*writers + w
				err := s.Insert(gctx, x)
				if errors.Is(err, core.ErrContention) {
					continue
				}
				if err != nil {
					return err
				}
				results[w] = append(results[w], x)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slices.Sorted(slices.Values(slices.Concat(results...))), nil
}

// verify checks that the vector holds exactly the published values.
func verify(ctx context.Context, v *core.Vector[int], want []int) error {
	got, err := v.Values(ctx)
	if err != nil {
		return err
	}
	if !slices.Equal(got, want) {
		return fmt.Errorf("linearizability check failed: %d values present, %d published", len(got), len(want))
	}
	if n := v.Violations(); n != 0 {
		return fmt.Errorf("%d reclamation violations", n)
	}
	fmt.Printf("   verified %d values in order\n", len(got))
	return nil
}
