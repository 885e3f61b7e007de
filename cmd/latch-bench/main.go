package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mirkobrombin/go-latch/v1/metrics"
	"github.com/mirkobrombin/go-latch/v1/vlock"
)

var (
	workers     = flag.Int("c", 8, "Concurrent goroutines")
	iterations  = flag.Int("n", 100000, "Acquisitions per goroutine")
	hold        = flag.Duration("hold", 0, "Time to hold the lock per acquisition")
	metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (empty: off)")
)

func main() {
	flag.Parse()

	reg := metrics.NewRegistry()
	metrics.RegisterLockMetrics(reg)
	if *metricsAddr != "" {
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			log.Fatal(http.ListenAndServe(*metricsAddr, nil))
		}()
	}

	m := vlock.NewRecursive(true, vlock.WithName("bench"), vlock.WithHooks(metrics.Hooks()))

	latencies := make([][]time.Duration, *workers)
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lats := make([]time.Duration, 0, *iterations)
			for j := 0; j < *iterations; j++ {
				t0 := time.Now()
				g, err := vlock.NewGuard(m)
				if err != nil {
					log.Fatalf("lock: %v", err)
				}
				lats = append(lats, time.Since(t0))
				if *hold > 0 {
					time.Sleep(*hold)
				}
				if err := g.Unlock(); err != nil {
					log.Fatalf("unlock: %v", err)
				}
			}
			latencies[i] = lats
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	var all []time.Duration
	for _, lats := range latencies {
		all = append(all, lats...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	total := len(all)
	var sum time.Duration
	for _, l := range all {
		sum += l
	}
	fmt.Printf("acquisitions: %d in %v (%.0f ops/sec)\n",
		total, elapsed.Round(time.Millisecond), float64(total)/elapsed.Seconds())
	fmt.Printf("acquire latency: avg %v p50 %v p99 %v\n",
		sum/time.Duration(total), all[total/2], all[total*99/100])
}
