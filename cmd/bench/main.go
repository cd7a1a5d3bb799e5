// Command bench runs a synthetic roster workload against the cache and
// exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alexflint/go-arg"
	logging "github.com/ipfs/go-log/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rosterops/rostercache/cache"
	pmet "github.com/rosterops/rostercache/metrics/prom"
	"github.com/rosterops/rostercache/roster"
)

var log = logging.Logger("rostercache/bench")

type args struct {
	Entries  int           `arg:"--entries,env:BENCH_ENTRIES" default:"100000" help:"cache capacity (entries)"`
	TTL      time.Duration `arg:"--ttl,env:BENCH_TTL" default:"5m" help:"per-entry TTL"`
	Workers  int           `arg:"--workers,env:BENCH_WORKERS" default:"0" help:"worker goroutines (0 = 2*GOMAXPROCS)"`
	Duration time.Duration `arg:"--duration,env:BENCH_DURATION" default:"10s" help:"benchmark duration"`
	ReadPct  int           `arg:"--reads,env:BENCH_READS" default:"90" help:"read percentage [0..100]"`

	Keys    int           `arg:"--keys,env:BENCH_KEYS" default:"1000000" help:"keyspace size"`
	Absent  int           `arg:"--absent,env:BENCH_ABSENT" default:"10" help:"percentage of keys with no backing record"`
	ZipfS   float64       `arg:"--zipf-s" default:"1.1" help:"Zipf s > 1 (skew)"`
	ZipfV   float64       `arg:"--zipf-v" default:"1.0" help:"Zipf v"`
	Seed    int64         `arg:"--seed" help:"random seed (0 = time-based)"`
	Latency time.Duration `arg:"--latency,env:BENCH_LATENCY" default:"200us" help:"simulated source latency per lookup"`

	PprofAddr   string `arg:"--pprof" help:"serve pprof at addr (e.g. :6060); empty = disabled"`
	MetricsAddr string `arg:"--http" default:":8080" help:"serve Prometheus metrics at addr"`
}

// synthSource is an in-memory roster source with simulated lookup latency.
// A fixed slice of keys has no record so misses exercise negative caching.
type synthSource struct {
	keys    int64
	absent  int64 // every key with id % 100 < absent is unbacked
	latency time.Duration
}

func (s *synthSource) Lookup(ctx context.Context, id int64) (*roster.Profile, error) {
	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if id < 0 || id >= s.keys || id%100 < s.absent {
		return nil, nil // confirmed absent
	}
	p := synthProfile(id)
	return &p, nil
}

func (s *synthSource) LookupAll(ctx context.Context) ([]roster.Profile, error) {
	// Bulk load is deliberately capped: preloading a million-key keyspace
	// would defeat the point of measuring read-through misses.
	n := s.keys
	if n > 10_000 {
		n = 10_000
	}
	out := make([]roster.Profile, 0, n)
	for id := int64(0); id < n; id++ {
		if id%100 < s.absent {
			continue
		}
		out = append(out, synthProfile(id))
	}
	return out, nil
}

func (s *synthSource) String() string { return "synth" }

func synthProfile(id int64) roster.Profile {
	return roster.Profile{
		UserID:     id,
		FullName:   "User " + strconv.FormatInt(id, 10),
		Static:     strconv.FormatInt(100_000+id, 10),
		Rank:       "Private",
		Department: "Military Academy",
		Source:     "synth",
	}
}

func main() {
	var a args
	arg.MustParse(&a)

	if a.Seed == 0 {
		a.Seed = time.Now().UnixNano()
	}
	workers := a.Workers
	if workers <= 0 {
		workers = 2 * runtime.GOMAXPROCS(0)
	}

	if a.PprofAddr != "" {
		go func() {
			log.Infof("pprof: serving at %s", a.PprofAddr)
			log.Error(http.ListenAndServe(a.PprofAddr, nil))
		}()
	}

	metrics := pmet.New(nil, "rostercache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Infof("metrics: serving at %s", a.MetricsAddr)
		log.Error(http.ListenAndServe(a.MetricsAddr, nil))
	}()

	src := &synthSource{keys: int64(a.Keys), absent: int64(a.Absent), latency: a.Latency}
	c := cache.New(src, cache.Options{
		TTL:                a.TTL,
		MaxEntries:         a.Entries,
		Metrics:            metrics,
		DisableAutoPreload: true,
	})
	defer func() { _ = c.Close() }()

	// Warm the cache the way a bot process would at startup.
	if res := c.PreloadAll(context.Background()); !res.Success {
		log.Fatalf("warmup preload failed: %v", res.Err)
	}
	log.Infow("warm", "entries", c.Len())

	var reads, writes, hits, misses, total uint64
	ctx, cancel := context.WithTimeout(context.Background(), a.Duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(a.Seed + int64(id)*9973))
			localZipf := rand.NewZipf(localR, a.ZipfS, a.ZipfV, uint64(a.Keys-1))

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				k := int64(localZipf.Uint64())
				atomic.AddUint64(&total, 1)
				if int(localR.Int31n(100)) < a.ReadPct {
					atomic.AddUint64(&reads, 1)
					if _, ok := c.Get(ctx, k); ok {
						atomic.AddUint64(&hits, 1)
					} else {
						atomic.AddUint64(&misses, 1)
					}
				} else {
					atomic.AddUint64(&writes, 1)
					c.Store(k, synthProfile(k))
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	ops := atomic.LoadUint64(&total)
	readsN := atomic.LoadUint64(&reads)
	writesN := atomic.LoadUint64(&writes)
	hitsN := atomic.LoadUint64(&hits)
	missesN := atomic.LoadUint64(&misses)

	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}

	st := c.Stats()
	fmt.Printf("entries=%d ttl=%v workers=%d keys=%d latency=%v dur=%v seed=%d\n",
		a.Entries, a.TTL, workers, a.Keys, a.Latency, elapsed, a.Seed)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, writesN)
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hitsN, missesN, hitRate)
	fmt.Printf("cache: size=%d evictions=%d expired=%d mem~%dB\n",
		st.Size, st.Evictions, st.Expired, st.MemoryEstimate)
}
