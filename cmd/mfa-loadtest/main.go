// Command mfa-loadtest measures session store throughput: a read phase of
// sliding-expiry lookups and a promote phase running the atomic level
// upgrade script.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goMFA/internal"
	"github.com/MrEthical07/goMFA/session"
)

type opFunc func(ctx context.Context, sid string) error

func main() {
	var (
		sessions    = flag.Int("sessions", 100000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (get + promote)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, GOMFA_REDIS_ADDR or miniredis is used")
		prefix      = flag.String("prefix", "mfa:load", "session key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("GOMFA_REDIS_ADDR")
	}

	client, cleanup, err := connect(addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	store := session.NewStore(client, session.Config{
		Prefix:           *prefix,
		IdleTimeout:      30 * time.Minute,
		AbsoluteLifetime: 24 * time.Hour,
	})

	ids, err := seed(ctx, store, *sessions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}

	getStats := runPhase(ctx, ids, *ops, *concurrency, 7919, func(ctx context.Context, sid string) error {
		_, err := store.Get(ctx, sid)
		return err
	})
	promoteStats := runPhase(ctx, ids, *ops, *concurrency, 6151, func(ctx context.Context, sid string) error {
		_, err := store.Promote(ctx, sid, session.LevelMFAVerified)
		return err
	})

	fmt.Println("---- results ----")
	printStats("get", getStats)
	printStats("promote", promoteStats)
}

func connect(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		fmt.Printf("using miniredis at %s\n", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	fmt.Printf("using redis at %s\n", addr)
	return client, func() { _ = client.Close() }, nil
}

func seed(ctx context.Context, store *session.Store, n int) ([]string, error) {
	fmt.Printf("seeding %d sessions...\n", n)
	start := time.Now()

	ids := make([]string, n)
	for i := range ids {
		sid, err := internal.NewSessionID()
		if err != nil {
			return nil, err
		}
		ids[i] = sid.String()
		err = store.Save(ctx, &session.Session{
			ID:       ids[i],
			Username: fmt.Sprintf("user-%d", i),
			Level:    session.LevelPasswordVerified,
		})
		if err != nil {
			return nil, err
		}
	}

	fmt.Printf("seeded in %s\n", time.Since(start).Round(time.Millisecond))
	return ids, nil
}

func runPhase(ctx context.Context, ids []string, ops, concurrency int, seedMul int64, op opFunc) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seedMul))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				sid := ids[r.Intn(len(ids))]
				t0 := time.Now()
				err := op(ctx, sid)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
