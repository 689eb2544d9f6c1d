// Command sessionload measures session.Store throughput against Redis, or an in-process
// miniredis when no address is given.
package main

import (
	"context"
	"errors"
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

	"github.com/MrEthical07/goSession/session"
)

type slot struct {
	key     string
	mu      sync.Mutex
	expires time.Time
}

func main() {
	var (
		sessions    = flag.Int("sessions", 10000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (load + save)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "gsload", "session key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	cleanup := func() {}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer func() {
		_ = client.Close()
		cleanup()
	}()

	store := session.NewStore(client, *prefix)

	base := time.Now().Add(time.Hour)
	slots := make([]slot, *sessions)
	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := range slots {
		slots[i].key = fmt.Sprintf("user-%d", i)
		slots[i].expires = base
		if err := store.Save(ctx, slots[i].key, buildSession(i, base), 24*time.Hour); err != nil {
			fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	loadStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		s := &slots[r.Intn(len(slots))]
		sess, err := store.Load(ctx, s.key)
		if err == nil && sess == nil {
			err = errors.New("missing session")
		}
		return err
	})
	saveStats := runPhase(*ops, *concurrency, func(r *rand.Rand, i int) error {
		s := &slots[r.Intn(len(slots))]
		s.mu.Lock()
		defer s.mu.Unlock()
		next := s.expires.Add(time.Second)
		if err := store.Save(ctx, s.key, buildSession(i, next), 24*time.Hour); err != nil {
			return err
		}
		s.expires = next
		return nil
	})
	staleStats := runPhase(*ops/10+1, *concurrency, func(r *rand.Rand, i int) error {
		s := &slots[r.Intn(len(slots))]
		// Writes older than the stored expiry must be rejected.
		err := store.Save(ctx, s.key, buildSession(i, base.Add(-time.Minute)), 24*time.Hour)
		if errors.Is(err, session.ErrStaleWrite) {
			return nil
		}
		if err == nil {
			return errors.New("stale write accepted")
		}
		return err
	})

	fmt.Println("---- results ----")
	printStats("load", loadStats)
	printStats("save", saveStats)
	printStats("stale", staleStats)
}

// runPhase runs op ops times across concurrency workers and collects latencies.
func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
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
	p99      time.Duration
	max      time.Duration
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
		p50:      samples[(len(samples)-1)*50/100],
		p99:      samples[(len(samples)-1)*99/100],
		max:      samples[len(samples)-1],
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%-6s ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p99=%s max=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
		s.max.Round(time.Microsecond),
	)
}

func buildSession(i int, expires time.Time) *session.Session {
	return &session.Session{
		AccessToken:  fmt.Sprintf("access-%d", i),
		RefreshToken: fmt.Sprintf("refresh-%d", i),
		TokenType:    "bearer",
		ExpiresAt:    expires,
		UserID:       fmt.Sprintf("user-%d", i),
		Payload:      []byte(`{"role":"authenticated"}`),
	}
}
