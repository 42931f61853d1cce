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
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/password"
)

const loadtestSecret = "LoadTest-Secret-1"

type sessionState struct {
	identity string
	mu       sync.Mutex
	pair     sessionguard.TokenPair
}

func main() {
	var (
		identities  = flag.Int("identities", 2000, "number of identities to log in")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase (verify + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "sglt", "redis key prefix")
		verbose     = flag.Bool("v", false, "log engine output")
	)
	flag.Parse()

	_ = godotenv.Load()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	if *identities <= 0 || *concurrency <= 0 || *ops <= 0 {
		log.Fatal().Msg("identities, concurrency, and ops must be > 0")
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			log.Fatal().Err(err).Msg("start miniredis")
		}
		defer mr.Close()
		addr = mr.Addr()
		log.Info().Str("addr", addr).Msg("using miniredis")
	} else {
		log.Info().Str("addr", addr).Msg("using redis")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	cfg := sessionguard.DefaultConfig()
	cfg.Password.BcryptCost = password.MinBcryptCost
	cfg.Store.Backend = sessionguard.StoreRedis
	cfg.Store.RedisAddr = addr
	cfg.Store.KeyPrefix = *prefix
	cfg.Metrics.EnableLatencyHistograms = true

	engineLog := zerolog.Nop()
	if *verbose {
		engineLog = log.Level(zerolog.DebugLevel)
	}

	users := sessionguard.NewMemoryUserProvider()
	engine, err := sessionguard.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserProvider(users).
		WithLogger(engineLog).
		Build()
	if err != nil {
		log.Fatal().Err(err).Msg("build engine")
	}
	defer engine.Close()

	hash, err := engine.HashSecret(loadtestSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("hash secret")
	}

	ctx := context.Background()
	states := make([]*sessionState, *identities)
	for i := range states {
		id := uuid.NewString()
		users.Put(id, hash)
		states[i] = &sessionState{identity: id}
	}

	log.Info().Int("identities", *identities).Msg("logging in")
	loginStats := runPhase(*identities, *concurrency, func(i int, _ *rand.Rand) error {
		s := states[i]
		pair, err := engine.Login(ctx, s.identity, loadtestSecret, s.identity)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.pair = pair
		s.mu.Unlock()
		return nil
	})

	verifyStats := runPhase(*ops, *concurrency, func(_ int, r *rand.Rand) error {
		s := states[r.Intn(len(states))]
		s.mu.Lock()
		token := s.pair.AccessToken
		s.mu.Unlock()
		_, err := engine.VerifyAccess(ctx, token)
		return err
	})

	refreshStats := runPhase(*ops, *concurrency, func(_ int, r *rand.Rand) error {
		s := states[r.Intn(len(states))]
		s.mu.Lock()
		defer s.mu.Unlock()
		pair, err := engine.Refresh(ctx, s.pair.RefreshToken)
		if err != nil {
			return err
		}
		s.pair = pair
		return nil
	})

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("verify", verifyStats)
	printStats("refresh", refreshStats)

	snap := engine.MetricsSnapshot()
	log.Info().
		Uint64("login_success", snap.Counters[sessionguard.MetricLoginSuccess]).
		Uint64("refresh_success", snap.Counters[sessionguard.MetricRefreshSuccess]).
		Uint64("reuse_detected", snap.Counters[sessionguard.MetricRefreshReuseDetected]).
		Uint64("store_unavailable", snap.Counters[sessionguard.MetricStoreUnavailable]).
		Msg("engine counters")
}

// runPhase runs op ops times across concurrency workers and records the
// latency of each call.
func runPhase(ops, concurrency int, op func(i int, r *rand.Rand) error) phaseStats {
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
				err := op(i, r)
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
		return phaseStats{total: total}
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
