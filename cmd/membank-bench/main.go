// membank-bench drives a fixed-capacity pool allocator through randomized
// concurrent alloc/free/resize rounds plus a pool-backed linked-list
// workload, with workers synchronized by a rendezvous barrier. Progress
// and pool occupancy are exposed as Prometheus metrics.
package main

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/davrk/membank/internal/barrier"
	"github.com/davrk/membank/internal/list"
	"github.com/davrk/membank/internal/logging"
	"github.com/davrk/membank/internal/pool"
)

func main() {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("MEMBANK", &cfg); err != nil {
		fmt.Fprintln(os.Stderr, "failed to parse environment:", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{Format: cfg.LogFormat, Level: cfg.LogLevel})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := ValidateConfig(&cfg); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	go func() {
		logger.Info("starting metrics server", zap.String("address", cfg.MetricsAddr))
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	// Reserving the backing buffer is the one unrecoverable step.
	pl, err := pool.New(cfg.PoolSize, logger)
	if err != nil {
		logger.Fatal("failed to reserve memory pool", zap.Error(err))
	}
	defer pl.Shutdown()

	logger.Info("pool ready",
		zap.Int("capacity", cfg.PoolSize),
		zap.Int("workers", cfg.Workers),
		zap.Int("rounds", cfg.Rounds))

	// Alloc workers plus one list worker rendezvous at every round.
	bar, err := barrier.New(cfg.Workers + 1)
	if err != nil {
		logger.Fatal("failed to create barrier", zap.Error(err))
	}

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runAllocWorker(id, pl, &cfg, bar, logger)
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		runListWorker(pl, &cfg, bar, logger)
	}()
	wg.Wait()

	st := pl.Stats()
	logger.Info("bench complete",
		zap.Int("live_bytes", st.LiveBytes),
		zap.Int("live_allocs", st.LiveAllocs),
		zap.Int("free_extents", st.FreeExtents))
	if st.LiveAllocs != 0 {
		logger.Warn("workers left live allocations behind", zap.Int("count", st.LiveAllocs))
	}
}

// runAllocWorker churns the pool with randomized alloc, free and resize
// calls, tracking its own refs so every failure is a real fault.
func runAllocWorker(id int, pl *pool.Pool, cfg *Config, bar *barrier.Barrier, logger *zap.Logger) {
	rng := rand.New(rand.NewSource(cfg.Seed + int64(id)))
	log := logger.With(zap.Int("worker", id))

	var refs []pool.Ref
	for round := 0; round < cfg.Rounds; round++ {
		bar.Wait()
		for op := 0; op < cfg.OpsPerRound; op++ {
			switch {
			case len(refs) == 0 || rng.Intn(5) < 3:
				size := 1 + rng.Intn(cfg.MaxAllocSize)
				ref, err := pl.Alloc(size)
				if errors.Is(err, pool.ErrOutOfSpace) {
					continue
				}
				if err != nil {
					log.Error("alloc fault", zap.Error(err))
					continue
				}
				stamp(pl, ref, byte(id), log)
				refs = append(refs, ref)
			case rng.Intn(2) == 0:
				i := rng.Intn(len(refs))
				if err := pl.Free(refs[i]); err != nil {
					log.Error("free fault", zap.Error(err))
				}
				refs = append(refs[:i], refs[i+1:]...)
			default:
				i := rng.Intn(len(refs))
				ref, err := pl.Resize(refs[i], 1+rng.Intn(cfg.MaxAllocSize))
				if errors.Is(err, pool.ErrOutOfSpace) {
					continue
				}
				if err != nil {
					log.Error("resize fault", zap.Error(err))
					continue
				}
				refs[i] = ref
			}
		}
	}

	for _, ref := range refs {
		if err := pl.Free(ref); err != nil {
			log.Error("final free fault", zap.Error(err))
		}
	}
}

// stamp writes the worker id into the first byte of the extent, exercising
// the data path alongside the bookkeeping path.
func stamp(pl *pool.Pool, ref pool.Ref, id byte, log *zap.Logger) {
	b, err := pl.Bytes(ref)
	if err != nil {
		log.Error("bytes fault", zap.Error(err))
		return
	}
	b[0] = id
}

// runListWorker grows and shrinks a pool-backed list each round.
func runListWorker(pl *pool.Pool, cfg *Config, bar *barrier.Barrier, logger *zap.Logger) {
	l := list.New[uint64](pl, logger)
	log := logger.With(zap.String("worker", "list"))

	perRound := cfg.ListValues / cfg.Rounds
	if perRound == 0 {
		perRound = 1
	}

	for round := 0; round < cfg.Rounds; round++ {
		bar.Wait()
		base := uint64(round) * uint64(perRound)
		for i := 0; i < perRound; i++ {
			if err := l.Push(base + uint64(i)); err != nil {
				if errors.Is(err, pool.ErrOutOfSpace) {
					break
				}
				log.Error("push fault", zap.Error(err))
			}
		}
		// Drop the first half of this round's values again.
		for i := 0; i < perRound/2; i++ {
			if err := l.Remove(base + uint64(i)); err != nil && !errors.Is(err, list.ErrNotFound) {
				log.Error("remove fault", zap.Error(err))
			}
		}
	}

	log.Info("list churn done", zap.Int("remaining", l.Len()))
	if err := l.Cleanup(); err != nil {
		log.Error("cleanup fault", zap.Error(err))
	}
}
