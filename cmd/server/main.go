package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voxelnav.ai/internal/nav/tuning"
	persistlog "voxelnav.ai/internal/persistence/log"
	"voxelnav.ai/internal/persistence/snapshot"
	"voxelnav.ai/internal/sim/world"
	"voxelnav.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		seed       = flag.Int64("seed", 0, "world seed (0: use tuning seed)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/nav.yaml", "path to nav.yaml")
		chunks     = flag.Int("chunks_per_tick", 8, "max chunk columns streamed per client per tick")
		noTickLog  = flag.Bool("disable_tick_log", false, "disable the compressed per-tick event log")
		snapEvery  = flag.Int("snapshot_every", 600, "ticks between world snapshots (0 disables)")
		snapKeep   = flag.Int("snapshot_keep", 5, "snapshots kept on disk")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
	}
	if *seed != 0 {
		tune.Seed = *seed
	}

	w, err := world.New(world.WorldConfig{
		ID:            *worldID,
		TickRateHz:    tune.TickRateHz,
		Height:        tune.WorldHeight,
		ViewRadius:    tune.ViewRadius,
		Seed:          tune.Seed,
		ChunksPerTick: *chunks,

		SnapshotEveryTicks: *snapEvery,
	})
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	snapDir := filepath.Join(worldDir, "snapshots")
	if path, err := snapshot.Latest(snapDir); err != nil {
		logger.Printf("list snapshots: %v", err)
	} else if path != "" {
		snap, err := snapshot.ReadSnapshot(path)
		if err == nil {
			err = w.ImportSnapshot(snap)
		}
		if err != nil {
			logger.Printf("ignoring snapshot %s: %v", path, err)
		} else {
			logger.Printf("resumed from %s: tick=%d agents=%d", filepath.Base(path), snap.Header.Tick, len(snap.Agents))
		}
	}

	snapCh := make(chan snapshot.SnapshotV1, 1)
	snapDone := make(chan struct{})
	go func() {
		defer close(snapDone)
		for snap := range snapCh {
			path := snapshot.PathFor(snapDir, snap.Header.Tick)
			if err := snapshot.WriteSnapshot(path, snap); err != nil {
				logger.Printf("snapshot: %v", err)
				continue
			}
			if err := snapshot.Prune(snapDir, *snapKeep); err != nil {
				logger.Printf("prune snapshots: %v", err)
			}
		}
	}()
	w.SetSnapshotSink(func(snap snapshot.SnapshotV1) {
		select {
		case snapCh <- snap:
		default:
			logger.Printf("snapshot writer busy; skipped tick %d", snap.Header.Tick)
		}
	})

	if !*noTickLog {
		tickLog := persistlog.NewTickLogger(worldDir)
		defer tickLog.Close()
		w.SetTickLogger(tickLog)
	}

	ctx, cancel := signalContext()
	defer cancel()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(worldRegistry(w, *worldID), promhttp.HandlerOpts{}))
	if envBool("VN_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (VN_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s world=%s seed=%d tick_rate=%d view_radius=%d", *addr, *worldID, tune.Seed, tune.TickRateHz, tune.ViewRadius)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// The loop has stopped, so the final snapshot is consistent.
	<-worldDone
	if *snapEvery > 0 {
		snapCh <- w.ExportSnapshot()
	}
	close(snapCh)
	<-snapDone
	logger.Printf("stopped at tick %d", w.CurrentTick())
}

// worldRegistry exposes the world's per-tick metrics snapshot.
func worldRegistry(w *world.World, worldID string) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"world": worldID}
	gauge := func(name, help string, f func(world.WorldMetrics) float64) {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "voxelnav",
			Subsystem:   "world",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return f(w.Metrics()) }))
	}
	gauge("tick", "Current world tick.", func(m world.WorldMetrics) float64 { return float64(m.Tick) })
	gauge("agents", "Agents in the world.", func(m world.WorldMetrics) float64 { return float64(m.Agents) })
	gauge("loaded_chunks", "Generated chunk columns.", func(m world.WorldMetrics) float64 { return float64(m.LoadedChunks) })
	gauge("step_ms", "Last tick step duration in milliseconds.", func(m world.WorldMetrics) float64 { return m.StepMS })
	gauge("inbox_depth", "Queued actions.", func(m world.WorldMetrics) float64 { return float64(m.QueueDepths.Inbox) })
	return reg
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
