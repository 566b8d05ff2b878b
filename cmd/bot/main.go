package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"voxelnav.ai/internal/agent"
	"voxelnav.ai/internal/nav/metrics"
	"voxelnav.ai/internal/nav/model"
	"voxelnav.ai/internal/nav/terrain"
	"voxelnav.ai/internal/nav/tuning"
	"voxelnav.ai/internal/persistence/chunkdb"
	persistlog "voxelnav.ai/internal/persistence/log"
	"voxelnav.ai/internal/protocol"
	"voxelnav.ai/internal/transport/ws"
)

// commandPrefix marks chat lines addressed to the bot, e.g. "!goto 10 64 -3".
const commandPrefix = "!"

func main() {
	var (
		url         = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name        = flag.String("name", "bot", "agent name")
		instanceID  = flag.String("instance", "", "instance id (default: random)")
		tuningPath  = flag.String("tuning", "./configs/nav.yaml", "path to nav.yaml (watched for changes)")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		metricsAddr = flag.String("metrics_addr", "127.0.0.1:9100", "prometheus listen address (empty to disable)")
		gotoFlag    = flag.String("goto", "", "initial goal as x,y,z")
		noCache     = flag.Bool("disable_chunk_cache", false, "do not persist observed chunks")
		noTrace     = flag.Bool("disable_trace", false, "disable the compressed navigation trace")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
	}
	var watcher *tuning.Watcher
	if _, err := os.Stat(*tuningPath); err == nil {
		watcher, err = tuning.Watch(*tuningPath)
		if err != nil {
			logger.Printf("watch tuning: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	var goal *model.BlockLocation
	if *gotoFlag != "" {
		g, err := parseGoal(*gotoFlag)
		if err != nil {
			logger.Fatalf("-goto: %v", err)
		}
		goal = &g
	}

	id := strings.TrimSpace(*instanceID)
	if id == "" {
		id = uuid.NewString()
	}

	rec := metrics.New()
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", rec.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Printf("metrics: %v", err)
			}
		}()
	}

	b := &bot{
		logger:  logger,
		url:     *url,
		name:    *name,
		id:      id,
		cfg:     agent.ConfigFromTuning(tune),
		metrics: rec,
		watcher: watcher,
		goal:    goal,
	}
	if !*noCache {
		b.cachePath = filepath.Join(*dataDir, "bots", "chunks.sqlite")
	}
	if !*noTrace {
		traces := persistlog.NewTraceLogger(filepath.Join(*dataDir, "bots", *name))
		defer traces.Close()
		b.trace = traces
	}
	defer b.close()

	ctx, cancel := signalContext()
	defer cancel()

	backoff := time.Second
	for ctx.Err() == nil {
		err := b.session(ctx)
		if ctx.Err() != nil {
			return
		}
		var perr protocol.ErrorMsg
		if errors.As(err, &perr) && perr.Code == protocol.ErrProtoVersion {
			logger.Fatalf("server rejected us: %v", err)
		}
		logger.Printf("session ended: %v (reconnecting in %s)", err, backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

type bot struct {
	logger    *log.Logger
	url       string
	name      string
	id        string
	cfg       agent.Config
	metrics   *metrics.Recorder
	watcher   *tuning.Watcher
	trace     agent.TraceSink
	cachePath string
	goal      *model.BlockLocation

	// Created on the first WELCOME and kept across reconnects to the same
	// world.
	seed  int64
	store *terrain.ChunkStore
	cache *chunkdb.Store
	nav   *agent.Navigator

	intent agent.Intent
	say    []string
	dead   bool
}

func (b *bot) close() {
	if b.cache != nil {
		_ = b.cache.Close()
	}
}

// Report queues a chat line for the next ACT and mirrors it to the log.
func (b *bot) Report(text string) {
	b.logger.Printf("nav: %s", text)
	b.say = append(b.say, text)
}

func (b *bot) setup(ctx context.Context, welcome protocol.WelcomeMsg) error {
	wp := welcome.WorldParams
	if b.store != nil && b.store.Height() == wp.Height && b.seed == wp.Seed {
		return nil
	}
	b.seed = wp.Seed
	b.store = terrain.NewChunkStore(wp.Height, nil)
	if b.cachePath != "" {
		if b.cache != nil {
			_ = b.cache.Close()
		}
		cache, err := chunkdb.OpenSQLite(b.cachePath, fmt.Sprintf("%s|%d", b.url, wp.Seed))
		if err != nil {
			return fmt.Errorf("chunk cache: %w", err)
		}
		b.cache = cache
		n, err := cache.LoadInto(ctx, b.store)
		if err != nil {
			b.logger.Printf("chunk cache load: %v", err)
		}
		b.logger.Printf("restored %d cached chunks", n)
	}
	nav, err := agent.New(b.store, b.cfg)
	if err != nil {
		return err
	}
	nav.SetReporter(b)
	nav.SetMetrics(b.metrics)
	if b.trace != nil {
		nav.SetTraceSink(b.trace)
	}
	b.nav = nav
	return nil
}

func (b *bot) session(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, 10*time.Second)
	c, err := ws.Dial(dialCtx, b.url, protocol.HelloMsg{AgentName: b.name, InstanceID: b.id})
	dialCancel()
	if err != nil {
		return err
	}
	defer c.Close()
	c.OnError = func(e protocol.ErrorMsg) { b.logger.Printf("server: %v", e) }
	w := c.Welcome
	b.logger.Printf("WELCOME agent_id=%s session=%s tick_rate=%d seed=%d", w.AgentID, w.SessionID, w.WorldParams.TickRateHz, w.WorldParams.Seed)

	if err := b.setup(ctx, w); err != nil {
		return err
	}
	defer b.nav.OnDisconnect()
	b.nav.OnMove(model.Location{X: w.Spawn[0], Y: w.Spawn[1], Z: w.Spawn[2]})
	if b.goal != nil {
		if err := b.nav.TravelTo(*b.goal); err != nil {
			b.logger.Printf("goto %v: %v", *b.goal, err)
		}
		b.goal = nil
	}

	obsCh := make(chan protocol.ObsMsg, 4)
	errCh := make(chan error, 1)
	go func() { errCh <- readObs(ctx, c, obsCh) }()

	var events <-chan tuning.Tuning
	var watchErrs <-chan error
	if b.watcher != nil {
		events, watchErrs = b.watcher.Events, b.watcher.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case t, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if err := b.nav.SetConfig(agent.ConfigFromTuning(t)); err != nil {
				b.logger.Printf("tuning reload rejected: %v", err)
				continue
			}
			b.logger.Printf("tuning reloaded: expansions_per_step=%d max_expansions=%d", t.Travel.ExpansionsPerStep, t.Travel.MaxExpansions)
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			b.logger.Printf("tuning: %v", err)
		case obs := <-obsCh:
			if err := c.Send(b.handleObs(obs)); err != nil {
				return err
			}
		}
	}
}

// readObs forwards OBS until Recv fails or ctx ends.
func readObs(ctx context.Context, c *ws.Client, out chan<- protocol.ObsMsg) error {
	for {
		obs, err := c.Recv()
		if err != nil {
			return err
		}
		select {
		case out <- obs:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *bot) handleObs(obs protocol.ObsMsg) protocol.ActMsg {
	for _, ch := range obs.Chunks {
		ids, err := terrain.DecodeColumn(ch.Data, b.store.ColumnLen())
		if err != nil {
			b.logger.Printf("chunk %d,%d: %v", ch.CX, ch.CZ, err)
			continue
		}
		key := terrain.ChunkKey{CX: ch.CX, CZ: ch.CZ}
		if err := b.store.SetColumn(key, ids); err != nil {
			continue
		}
		b.cache.Put(key, ids)
	}

	pos := model.Location{X: obs.Self.Pos[0], Y: obs.Self.Pos[1], Z: obs.Self.Pos[2]}
	b.nav.OnMove(pos)

	for _, line := range obs.Chat {
		if line.From == b.name || !strings.HasPrefix(line.Text, commandPrefix) {
			continue
		}
		if err := b.nav.HandleCommand(strings.TrimPrefix(line.Text, commandPrefix)); err != nil {
			b.Report(err.Error())
		}
	}

	act := protocol.ActMsg{Tick: obs.Tick}
	if obs.Self.Dead {
		if !b.dead {
			b.nav.OnDeath()
		}
		b.dead = true
		act.Respawn = true
	} else {
		b.dead = false
		b.intent.Reset()
		b.intent.SetLocation(pos)
		b.nav.Tick(&b.intent)
		c := b.intent.Controls()
		act.Controls = &protocol.Controls{
			Yaw:     c.Yaw,
			Pitch:   c.Pitch,
			Forward: c.Forward,
			Jump:    c.Jump,
			Speed:   c.Speed.String(),
		}
	}
	if len(b.say) > 0 {
		act.Say = b.say[0]
		b.say = b.say[1:]
	}
	return act
}

func parseGoal(s string) (model.BlockLocation, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return model.BlockLocation{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return model.BlockLocation{}, err
		}
		v[i] = n
	}
	return model.BlockLocation{X: v[0], Y: v[1], Z: v[2]}, nil
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
