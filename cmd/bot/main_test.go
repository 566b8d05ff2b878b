package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voxelnav.ai/internal/agent"
	"voxelnav.ai/internal/nav/metrics"
	"voxelnav.ai/internal/protocol"
	"voxelnav.ai/internal/sim/world"
	"voxelnav.ai/internal/transport/ws"
)

func TestSetupRebuildsStoreForNewSeed(t *testing.T) {
	b := &bot{logger: log.New(io.Discard, "", 0), cfg: agent.DefaultConfig(), metrics: metrics.New()}
	welcome := protocol.WelcomeMsg{WorldParams: protocol.WorldParams{Height: 32, Seed: 1}}
	ctx := context.Background()
	if err := b.setup(ctx, welcome); err != nil {
		t.Fatalf("setup: %v", err)
	}
	store, nav := b.store, b.nav

	if err := b.setup(ctx, welcome); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if b.store != store || b.nav != nav {
		t.Fatalf("reconnect to the same world rebuilt the store")
	}

	welcome.WorldParams.Seed = 2
	if err := b.setup(ctx, welcome); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if b.store == store || b.nav == nav || b.seed != 2 {
		t.Fatalf("same-height world with a new seed kept the old store")
	}
}

func TestReadObsStopsWithContext(t *testing.T) {
	w, err := world.New(world.WorldConfig{TickRateHz: 20, Height: 32, ViewRadius: 1, Seed: 3})
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	wctx, stop := context.WithCancel(context.Background())
	defer stop()
	go func() { _ = w.Run(wctx) }()
	srv := httptest.NewServer(ws.NewServer(w, nil).Handler())
	defer srv.Close()

	dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dcancel()
	c, err := ws.Dial(dctx, "ws"+strings.TrimPrefix(srv.URL, "http"), protocol.HelloMsg{AgentName: "reader"})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan protocol.ObsMsg)
	done := make(chan error, 1)
	go func() { done <- readObs(ctx, c, out) }()

	select {
	case <-out:
	case <-time.After(5 * time.Second):
		t.Fatalf("no OBS")
	}
	// Nobody reads out any more; the reader must still return.
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err=%v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("reader still running after cancel")
	}
}
