package world

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"voxelnav.ai/internal/nav/model"
	"voxelnav.ai/internal/nav/terrain"
	"voxelnav.ai/internal/persistence/snapshot"
	"voxelnav.ai/internal/protocol"
	"voxelnav.ai/internal/sim/body"
)

type WorldConfig struct {
	ID         string
	TickRateHz int
	Height     int
	ViewRadius int // chunks
	Seed       int64

	// ChunksPerTick caps the columns streamed to one client per tick.
	ChunksPerTick int
	// SnapshotEveryTicks hands a snapshot to the snapshot sink; 0 disables.
	SnapshotEveryTicks int
}

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

type ActionEnvelope struct {
	AgentID string
	Act     protocol.ActMsg
}

type Agent struct {
	ID        string
	Name      string
	SessionID string
	Body      *body.Body
	Controls  model.Controls
	Spawn     model.Location

	pendingRespawn bool
}

type clientState struct {
	Out  chan []byte
	Sent map[terrain.ChunkKey]bool
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type TickLogEntry struct {
	Tick   uint64             `json:"tick"`
	Joins  []RecordedJoin     `json:"joins,omitempty"`
	Leaves []string           `json:"leaves,omitempty"`
	Chat   []protocol.ChatObs `json:"chat,omitempty"`
	Agents []AgentState       `json:"agents"`
}

type RecordedJoin struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
}

type AgentState struct {
	ID   string     `json:"id"`
	Pos  [3]float64 `json:"pos"`
	Dead bool       `json:"dead,omitempty"`
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg WorldConfig
	gen *terrain.Generator

	tick atomic.Uint64

	chunks *terrain.ChunkStore

	agents  map[string]*Agent
	clients map[string]*clientState

	inbox chan ActionEnvelope
	join  chan JoinRequest
	leave chan string
	stop  chan struct{}

	nextAgentNum atomic.Uint64
	metrics      atomic.Value // WorldMetrics

	// Last known positions by agent name, restored from a snapshot.
	resume map[string]resumePoint

	// Optional (may be nil).
	tickLogger   TickLogger
	snapshotSink func(snapshot.SnapshotV1)
}

func New(cfg WorldConfig) (*World, error) {
	if cfg.TickRateHz <= 0 {
		return nil, errors.New("world: tick rate must be > 0")
	}
	if cfg.Height < 8 {
		return nil, fmt.Errorf("world: height %d too small", cfg.Height)
	}
	if cfg.ViewRadius <= 0 {
		cfg.ViewRadius = 3
	}
	if cfg.ChunksPerTick <= 0 {
		cfg.ChunksPerTick = 8
	}
	if cfg.ID == "" {
		cfg.ID = "OVERWORLD"
	}
	return &World{
		cfg:     cfg,
		gen:     terrain.NewGenerator(cfg.Seed, cfg.Height),
		chunks:  terrain.NewChunkStore(cfg.Height, nil),
		agents:  map[string]*Agent{},
		clients: map[string]*clientState{},
		resume:  map[string]resumePoint{},
		inbox:   make(chan ActionEnvelope, 1024),
		join:    make(chan JoinRequest, 64),
		leave:   make(chan string, 64),
		stop:    make(chan struct{}),
	}, nil
}

func (w *World) SetTickLogger(l TickLogger)                        { w.tickLogger = l }
func (w *World) SetSnapshotSink(fn func(snap snapshot.SnapshotV1)) { w.snapshotSink = fn }

func (w *World) Inbox() chan<- ActionEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest     { return w.join }
func (w *World) Leave() chan<- string         { return w.leave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }
func (w *World) Config() WorldConfig { return w.cfg }

// WorldMetrics is a snapshot taken at the end of each tick; safe to read from
// any goroutine.
type WorldMetrics struct {
	Tick         uint64
	Agents       int
	LoadedChunks int
	StepMS       float64
	QueueDepths  QueueDepths
}

type QueueDepths struct {
	Inbox int
	Join  int
	Leave int
}

func (w *World) Metrics() WorldMetrics {
	m, _ := w.metrics.Load().(WorldMetrics)
	return m
}

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-w.inbox:
			pendingActions = append(pendingActions, env)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingActions)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// column returns the generated column for key, generating it on first use.
func (w *World) column(key terrain.ChunkKey) []uint16 {
	if c, ok := w.chunks.Column(key); ok {
		return c.Blocks
	}
	blocks := w.gen.Column(key)
	_ = w.chunks.SetColumn(key, blocks)
	return blocks
}

func (w *World) ensureAround(p model.Location) {
	center := terrain.ChunkOf(p.Block())
	r := w.cfg.ViewRadius
	for dz := -r; dz <= r; dz++ {
		for dx := -r; dx <= r; dx++ {
			w.column(terrain.ChunkKey{CX: center.CX + dx, CZ: center.CZ + dz})
		}
	}
}

// spawnPoint stands an agent on the generated surface of column (x, z).
func (w *World) spawnPoint(x, z int) model.Location {
	w.column(terrain.ChunkOf(model.BlockLocation{X: x, Z: z}))
	y := w.chunks.SurfaceY(x, z, 1)
	if y < 0 {
		y = w.cfg.Height - 2
	}
	return model.BlockLocation{X: x, Y: y, Z: z}.Center()
}

func (w *World) joinAgent(name string, out chan []byte) JoinResponse {
	if name == "" {
		name = "agent"
	}
	idNum := w.nextAgentNum.Add(1)
	agentID := fmt.Sprintf("A%d", idNum)

	// Spawn near origin on surface.
	spawnXZ := int(idNum) * 2
	spawn := w.spawnPoint(spawnXZ, -spawnXZ)

	a := &Agent{
		ID:        agentID,
		Name:      name,
		SessionID: uuid.NewString(),
		Body:      body.New(spawn),
		Spawn:     spawn,
	}
	if rp, ok := w.resume[name]; ok {
		delete(w.resume, name)
		a.Body.Pos = rp.pos
		a.Body.Yaw = rp.yaw
	}
	w.agents[agentID] = a
	if out != nil {
		w.clients[agentID] = &clientState{Out: out, Sent: map[terrain.ChunkKey]bool{}}
	}
	w.ensureAround(a.Body.Pos)
	pos := a.Body.Pos

	return JoinResponse{Welcome: protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       a.SessionID,
		AgentID:         agentID,
		WorldParams: protocol.WorldParams{
			TickRateHz: w.cfg.TickRateHz,
			ChunkSize:  terrain.ChunkSize,
			Height:     w.cfg.Height,
			ViewRadius: w.cfg.ViewRadius,
			Seed:       w.cfg.Seed,
		},
		Spawn: [3]float64{pos.X, pos.Y, pos.Z},
	}}
}

func (w *World) handleLeave(agentID string) {
	delete(w.clients, agentID)
	delete(w.agents, agentID)
}

func (w *World) applyAct(a *Agent, act protocol.ActMsg, chat *[]protocol.ChatObs) {
	if c := act.Controls; c != nil {
		a.Controls = model.Controls{
			Yaw:     c.Yaw,
			Pitch:   c.Pitch,
			Forward: c.Forward,
			Jump:    c.Jump,
			Speed:   model.ParseSpeed(c.Speed),
		}
	}
	if text := strings.TrimSpace(act.Say); text != "" {
		if len(text) > 256 {
			text = text[:256]
		}
		*chat = append(*chat, protocol.ChatObs{From: a.Name, Text: text})
	}
	if act.Respawn {
		a.pendingRespawn = true
	}
}

func (w *World) sortedAgentIDs() []string {
	ids := make([]string, 0, len(w.agents))
	for id := range w.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (w *World) step(joins []JoinRequest, leaves []string, actions []ActionEnvelope) {
	start := time.Now()
	nowTick := w.tick.Load()

	// Apply leaves and joins deterministically at tick boundary.
	recordedLeaves := make([]string, 0, len(leaves))
	for _, id := range leaves {
		if _, ok := w.agents[id]; ok {
			w.handleLeave(id)
			recordedLeaves = append(recordedLeaves, id)
		}
	}
	recordedJoins := make([]RecordedJoin, 0, len(joins))
	for _, req := range joins {
		resp := w.joinAgent(req.Name, req.Out)
		if req.Resp != nil {
			req.Resp <- resp
		}
		recordedJoins = append(recordedJoins, RecordedJoin{AgentID: resp.Welcome.AgentID, Name: req.Name})
	}

	// Apply actions in inbox order.
	var chat []protocol.ChatObs
	for _, env := range actions {
		a := w.agents[env.AgentID]
		if a == nil {
			continue
		}
		w.applyAct(a, env.Act, &chat)
	}

	states := make([]AgentState, 0, len(w.agents))
	for _, id := range w.sortedAgentIDs() {
		a := w.agents[id]
		if a.pendingRespawn {
			a.pendingRespawn = false
			if a.Body.Dead {
				a.Body.Respawn(a.Spawn)
				a.Controls = model.Controls{}
			}
		}
		w.ensureAround(a.Body.Pos)
		a.Body.Step(w.chunks, a.Controls)
		// Jump is edge-triggered.
		a.Controls.Jump = false
		p := a.Body.Pos
		states = append(states, AgentState{ID: id, Pos: [3]float64{p.X, p.Y, p.Z}, Dead: a.Body.Dead})
	}

	// Build + send OBS for each agent.
	for id, a := range w.agents {
		cl := w.clients[id]
		if cl == nil {
			continue
		}
		obs := w.buildObs(a, cl, nowTick, chat)
		b, err := json.Marshal(obs)
		if err != nil {
			continue
		}
		if dropped := sendLatest(cl.Out, b); dropped {
			// A dropped OBS may have carried columns; send them again.
			cl.Sent = map[terrain.ChunkKey]bool{}
		}
	}

	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{Tick: nowTick, Joins: recordedJoins, Leaves: recordedLeaves, Chat: chat, Agents: states})
	}

	w.metrics.Store(WorldMetrics{
		Tick:         nowTick,
		Agents:       len(w.agents),
		LoadedChunks: w.chunks.Len(),
		StepMS:       float64(time.Since(start).Microseconds()) / 1000,
		QueueDepths: QueueDepths{
			Inbox: len(w.inbox),
			Join:  len(w.join),
			Leave: len(w.leave),
		},
	})
	next := w.tick.Add(1)

	if w.snapshotSink != nil && w.cfg.SnapshotEveryTicks > 0 && next%uint64(w.cfg.SnapshotEveryTicks) == 0 {
		w.snapshotSink(w.ExportSnapshot())
	}
}

func (w *World) buildObs(a *Agent, cl *clientState, nowTick uint64, chat []protocol.ChatObs) protocol.ObsMsg {
	b := a.Body
	obs := protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		AgentID:         a.ID,
		Self: protocol.SelfObs{
			Pos:      [3]float64{b.Pos.X, b.Pos.Y, b.Pos.Z},
			Yaw:      b.Yaw,
			Pitch:    b.Pitch,
			OnGround: b.OnGround,
			Dead:     b.Dead,
		},
		Chat: chat,
	}
	for _, key := range w.pendingChunks(b.Pos, cl) {
		obs.Chunks = append(obs.Chunks, protocol.ChunkObs{
			CX:       key.CX,
			CZ:       key.CZ,
			Encoding: "RLE",
			Data:     terrain.EncodeColumn(w.column(key)),
		})
		cl.Sent[key] = true
	}
	return obs
}

// pendingChunks lists unsent columns in view, nearest first.
func (w *World) pendingChunks(p model.Location, cl *clientState) []terrain.ChunkKey {
	center := terrain.ChunkOf(p.Block())
	r := w.cfg.ViewRadius
	var keys []terrain.ChunkKey
	for dz := -r; dz <= r; dz++ {
		for dx := -r; dx <= r; dx++ {
			k := terrain.ChunkKey{CX: center.CX + dx, CZ: center.CZ + dz}
			if !cl.Sent[k] {
				keys = append(keys, k)
			}
		}
	}
	dist := func(k terrain.ChunkKey) int {
		dx, dz := k.CX-center.CX, k.CZ-center.CZ
		return dx*dx + dz*dz
	}
	sort.SliceStable(keys, func(i, j int) bool { return dist(keys[i]) < dist(keys[j]) })
	if len(keys) > w.cfg.ChunksPerTick {
		keys = keys[:w.cfg.ChunksPerTick]
	}
	return keys
}

// sendLatest enqueues b, dropping the oldest queued message if the client is
// behind. It reports whether anything was dropped.
func sendLatest(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return false
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
	return true
}
