package agent

import (
	"errors"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"

	"voxelnav.ai/internal/nav/follow"
	"voxelnav.ai/internal/nav/model"
	"voxelnav.ai/internal/nav/pathfind"
	"voxelnav.ai/internal/nav/progress"
	"voxelnav.ai/internal/nav/terrain"
	"voxelnav.ai/internal/nav/tuning"
)

var (
	ErrNoPosition     = errors.New("agent: position unknown")
	ErrUnknownCommand = errors.New("agent: unknown command")
)

type Config struct {
	Travel      progress.TravelConfig
	BlockBudget int
	MaxRetries  int
}

func DefaultConfig() Config {
	return ConfigFromTuning(tuning.Defaults())
}

func ConfigFromTuning(t tuning.Tuning) Config {
	return Config{Travel: t.TravelConfig(), BlockBudget: t.BlockBudget, MaxRetries: t.MaxRetries}
}

func (c Config) Validate() error {
	if err := c.Travel.Validate(); err != nil {
		return err
	}
	if c.BlockBudget < 0 {
		return progress.ErrInvalidBudget
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("agent: max retries %d < 0", c.MaxRetries)
	}
	return nil
}

// Navigator drives one agent toward a goal. It owns at most one search and
// one Follower; a new Follower always retires the old one. Every method must
// be called from the goroutine that calls Tick.
type Navigator struct {
	world   terrain.Query
	cfg     Config
	report  Reporter
	trace   TraceSink
	metrics Metrics

	tick    uint64
	pos     model.Location
	havePos bool

	goal        *model.BlockLocation
	search      *pathfind.Pathfinder
	searchTicks int
	follower    *follow.Follower
	failures    int

	// recenter is set while the agent walks back to its cell before a retry.
	recenter      *model.Location
	recenterTicks int
}

// recenterRadius must exceed half of SpeedWalk.BlocksPerTick and stay below
// 0.18, the offset at which a diagonal waypoint is still inside
// follow.OvershootRadius.
const recenterRadius = 0.12

func New(world terrain.Query, cfg Config) (*Navigator, error) {
	if world == nil {
		return nil, errors.New("agent: nil world")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Navigator{world: world, cfg: cfg, metrics: noMetrics{}}, nil
}

func (n *Navigator) SetReporter(r Reporter)   { n.report = r }
func (n *Navigator) SetTraceSink(t TraceSink) { n.trace = t }

func (n *Navigator) SetMetrics(m Metrics) {
	if m == nil {
		m = noMetrics{}
	}
	n.metrics = m
}

// SetConfig applies to the next search; a running search keeps its config.
func (n *Navigator) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	n.cfg = cfg
	return nil
}

func (n *Navigator) Config() Config { return n.cfg }

// Active reports whether a goal is set.
func (n *Navigator) Active() bool { return n.goal != nil }

func (n *Navigator) Goal() (model.BlockLocation, bool) {
	if n.goal == nil {
		return model.BlockLocation{}, false
	}
	return *n.goal, true
}

func (n *Navigator) Position() (model.Location, bool) { return n.pos, n.havePos }

func (n *Navigator) say(format string, args ...any) {
	if n.report != nil {
		n.report.Report(fmt.Sprintf(format, args...))
	}
}

// TravelTo starts a search from the current position, replacing any
// navigation in progress.
func (n *Navigator) TravelTo(goal model.BlockLocation) error {
	if !n.havePos {
		return ErrNoPosition
	}
	n.reset()
	n.goal = &goal
	if err := n.startSearch(); err != nil {
		n.reset()
		return err
	}
	return nil
}

func (n *Navigator) Stop() { n.reset() }

func (n *Navigator) OnMove(loc model.Location) {
	n.pos, n.havePos = loc, true
}

func (n *Navigator) OnDeath() {
	if n.goal == nil {
		return
	}
	if n.follower != nil {
		n.metrics.FollowTerminal(follow.Failed.String(), "died")
	}
	n.say("died on the way to %v, navigation cancelled", *n.goal)
	n.reset()
}

func (n *Navigator) OnDisconnect() {
	n.reset()
	n.havePos = false
}

func (n *Navigator) reset() {
	n.goal = nil
	n.search = nil
	n.searchTicks = 0
	n.follower = nil
	n.failures = 0
	n.recenter = nil
	n.recenterTicks = 0
	n.metrics.Waypoints(0)
}

func (n *Navigator) startSearch() error {
	start, err := progress.NewMoveContext(n.pos.Block(), n.cfg.BlockBudget)
	if err != nil {
		return err
	}
	goal, err := progress.NewMoveContext(*n.goal, 0)
	if err != nil {
		return err
	}
	travel := n.cfg.Travel
	prog := progress.NewNoVehicleProgressor(progress.GlobalContext{Config: &travel, World: n.world})
	pf, err := pathfind.New(prog, start, goal, travel)
	if err != nil {
		return err
	}
	n.search, n.searchTicks = pf, 0
	return nil
}

// Tick advances navigation by one world tick, commanding act. act.Location is
// taken as the agent's current position.
func (n *Navigator) Tick(act follow.Actuator) {
	n.tick++
	n.pos, n.havePos = act.Location(), true

	e := TraceEntry{Tick: n.tick, Pos: [3]float64{n.pos.X, n.pos.Y, n.pos.Z}}
	if n.goal != nil {
		g := *n.goal
		e.Goal = &[3]int{g.X, g.Y, g.Z}
	}
	if n.search != nil {
		n.stepSearch(&e)
	}
	if n.recenter != nil {
		n.stepRecenter(act, &e)
	}
	if n.follower != nil {
		n.stepFollow(act, &e)
	}
	e.Searching = n.search != nil
	if n.follower != nil {
		e.Waypoints = n.follower.Len()
		n.metrics.Waypoints(e.Waypoints)
	}
	if n.trace != nil && (e.Goal != nil || len(e.Events) > 0) {
		_ = n.trace.WriteTrace(e)
	}
}

func (n *Navigator) stepSearch(e *TraceEntry) {
	before := n.search.Stats().Expansions
	res, err := n.search.Step()
	n.searchTicks++
	stats := n.search.Stats()
	n.metrics.Expanded(stats.Expansions - before)
	e.Expansions = stats.Expansions
	done := n.search.Done()

	switch {
	case err != nil:
		n.metrics.SearchFinished("unreachable", n.searchTicks)
		e.Events = append(e.Events, "unreachable")
		n.say("no path to %v after %s expansions", *n.goal, humanize.Comma(int64(stats.Expansions)))
		n.reset()
	case res.Complete:
		n.metrics.SearchFinished("complete", n.searchTicks)
		e.Events = append(e.Events, "search_complete")
		n.search = nil
		n.install(res, stats, e)
	case done:
		n.metrics.SearchFinished("partial", n.searchTicks)
		e.Events = append(e.Events, "search_partial")
		n.search = nil
		n.install(res, stats, e)
	case n.follower == nil:
		if f, ok := follow.New(fromNearest(res, n.pos)); ok {
			n.follower = f
			e.Events = append(e.Events, "partial_seed")
		}
	}
}

// install hands a finished search result to a new Follower.
func (n *Navigator) install(res pathfind.PathResult[progress.MoveRecord], stats pathfind.Stats, e *TraceEntry) {
	res = fromNearest(res, n.pos)
	f, ok := follow.New(res)
	if !ok {
		if res.Complete {
			n.arrive(e)
			return
		}
		n.follower = nil
		n.retry(e, "no progress", false)
		return
	}
	n.follower = f
	kind := "path"
	if !res.Complete {
		kind = "partial path"
	}
	n.say("%s to %v: %d waypoints after %s expansions", kind, *n.goal, f.Len(), humanize.Comma(int64(stats.Expansions)))
}

func (n *Navigator) stepFollow(act follow.Actuator, e *TraceEntry) {
	f := n.follower
	r := f.Follow(act)
	e.Result = r.String()
	switch r {
	case follow.Success:
		if f.Len() == 0 && f.Complete() {
			n.arrive(e)
			return
		}
	case follow.Failed:
		reason := reasonOf(f.Err())
		e.Reason = reason
		n.metrics.FollowTerminal(r.String(), reason)
		n.follower = nil
		if f.Len() <= f.Initial()-2 {
			n.failures = 0
		}
		// Popping the start cell off-center can leave the next diagonal
		// waypoint just past the overshoot radius.
		offCenter := errors.Is(f.Err(), follow.ErrDesynchronized) && f.Len() >= f.Initial()-1
		n.retry(e, reason, offCenter)
		return
	}
	if n.search == nil && f.ShouldRecalc() {
		n.metrics.Recalculated()
		e.Events = append(e.Events, "recalc")
		if err := n.startSearch(); err != nil {
			n.say("recalculation failed: %v", err)
		}
	}
}

func (n *Navigator) arrive(e *TraceEntry) {
	n.metrics.FollowTerminal(follow.Success.String(), "arrived")
	e.Events = append(e.Events, "arrived")
	n.say("arrived at %v", *n.goal)
	n.reset()
}

// retry searches again from the live position, after walking back to the
// current cell's center when recenter is set. A search already in flight
// will replace the Follower, so it is left alone.
func (n *Navigator) retry(e *TraceEntry, reason string, recenter bool) {
	if n.search != nil {
		return
	}
	n.failures++
	if n.failures > n.cfg.MaxRetries {
		e.Events = append(e.Events, "gave_up")
		n.say("giving up on %v after %d failures (%s)", *n.goal, n.failures, reason)
		n.reset()
		return
	}
	e.Events = append(e.Events, "retry")
	n.say("%s retry toward %v: %s", humanize.Ordinal(n.failures), *n.goal, reason)
	if recenter {
		c := n.pos.Block().Center()
		n.recenter, n.recenterTicks = &c, 0
		e.Events = append(e.Events, "recenter")
		return
	}
	if err := n.startSearch(); err != nil {
		n.say("search failed: %v", err)
		n.reset()
	}
}

// stepRecenter walks toward the saved cell center and starts the retry search
// once there, or after follow.StallTicks if the agent cannot get closer.
func (n *Navigator) stepRecenter(act follow.Actuator, e *TraceEntry) {
	n.recenterTicks++
	d := n.recenter.Sub(act.Location()).Horizontal()
	if d.Mag2() >= recenterRadius*recenterRadius && n.recenterTicks < follow.StallTicks {
		act.Face(model.DirectionOf(d))
		act.SetSpeed(model.SpeedWalk)
		act.MoveForward()
		return
	}
	n.recenter, n.recenterTicks = nil, 0
	e.Events = append(e.Events, "recentered")
	if err := n.startSearch(); err != nil {
		n.say("search failed: %v", err)
		n.reset()
	}
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, follow.ErrStalled):
		return "stalled"
	case errors.Is(err, follow.ErrDesynchronized):
		return "desynchronized"
	case errors.Is(err, follow.ErrExhaustedPartialPath):
		return "exhausted"
	default:
		return "unknown"
	}
}

// fromNearest drops the records before the one closest to pos, so a path
// computed from an older position starts where the agent is now.
func fromNearest(res pathfind.PathResult[progress.MoveRecord], pos model.Location) pathfind.PathResult[progress.MoveRecord] {
	best, bestD := 0, math.Inf(1)
	for i, r := range res.Value {
		if d := r.State.Location.CenterBottom().Sub(pos).Mag2(); d < bestD {
			best, bestD = i, d
		}
	}
	if best == 0 {
		return res
	}
	return pathfind.PathResult[progress.MoveRecord]{Value: res.Value[best:], Complete: res.Complete}
}
