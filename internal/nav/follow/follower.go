package follow

import (
	"errors"
	"math"

	"voxelnav.ai/internal/nav/model"
	"voxelnav.ai/internal/nav/pathfind"
	"voxelnav.ai/internal/nav/progress"
)

const (
	// StallTicks is 7s at 20 ticks per second without reaching a waypoint.
	StallTicks = 140

	// OvershootRadius is the horizontal distance to the next waypoint beyond
	// which the agent is treated as desynchronized from the path.
	OvershootRadius = 1.6

	// ArriveRadius and ArriveHeight bound the horizontal and vertical
	// distance at which a waypoint counts as reached. Both are strict.
	ArriveRadius = 0.2
	ArriveHeight = 1.3

	// DegenerateRadius is the distance under which a waypoint is popped
	// without steering, since no heading is defined.
	DegenerateRadius = 0.0001
)

var (
	overshoot2  = sq(OvershootRadius)
	arrive2     = sq(ArriveRadius)
	degenerate2 = sq(DegenerateRadius)
)

func sq(x float64) float64 { return x * x }

var (
	ErrStalled              = errors.New("follow: stalled")
	ErrDesynchronized       = errors.New("follow: desynchronized from path")
	ErrExhaustedPartialPath = errors.New("follow: partial path exhausted")
)

type Result uint8

const (
	InProgress Result = iota
	Success
	Failed
)

func (r Result) String() string {
	switch r {
	case Success:
		return "SUCCESS"
	case Failed:
		return "FAILED"
	default:
		return "IN_PROGRESS"
	}
}

// Actuator is the movement surface the Follower drives. Commands are fire and
// forget; their effect shows up in Location on a later tick.
type Actuator interface {
	Location() model.Location
	Face(model.Direction)
	Jump()
	MoveForward()
	SetSpeed(model.Speed)
}

// Follower walks an agent along a path one tick at a time. The waypoint queue
// only shrinks from the front. Not safe for concurrent use.
type Follower struct {
	xs       []model.Location
	initial  int
	ticks    int
	complete bool
	recalced bool
	err      error
}

// New projects each record to the center-bottom of its cell. Paths with fewer
// than two nodes carry no movement and yield no Follower.
func New(res pathfind.PathResult[progress.MoveRecord]) (*Follower, bool) {
	if len(res.Value) < 2 {
		return nil, false
	}
	xs := make([]model.Location, 0, len(res.Value))
	for _, r := range res.Value {
		xs = append(xs, r.State.Location.CenterBottom())
	}
	return &Follower{xs: xs, initial: len(xs), complete: res.Complete}, true
}

func (f *Follower) Len() int       { return len(f.xs) }
func (f *Follower) Initial() int   { return f.initial }
func (f *Follower) Complete() bool { return f.complete }

// Err is the reason for the last Failed result.
func (f *Follower) Err() error { return f.err }

func (f *Follower) Next() (model.Location, bool) {
	if len(f.xs) == 0 {
		return model.Location{}, false
	}
	return f.xs[0], true
}

// Waypoints returns a copy of the remaining queue.
func (f *Follower) Waypoints() []model.Location {
	return append([]model.Location(nil), f.xs...)
}

func (f *Follower) fail(err error) Result {
	f.err = err
	return Failed
}

func (f *Follower) pop() Result {
	f.xs = f.xs[1:]
	f.ticks = 0
	return Success
}

// Follow advances one tick. Success means a waypoint was reached (or, with an
// empty queue, that the complete path is done); callers keep calling until
// the queue is empty or the result is Failed.
func (f *Follower) Follow(act Actuator) Result {
	f.ticks++
	if f.ticks >= StallTicks {
		return f.fail(ErrStalled)
	}
	if len(f.xs) == 0 {
		if f.complete {
			return Success
		}
		return f.fail(ErrExhaustedPartialPath)
	}

	d := f.xs[0].Sub(act.Location())
	if overshot(d) {
		return f.fail(ErrDesynchronized)
	}
	if d.Mag2() < degenerate2 || arrived(d) {
		return f.pop()
	}

	act.Face(model.DirectionOf(d))
	if d.DY > 0 {
		act.Jump()
	}
	act.SetSpeed(model.SpeedSprint)
	act.MoveForward()
	return InProgress
}

// overshot bounds horizontal displacement only; vertical desync is left to the
// stall counter.
func overshot(d model.Displacement) bool {
	return d.Horizontal().Mag2() > overshoot2
}

func arrived(d model.Displacement) bool {
	return d.Horizontal().Mag2() < arrive2 && math.Abs(d.DY) < ArriveHeight
}

// ShouldRecalc reports, at most once, that more than half of a partial path
// has been consumed. Complete paths never ask.
func (f *Follower) ShouldRecalc() bool {
	if f.complete || f.recalced {
		return false
	}
	if len(f.xs)*2 < f.initial {
		f.recalced = true
		return true
	}
	return false
}
