package progress

import "voxelnav.ai/internal/nav/model"

// Progressor enumerates the legal moves out of a search node. Output order is
// fixed for identical terrain and input; the Pathfinder breaks ties by it.
type Progressor interface {
	Progressions(ctx MoveContext) Progression
}

type offset struct{ dx, dz int }

var (
	cardinals = [4]offset{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}   // N E S W
	diagonals = [4]offset{{1, -1}, {1, 1}, {-1, 1}, {-1, -1}} // NE SE SW NW
)

// NoVehicleProgressor moves an agent on foot: walking, jumping up one block,
// falling up to MaxFall, and placing blocks while the budget lasts.
type NoVehicleProgressor struct {
	Global GlobalContext
}

func NewNoVehicleProgressor(g GlobalContext) *NoVehicleProgressor {
	if g.Config == nil {
		cfg := DefaultTravelConfig()
		g.Config = &cfg
	}
	return &NoVehicleProgressor{Global: g}
}

func (p *NoVehicleProgressor) passable(b model.BlockLocation) bool {
	return p.Global.World.BlockAt(b).Passable()
}

func (p *NoVehicleProgressor) standable(b model.BlockLocation) bool {
	return p.Global.World.BlockAt(b).Standable()
}

// clear reports whether a body fits with its feet at b.
func (p *NoVehicleProgressor) clear(b model.BlockLocation) bool {
	return p.passable(b) && p.passable(b.Above())
}

// canStand reports whether the agent can stand with its feet at b.
func (p *NoVehicleProgressor) canStand(b model.BlockLocation) bool {
	return p.clear(b) && p.standable(b.Below())
}

func (p *NoVehicleProgressor) Progressions(ctx MoveContext) Progression {
	cfg := p.Global.Config
	at := ctx.Location
	var out []Edge

	add := func(loc model.BlockLocation, budget int, kind MoveKind, cost float64) {
		next := MoveContext{Location: loc, BlocksCanPlace: budget}
		out = append(out, Edge{Record: Record(next, kind), Cost: cost})
	}

	for _, o := range cardinals {
		dst := at.Add(o.dx, 0, o.dz)
		if p.canStand(dst) {
			add(dst, ctx.BlocksCanPlace, MoveWalk, cfg.BaseCost)
		}
	}

	for _, o := range diagonals {
		dst := at.Add(o.dx, 0, o.dz)
		if !p.canStand(dst) {
			continue
		}
		if !p.clear(at.Add(o.dx, 0, 0)) || !p.clear(at.Add(0, 0, o.dz)) {
			continue
		}
		add(dst, ctx.BlocksCanPlace, MoveDiagonal, cfg.DiagonalCost)
	}

	headroom := p.passable(at.Add(0, 2, 0))
	if headroom {
		for _, o := range cardinals {
			dst := at.Add(o.dx, 1, o.dz)
			if p.canStand(dst) {
				add(dst, ctx.BlocksCanPlace, MoveAscend, cfg.BaseCost+cfg.JumpCost)
			}
		}
	}

	for _, o := range cardinals {
		edge := at.Add(o.dx, 0, o.dz)
		if !p.clear(edge) || p.standable(edge.Below()) {
			continue
		}
		if fall, ok := p.landing(edge, cfg.MaxFall); ok {
			add(edge.Add(0, -fall, 0), ctx.BlocksCanPlace, MoveDescend, cfg.BaseCost+cfg.FallCost*float64(fall))
		}
	}

	if ctx.BlocksCanPlace > 0 {
		if headroom {
			add(at.Above(), ctx.BlocksCanPlace-1, MovePillar, cfg.PlaceCost+cfg.JumpCost)
		}
		for _, o := range cardinals {
			dst := at.Add(o.dx, 0, o.dz)
			floor := dst.Below()
			if !p.clear(dst) || !p.passable(floor) {
				continue
			}
			add(dst, ctx.BlocksCanPlace-1, MoveBridge, cfg.BaseCost+cfg.PlaceCost)
		}
	}

	return Progression{Movements: out}
}

// landing walks down from a clear cell with no floor and returns how many
// blocks the agent falls before hitting ground. Falls longer than maxFall, or
// through anything that is not passable, are illegal.
func (p *NoVehicleProgressor) landing(from model.BlockLocation, maxFall int) (int, bool) {
	cur := from
	for fall := 1; fall <= maxFall; fall++ {
		cur = cur.Below()
		if !p.passable(cur) {
			return 0, false
		}
		if p.standable(cur.Below()) {
			return fall, true
		}
	}
	return 0, false
}

// Reversible is a Progressor that can also enumerate reverse edges, which
// the backward frontier of a bidirectional search needs.
type Reversible interface {
	Progressor
	Predecessors(ctx MoveContext) []Edge
}

// Predecessors lists the standing nodes that have a legal move into ctx, with
// that move's cost. Candidates are expanded with a zero block budget, so every
// returned edge is also produced by a forward expansion.
func (p *NoVehicleProgressor) Predecessors(ctx MoveContext) []Edge {
	var out []Edge
	for dy := -1; dy <= p.Global.Config.MaxFall; dy++ {
		for _, set := range [2][4]offset{cardinals, diagonals} {
			for _, o := range set {
				if dy != 0 && set == diagonals {
					continue
				}
				from := MoveContext{Location: ctx.Location.Add(-o.dx, dy, -o.dz)}
				if !p.canStand(from.Location) {
					continue
				}
				for _, e := range p.Progressions(from).Movements {
					if e.Record.Context.Location != ctx.Location {
						continue
					}
					out = append(out, Edge{Record: Record(from, e.Record.Kind), Cost: e.Cost})
					break
				}
			}
		}
	}
	return out
}
