package pathfind

import (
	"container/heap"
	"errors"
	"fmt"
	"math"

	"voxelnav.ai/internal/nav/model"
	"voxelnav.ai/internal/nav/progress"
)

var ErrUnreachable = errors.New("pathfind: goal unreachable")

type node struct {
	loc     model.BlockLocation
	g, f    float64
	seq     uint64
	openIdx int // heap index, -1 when not queued
}

type openHeap []*node

func (h openHeap) Len() int { return len(h) }
func (h openHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].seq < h[j].seq
}
func (h openHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].openIdx, h[j].openIdx = i, j
}
func (h *openHeap) Push(x interface{}) {
	n := x.(*node)
	n.openIdx = len(*h)
	*h = append(*h, n)
}
func (h *openHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	x.openIdx = -1
	*h = old[:n-1]
	return x
}

// frontier is one side of the search. pred maps a discovered cell to the cell
// it was reached from; for the backward side that is the next cell toward the
// goal.
type frontier struct {
	root    model.BlockLocation
	open    openHeap
	nodes   map[model.BlockLocation]*node
	pred    map[model.BlockLocation]model.BlockLocation
	records map[model.BlockLocation]progress.MoveRecord
	closed  map[model.BlockLocation]bool
	order   []model.BlockLocation // discovery order

	// lead is the discovered cell nearest the opposite root.
	lead     model.BlockLocation
	leadDist float64
}

func newFrontier(root progress.MoveContext, opposite model.BlockLocation) *frontier {
	f := &frontier{
		root:     root.Location,
		nodes:    map[model.BlockLocation]*node{},
		pred:     map[model.BlockLocation]model.BlockLocation{},
		records:  map[model.BlockLocation]progress.MoveRecord{},
		closed:   map[model.BlockLocation]bool{},
		lead:     root.Location,
		leadDist: root.Location.Dist(opposite),
	}
	n := &node{loc: root.Location, openIdx: -1}
	f.nodes[root.Location] = n
	f.records[root.Location] = progress.Record(root, progress.MoveStart)
	f.order = append(f.order, root.Location)
	heap.Push(&f.open, n)
	return f
}

func (f *frontier) seen(loc model.BlockLocation) bool {
	_, ok := f.nodes[loc]
	return ok
}

func (f *frontier) head() *node {
	if len(f.open) == 0 {
		return nil
	}
	return f.open[0]
}

type Stats struct {
	Expansions   int
	ForwardOpen  int
	BackwardOpen int
	ForwardSeen  int
	BackwardSeen int
}

// Pathfinder is a resumable bidirectional search. Each Step does a bounded
// number of expansions; frontiers persist between calls. Not safe for
// concurrent use.
type Pathfinder struct {
	prog  progress.Reversible
	cfg   progress.TravelConfig
	start progress.MoveContext
	goal  progress.MoveContext

	fwd *frontier
	bwd *frontier
	seq uint64

	expansions int
	done       bool
	result     PathResult[progress.MoveRecord]
	err        error
}

func New(prog progress.Reversible, start, goal progress.MoveContext, cfg progress.TravelConfig) (*Pathfinder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if start.BlocksCanPlace < 0 || goal.BlocksCanPlace < 0 {
		return nil, fmt.Errorf("pathfind: %w", progress.ErrInvalidBudget)
	}
	if prog == nil {
		return nil, errors.New("pathfind: nil progressor")
	}
	p := &Pathfinder{prog: prog, cfg: cfg, start: start, goal: goal}
	p.fwd = newFrontier(start, goal.Location)
	p.bwd = newFrontier(goal, start.Location)
	return p, nil
}

func (p *Pathfinder) Start() progress.MoveContext { return p.start }
func (p *Pathfinder) Goal() progress.MoveContext  { return p.goal }

// Done reports whether further Step calls can change the result.
func (p *Pathfinder) Done() bool { return p.done }

func (p *Pathfinder) Stats() Stats {
	return Stats{
		Expansions:   p.expansions,
		ForwardOpen:  len(p.fwd.open),
		BackwardOpen: len(p.bwd.open),
		ForwardSeen:  len(p.fwd.nodes),
		BackwardSeen: len(p.bwd.nodes),
	}
}

// Step runs up to ExpansionsPerStep expansions. It returns a complete path
// once the frontiers meet, ErrUnreachable once both are exhausted, and the
// best partial path otherwise. When MaxExpansions is spent the partial path
// becomes final.
func (p *Pathfinder) Step() (PathResult[progress.MoveRecord], error) {
	if p.done {
		return p.result, p.err
	}
	for i := 0; i < p.cfg.ExpansionsPerStep; i++ {
		if p.expansions >= p.cfg.MaxExpansions {
			p.finish(p.partial(), nil)
			return p.result, p.err
		}
		f, other, forward := p.pick()
		if f == nil {
			p.finish(PathResult[progress.MoveRecord]{}, ErrUnreachable)
			return p.result, p.err
		}
		n := heap.Pop(&f.open).(*node)
		f.closed[n.loc] = true
		p.expansions++
		p.expand(f, other, n, forward)

		if other.seen(n.loc) {
			p.finish(PathResult[progress.MoveRecord]{Value: p.stitch(n.loc), Complete: true}, nil)
			return p.result, p.err
		}
	}
	return p.partial(), nil
}

func (p *Pathfinder) finish(r PathResult[progress.MoveRecord], err error) {
	p.done = true
	p.result = r
	p.err = err
}

// pick chooses the frontier with the cheaper head; forward wins ties.
func (p *Pathfinder) pick() (f, other *frontier, forward bool) {
	fh, bh := p.fwd.head(), p.bwd.head()
	switch {
	case fh == nil && bh == nil:
		return nil, nil, false
	case bh == nil || (fh != nil && fh.f <= bh.f):
		return p.fwd, p.bwd, true
	default:
		return p.bwd, p.fwd, false
	}
}

func (p *Pathfinder) expand(f, other *frontier, n *node, forward bool) {
	var edges []progress.Edge
	if forward {
		edges = p.prog.Progressions(f.records[n.loc].Context).Movements
	} else {
		edges = p.prog.Predecessors(f.records[n.loc].Context)
	}
	for _, e := range edges {
		loc := e.Record.Context.Location
		if f.closed[loc] {
			continue
		}
		ng := n.g + e.Cost
		old, ok := f.nodes[loc]
		if ok && ng >= old.g {
			continue
		}
		if !ok {
			old = &node{loc: loc, openIdx: -1}
			f.nodes[loc] = old
			f.order = append(f.order, loc)
		}
		old.g = ng
		old.f = ng + loc.Dist(other.lead)
		f.pred[loc] = n.loc
		f.records[loc] = e.Record
		if old.openIdx >= 0 {
			heap.Fix(&f.open, old.openIdx)
		} else {
			p.seq++
			old.seq = p.seq
			heap.Push(&f.open, old)
		}
		if d := loc.Dist(other.root); d < f.leadDist {
			f.lead, f.leadDist = loc, d
		}
	}
}

// stitch builds start..split..goal. Backward records describe the move out of
// a cell, so each cell after split takes its kind from the cell before it.
func (p *Pathfinder) stitch(split model.BlockLocation) []progress.MoveRecord {
	cells := BuildPath(p.fwd.pred, p.bwd.pred, split)
	out := make([]progress.MoveRecord, 0, len(cells))
	budget := p.fwd.records[split].Context.BlocksCanPlace
	afterSplit := false
	for i, c := range cells {
		if !afterSplit {
			out = append(out, p.fwd.records[c])
			afterSplit = c == split
			continue
		}
		prev := p.bwd.records[cells[i-1]]
		ctx := progress.MoveContext{Location: c, BlocksCanPlace: budget}
		out = append(out, progress.Record(ctx, prev.Kind))
	}
	return out
}

// partial returns the forward route to the discovered cell nearest the
// backward lead. Ties go to the earliest discovered cell.
func (p *Pathfinder) partial() PathResult[progress.MoveRecord] {
	best := p.fwd.root
	bestDist := math.Inf(1)
	for _, loc := range p.fwd.order {
		if d := loc.Dist(p.bwd.lead); d < bestDist {
			best, bestDist = loc, d
		}
	}
	cells := BuildPathForward(p.fwd.pred, best)
	out := make([]progress.MoveRecord, 0, len(cells))
	for _, c := range cells {
		out = append(out, p.fwd.records[c])
	}
	return PathResult[progress.MoveRecord]{Value: out}
}
