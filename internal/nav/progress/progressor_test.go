package progress

import (
	"errors"
	"testing"

	"voxelnav.ai/internal/nav/model"
	"voxelnav.ai/internal/nav/terrain"
)

const floorY = 4

// flatWorld loads a 2x2 chunk area around the origin whose ground top is y=4,
// so agents stand at y=5.
func flatWorld(t *testing.T) *terrain.ChunkStore {
	t.Helper()
	s := terrain.NewChunkStore(32, nil)
	for cx := -1; cx <= 0; cx++ {
		for cz := -1; cz <= 0; cz++ {
			if err := s.SetColumn(terrain.ChunkKey{CX: cx, CZ: cz}, terrain.FlatColumn(32, floorY)); err != nil {
				t.Fatalf("SetColumn: %v", err)
			}
		}
	}
	return s
}

func newProg(w terrain.Query) *NoVehicleProgressor {
	cfg := DefaultTravelConfig()
	return NewNoVehicleProgressor(GlobalContext{Config: &cfg, World: w})
}

func at(x, y, z int) model.BlockLocation { return model.BlockLocation{X: x, Y: y, Z: z} }

func kinds(p Progression) map[MoveKind]int {
	out := map[MoveKind]int{}
	for _, e := range p.Movements {
		out[e.Record.Kind]++
	}
	return out
}

func TestNewMoveContextRejectsNegativeBudget(t *testing.T) {
	if _, err := NewMoveContext(at(0, 0, 0), -1); !errors.Is(err, ErrInvalidBudget) {
		t.Fatalf("expected ErrInvalidBudget, got %v", err)
	}
	if c, err := NewMoveContext(at(1, 2, 3), 4); err != nil || c.BlocksCanPlace != 4 {
		t.Fatalf("unexpected: %+v %v", c, err)
	}
}

func TestTravelConfigValidate(t *testing.T) {
	if err := DefaultTravelConfig().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	bad := DefaultTravelConfig()
	bad.MaxExpansions = 10
	if err := bad.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	bad = DefaultTravelConfig()
	bad.DiagonalCost = 0.5
	if err := bad.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestFlatGroundOrder(t *testing.T) {
	p := newProg(flatWorld(t))
	got := p.Progressions(MoveContext{Location: at(0, 5, 0)})
	if len(got.Movements) != 8 {
		t.Fatalf("movements=%d want 8", len(got.Movements))
	}
	want := []model.BlockLocation{
		at(0, 5, -1), at(1, 5, 0), at(0, 5, 1), at(-1, 5, 0),
		at(1, 5, -1), at(1, 5, 1), at(-1, 5, 1), at(-1, 5, -1),
	}
	for i, e := range got.Movements {
		if e.Record.Context.Location != want[i] {
			t.Fatalf("movement %d at %v want %v", i, e.Record.Context.Location, want[i])
		}
	}
	if got.Movements[0].Cost != 1 || got.Movements[4].Record.Kind != MoveDiagonal {
		t.Fatalf("unexpected first edges: %+v", got.Movements[:5])
	}
}

func TestDeterministic(t *testing.T) {
	p := newProg(flatWorld(t))
	a := p.Progressions(MoveContext{Location: at(2, 5, 2), BlocksCanPlace: 2})
	b := p.Progressions(MoveContext{Location: at(2, 5, 2), BlocksCanPlace: 2})
	if len(a.Movements) != len(b.Movements) {
		t.Fatalf("length differs")
	}
	for i := range a.Movements {
		if a.Movements[i] != b.Movements[i] {
			t.Fatalf("edge %d differs: %+v vs %+v", i, a.Movements[i], b.Movements[i])
		}
	}
}

func TestDiagonalNeedsBothFlanks(t *testing.T) {
	w := flatWorld(t)
	w.SetBlock(at(1, 5, 0), terrain.BlockStone)
	p := newProg(w)
	got := p.Progressions(MoveContext{Location: at(0, 5, 0)})
	for _, e := range got.Movements {
		l := e.Record.Context.Location
		if e.Record.Kind == MoveDiagonal && l.X == 1 {
			t.Fatalf("diagonal cut the corner to %v", l)
		}
	}
	// The pillar at (1,5,0) can be climbed.
	if kinds(got)[MoveAscend] != 1 {
		t.Fatalf("kinds=%v", kinds(got))
	}
}

func TestAscendNeedsHeadroom(t *testing.T) {
	w := flatWorld(t)
	w.SetBlock(at(1, 5, 0), terrain.BlockStone)
	w.SetBlock(at(0, 7, 0), terrain.BlockStone)
	p := newProg(w)
	got := p.Progressions(MoveContext{Location: at(0, 5, 0)})
	if kinds(got)[MoveAscend] != 0 {
		t.Fatalf("ascend allowed without headroom: %v", kinds(got))
	}
}

func TestDescendWithinMaxFall(t *testing.T) {
	w := flatWorld(t)
	// Dig a 3-deep pit east of the agent.
	for y := 2; y <= floorY; y++ {
		w.SetBlock(at(1, y, 0), terrain.BlockAir)
	}
	p := newProg(w)
	var found bool
	for _, e := range p.Progressions(MoveContext{Location: at(0, 5, 0)}).Movements {
		if e.Record.Kind == MoveDescend {
			found = true
			if e.Record.Context.Location != at(1, 2, 0) {
				t.Fatalf("landing=%v", e.Record.Context.Location)
			}
			if e.Cost <= 1 {
				t.Fatalf("fall cost not charged: %v", e.Cost)
			}
		}
	}
	if !found {
		t.Fatalf("descend missing")
	}

	// One block deeper is past MaxFall.
	w.SetBlock(at(1, 1, 0), terrain.BlockAir)
	for _, e := range p.Progressions(MoveContext{Location: at(0, 5, 0)}).Movements {
		if e.Record.Kind == MoveDescend {
			t.Fatalf("fall beyond MaxFall allowed: %+v", e)
		}
	}
}

func TestEnclosedIsDeadEnd(t *testing.T) {
	w := flatWorld(t)
	for _, d := range [][2]int{{0, -1}, {1, 0}, {0, 1}, {-1, 0}, {1, -1}, {1, 1}, {-1, 1}, {-1, -1}} {
		for y := 5; y <= 7; y++ {
			w.SetBlock(at(d[0], y, d[1]), terrain.BlockStone)
		}
	}
	w.SetBlock(at(0, 7, 0), terrain.BlockStone)
	p := newProg(w)
	if got := p.Progressions(MoveContext{Location: at(0, 5, 0), BlocksCanPlace: 3}); !got.Dead() {
		t.Fatalf("expected dead end, got %+v", got)
	}
}

func TestUnknownTerrainBlocksMoves(t *testing.T) {
	s := terrain.NewChunkStore(32, nil)
	if err := s.SetColumn(terrain.ChunkKey{}, terrain.FlatColumn(32, floorY)); err != nil {
		t.Fatalf("SetColumn: %v", err)
	}
	p := newProg(s)
	// (0,5,0) borders unloaded chunks to the north and west.
	for _, e := range p.Progressions(MoveContext{Location: at(0, 5, 0), BlocksCanPlace: 1}).Movements {
		l := e.Record.Context.Location
		if l.X < 0 || l.Z < 0 {
			t.Fatalf("move into unknown terrain: %+v", e)
		}
	}
}

func TestPlacementConsumesBudget(t *testing.T) {
	w := flatWorld(t)
	w.SetBlock(at(1, floorY, 0), terrain.BlockAir)
	w.SetBlock(at(1, floorY-1, 0), terrain.BlockAir)
	w.SetBlock(at(1, floorY-2, 0), terrain.BlockAir)
	w.SetBlock(at(1, floorY-3, 0), terrain.BlockAir)
	p := newProg(w)

	none := kinds(p.Progressions(MoveContext{Location: at(0, 5, 0)}))
	if none[MovePillar] != 0 || none[MoveBridge] != 0 {
		t.Fatalf("placement without budget: %v", none)
	}

	got := p.Progressions(MoveContext{Location: at(0, 5, 0), BlocksCanPlace: 2})
	k := kinds(got)
	if k[MovePillar] != 1 || k[MoveBridge] != 1 {
		t.Fatalf("kinds=%v", k)
	}
	for _, e := range got.Movements {
		switch e.Record.Kind {
		case MovePillar, MoveBridge:
			if e.Record.Context.BlocksCanPlace != 1 {
				t.Fatalf("%v budget=%d want 1", e.Record.Kind, e.Record.Context.BlocksCanPlace)
			}
		default:
			if e.Record.Context.BlocksCanPlace != 2 {
				t.Fatalf("%v budget changed to %d", e.Record.Kind, e.Record.Context.BlocksCanPlace)
			}
		}
	}
}

func TestPredecessorsMirrorForwardEdges(t *testing.T) {
	w := flatWorld(t)
	w.SetBlock(at(1, 5, 0), terrain.BlockStone)
	p := newProg(w)
	target := MoveContext{Location: at(1, 6, 0)}
	preds := p.Predecessors(target)
	if len(preds) == 0 {
		t.Fatalf("no predecessors for the top of the pillar")
	}
	for _, e := range preds {
		ok := false
		for _, f := range p.Progressions(e.Record.Context).Movements {
			if f.Record.Context.Location == target.Location && f.Cost == e.Cost {
				ok = true
			}
		}
		if !ok {
			t.Fatalf("predecessor %v has no forward edge into %v", e.Record.Context.Location, target.Location)
		}
	}
}
