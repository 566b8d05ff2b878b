package pathfind

import (
	"errors"
	"testing"

	"voxelnav.ai/internal/nav/model"
	"voxelnav.ai/internal/nav/progress"
	"voxelnav.ai/internal/nav/terrain"
)

func flatWorld(t *testing.T) *terrain.ChunkStore {
	t.Helper()
	s := terrain.NewChunkStore(32, nil)
	for cx := -1; cx <= 0; cx++ {
		for cz := -1; cz <= 0; cz++ {
			if err := s.SetColumn(terrain.ChunkKey{CX: cx, CZ: cz}, terrain.FlatColumn(32, 4)); err != nil {
				t.Fatalf("SetColumn: %v", err)
			}
		}
	}
	return s
}

func ctxAt(x, y, z int) progress.MoveContext {
	return progress.MoveContext{Location: model.BlockLocation{X: x, Y: y, Z: z}}
}

func newFinder(t *testing.T, w terrain.Query, start, goal progress.MoveContext, cfg progress.TravelConfig) (*Pathfinder, *progress.NoVehicleProgressor) {
	t.Helper()
	prog := progress.NewNoVehicleProgressor(progress.GlobalContext{Config: &cfg, World: w})
	pf, err := New(prog, start, goal, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return pf, prog
}

func runToEnd(t *testing.T, pf *Pathfinder) (PathResult[progress.MoveRecord], error) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		res, err := pf.Step()
		if pf.Done() {
			return res, err
		}
	}
	t.Fatalf("search did not finish")
	return PathResult[progress.MoveRecord]{}, nil
}

func assertLegal(t *testing.T, prog progress.Progressor, path []progress.MoveRecord) {
	t.Helper()
	for i := 1; i < len(path); i++ {
		prev, next := path[i-1].Context, path[i].Context.Location
		ok := false
		for _, e := range prog.Progressions(prev).Movements {
			if e.Record.Context.Location == next {
				ok = true
				break
			}
		}
		if !ok {
			t.Fatalf("step %d: no legal move %v -> %v", i, prev.Location, next)
		}
	}
}

func TestFindsCompletePathOnFlatGround(t *testing.T) {
	start, goal := ctxAt(0, 5, 0), ctxAt(9, 5, 4)
	pf, prog := newFinder(t, flatWorld(t), start, goal, progress.DefaultTravelConfig())
	res, err := runToEnd(t, pf)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !res.Complete {
		t.Fatalf("expected complete path")
	}
	if res.Value[0].Context.Location != start.Location || res.Value[len(res.Value)-1].Context.Location != goal.Location {
		t.Fatalf("path endpoints %v..%v", res.Value[0].Context.Location, res.Value[len(res.Value)-1].Context.Location)
	}
	assertLegal(t, prog, res.Value)

	seen := map[model.BlockLocation]bool{}
	for _, r := range res.Value {
		if seen[r.Context.Location] {
			t.Fatalf("cell %v repeated", r.Context.Location)
		}
		seen[r.Context.Location] = true
	}
}

func TestPathClimbsStep(t *testing.T) {
	w := flatWorld(t)
	// A raised terrace east of x=4.
	for x := 4; x < 16; x++ {
		for z := -16; z < 16; z++ {
			w.SetBlock(model.BlockLocation{X: x, Y: 5, Z: z}, terrain.BlockStone)
		}
	}
	start, goal := ctxAt(0, 5, 0), ctxAt(8, 6, 0)
	pf, prog := newFinder(t, w, start, goal, progress.DefaultTravelConfig())
	res, err := runToEnd(t, pf)
	if err != nil || !res.Complete {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	assertLegal(t, prog, res.Value)
	var ascents int
	for _, r := range res.Value {
		if r.Kind == progress.MoveAscend {
			ascents++
		}
	}
	if ascents != 1 {
		t.Fatalf("ascents=%d want 1", ascents)
	}
}

func TestWalledOffGoalIsUnreachable(t *testing.T) {
	w := flatWorld(t)
	for z := -16; z < 16; z++ {
		for y := 5; y <= 7; y++ {
			w.SetBlock(model.BlockLocation{X: 4, Y: y, Z: z}, terrain.BlockStone)
		}
	}
	pf, _ := newFinder(t, w, ctxAt(0, 5, 0), ctxAt(8, 5, 0), progress.DefaultTravelConfig())
	if _, err := runToEnd(t, pf); !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
	// Further steps keep reporting the same outcome.
	if _, err := pf.Step(); !errors.Is(err, ErrUnreachable) {
		t.Fatalf("repeat Step: %v", err)
	}
}

func TestStepPausesWithPartialPath(t *testing.T) {
	cfg := progress.DefaultTravelConfig()
	cfg.ExpansionsPerStep = 5
	start := ctxAt(-12, 5, 0)
	pf, prog := newFinder(t, flatWorld(t), start, ctxAt(12, 5, 0), cfg)

	res, err := pf.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if pf.Done() || res.Complete {
		t.Fatalf("search finished after 5 expansions")
	}
	if pf.Stats().Expansions != 5 {
		t.Fatalf("expansions=%d want 5", pf.Stats().Expansions)
	}
	if len(res.Value) < 2 || res.Value[0].Context.Location != start.Location {
		t.Fatalf("partial path %+v", res.Value)
	}
	assertLegal(t, prog, res.Value)

	final, err := runToEnd(t, pf)
	if err != nil || !final.Complete {
		t.Fatalf("resumed search: complete=%v err=%v", final.Complete, err)
	}
}

func TestExpansionCapMakesPartialFinal(t *testing.T) {
	cfg := progress.DefaultTravelConfig()
	cfg.ExpansionsPerStep = 4
	cfg.MaxExpansions = 8
	pf, _ := newFinder(t, flatWorld(t), ctxAt(-12, 5, 0), ctxAt(12, 5, 0), cfg)
	res, err := runToEnd(t, pf)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res.Complete {
		t.Fatalf("cap reached yet complete")
	}
	if pf.Stats().Expansions != 8 {
		t.Fatalf("expansions=%d want 8", pf.Stats().Expansions)
	}
}

func TestStartEqualsGoal(t *testing.T) {
	pf, _ := newFinder(t, flatWorld(t), ctxAt(1, 5, 1), ctxAt(1, 5, 1), progress.DefaultTravelConfig())
	res, err := pf.Step()
	if err != nil || !res.Complete || len(res.Value) != 1 {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	cfg := progress.DefaultTravelConfig()
	prog := progress.NewNoVehicleProgressor(progress.GlobalContext{Config: &cfg, World: flatWorld(t)})
	bad := cfg
	bad.ExpansionsPerStep = 0
	if _, err := New(prog, ctxAt(0, 5, 0), ctxAt(1, 5, 0), bad); !errors.Is(err, progress.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	neg := progress.MoveContext{Location: model.BlockLocation{}, BlocksCanPlace: -2}
	if _, err := New(prog, neg, ctxAt(1, 5, 0), cfg); !errors.Is(err, progress.ErrInvalidBudget) {
		t.Fatalf("expected ErrInvalidBudget, got %v", err)
	}
}
