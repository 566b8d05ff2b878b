package body

import (
	"math"
	"testing"

	"voxelnav.ai/internal/nav/model"
	"voxelnav.ai/internal/nav/terrain"
)

func flat(t *testing.T) *terrain.ChunkStore {
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

func east() model.Controls {
	return model.Controls{Yaw: -90, Forward: true, Speed: model.SpeedSprint}
}

func TestStandsOnGround(t *testing.T) {
	w := flat(t)
	b := New(model.Location{X: 0.5, Y: 5, Z: 0.5})
	for i := 0; i < 10; i++ {
		b.Step(w, model.Controls{})
	}
	if b.Pos.Y != 5 || !b.OnGround {
		t.Fatalf("pos=%v onGround=%v", b.Pos, b.OnGround)
	}
}

func TestFallsAndLands(t *testing.T) {
	w := flat(t)
	b := New(model.Location{X: 0.5, Y: 9, Z: 0.5})
	for i := 0; i < 40; i++ {
		b.Step(w, model.Controls{})
	}
	if b.Pos.Y != 5 || !b.OnGround || b.Dead {
		t.Fatalf("pos=%v onGround=%v dead=%v", b.Pos, b.OnGround, b.Dead)
	}
}

func TestSprintCoversDistance(t *testing.T) {
	w := flat(t)
	b := New(model.Location{X: 0.5, Y: 5, Z: 0.5})
	b.Step(w, model.Controls{})
	for i := 0; i < 10; i++ {
		b.Step(w, east())
	}
	if math.Abs(b.Pos.X-(0.5+2.8)) > 1e-9 || math.Abs(b.Pos.Z-0.5) > 1e-9 {
		t.Fatalf("pos=%v", b.Pos)
	}
}

func TestWallStopsBody(t *testing.T) {
	w := flat(t)
	for y := 5; y <= 7; y++ {
		w.SetBlock(model.BlockLocation{X: 2, Y: y, Z: 0}, terrain.BlockStone)
	}
	b := New(model.Location{X: 0.5, Y: 5, Z: 0.5})
	for i := 0; i < 30; i++ {
		b.Step(w, east())
	}
	if b.Pos.X+HalfWidth > 2 {
		t.Fatalf("body entered the wall: %v", b.Pos)
	}
}

func TestJumpClimbsOneBlock(t *testing.T) {
	w := flat(t)
	w.SetBlock(model.BlockLocation{X: 1, Y: 5, Z: 0}, terrain.BlockStone)
	b := New(model.Location{X: 0.5, Y: 5, Z: 0.5})
	b.Step(w, model.Controls{})
	for i := 0; i < 20; i++ {
		c := east()
		c.Jump = true
		b.Step(w, c)
		if b.Pos.X > 1.5 {
			break
		}
	}
	for i := 0; i < 20 && !b.OnGround; i++ {
		b.Step(w, model.Controls{Yaw: -90})
	}
	if b.Pos.Y != 6 || b.Pos.X < 1 {
		t.Fatalf("did not climb: %v", b.Pos)
	}
}

func TestHazardKills(t *testing.T) {
	w := flat(t)
	w.SetBlock(model.BlockLocation{X: 1, Y: 5, Z: 0}, terrain.BlockLava)
	b := New(model.Location{X: 0.5, Y: 5, Z: 0.5})
	for i := 0; i < 10 && !b.Dead; i++ {
		b.Step(w, east())
	}
	if !b.Dead {
		t.Fatalf("walked through lava at %v", b.Pos)
	}
	before := b.Pos
	b.Step(w, east())
	if b.Pos != before {
		t.Fatalf("dead body moved")
	}
	b.Respawn(model.Location{X: 0.5, Y: 5, Z: 0.5})
	if b.Dead {
		t.Fatalf("respawn did not revive")
	}
}

func TestLethalFall(t *testing.T) {
	w := flat(t)
	b := New(model.Location{X: 0.5, Y: 5 + LethalFall + 1, Z: 0.5})
	for i := 0; i < 80 && !b.OnGround; i++ {
		b.Step(w, model.Controls{})
	}
	if !b.Dead {
		t.Fatalf("survived a %v block fall", LethalFall+1)
	}
}
