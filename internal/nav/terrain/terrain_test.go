package terrain

import (
	"testing"

	"voxelnav.ai/internal/nav/model"
)

func TestChunkStore_UnknownUntilLoaded(t *testing.T) {
	s := NewChunkStore(32, nil)
	p := model.BlockLocation{X: -3, Y: 5, Z: 20}
	if got := s.BlockAt(p); got != Unknown {
		t.Fatalf("unloaded BlockAt=%v", got)
	}
	key := ChunkOf(p)
	if key != (ChunkKey{CX: -1, CZ: 1}) {
		t.Fatalf("ChunkOf=%v", key)
	}
	if err := s.SetColumn(key, FlatColumn(32, 4)); err != nil {
		t.Fatalf("SetColumn: %v", err)
	}
	if got := s.BlockAt(p); got != Air {
		t.Fatalf("loaded air BlockAt=%v", got)
	}
	if got := s.BlockAt(p.Add(0, -1, 0)); got != Solid {
		t.Fatalf("ground BlockAt=%v", got)
	}
	if got := s.BlockAt(model.BlockLocation{X: 100, Y: -1, Z: 100}); got != Solid {
		t.Fatalf("below world should be bedrock, got %v", got)
	}
	if got := s.BlockAt(model.BlockLocation{X: 100, Y: 32, Z: 100}); got != Air {
		t.Fatalf("above world should be air, got %v", got)
	}
}

func TestChunkStore_SetColumnRejectsWrongSize(t *testing.T) {
	s := NewChunkStore(8, nil)
	if err := s.SetColumn(ChunkKey{}, make([]uint16, 10)); err == nil {
		t.Fatalf("expected size error")
	}
}

func TestChunkStore_SetBlockAndSurface(t *testing.T) {
	s := NewChunkStore(16, nil)
	_ = s.SetColumn(ChunkKey{}, FlatColumn(16, 2))
	if got := s.SurfaceY(3, 3, 0); got != 3 {
		t.Fatalf("SurfaceY=%d", got)
	}
	if !s.SetBlock(model.BlockLocation{X: 3, Y: 3, Z: 3}, BlockLava) {
		t.Fatalf("SetBlock on loaded column failed")
	}
	if got := s.BlockAt(model.BlockLocation{X: 3, Y: 3, Z: 3}); got != Hazard {
		t.Fatalf("lava kind=%v", got)
	}
	if s.SetBlock(model.BlockLocation{X: 40, Y: 3, Z: 3}, BlockStone) {
		t.Fatalf("SetBlock on unloaded column should be dropped")
	}
	keys := s.LoadedKeys()
	if len(keys) != 1 || keys[0] != (ChunkKey{}) {
		t.Fatalf("LoadedKeys=%v", keys)
	}
}

func TestColumnCodec_RoundTrip(t *testing.T) {
	in := FlatColumn(8, 3)
	in[5] = BlockWater
	enc := EncodeColumn(in)
	out, err := DecodeColumn(enc, len(in))
	if err != nil {
		t.Fatalf("DecodeColumn: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, out[i], in[i])
		}
	}
	if _, err := DecodeColumn(enc, len(in)-1); err == nil {
		t.Fatalf("expected overflow error")
	}
	if _, err := DecodeColumn(enc, len(in)+1); err == nil {
		t.Fatalf("expected short column error")
	}
}

func TestGenerator_Deterministic(t *testing.T) {
	a := NewGenerator(1337, 48).Column(ChunkKey{CX: 2, CZ: -1})
	b := NewGenerator(1337, 48).Column(ChunkKey{CX: 2, CZ: -1})
	if len(a) != ChunkSize*ChunkSize*48 {
		t.Fatalf("len=%d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("generator not deterministic at %d", i)
		}
	}
	if a[columnIndex(0, 0, 0)] != BlockBedrock {
		t.Fatalf("y=0 should be bedrock")
	}
}
