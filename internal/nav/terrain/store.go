package terrain

import (
	"fmt"
	"sort"

	"voxelnav.ai/internal/nav/model"
)

const ChunkSize = 16

type ChunkKey struct {
	CX int
	CZ int
}

func ChunkOf(p model.BlockLocation) ChunkKey {
	return ChunkKey{CX: FloorDiv(p.X, ChunkSize), CZ: FloorDiv(p.Z, ChunkSize)}
}

// Column is a full-height stack of 16x16 cells.
type Column struct {
	Key    ChunkKey
	Blocks []uint16 // len = 16*16*height, index = (y*16+z)*16+x
}

func columnIndex(x, y, z int) int {
	return (y*ChunkSize+z)*ChunkSize + x
}

// ChunkStore holds the columns the agent has seen. It is owned by the tick
// loop; a search reads it synchronously between chunk updates.
type ChunkStore struct {
	height  int
	palette Palette
	columns map[ChunkKey]*Column
}

func NewChunkStore(height int, palette Palette) *ChunkStore {
	if palette == nil {
		palette = DefaultPalette()
	}
	return &ChunkStore{
		height:  height,
		palette: palette,
		columns: map[ChunkKey]*Column{},
	}
}

func (s *ChunkStore) Height() int { return s.height }

func (s *ChunkStore) ColumnLen() int { return ChunkSize * ChunkSize * s.height }

// SetColumn replaces a column. The slice is retained.
func (s *ChunkStore) SetColumn(key ChunkKey, blocks []uint16) error {
	if len(blocks) != s.ColumnLen() {
		return fmt.Errorf("column %v: got %d blocks, want %d", key, len(blocks), s.ColumnLen())
	}
	s.columns[key] = &Column{Key: key, Blocks: blocks}
	return nil
}

func (s *ChunkStore) Column(key ChunkKey) (*Column, bool) {
	c, ok := s.columns[key]
	return c, ok
}

func (s *ChunkStore) Loaded(key ChunkKey) bool {
	_, ok := s.columns[key]
	return ok
}

func (s *ChunkStore) Len() int { return len(s.columns) }

func (s *ChunkStore) LoadedKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.columns))
	for k := range s.columns {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

// Block returns the wire id at p and whether the containing column is loaded.
// Below the world it reports bedrock, above it air.
func (s *ChunkStore) Block(p model.BlockLocation) (uint16, bool) {
	if p.Y < 0 {
		return BlockBedrock, true
	}
	if p.Y >= s.height {
		return BlockAir, true
	}
	c, ok := s.columns[ChunkOf(p)]
	if !ok {
		return 0, false
	}
	return c.Blocks[columnIndex(Mod(p.X, ChunkSize), p.Y, Mod(p.Z, ChunkSize))], true
}

// SetBlock updates a loaded cell. Writes to unloaded columns or outside the
// vertical range are dropped.
func (s *ChunkStore) SetBlock(p model.BlockLocation, id uint16) bool {
	if p.Y < 0 || p.Y >= s.height {
		return false
	}
	c, ok := s.columns[ChunkOf(p)]
	if !ok {
		return false
	}
	c.Blocks[columnIndex(Mod(p.X, ChunkSize), p.Y, Mod(p.Z, ChunkSize))] = id
	return true
}

func (s *ChunkStore) BlockAt(p model.BlockLocation) BlockKind {
	id, ok := s.Block(p)
	if !ok {
		return Unknown
	}
	return s.palette.Kind(id)
}

// SurfaceY is the lowest y at or above from where the agent could stand in
// the column at (x, z), or -1 if none is known.
func (s *ChunkStore) SurfaceY(x, z, from int) int {
	if from < 0 {
		from = 0
	}
	for y := from; y < s.height; y++ {
		p := model.BlockLocation{X: x, Y: y, Z: z}
		if s.BlockAt(p).Passable() && s.BlockAt(p.Above()).Passable() && s.BlockAt(p.Below()).Standable() {
			return y
		}
	}
	return -1
}

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	if a%b < 0 {
		q--
	}
	return q
}

func Mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
