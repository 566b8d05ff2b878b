package terrain

import "voxelnav.ai/internal/nav/model"

// BlockKind is what the movement model needs to know about a cell.
type BlockKind uint8

const (
	Unknown BlockKind = iota
	Air
	Solid
	Water
	Hazard
)

func (k BlockKind) String() string {
	switch k {
	case Air:
		return "AIR"
	case Solid:
		return "SOLID"
	case Water:
		return "WATER"
	case Hazard:
		return "HAZARD"
	default:
		return "UNKNOWN"
	}
}

// Passable reports whether the agent's body may occupy the cell.
func (k BlockKind) Passable() bool { return k == Air || k == Water }

// Standable reports whether the cell supports the agent from below.
func (k BlockKind) Standable() bool { return k == Solid }

// Query is the read-only terrain surface used during a search.
// Implementations must not block; cells in unloaded regions report Unknown.
type Query interface {
	BlockAt(p model.BlockLocation) BlockKind
}

// Wire block ids.
const (
	BlockAir     uint16 = 0
	BlockStone   uint16 = 1
	BlockDirt    uint16 = 2
	BlockGrass   uint16 = 3
	BlockSand    uint16 = 4
	BlockWater   uint16 = 5
	BlockLava    uint16 = 6
	BlockLog     uint16 = 7
	BlockLeaves  uint16 = 8
	BlockBedrock uint16 = 9
	BlockPlanks  uint16 = 10
)

// Palette maps wire block ids to kinds. Ids missing from the palette are Solid.
type Palette map[uint16]BlockKind

func DefaultPalette() Palette {
	return Palette{
		BlockAir:     Air,
		BlockStone:   Solid,
		BlockDirt:    Solid,
		BlockGrass:   Solid,
		BlockSand:    Solid,
		BlockWater:   Water,
		BlockLava:    Hazard,
		BlockLog:     Solid,
		BlockLeaves:  Solid,
		BlockBedrock: Solid,
		BlockPlanks:  Solid,
	}
}

func (p Palette) Kind(id uint16) BlockKind {
	if k, ok := p[id]; ok {
		return k
	}
	return Solid
}
