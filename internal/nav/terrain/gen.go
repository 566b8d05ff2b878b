package terrain

import (
	"math"

	"github.com/aquilax/go-perlin"
)

// Generator produces deterministic height-map terrain. Used by the simulated
// world and by tests that need realistic hills.
type Generator struct {
	Seed       int64
	Height     int
	BaseHeight int
	Amplitude  float64
	Scale      float64 // blocks per noise unit
	SeaLevel   int

	// TreePermille is the chance per column of a 3-high log pillar.
	TreePermille int

	noise *perlin.Perlin
}

func NewGenerator(seed int64, height int) *Generator {
	g := &Generator{
		Seed:         seed,
		Height:       height,
		BaseHeight:   height / 3,
		Amplitude:    6,
		Scale:        48,
		SeaLevel:     height/3 - 3,
		TreePermille: 8,
	}
	g.noise = perlin.NewPerlin(2, 2, 3, seed)
	return g
}

// SurfaceHeight is the y of the topmost solid block in the column.
func (g *Generator) SurfaceHeight(x, z int) int {
	n := g.noise.Noise2D(float64(x)/g.Scale, float64(z)/g.Scale)
	h := g.BaseHeight + int(math.Round(n*g.Amplitude*2))
	if h < 1 {
		h = 1
	}
	if h > g.Height-4 {
		h = g.Height - 4
	}
	return h
}

func (g *Generator) Column(key ChunkKey) []uint16 {
	blocks := make([]uint16, ChunkSize*ChunkSize*g.Height)
	for z := 0; z < ChunkSize; z++ {
		for x := 0; x < ChunkSize; x++ {
			wx := key.CX*ChunkSize + x
			wz := key.CZ*ChunkSize + z
			top := g.SurfaceHeight(wx, wz)
			for y := 0; y <= top; y++ {
				var b uint16
				switch {
				case y == 0:
					b = BlockBedrock
				case y < top-3:
					b = BlockStone
				case y < top:
					b = BlockDirt
				case top <= g.SeaLevel:
					b = BlockSand
				default:
					b = BlockGrass
				}
				blocks[columnIndex(x, y, z)] = b
			}
			for y := top + 1; y <= g.SeaLevel && y < g.Height; y++ {
				blocks[columnIndex(x, y, z)] = BlockWater
			}
			if top > g.SeaLevel && int(hash2(g.Seed+7, wx, wz)%1000) < g.TreePermille {
				for y := top + 1; y <= top+3 && y < g.Height; y++ {
					blocks[columnIndex(x, y, z)] = BlockLog
				}
			}
		}
	}
	return blocks
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	return mix64(uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9))
}

// FlatColumn is a column of solid ground whose top solid block is at y=top.
func FlatColumn(height, top int) []uint16 {
	blocks := make([]uint16, ChunkSize*ChunkSize*height)
	for y := 0; y <= top && y < height; y++ {
		b := BlockStone
		if y == 0 {
			b = BlockBedrock
		}
		for z := 0; z < ChunkSize; z++ {
			for x := 0; x < ChunkSize; x++ {
				blocks[columnIndex(x, y, z)] = b
			}
		}
	}
	return blocks
}
