package model

import (
	"fmt"
	"math"
)

// Location is a continuous position in world space. Y is the height of the feet.
type Location struct {
	X float64
	Y float64
	Z float64
}

// BlockLocation identifies one terrain cell.
type BlockLocation struct {
	X int
	Y int
	Z int
}

type Displacement struct {
	DX float64
	DY float64
	DZ float64
}

func (l Location) Sub(o Location) Displacement {
	return Displacement{DX: l.X - o.X, DY: l.Y - o.Y, DZ: l.Z - o.Z}
}

func (l Location) Add(d Displacement) Location {
	return Location{X: l.X + d.DX, Y: l.Y + d.DY, Z: l.Z + d.DZ}
}

// Block truncates toward negative infinity, so -0.5 lands in cell -1.
func (l Location) Block() BlockLocation {
	return BlockLocation{
		X: int(math.Floor(l.X)),
		Y: int(math.Floor(l.Y)),
		Z: int(math.Floor(l.Z)),
	}
}

// CenterBottom is the horizontal center of the containing cell at its floor.
func (l Location) CenterBottom() Location {
	return l.Block().Center()
}

func (l Location) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", l.X, l.Y, l.Z)
}

func (b BlockLocation) Add(dx, dy, dz int) BlockLocation {
	return BlockLocation{X: b.X + dx, Y: b.Y + dy, Z: b.Z + dz}
}

func (b BlockLocation) Above() BlockLocation { return b.Add(0, 1, 0) }
func (b BlockLocation) Below() BlockLocation { return b.Add(0, -1, 0) }

func (b BlockLocation) Center() Location {
	return Location{X: float64(b.X) + 0.5, Y: float64(b.Y), Z: float64(b.Z) + 0.5}
}

// Dist is the straight-line distance between two cells.
func (b BlockLocation) Dist(o BlockLocation) float64 {
	dx := float64(b.X - o.X)
	dy := float64(b.Y - o.Y)
	dz := float64(b.Z - o.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (b BlockLocation) String() string {
	return fmt.Sprintf("[%d, %d, %d]", b.X, b.Y, b.Z)
}

func (d Displacement) Mag2() float64 {
	return d.DX*d.DX + d.DY*d.DY + d.DZ*d.DZ
}

// Horizontal drops the vertical component.
func (d Displacement) Horizontal() Displacement {
	return Displacement{DX: d.DX, DZ: d.DZ}
}
