package body

import (
	"math"

	"voxelnav.ai/internal/nav/model"
	"voxelnav.ai/internal/nav/terrain"
)

const (
	HalfWidth = 0.3
	Height    = 1.8

	JumpVelocity     = 0.42
	Gravity          = 0.08
	Drag             = 0.98
	TerminalVelocity = 3.92

	// LethalFall is the fall height (blocks) that kills.
	LethalFall = 12.0

	eps = 1e-6
)

// Body is a kinematic agent: an axis-aligned box moved one tick at a time
// with per-axis collision against solid cells.
type Body struct {
	Pos      model.Location
	VY       float64
	Yaw      float64
	Pitch    float64
	OnGround bool
	Dead     bool

	fallFrom float64
}

func New(pos model.Location) *Body {
	return &Body{Pos: pos, fallFrom: pos.Y}
}

// blocking reports whether a cell stops movement. Unknown cells block so a
// body never walks into space the world has not generated.
func blocking(k terrain.BlockKind) bool {
	return k == terrain.Solid || k == terrain.Unknown
}

func (b *Body) collides(w terrain.Query, p model.Location) bool {
	x0, x1 := int(math.Floor(p.X-HalfWidth)), int(math.Floor(p.X+HalfWidth-eps))
	y0, y1 := int(math.Floor(p.Y)), int(math.Floor(p.Y+Height-eps))
	z0, z1 := int(math.Floor(p.Z-HalfWidth)), int(math.Floor(p.Z+HalfWidth-eps))
	for y := y0; y <= y1; y++ {
		for z := z0; z <= z1; z++ {
			for x := x0; x <= x1; x++ {
				if blocking(w.BlockAt(model.BlockLocation{X: x, Y: y, Z: z})) {
					return true
				}
			}
		}
	}
	return false
}

func (b *Body) touches(w terrain.Query, kind terrain.BlockKind) bool {
	p := b.Pos
	x0, x1 := int(math.Floor(p.X-HalfWidth)), int(math.Floor(p.X+HalfWidth-eps))
	y0, y1 := int(math.Floor(p.Y)), int(math.Floor(p.Y+Height-eps))
	z0, z1 := int(math.Floor(p.Z-HalfWidth)), int(math.Floor(p.Z+HalfWidth-eps))
	for y := y0; y <= y1; y++ {
		for z := z0; z <= z1; z++ {
			for x := x0; x <= x1; x++ {
				if w.BlockAt(model.BlockLocation{X: x, Y: y, Z: z}) == kind {
					return true
				}
			}
		}
	}
	return false
}

// Step applies one tick of controls. Dead bodies do not move.
func (b *Body) Step(w terrain.Query, c model.Controls) {
	if b.Dead {
		return
	}
	b.Yaw, b.Pitch = c.Yaw, c.Pitch

	if c.Jump && b.OnGround {
		b.VY = JumpVelocity
		b.OnGround = false
	}

	if c.Forward {
		u := model.Direction{Yaw: c.Yaw}.Unit()
		speed := c.Speed.BlocksPerTick()
		if nx := b.Pos.Add(model.Displacement{DX: u.DX * speed}); !b.collides(w, nx) {
			b.Pos = nx
		}
		if nz := b.Pos.Add(model.Displacement{DZ: u.DZ * speed}); !b.collides(w, nz) {
			b.Pos = nz
		}
	}

	wasOnGround := b.OnGround
	next := b.Pos.Add(model.Displacement{DY: b.VY})
	switch {
	case !b.collides(w, next):
		b.Pos = next
	case b.VY < 0:
		b.Pos.Y = math.Ceil(next.Y - eps)
		b.VY = 0
	default:
		b.Pos.Y = math.Floor(next.Y+Height) - Height
		b.VY = 0
	}
	b.OnGround = b.VY <= 0 && b.collides(w, b.Pos.Add(model.Displacement{DY: -0.01}))
	if b.OnGround {
		b.VY = 0
	} else {
		b.VY = (b.VY - Gravity) * Drag
		if b.VY < -TerminalVelocity {
			b.VY = -TerminalVelocity
		}
	}

	switch {
	case !b.OnGround:
		b.fallFrom = math.Max(b.Pos.Y, b.fallFrom)
	case !wasOnGround:
		if b.fallFrom-b.Pos.Y >= LethalFall {
			b.Dead = true
		}
		b.fallFrom = b.Pos.Y
	default:
		b.fallFrom = b.Pos.Y
	}
	if b.touches(w, terrain.Hazard) {
		b.Dead = true
	}
}

// Respawn revives the body at pos.
func (b *Body) Respawn(pos model.Location) {
	*b = Body{Pos: pos, fallFrom: pos.Y}
}
