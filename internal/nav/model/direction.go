package model

import "math"

// Direction is a look angle in degrees. Yaw 0 faces +Z and grows toward -X;
// positive pitch looks down.
type Direction struct {
	Yaw   float64
	Pitch float64
}

// DirectionOf points along d. A zero displacement yields NaN angles, so callers
// must reject near-zero vectors first.
func DirectionOf(d Displacement) Direction {
	horiz := math.Sqrt(d.DX*d.DX + d.DZ*d.DZ)
	yaw := -math.Atan2(d.DX, d.DZ) * 180 / math.Pi
	pitch := -math.Atan2(d.DY, horiz) * 180 / math.Pi
	return Direction{Yaw: yaw, Pitch: pitch}
}

// Unit is the horizontal unit vector for the yaw.
func (d Direction) Unit() Displacement {
	rad := d.Yaw * math.Pi / 180
	return Displacement{DX: -math.Sin(rad), DZ: math.Cos(rad)}
}

type Speed int

const (
	SpeedStop Speed = iota
	SpeedWalk
	SpeedSprint
)

func (s Speed) String() string {
	switch s {
	case SpeedWalk:
		return "WALK"
	case SpeedSprint:
		return "SPRINT"
	default:
		return "STOP"
	}
}

func ParseSpeed(s string) Speed {
	switch s {
	case "WALK":
		return SpeedWalk
	case "SPRINT":
		return SpeedSprint
	default:
		return SpeedStop
	}
}

// BlocksPerTick is the horizontal distance covered in one tick at 20Hz.
func (s Speed) BlocksPerTick() float64 {
	switch s {
	case SpeedWalk:
		return 0.216
	case SpeedSprint:
		return 0.28
	default:
		return 0
	}
}

// Controls is the input state an agent holds for one tick.
type Controls struct {
	Yaw     float64
	Pitch   float64
	Forward bool
	Jump    bool
	Speed   Speed
}
