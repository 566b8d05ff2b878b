package model

import (
	"math"
	"testing"
)

func TestLocation_BlockFloorsNegatives(t *testing.T) {
	got := Location{X: -0.5, Y: 3.99, Z: 2.0}.Block()
	if got != (BlockLocation{X: -1, Y: 3, Z: 2}) {
		t.Fatalf("Block()=%v", got)
	}
}

func TestLocation_CenterBottom(t *testing.T) {
	got := Location{X: 4.9, Y: 7.3, Z: -2.1}.CenterBottom()
	want := Location{X: 4.5, Y: 7, Z: -2.5}
	if got != want {
		t.Fatalf("CenterBottom()=%v want %v", got, want)
	}
}

func TestDisplacement_HorizontalMag2(t *testing.T) {
	d := Location{X: 3, Y: 10, Z: 4}.Sub(Location{})
	if got := d.Horizontal().Mag2(); got != 25 {
		t.Fatalf("horizontal mag2=%v", got)
	}
	if got := d.Mag2(); got != 125 {
		t.Fatalf("mag2=%v", got)
	}
}

func TestDirectionOf_RoundTripsYaw(t *testing.T) {
	for _, d := range []Displacement{{DX: 1}, {DZ: 1}, {DX: -1, DZ: -1}, {DX: 0.3, DY: 1, DZ: -2}} {
		u := DirectionOf(d).Unit()
		h := math.Sqrt(d.DX*d.DX + d.DZ*d.DZ)
		if math.Abs(u.DX-d.DX/h) > 1e-9 || math.Abs(u.DZ-d.DZ/h) > 1e-9 {
			t.Fatalf("unit %+v does not match %+v", u, d)
		}
	}
	if p := DirectionOf(Displacement{DY: 1, DZ: 1}).Pitch; p >= 0 {
		t.Fatalf("looking up should have negative pitch, got %v", p)
	}
}

func TestSpeed_ParseString(t *testing.T) {
	for _, s := range []Speed{SpeedStop, SpeedWalk, SpeedSprint} {
		if got := ParseSpeed(s.String()); got != s {
			t.Fatalf("ParseSpeed(%q)=%v", s.String(), got)
		}
	}
}
