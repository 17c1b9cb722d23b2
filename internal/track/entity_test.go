package track

import (
	"math"
	"testing"
)

func TestEntityStepSmoothing(t *testing.T) {
	e := &Entity{ID: 1, X: 200, Y: 200, LastSeen: 1}

	e.step(205, 202, 10, 10, 2)

	if e.X != 205 || e.Y != 202 {
		t.Errorf("position = (%d,%d), want (205,202)", e.X, e.Y)
	}
	if e.RawVX != 5 || e.RawVY != 2 {
		t.Errorf("raw velocity = (%v,%v), want (5,2)", e.RawVX, e.RawVY)
	}
	if math.Abs(e.VX-0.25) > 1e-9 || math.Abs(e.VY-0.1) > 1e-9 {
		t.Errorf("smoothed velocity = (%v,%v), want (0.25,0.1)", e.VX, e.VY)
	}
	if e.Misses != 0 {
		t.Errorf("Misses = %d, want 0", e.Misses)
	}
	if e.LastSeen != 2 {
		t.Errorf("LastSeen = %d, want 2", e.LastSeen)
	}
}

func TestEntityStepGapFrames(t *testing.T) {
	e := &Entity{ID: 1, X: 100, Y: 100, LastSeen: 1}

	// Two frames between observations: velocity is per frame, not per match.
	e.step(110, 100, 10, 10, 3)

	if e.RawVX != 5 {
		t.Errorf("RawVX = %v, want 5 over dt=2", e.RawVX)
	}
}

func TestEntityPredict(t *testing.T) {
	e := &Entity{ID: 1, X: 100, Y: 50, VX: 2, VY: -1}

	x, y := e.Predict()
	if x != 120 || y != 40 {
		t.Errorf("Predict = (%d,%d), want (120,40)", x, y)
	}
}
