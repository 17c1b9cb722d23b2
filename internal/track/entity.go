// Package track maintains stable bey identities across frames: greedy
// nearest-neighbor matching against recent history, monotonic IDs that are
// never reused, and collision deduplication by ID pair.
package track

// Velocity and acceleration smoothing weight: 5% of the instantaneous value,
// 95% carried over. Matches the tuning the renderer expects.
const smoothing = 0.05

// Entity is one stable bey identity. Positions are pixels, velocities pixels
// per frame.
type Entity struct {
	ID   int64
	X, Y int
	W, H int

	// Smoothed and raw velocity, smoothed acceleration. Derived every
	// matched frame; carried for downstream consumers, not used by the
	// matcher itself.
	VX, VY       float64
	RawVX, RawVY float64
	AX, AY       float64

	// LastSeen is the frame index of the most recent match. Misses counts
	// consecutive frames without one.
	LastSeen int64
	Misses   int
}

// step moves the entity to a new observation, deriving smoothed velocity and
// acceleration from the previous state.
func (e *Entity) step(x, y, w, h int, frame int64) {
	dt := float64(frame - e.LastSeen)
	if dt <= 0 {
		dt = 1
	}

	rawVX := (float64(x) - float64(e.X)) / dt
	rawVY := (float64(y) - float64(e.Y)) / dt

	ax := (rawVX - e.RawVX) / dt
	ay := (rawVY - e.RawVY) / dt

	e.VX = smoothing*rawVX + (1-smoothing)*e.VX
	e.VY = smoothing*rawVY + (1-smoothing)*e.VY
	e.AX = smoothing*ax + (1-smoothing)*e.AX
	e.AY = smoothing*ay + (1-smoothing)*e.AY
	e.RawVX, e.RawVY = rawVX, rawVY

	e.X, e.Y = x, y
	e.W, e.H = w, h
	e.LastSeen = frame
	e.Misses = 0
}

// Predict extrapolates the position 10 frames ahead from the smoothed
// velocity and acceleration.
func (e *Entity) Predict() (int, int) {
	const t = 10.0
	x := float64(e.X) + e.VX*t + 0.5*e.AX*t*t
	y := float64(e.Y) + e.VY*t + 0.5*e.AY*t*t
	return int(x), int(y)
}
