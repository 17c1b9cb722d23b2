package detect

import "sync/atomic"

// Params are the runtime-adjustable detection knobs. A Params value is read
// once per cycle as an immutable snapshot, so a mid-cycle adjustment from the
// command channel takes effect on the next frame, never partially.
type Params struct {
	// Threshold is the z-score above which a pixel counts as foreground.
	Threshold float64
	// ThresholdStep is applied by the threshold_up/threshold_down commands.
	ThresholdStep float64
	// MinArea and MaxArea classify contours by bounding-box area.
	MinArea int
	MaxArea int
	// HitDistance is the centroid distance below which two beys collide.
	HitDistance float64
}

// DefaultParams returns the tuned defaults.
func DefaultParams() Params {
	return Params{
		Threshold:     15,
		ThresholdStep: 1,
		MinArea:       100,
		MaxArea:       2000,
		HitDistance:   40,
	}
}

// Settings publishes Params snapshots from the command listener to the
// detection cycle. Single writer, any number of readers, no locks held
// across a cycle.
type Settings struct {
	p atomic.Pointer[Params]
}

// NewSettings seeds the holder with an initial snapshot.
func NewSettings(p Params) *Settings {
	s := &Settings{}
	s.p.Store(&p)
	return s
}

// Load returns the current snapshot by value.
func (s *Settings) Load() Params {
	return *s.p.Load()
}

// Store replaces the snapshot wholesale.
func (s *Settings) Store(p Params) {
	s.p.Store(&p)
}

// StepThreshold adjusts the threshold by delta steps and returns the new
// value. direction is +1 or -1.
func (s *Settings) StepThreshold(direction float64) float64 {
	for {
		old := s.p.Load()
		next := *old
		next.Threshold += direction * next.ThresholdStep
		if s.p.CompareAndSwap(old, &next) {
			return next.Threshold
		}
	}
}
