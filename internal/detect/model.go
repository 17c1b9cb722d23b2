// Package detect builds per-pixel background models and extracts bey and
// collision candidates from single frames.
package detect

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/beysion/beytracker/internal/capture"
)

var (
	// ErrInsufficientSamples means calibration was handed fewer frames than
	// the configured minimum. The caller retries with a longer run.
	ErrInsufficientSamples = errors.New("not enough calibration samples")

	// ErrDimensionMismatch means a frame's dimensions disagree with the
	// model's. The offending frame is dropped; the process continues.
	ErrDimensionMismatch = errors.New("frame dimensions do not match model")
)

// BackgroundModel holds per-pixel statistics of the static arena. Immutable
// once built; recalibration replaces it wholesale.
type BackgroundModel struct {
	Mean   []float64
	Std    []float64
	Width  int
	Height int
}

// Calibrate computes a background model from N static frames: per-pixel mean
// and population standard deviation, with Std floored at stdFloor so the
// z-score division downstream can never blow up on a dead pixel.
func Calibrate(frames []capture.Frame, minSamples int, stdFloor float64) (*BackgroundModel, error) {
	if len(frames) < minSamples || len(frames) < 2 {
		return nil, ErrInsufficientSamples
	}

	w, h := frames[0].Width, frames[0].Height
	if w <= 0 || h <= 0 {
		return nil, ErrDimensionMismatch
	}
	n := w * h

	mean := make([]float64, n)
	sample := make([]float64, n)
	for _, f := range frames {
		if f.Width != w || f.Height != h || len(f.Pixels) != n {
			return nil, ErrDimensionMismatch
		}
		for i, p := range f.Pixels {
			sample[i] = float64(p)
		}
		floats.Add(mean, sample)
	}
	floats.Scale(1/float64(len(frames)), mean)

	variance := make([]float64, n)
	for _, f := range frames {
		for i, p := range f.Pixels {
			sample[i] = float64(p) - mean[i]
		}
		floats.Mul(sample, sample)
		floats.Add(variance, sample)
	}
	floats.Scale(1/float64(len(frames)), variance)

	std := variance
	for i := range std {
		std[i] = math.Sqrt(std[i])
		if std[i] < stdFloor {
			std[i] = stdFloor
		}
	}

	return &BackgroundModel{Mean: mean, Std: std, Width: w, Height: h}, nil
}
