// Package capture acquires grayscale frames from a camera device and exposes
// them to the pipeline with newest-wins semantics.
package capture

import "time"

// Frame is an immutable grayscale snapshot. Pixels is row-major, one byte per
// pixel. Consumers must not mutate Pixels and must not retain a Frame beyond
// the cycle that received it.
type Frame struct {
	Pixels    []uint8
	Width     int
	Height    int
	Index     int64
	Timestamp time.Time
}

// At returns the pixel value at (x, y). No bounds checking.
func (f Frame) At(x, y int) uint8 {
	return f.Pixels[y*f.Width+x]
}

// Empty reports whether the frame carries no pixel data.
func (f Frame) Empty() bool {
	return len(f.Pixels) == 0 || f.Width <= 0 || f.Height <= 0
}
