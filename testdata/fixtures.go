// Package testdata builds synthetic infrared frames for tests: a flat arena
// background with bright rectangular blobs standing in for beys.
package testdata

import "github.com/beysion/beytracker/internal/capture"

// FlatFrame returns a w x h frame filled with the background value.
func FlatFrame(w, h int, background uint8) capture.Frame {
	pixels := make([]uint8, w*h)
	for i := range pixels {
		pixels[i] = background
	}
	return capture.Frame{Pixels: pixels, Width: w, Height: h}
}

// WithBlob returns a copy of frame with a bw x bh bright rectangle centered
// at (cx, cy). Blobs are clipped at the frame edges.
func WithBlob(frame capture.Frame, cx, cy, bw, bh int, value uint8) capture.Frame {
	pixels := make([]uint8, len(frame.Pixels))
	copy(pixels, frame.Pixels)
	out := capture.Frame{
		Pixels: pixels,
		Width:  frame.Width,
		Height: frame.Height,
		Index:  frame.Index,
	}

	x0, y0 := cx-bw/2, cy-bh/2
	for y := y0; y < y0+bh; y++ {
		if y < 0 || y >= out.Height {
			continue
		}
		for x := x0; x < x0+bw; x++ {
			if x < 0 || x >= out.Width {
				continue
			}
			out.Pixels[y*out.Width+x] = value
		}
	}
	return out
}

// CalibrationRun returns n identical flat frames, the shortest useful stand-in
// for a static-arena calibration sweep.
func CalibrationRun(n, w, h int, background uint8) []capture.Frame {
	frames := make([]capture.Frame, n)
	for i := range frames {
		frames[i] = FlatFrame(w, h, background)
		frames[i].Index = int64(i)
	}
	return frames
}
