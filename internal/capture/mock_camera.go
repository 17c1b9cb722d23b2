package capture

import (
	"fmt"
	"sync"
	"time"
)

// MockCamera plays back a pre-built frame sequence for testing and dev mode.
// A non-zero Interval paces Read like a real sensor would.
type MockCamera struct {
	Interval time.Duration

	frames  []Frame
	index   int
	loop    bool
	mu      sync.Mutex
	running bool
}

func NewMockCamera(frames []Frame, loop bool) *MockCamera {
	return &MockCamera{
		frames: frames,
		loop:   loop,
	}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.index = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

func (c *MockCamera) Read() (Frame, error) {
	if c.Interval > 0 {
		time.Sleep(c.Interval)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return Frame{}, ErrCameraNotOpen
	}
	if len(c.frames) == 0 {
		return Frame{}, fmt.Errorf("no frames available")
	}

	if c.index >= len(c.frames) {
		if c.loop {
			c.index = 0
		} else {
			return Frame{}, fmt.Errorf("no more frames")
		}
	}

	frame := c.frames[c.index]
	c.index++
	return frame, nil
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// SetFrames replaces the frame sequence.
func (c *MockCamera) SetFrames(frames []Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.index = 0
}

// Reset restarts playback from the beginning.
func (c *MockCamera) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
}
