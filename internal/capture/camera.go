package capture

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultWidth  = 640
	DefaultHeight = 360
)

// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// Camera defines the interface for frame capture implementations.
type Camera interface {
	Open() error
	Close() error
	// Read grabs one frame, converted to grayscale and cropped to the
	// configured region of interest. Index and Timestamp are left zero; the
	// Source stamps them on delivery.
	Read() (Frame, error)
	IsOpen() bool
}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	deviceID int
	crop     image.Rectangle
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
}

// NewCamera creates a Camera for the given device ID. crop bounds the region
// of interest; an empty rectangle disables cropping.
func NewCamera(deviceID int, crop image.Rectangle) Camera {
	return &cameraImpl{
		deviceID: deviceID,
		crop:     crop,
	}
}

// Open opens the camera for capturing frames.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", c.deviceID, err)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// Read reads a single frame from the camera.
func (c *cameraImpl) Read() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return Frame{}, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	defer mat.Close()

	if ok := c.capture.Read(&mat); !ok {
		return Frame{}, errors.New("failed to read frame from camera")
	}
	if mat.Empty() {
		return Frame{}, errors.New("captured frame is empty")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if mat.Channels() > 1 {
		gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
	} else {
		mat.CopyTo(&gray)
	}

	roi := gray
	if !c.crop.Empty() {
		bounds := c.crop.Intersect(image.Rect(0, 0, gray.Cols(), gray.Rows()))
		if bounds.Empty() {
			return Frame{}, fmt.Errorf("crop region %v outside frame %dx%d", c.crop, gray.Cols(), gray.Rows())
		}
		region := gray.Region(bounds)
		defer region.Close()
		// Region shares storage and is not contiguous; clone before export.
		roi = region.Clone()
		defer roi.Close()
	}

	data := roi.ToBytes()
	pixels := make([]uint8, len(data))
	copy(pixels, data)

	return Frame{
		Pixels: pixels,
		Width:  roi.Cols(),
		Height: roi.Rows(),
	}, nil
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
