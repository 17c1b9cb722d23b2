// Package config defines the runtime configuration for the beytracker pipeline.
package config

import "time"

// Config holds every tunable the pipeline reads. Fields changed at runtime
// (threshold, area bounds) are copied into detect.Params snapshots; everything
// else is fixed after startup.
type Config struct {
	// CameraID selects the capture device.
	CameraID int `koanf:"camera_id"`

	// DevMode replaces the hardware camera with a synthetic source so the
	// pipeline can run without the sensor attached.
	DevMode bool `koanf:"dev_mode"`

	// Crop bounds the region of interest inside the raw frame, as pixel
	// coordinates of the top-left and bottom-right corners.
	CropX1 int `koanf:"crop_x1"`
	CropY1 int `koanf:"crop_y1"`
	CropX2 int `koanf:"crop_x2"`
	CropY2 int `koanf:"crop_y2"`

	// FPS is the target cycle rate. The frame budget is 1/FPS.
	FPS int `koanf:"fps"`

	// WarmupFrames are read and discarded after the camera opens, before
	// calibration, while exposure settles.
	WarmupFrames int `koanf:"warmup_frames"`

	// CalibrationSamples is the number of frames averaged into the
	// background model. MinCalibrationSamples is the hard lower bound below
	// which calibration refuses to run.
	CalibrationSamples    int `koanf:"calibration_samples"`
	MinCalibrationSamples int `koanf:"min_calibration_samples"`

	// StdFloor is the minimum per-pixel standard deviation in the background
	// model, guarding the z-score division.
	StdFloor float64 `koanf:"std_floor"`

	// Threshold is the z-score cut for foreground pixels. ThresholdStep is
	// the increment applied by the threshold_up/threshold_down commands.
	Threshold     float64 `koanf:"threshold"`
	ThresholdStep float64 `koanf:"threshold_step"`

	// MinArea and MaxArea classify contours by bounding-box area: below
	// MinArea is noise, between is a single bey, at or above MaxArea is a
	// merged region of overlapping beys.
	MinArea int `koanf:"min_area"`
	MaxArea int `koanf:"max_area"`

	// HitDistance is the centroid distance below which two beys count as
	// colliding.
	HitDistance float64 `koanf:"hit_distance"`

	// MaxDisplacement bounds how far a bey may move between frames and still
	// keep its identity.
	MaxDisplacement float64 `koanf:"max_displacement"`

	// RecentFrames is how many past frames the registry searches when
	// re-identifying a detection.
	RecentFrames int `koanf:"recent_frames"`

	// Retention is the number of consecutive missed frames after which an
	// entity is retired. Its ID is never reused.
	Retention int `koanf:"retention"`

	// HitWindow is the number of past frames a bey pair's collision stays
	// deduplicated for. Window is the total history depth the registry keeps.
	HitWindow int `koanf:"hit_window"`
	Window    int `koanf:"window"`

	// UDPAddr receives the per-frame tracking messages. TCPAddr serves the
	// renderer's command channel.
	UDPAddr string `koanf:"udp_addr"`
	TCPAddr string `koanf:"tcp_addr"`

	// BatchMax and BatchEnabled control outbound message coalescing. A batch
	// also flushes once its oldest message is a frame interval old.
	BatchMax     int  `koanf:"batch_max"`
	BatchEnabled bool `koanf:"batch_enabled"`

	// SerializationBudget is the fraction of the frame interval that encoding
	// may consume before a performance warning is published.
	SerializationBudget float64 `koanf:"serialization_budget"`

	// HTTPAddr serves /api/health, /metrics and the /ws event bridge.
	HTTPAddr string `koanf:"http_addr"`

	// EventBuffer bounds the published-event queue; the oldest event is
	// dropped when a slow subscriber falls behind.
	EventBuffer int `koanf:"event_buffer"`
}

// Default returns the stock tuning for a tabletop rig.
func Default() *Config {
	return &Config{
		CameraID:              0,
		DevMode:               false,
		CropX1:                150,
		CropY1:                15,
		CropX2:                500,
		CropY2:                350,
		FPS:                   60,
		WarmupFrames:          20,
		CalibrationSamples:    120,
		MinCalibrationSamples: 10,
		StdFloor:              1e-6,
		Threshold:             15,
		ThresholdStep:         1,
		MinArea:               100,
		MaxArea:               2000,
		HitDistance:           40,
		MaxDisplacement:       1000,
		RecentFrames:          3,
		Retention:             10,
		HitWindow:             10,
		Window:                20,
		UDPAddr:               "127.0.0.1:50007",
		TCPAddr:               "127.0.0.1:50008",
		BatchMax:              5,
		BatchEnabled:          true,
		SerializationBudget:   0.5,
		HTTPAddr:              ":8081",
		EventBuffer:           64,
	}
}

// FrameInterval returns the time budget for one full cycle.
func (c *Config) FrameInterval() time.Duration {
	fps := c.FPS
	if fps <= 0 {
		fps = 60
	}
	return time.Second / time.Duration(fps)
}
