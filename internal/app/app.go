// Package app wires the beytracker pipeline together: frame acquisition,
// detection, identity tracking, and the outbound protocol, plus the inbound
// command channel that tunes them at runtime.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beysion/beytracker/internal/capture"
	"github.com/beysion/beytracker/internal/config"
	"github.com/beysion/beytracker/internal/detect"
	"github.com/beysion/beytracker/internal/event"
	"github.com/beysion/beytracker/internal/monitoring"
	"github.com/beysion/beytracker/internal/protocol"
	"github.com/beysion/beytracker/internal/server"
	"github.com/beysion/beytracker/internal/track"
)

// App is the tracking core. It owns the three concurrent activities:
// acquisition, the detect→track→encode cycle, and the command listener.
type App struct {
	cfg *config.Config
	bus event.Bus

	camera   capture.Camera
	source   *capture.Source
	detector *detect.Detector
	settings *detect.Settings
	registry *track.Registry
	sender   *protocol.Sender
	out      protocol.Transmitter
	commands *protocol.CommandServer
	monitor  *monitoring.Monitor

	// model is owned by the pipeline goroutine; replaced wholesale on
	// recalibration, never mutated in place.
	model *detect.BackgroundModel

	recalibrate atomic.Bool
	enabled     atomic.Bool
	cycles      atomic.Int64
	liveBeys    atomic.Int64
	connState   atomic.Int32

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New assembles the pipeline around the given camera and event bus.
func New(cfg *config.Config, camera capture.Camera, bus event.Bus) (*App, error) {
	a := &App{
		cfg:      cfg,
		bus:      bus,
		camera:   camera,
		detector: detect.NewDetector(),
		settings: detect.NewSettings(detect.Params{
			Threshold:     cfg.Threshold,
			ThresholdStep: cfg.ThresholdStep,
			MinArea:       cfg.MinArea,
			MaxArea:       cfg.MaxArea,
			HitDistance:   cfg.HitDistance,
		}),
		registry: track.NewRegistry(track.Config{
			MaxDisplacement: cfg.MaxDisplacement,
			RecentFrames:    cfg.RecentFrames,
			Retention:       cfg.Retention,
			HitRadius:       cfg.HitDistance,
			HitWindow:       cfg.HitWindow,
			Window:          cfg.Window,
		}),
	}

	sender, err := protocol.NewSender(cfg.UDPAddr)
	if err != nil {
		return nil, fmt.Errorf("outbound channel: %w", err)
	}
	a.sender = sender

	a.monitor = monitoring.New(cfg.FrameInterval(), cfg.SerializationBudget, a.performanceWarning)

	if cfg.BatchEnabled {
		a.out = protocol.NewBatcher(sender, nil, cfg.BatchMax, cfg.FrameInterval(), func(n int) {
			a.monitor.ObserveBatch(n)
		})
	} else {
		a.out = sender
	}

	a.commands = protocol.NewCommandServer(cfg.TCPAddr, a, a.connStateChanged)
	a.enabled.Store(true)

	return a, nil
}

// Start opens the camera, calibrates, and launches all three activities.
// It blocks through warm-up and initial calibration so that by the time it
// returns the pipeline is producing output.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	a.running = true
	a.mu.Unlock()

	if err := a.bringUp(ctx); err != nil {
		cancel()
		if a.source != nil {
			a.source.Stop()
		}
		a.mu.Lock()
		a.running = false
		close(a.done)
		a.mu.Unlock()
		return err
	}

	go a.runPipeline(ctx)

	log.Println("tracking pipeline started")
	return nil
}

func (a *App) bringUp(ctx context.Context) error {
	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}

	a.source = capture.NewSource(a.camera)
	a.source.Start(ctx)

	// Let exposure settle before the background model is built.
	for i := 0; i < a.cfg.WarmupFrames; i++ {
		if _, err := a.source.Next(ctx); err != nil {
			return fmt.Errorf("warm-up: %w", err)
		}
	}

	if err := a.calibrate(ctx); err != nil {
		return fmt.Errorf("initial calibration: %w", err)
	}

	a.sender.Start(ctx)
	if err := a.commands.Start(ctx); err != nil {
		return fmt.Errorf("command channel: %w", err)
	}
	return nil
}

// Stop shuts the pipeline down cooperatively.
func (a *App) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	cancel := a.cancel
	done := a.done
	a.running = false
	a.mu.Unlock()

	cancel()
	<-done

	a.source.Stop()
	if err := a.camera.Close(); err != nil {
		log.Printf("closing camera: %v", err)
	}
	if err := a.sender.Close(); err != nil {
		log.Printf("closing sender: %v", err)
	}

	log.Println("tracking pipeline stopped")
}

// SetEnabled pauses or resumes detection without tearing anything down.
func (a *App) SetEnabled(enabled bool) {
	a.enabled.Store(enabled)
}

// IsEnabled reports whether detection currently runs.
func (a *App) IsEnabled() bool {
	return a.enabled.Load()
}

// RequestCalibration flags a recalibration; the pipeline honors it at the
// next cycle boundary, never mid-frame.
func (a *App) RequestCalibration() {
	a.recalibrate.Store(true)
}

// StepThreshold adjusts the detection threshold; effective next frame.
func (a *App) StepThreshold(direction int) float64 {
	return a.settings.StepThreshold(float64(direction))
}

// Settings exposes the runtime detection parameters.
func (a *App) Settings() *detect.Settings {
	return a.settings
}

// Status supplies the health snapshot for the HTTP surface.
func (a *App) Status() server.Status {
	return server.Status{
		ConnectionState: protocol.ConnState(a.connState.Load()).String(),
		FramesProcessed: a.cycles.Load(),
		LiveBeys:        int(a.liveBeys.Load()),
	}
}

// CommandAddr reports the bound command-channel address. Useful when the
// configured address left the port to the kernel.
func (a *App) CommandAddr() net.Addr {
	return a.commands.Addr()
}

// Monitor exposes timing statistics and the metrics registry.
func (a *App) Monitor() *monitoring.Monitor {
	return a.monitor
}

func (a *App) connStateChanged(s protocol.ConnState) {
	a.connState.Store(int32(s))
	a.publish(event.New(event.TypeConnectionState, event.ConnectionStatePayload{State: s.String()}))
}

func (a *App) performanceWarning(stage string, elapsed, budget time.Duration) {
	a.publish(event.New(event.TypePerformance, event.PerformancePayload{
		Stage:   stage,
		Elapsed: elapsed,
		Budget:  budget,
	}))
}

func (a *App) publish(e event.Event) {
	if a.bus != nil {
		a.bus.Publish(e)
	}
}

func (a *App) publishError(stage string, err error) {
	log.Printf("%s: %v", stage, err)
	a.publish(event.New(event.TypeError, event.ErrorPayload{Stage: stage, Message: err.Error()}))
}
