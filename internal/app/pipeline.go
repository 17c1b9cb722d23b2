package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/beysion/beytracker/internal/capture"
	"github.com/beysion/beytracker/internal/detect"
	"github.com/beysion/beytracker/internal/event"
	"github.com/beysion/beytracker/internal/protocol"
	"github.com/beysion/beytracker/internal/track"
)

// stallFactor is how many frame intervals without a fresh frame count as an
// acquisition stall.
const stallFactor = 3

// runPipeline is the detect→track→encode cycle. One goroutine, driven by a
// ticker at the configured frame rate. Skipped ticks (paused, no new frame)
// cost nothing beyond the Latest check.
func (a *App) runPipeline(ctx context.Context) {
	defer close(a.done)

	interval := a.cfg.FrameInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	stallAfter := stallFactor * interval
	lastFrame := time.Now()
	stalled := false

	for {
		select {
		case <-ctx.Done():
			if b, ok := a.out.(*protocol.Batcher); ok {
				b.Flush()
			}
			return
		case <-ticker.C:
		}

		if !a.enabled.Load() {
			continue
		}

		if a.recalibrate.Swap(false) {
			if err := a.calibrate(ctx); err != nil {
				a.publishError("calibration", err)
			}
		}

		frame, ok := a.source.Latest()
		if !ok {
			if !stalled && time.Since(lastFrame) > stallAfter {
				stalled = true
				a.publishError("acquisition", fmt.Errorf("no new frame for %s", time.Since(lastFrame).Round(time.Millisecond)))
			}
			continue
		}
		lastFrame = time.Now()
		stalled = false

		a.cycle(frame)
	}
}

// cycle processes a single frame end to end.
func (a *App) cycle(frame capture.Frame) {
	shapes, hits, err := a.detector.Detect(frame, a.model, a.settings.Load())
	if err != nil {
		a.publishError("detection", err)
		return
	}

	// Identity matching runs on the cycle counter, not the camera's frame
	// index: dropped frames must not widen the recent-match window.
	index := a.cycles.Add(1)
	entities, hitEvents := a.registry.Update(shapes, hits, index)
	a.liveBeys.Store(int64(len(entities)))

	start := time.Now()
	wire := protocol.FromTracking(index, entities, hitEvents).Encode()
	a.monitor.ObserveSerialization(time.Since(start))

	start = time.Now()
	a.out.Send(wire)
	a.monitor.ObserveSend(time.Since(start))

	a.monitor.ObserveFrame(len(entities))
	a.monitor.SetDropCounts(a.sender.Dropped(), a.source.Drops())

	a.publish(event.New(event.TypeTrackingUpdated, trackingPayload(index, entities, hitEvents)))
}

// calibrate pulls a fresh sample run through the source and swaps the
// background model wholesale. On failure the previous model stays in place.
func (a *App) calibrate(ctx context.Context) error {
	frames := make([]capture.Frame, 0, a.cfg.CalibrationSamples)
	for len(frames) < a.cfg.CalibrationSamples {
		f, err := a.source.Next(ctx)
		if err != nil {
			return err
		}
		frames = append(frames, f)
	}

	model, err := detect.Calibrate(frames, a.cfg.MinCalibrationSamples, a.cfg.StdFloor)
	if err != nil {
		return err
	}
	a.model = model
	log.Printf("background model rebuilt from %d frames", len(frames))
	return nil
}

func trackingPayload(index int64, entities []track.Entity, hits []track.HitEvent) event.TrackingPayload {
	p := event.TrackingPayload{FrameIndex: index, LiveCount: len(entities)}
	for _, e := range entities {
		p.Beys = append(p.Beys, event.BeyInfo{ID: e.ID, X: e.X, Y: e.Y})
	}
	for _, h := range hits {
		p.Hits = append(p.Hits, event.PointXY{X: h.X, Y: h.Y})
	}
	return p
}
