package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/beysion/beytracker/internal/app"
	"github.com/beysion/beytracker/internal/capture"
	"github.com/beysion/beytracker/internal/config"
	"github.com/beysion/beytracker/internal/event"
	"github.com/beysion/beytracker/internal/server"
)

func main() {
	dev := flag.Bool("dev", false, "use a synthetic scene instead of camera hardware")
	flag.Parse()

	fmt.Println("beytracker - spinning top tracking pipeline")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	bus := event.NewBus(cfg.EventBuffer)

	var camera capture.Camera
	if *dev {
		camera = devCamera(cfg)
		log.Println("dev mode: synthetic camera")
	} else {
		crop := image.Rect(cfg.CropX1, cfg.CropY1, cfg.CropX2, cfg.CropY2)
		camera = capture.NewCamera(cfg.CameraID, crop)
	}

	a, err := app.New(cfg, camera, bus)
	if err != nil {
		log.Fatalf("Failed to assemble pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		log.Fatalf("Failed to start pipeline: %v", err)
	}

	srv := server.New(server.Config{
		Bus:     bus,
		Metrics: a.Monitor().Registry(),
		Status:  a.Status,
	})
	go func() {
		log.Printf("http surface on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(cfg.HTTPAddr); err != nil {
			log.Printf("http server: %v", err)
		}
	}()

	log.Printf("tracking to udp %s, commands on tcp %s", cfg.UDPAddr, cfg.TCPAddr)
	<-ctx.Done()
	a.Stop()
}

// devCamera builds a looping synthetic scene: a flat arena with two bright
// tops orbiting the center in opposite phases, close enough to graze once
// per revolution.
func devCamera(cfg *config.Config) capture.Camera {
	w := cfg.CropX2 - cfg.CropX1
	h := cfg.CropY2 - cfg.CropY1
	cx, cy := w/2, h/2
	radius := float64(min(w, h)) / 5

	const revolution = 240
	total := cfg.WarmupFrames + cfg.CalibrationSamples + revolution
	frames := make([]capture.Frame, 0, total)

	// Quiet arena for warm-up and calibration.
	for i := 0; i < cfg.WarmupFrames+cfg.CalibrationSamples; i++ {
		frames = append(frames, flatFrame(w, h, 90))
	}
	for i := 0; i < revolution; i++ {
		angle := 2 * math.Pi * float64(i) / revolution
		f := flatFrame(w, h, 90)
		paintBlob(f, cx+int(radius*math.Cos(angle)), cy+int(radius*math.Sin(angle)), 16, 14, 230)
		paintBlob(f, cx-int(radius*math.Cos(angle)), cy-int(radius*math.Sin(angle)), 16, 14, 230)
		frames = append(frames, f)
	}

	camera := capture.NewMockCamera(frames, true)
	camera.Interval = cfg.FrameInterval()
	return camera
}

func flatFrame(w, h int, value uint8) capture.Frame {
	pixels := make([]uint8, w*h)
	for i := range pixels {
		pixels[i] = value
	}
	return capture.Frame{Pixels: pixels, Width: w, Height: h}
}

func paintBlob(f capture.Frame, cx, cy, bw, bh int, value uint8) {
	for y := cy - bh/2; y < cy+bh/2; y++ {
		for x := cx - bw/2; x < cx+bw/2; x++ {
			if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
				continue
			}
			f.Pixels[y*f.Width+x] = value
		}
	}
}
