package e2e

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/beysion/beytracker/internal/app"
	"github.com/beysion/beytracker/internal/capture"
	"github.com/beysion/beytracker/internal/config"
	"github.com/beysion/beytracker/internal/event"
	"github.com/beysion/beytracker/internal/server"
	"github.com/beysion/beytracker/testdata"
)

var messagePattern = regexp.MustCompile(`^(\d+), beys:((?:\(\d+, \d+, \d+\))*), hits:((?:\(\d+, \d+\))*)$`)

// TestE2E_TrackingWorkflow drives the whole pipeline from a synthetic camera
// through the wire protocol, the command channel, and the HTTP surface.
func TestE2E_TrackingWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	listener, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("udp listener: %v", err)
	}
	defer listener.Close()

	const w, h = 160, 120
	frames := testdata.CalibrationRun(16, w, h, 100)
	for i := 0; i < 120; i++ {
		f := testdata.FlatFrame(w, h, 100)
		f = testdata.WithBlob(f, 50+i/4, 60, 15, 13, 220)
		f = testdata.WithBlob(f, 110-i/4, 60, 15, 13, 220)
		frames = append(frames, f)
	}
	camera := capture.NewMockCamera(frames, true)
	camera.Interval = time.Millisecond

	cfg := config.Default()
	cfg.FPS = 250
	cfg.WarmupFrames = 2
	cfg.CalibrationSamples = 14
	cfg.MinCalibrationSamples = 10
	cfg.UDPAddr = listener.LocalAddr().String()
	cfg.TCPAddr = "127.0.0.1:0"
	cfg.BatchEnabled = false

	bus := event.NewBus(cfg.EventBuffer)
	a, err := app.New(cfg, camera, bus)
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("app.Start() error = %v", err)
	}
	defer a.Stop()

	t.Run("WireMessages", func(t *testing.T) {
		listener.SetReadDeadline(time.Now().Add(5 * time.Second))
		buf := make([]byte, 2048)

		var lastFrame int64
		sawBey := false
		for i := 0; i < 200 && !sawBey; i++ {
			n, _, err := listener.ReadFrom(buf)
			if err != nil {
				t.Fatalf("reading wire output: %v", err)
			}
			m := messagePattern.FindStringSubmatch(string(buf[:n]))
			if m == nil {
				t.Fatalf("malformed message: %q", string(buf[:n]))
			}
			frame, _ := strconv.ParseInt(m[1], 10, 64)
			if frame <= lastFrame {
				t.Fatalf("frame index went backwards: %d after %d", frame, lastFrame)
			}
			lastFrame = frame
			sawBey = m[2] != ""
		}
		if !sawBey {
			t.Fatal("no bey ever appeared on the wire")
		}
	})

	t.Run("Commands", func(t *testing.T) {
		conn, err := net.Dial("tcp", a.CommandAddr().String())
		if err != nil {
			t.Fatalf("dialing command channel: %v", err)
		}
		defer conn.Close()

		send := func(cmd string) string {
			t.Helper()
			if _, err := conn.Write([]byte(cmd)); err != nil {
				t.Fatalf("sending %q: %v", cmd, err)
			}
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			buf := make([]byte, 128)
			n, err := conn.Read(buf)
			if err != nil {
				t.Fatalf("reading reply to %q: %v", cmd, err)
			}
			return string(buf[:n])
		}

		if got := send("threshold_up"); got != "threshold:16" {
			t.Errorf("threshold_up reply = %q, want %q", got, "threshold:16")
		}
		if got := send("threshold_down"); got != "threshold:15" {
			t.Errorf("threshold_down reply = %q, want %q", got, "threshold:15")
		}
		if got := send("calibrate"); got != "calibrated" {
			t.Errorf("calibrate reply = %q, want %q", got, "calibrated")
		}

		// The pipeline keeps producing after recalibration.
		listener.SetReadDeadline(time.Now().Add(5 * time.Second))
		buf := make([]byte, 2048)
		if _, _, err := listener.ReadFrom(buf); err != nil {
			t.Fatalf("no wire output after recalibration: %v", err)
		}
	})

	t.Run("HealthAndMetrics", func(t *testing.T) {
		srv := server.New(server.Config{
			Bus:     bus,
			Metrics: a.Monitor().Registry(),
			Status:  a.Status,
		})
		ts := httptest.NewServer(srv.Handler())
		defer ts.Close()

		resp, err := ts.Client().Get(ts.URL + "/api/health")
		if err != nil {
			t.Fatalf("health request: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("health status = %d", resp.StatusCode)
		}

		var status server.Status
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			t.Fatalf("decoding health: %v", err)
		}
		if status.FramesProcessed == 0 {
			t.Error("health reports zero frames processed")
		}

		metrics, err := ts.Client().Get(ts.URL + "/metrics")
		if err != nil {
			t.Fatalf("metrics request: %v", err)
		}
		defer metrics.Body.Close()
		if metrics.StatusCode != http.StatusOK {
			t.Errorf("metrics status = %d", metrics.StatusCode)
		}
	})
}
