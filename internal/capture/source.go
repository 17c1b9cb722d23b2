package capture

import (
	"context"
	"log"
	"sync"
	"time"
)

// Source runs the acquisition loop on its own goroutine and hands the newest
// frame to the pipeline. Frames the consumer never collects are dropped, not
// queued: the pipeline always sees the freshest state of the arena.
type Source struct {
	camera Camera

	mu      sync.Mutex
	cond    *sync.Cond
	latest  Frame
	fresh   bool
	stopped bool

	nextIndex int64
	drops     int64

	started  bool
	stopOnce sync.Once
	done     chan struct{}
}

// NewSource wraps an opened Camera. Call Start to begin acquisition.
func NewSource(camera Camera) *Source {
	s := &Source{
		camera: camera,
		done:   make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start launches the acquisition goroutine. It runs until ctx is cancelled or
// Stop is called.
func (s *Source) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()
	go s.run(ctx)
}

func (s *Source) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		default:
		}

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		frame, err := s.camera.Read()
		if err != nil {
			if err == ErrCameraNotOpen {
				s.shutdown()
				return
			}
			log.Printf("capture: read failed: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		s.mu.Lock()
		frame.Index = s.nextIndex
		frame.Timestamp = time.Now()
		s.nextIndex++
		if s.fresh {
			s.drops++
		}
		s.latest = frame
		s.fresh = true
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}

// Latest returns the newest unconsumed frame, if any. It never blocks; the
// second return is false when no frame arrived since the previous call.
func (s *Source) Latest() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fresh {
		return Frame{}, false
	}
	s.fresh = false
	return s.latest, true
}

// Next blocks until a frame newer than the last consumed one arrives, or ctx
// is cancelled, or the source stops. Used by calibration, which needs N
// distinct frames rather than the freshest one.
func (s *Source) Next(ctx context.Context) (Frame, error) {
	// Wake the cond wait if the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	for !s.fresh && !s.stopped && ctx.Err() == nil {
		s.cond.Wait()
	}
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.stopped && !s.fresh {
		return Frame{}, ErrCameraNotOpen
	}
	s.fresh = false
	return s.latest, nil
}

// Drops reports how many acquired frames were overwritten before consumption.
func (s *Source) Drops() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drops
}

// Stop halts acquisition cooperatively and waits for the goroutine to exit.
func (s *Source) Stop() {
	s.shutdown()
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
}

func (s *Source) shutdown() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.cond.Broadcast()
		s.mu.Unlock()
	})
}
