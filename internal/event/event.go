// Package event is the narrow published-event surface between the tracking
// core and external collaborators (GUI shell, monitors). The core only ever
// publishes; consumers subscribe and must never be able to stall a cycle.
package event

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type discriminates event payloads.
type Type string

const (
	// TypeConnectionState reports a command-channel state transition.
	TypeConnectionState Type = "connection_state"
	// TypeTrackingUpdated reports one completed cycle's output.
	TypeTrackingUpdated Type = "tracking_updated"
	// TypePerformance reports a frame-budget or serialization warning.
	TypePerformance Type = "performance"
	// TypeError reports a degraded-but-alive failure (dropped frame,
	// network trouble, failed calibration).
	TypeError Type = "error"
)

// Event is one published envelope. Payload is a small value type owned by
// the subscriber once delivered.
type Event struct {
	ID        string      `json:"id"`
	Type      Type        `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// ConnectionStatePayload carries the new command-channel state.
type ConnectionStatePayload struct {
	State string `json:"state"`
}

// TrackingPayload summarizes one cycle for display: entity positions and
// collision positions, already reduced to wire-equivalent values.
type TrackingPayload struct {
	FrameIndex int64     `json:"frame_index"`
	Beys       []BeyInfo `json:"beys"`
	Hits       []PointXY `json:"hits"`
	LiveCount  int       `json:"live_count"`
}

// BeyInfo is one tracked bey for display.
type BeyInfo struct {
	ID int64 `json:"id"`
	X  int   `json:"x"`
	Y  int   `json:"y"`
}

// PointXY is a bare position.
type PointXY struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// PerformancePayload reports a timing observation that crossed a budget.
type PerformancePayload struct {
	Stage   string        `json:"stage"`
	Elapsed time.Duration `json:"elapsed"`
	Budget  time.Duration `json:"budget"`
}

// ErrorPayload reports a non-fatal failure.
type ErrorPayload struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// New stamps an envelope.
func New(t Type, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// Bus fans events out to subscribers. Publish never blocks.
type Bus interface {
	Publish(e Event)
	// Subscribe returns a receive channel and a cancel func. The channel is
	// closed on cancel.
	Subscribe() (<-chan Event, func())
}

// channelBus is a bounded fan-out bus. When a subscriber's buffer is full
// the oldest queued event is dropped to make room: a slow GUI loses history,
// never the core's pace.
type channelBus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	depth  int
}

// NewBus creates a Bus whose per-subscriber buffer holds depth events.
func NewBus(depth int) Bus {
	if depth < 1 {
		depth = 1
	}
	return &channelBus{
		subs:  make(map[int]chan Event),
		depth: depth,
	}
}

func (b *channelBus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Full: drop the oldest, then deliver.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- e:
			default:
			}
		}
	}
}

func (b *channelBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.depth)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}
