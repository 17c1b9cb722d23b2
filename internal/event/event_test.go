package event

import (
	"testing"
	"time"
)

func TestNewStampsEnvelope(t *testing.T) {
	e := New(TypeTrackingUpdated, TrackingPayload{FrameIndex: 5})

	if e.ID == "" {
		t.Error("envelope ID is empty")
	}
	if e.Type != TypeTrackingUpdated {
		t.Errorf("Type = %v, want %v", e.Type, TypeTrackingUpdated)
	}
	if e.Timestamp.IsZero() {
		t.Error("Timestamp not stamped")
	}

	e2 := New(TypeError, nil)
	if e.ID == e2.ID {
		t.Error("two envelopes share an ID")
	}
}

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus(8)

	ch1, cancel1 := bus.Subscribe()
	defer cancel1()
	ch2, cancel2 := bus.Subscribe()
	defer cancel2()

	bus.Publish(New(TypeError, ErrorPayload{Stage: "detect", Message: "boom"}))

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.Type != TypeError {
				t.Errorf("subscriber %d got %v, want %v", i, e.Type, TypeError)
			}
		default:
			t.Errorf("subscriber %d received nothing", i)
		}
	}
}

func TestBusDropsOldestUnderPressure(t *testing.T) {
	bus := NewBus(2)

	ch, cancel := bus.Subscribe()
	defer cancel()

	// Three publishes into a depth-2 buffer: the first one is displaced.
	for i := 0; i < 3; i++ {
		bus.Publish(New(TypeTrackingUpdated, TrackingPayload{FrameIndex: int64(i)}))
	}

	first := <-ch
	if first.Payload.(TrackingPayload).FrameIndex != 1 {
		t.Errorf("oldest surviving frame = %d, want 1 (frame 0 dropped)",
			first.Payload.(TrackingPayload).FrameIndex)
	}
	second := <-ch
	if second.Payload.(TrackingPayload).FrameIndex != 2 {
		t.Errorf("second surviving frame = %d, want 2",
			second.Payload.(TrackingPayload).FrameIndex)
	}
}

func TestBusPublishNeverBlocks(t *testing.T) {
	bus := NewBus(1)
	_, cancel := bus.Subscribe() // never read from
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			bus.Publish(New(TypePerformance, nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestBusCancelClosesChannel(t *testing.T) {
	bus := NewBus(4)
	ch, cancel := bus.Subscribe()

	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}

	// Idempotent.
	cancel()

	// Publishing after cancel must not panic.
	bus.Publish(New(TypeError, nil))
}
