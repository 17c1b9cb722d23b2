package monitoring

import (
	"sync"
	"testing"
	"time"
)

func TestRollingWindowAverage(t *testing.T) {
	var w rollingWindow

	if w.average() != 0 {
		t.Errorf("empty window average = %v, want 0", w.average())
	}

	w.add(10 * time.Millisecond)
	w.add(20 * time.Millisecond)
	if got := w.average(); got != 15*time.Millisecond {
		t.Errorf("average = %v, want 15ms", got)
	}
}

func TestRollingWindowWrapsAtCapacity(t *testing.T) {
	var w rollingWindow

	// Fill beyond capacity with 1ms, then overwrite everything with 3ms.
	for i := 0; i < windowSize; i++ {
		w.add(time.Millisecond)
	}
	for i := 0; i < windowSize; i++ {
		w.add(3 * time.Millisecond)
	}

	if w.filled != windowSize {
		t.Errorf("filled = %d, want %d", w.filled, windowSize)
	}
	if got := w.average(); got != 3*time.Millisecond {
		t.Errorf("average after wrap = %v, want 3ms", got)
	}
}

func TestMonitorWarnsOverBudget(t *testing.T) {
	var mu sync.Mutex
	var warned []string

	frameBudget := 16 * time.Millisecond
	m := New(frameBudget, 0.5, func(stage string, elapsed, budget time.Duration) {
		mu.Lock()
		warned = append(warned, stage)
		mu.Unlock()
		if budget != 8*time.Millisecond {
			t.Errorf("budget = %v, want 8ms", budget)
		}
	})

	m.ObserveSerialization(time.Millisecond) // under budget
	m.ObserveSerialization(10 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(warned) != 1 || warned[0] != "serialize" {
		t.Errorf("warnings = %v, want exactly one serialize warning", warned)
	}
}

func TestMonitorAverages(t *testing.T) {
	m := New(16*time.Millisecond, 0.5, nil)

	m.ObserveSerialization(2 * time.Millisecond)
	m.ObserveSerialization(4 * time.Millisecond)
	if got := m.AverageSerialization(); got != 3*time.Millisecond {
		t.Errorf("AverageSerialization = %v, want 3ms", got)
	}

	m.ObserveSend(6 * time.Millisecond)
	if got := m.AverageSend(); got != 6*time.Millisecond {
		t.Errorf("AverageSend = %v, want 6ms", got)
	}
}

func TestMonitorRegistryGathers(t *testing.T) {
	m := New(16*time.Millisecond, 0.5, nil)

	m.ObserveFrame(3)
	m.ObserveBatch(5)
	m.SetDropCounts(7, 2)

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, want := range []string{
		"beytracker_frames_total",
		"beytracker_batches_total",
		"beytracker_sends_dropped",
		"beytracker_entities_live",
		"beytracker_batch_size",
	} {
		if !found[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}
