// Package monitoring tracks pipeline timing against the frame budget and
// exposes prometheus metrics for the observation surface.
package monitoring

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// windowSize is how many recent samples the rolling statistics keep.
const windowSize = 100

// rollingWindow is a fixed-size ring of duration samples.
type rollingWindow struct {
	samples [windowSize]time.Duration
	next    int
	filled  int
}

func (w *rollingWindow) add(d time.Duration) {
	w.samples[w.next] = d
	w.next = (w.next + 1) % windowSize
	if w.filled < windowSize {
		w.filled++
	}
}

func (w *rollingWindow) average() time.Duration {
	if w.filled == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < w.filled; i++ {
		sum += w.samples[i]
	}
	return sum / time.Duration(w.filled)
}

// WarnFunc observes a stage that blew its budget.
type WarnFunc func(stage string, elapsed, budget time.Duration)

// Monitor aggregates send/serialization timings. Warnings fire when
// serialization exceeds the configured fraction of the frame budget.
type Monitor struct {
	frameBudget time.Duration
	budgetFrac  float64
	onWarn      WarnFunc

	mu        sync.Mutex
	serialize rollingWindow
	send      rollingWindow

	registry *prometheus.Registry

	framesTotal      prometheus.Counter
	messagesTotal    prometheus.Counter
	batchesTotal     prometheus.Counter
	sendsDropped     prometheus.Gauge
	framesDropped    prometheus.Gauge
	entitiesLive     prometheus.Gauge
	serializeSeconds prometheus.Histogram
	batchSize        prometheus.Histogram
}

// New creates a Monitor with its own prometheus registry. onWarn may be nil;
// warnings are always logged.
func New(frameBudget time.Duration, budgetFrac float64, onWarn WarnFunc) *Monitor {
	m := &Monitor{
		frameBudget: frameBudget,
		budgetFrac:  budgetFrac,
		onWarn:      onWarn,
		registry:    prometheus.NewRegistry(),
		framesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beytracker", Name: "frames_total",
			Help: "Frames run through the detection cycle.",
		}),
		messagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beytracker", Name: "messages_total",
			Help: "Wire messages handed to the outbound path.",
		}),
		batchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beytracker", Name: "batches_total",
			Help: "Coalesced transmissions flushed.",
		}),
		sendsDropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "beytracker", Name: "sends_dropped",
			Help: "Messages dropped by the non-blocking sender.",
		}),
		framesDropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "beytracker", Name: "frames_dropped",
			Help: "Acquired frames overwritten before consumption.",
		}),
		entitiesLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "beytracker", Name: "entities_live",
			Help: "Entities currently held by the registry.",
		}),
		serializeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "beytracker", Name: "serialize_seconds",
			Help:    "Per-frame message encoding time.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "beytracker", Name: "batch_size",
			Help:    "Messages per flushed transmission.",
			Buckets: []float64{1, 2, 3, 5, 8, 13},
		}),
	}

	m.registry.MustRegister(
		m.framesTotal, m.messagesTotal, m.batchesTotal,
		m.sendsDropped, m.framesDropped, m.entitiesLive,
		m.serializeSeconds, m.batchSize,
	)
	return m
}

// Registry exposes the metrics for the HTTP surface.
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveFrame records one completed cycle.
func (m *Monitor) ObserveFrame(liveEntities int) {
	m.framesTotal.Inc()
	m.entitiesLive.Set(float64(liveEntities))
}

// ObserveSerialization records one frame's encode time and warns when it
// eats too much of the frame budget.
func (m *Monitor) ObserveSerialization(d time.Duration) {
	m.mu.Lock()
	m.serialize.add(d)
	m.mu.Unlock()
	m.serializeSeconds.Observe(d.Seconds())
	m.messagesTotal.Inc()

	budget := time.Duration(float64(m.frameBudget) * m.budgetFrac)
	if budget > 0 && d > budget {
		log.Printf("monitoring: serialization took %v of a %v budget", d, budget)
		if m.onWarn != nil {
			m.onWarn("serialize", d, budget)
		}
	}
}

// ObserveSend records one transmission's latency.
func (m *Monitor) ObserveSend(d time.Duration) {
	m.mu.Lock()
	m.send.add(d)
	m.mu.Unlock()
}

// ObserveBatch records one flushed transmission of n messages.
func (m *Monitor) ObserveBatch(n int) {
	m.batchesTotal.Inc()
	m.batchSize.Observe(float64(n))
}

// SetDropCounts mirrors the sender's and source's drop counters.
func (m *Monitor) SetDropCounts(sendsDropped, framesDropped int64) {
	m.sendsDropped.Set(float64(sendsDropped))
	m.framesDropped.Set(float64(framesDropped))
}

// AverageSerialization returns the rolling mean encode time.
func (m *Monitor) AverageSerialization() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.serialize.average()
}

// AverageSend returns the rolling mean transmission latency.
func (m *Monitor) AverageSend() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.send.average()
}
