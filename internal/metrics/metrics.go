// Package metrics exposes the Prometheus collectors instrumenting the
// tone queue and generator worker. Callers that don't care about
// metrics pass a nil *Metrics; every method is nil-receiver safe.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors registered against a prometheus.Registerer.
type Metrics struct {
	queueDepth      prometheus.Gauge
	queueState      prometheus.Gauge // 0 = idle, 1 = busy
	samplesWritten  prometheus.Counter
	tonesEnqueued   prometheus.Counter
	lowWaterCrossed prometheus.Counter
}

// New registers and returns a Metrics instance. reg is typically
// prometheus.DefaultRegisterer; tests and CLI invocations that don't
// want a process-wide registry can pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "cwkeyer",
			Subsystem: "tonequeue",
			Name:      "depth",
			Help:      "Number of tones currently queued for synthesis.",
		}),
		queueState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "cwkeyer",
			Subsystem: "tonequeue",
			Name:      "busy",
			Help:      "1 if the generator worker is synthesising a tone, 0 if idle.",
		}),
		samplesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cwkeyer",
			Subsystem: "generator",
			Name:      "samples_written_total",
			Help:      "Total PCM samples written to the audio sink.",
		}),
		tonesEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cwkeyer",
			Subsystem: "tonequeue",
			Name:      "tones_enqueued_total",
			Help:      "Total tones enqueued for synthesis.",
		}),
		lowWaterCrossed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cwkeyer",
			Subsystem: "tonequeue",
			Name:      "low_water_crossed_total",
			Help:      "Total times the queue depth crossed from above to at-or-below the low-water mark.",
		}),
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) SetBusy(busy bool) {
	if m == nil {
		return
	}
	if busy {
		m.queueState.Set(1)
	} else {
		m.queueState.Set(0)
	}
}

func (m *Metrics) AddSamplesWritten(n int) {
	if m == nil {
		return
	}
	m.samplesWritten.Add(float64(n))
}

func (m *Metrics) IncTonesEnqueued() {
	if m == nil {
		return
	}
	m.tonesEnqueued.Inc()
}

func (m *Metrics) IncLowWaterCrossed() {
	if m == nil {
		return
	}
	m.lowWaterCrossed.Inc()
}
