package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"lendhub/events"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking emitted protocol events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendhub",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of protocol events segmented by event type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// RecordEvent increments the counter for the supplied event type.
func (m *eventMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.emitted.WithLabelValues(eventType).Inc()
}

// CountingEmitter wraps another emitter and counts every event by type. A nil
// next emitter just counts.
type CountingEmitter struct {
	next events.Emitter
}

// NewCountingEmitter wires the event counter in front of next.
func NewCountingEmitter(next events.Emitter) *CountingEmitter {
	return &CountingEmitter{next: next}
}

// Emit implements the events.Emitter interface.
func (c *CountingEmitter) Emit(ev events.Event) {
	if c == nil || ev == nil {
		return
	}
	Events().RecordEvent(ev.EventType())
	if c.next != nil {
		c.next.Emit(ev)
	}
}
