package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orderbook_sync"

// Metrics holds the collectors of the sync service. A nil *Metrics records nothing.
type Metrics struct {
	messages        *prometheus.CounterVec
	gaps            *prometheus.CounterVec
	inconsistencies *prometheus.CounterVec
	sequence        *prometheus.GaugeVec
	checkpoints     *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Stream messages by product, type and outcome",
		}, []string{"product", "kind", "result"}),
		gaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequence_gaps_total",
			Help:      "Sequence gaps detected by product",
		}, []string{"product"}),
		inconsistencies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inconsistencies_total",
			Help:      "In-sequence messages the book could not apply",
		}, []string{"product"}),
		sequence: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "book_sequence",
			Help:      "Last sequence applied to the book",
		}, []string{"product"}),
		checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_total",
			Help:      "Book checkpoints written, by status",
		}, []string{"product", "status"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Domain events dropped because the publish buffer was full",
		}, []string{"product"}),
	}

	reg.MustRegister(m.messages, m.gaps, m.inconsistencies, m.sequence, m.checkpoints, m.eventsDropped)
	return m
}

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ObserveMessage counts one processed message.
func (m *Metrics) ObserveMessage(product, kind, result string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(product, kind, result).Inc()
}

// SequenceGap counts a detected gap.
func (m *Metrics) SequenceGap(product string) {
	if m == nil {
		return
	}
	m.gaps.WithLabelValues(product).Inc()
}

// Inconsistency counts an inconsistent message.
func (m *Metrics) Inconsistency(product string) {
	if m == nil {
		return
	}
	m.inconsistencies.WithLabelValues(product).Inc()
}

// SetSequence records the book sequence.
func (m *Metrics) SetSequence(product string, seq int64) {
	if m == nil {
		return
	}
	m.sequence.WithLabelValues(product).Set(float64(seq))
}

// Checkpoint counts a checkpoint write.
func (m *Metrics) Checkpoint(product string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.checkpoints.WithLabelValues(product, status).Inc()
}

// EventDropped counts an event lost to a full buffer.
func (m *Metrics) EventDropped(product string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(product).Inc()
}
