// Package telemetry provides the Prometheus metrics and OpenTelemetry
// tracing used across parrot.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Reply outcomes recorded by ReplyFinished.
const (
	OutcomeOK              = "ok"
	OutcomeEmpty           = "empty"
	OutcomeError           = "error"
	OutcomePersonaRequired = "persona_required"
	OutcomeTimeout         = "timeout"
)

// Metrics holds the Prometheus collectors of one parrot process.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	messages  *prometheus.CounterVec
	replies   *prometheus.CounterVec
	sinkCalls *prometheus.CounterVec
	coalesced prometheus.Counter
	latency   prometheus.Histogram
	dropped   prometheus.Counter
}

// NewMetrics creates the collectors and registers them, together with the
// Go runtime and process collectors, on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parrot",
			Name:      "messages_total",
			Help:      "Inbound messages processed, by kind (text or command name).",
		}, []string{"kind"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parrot",
			Name:      "replies_total",
			Help:      "Replies finished, by outcome.",
		}, []string{"outcome"}),
		sinkCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parrot",
			Name:      "sink_calls_total",
			Help:      "Calls to messaging sinks, by operation and result.",
		}, []string{"op", "result"}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parrot",
			Name:      "reply_updates_coalesced_total",
			Help:      "Streaming updates superseded before they were sent.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "parrot",
			Name:      "reply_duration_seconds",
			Help:      "Time from receiving a message to the final edit of its reply.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parrot",
			Name:      "inbox_dropped_total",
			Help:      "Inbound messages dropped because the inbox was full.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messages, m.replies, m.sinkCalls, m.coalesced, m.latency, m.dropped,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// MessageReceived counts an inbound message of the given kind.
func (m *Metrics) MessageReceived(kind string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(kind).Inc()
}

// ReplyFinished records the outcome and duration of a reply.
func (m *Metrics) ReplyFinished(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		m.latency.Observe(d.Seconds())
	}
}

// UpdatesCoalesced adds n superseded streaming updates.
func (m *Metrics) UpdatesCoalesced(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.coalesced.Add(float64(n))
}

// SinkCall records one sink operation and whether it failed.
func (m *Metrics) SinkCall(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sinkCalls.WithLabelValues(op, result).Inc()
}

// InboxDropped counts a message rejected by a full inbox.
func (m *Metrics) InboxDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
