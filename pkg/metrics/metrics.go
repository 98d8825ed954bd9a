// Package metrics exposes the delivery worker's counters through a dedicated
// Prometheus registry.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "notification"
	subsystem = "worker"
)

type Metrics struct {
	registry     *prometheus.Registry
	consumed     prometheus.Counter
	delivered    prometheus.Counter
	failed       prometheus.Counter
	retried      prometheus.Counter
	deadLettered prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
		registry.MustRegister(c)
		return c
	}

	return &Metrics{
		registry:     registry,
		consumed:     counter("consumed_total", "Envelopes consumed from the delivery queue"),
		delivered:    counter("delivered_total", "Notifications dispatched successfully"),
		failed:       counter("failed_total", "Delivery attempts that failed"),
		retried:      counter("retried_total", "Deliveries requeued for another attempt"),
		deadLettered: counter("dead_lettered_total", "Messages moved to the dead-letter queue"),
	}
}

func (m *Metrics) IncConsumed()     { m.consumed.Inc() }
func (m *Metrics) IncDelivered()    { m.delivered.Inc() }
func (m *Metrics) IncFailed()       { m.failed.Inc() }
func (m *Metrics) IncRetried()      { m.retried.Inc() }
func (m *Metrics) IncDeadLettered() { m.deadLettered.Inc() }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Snapshot reads the current counter values back out of the registry, keyed by
// the bare counter name.
func (m *Metrics) Snapshot() map[string]int64 {
	families, err := m.registry.Gather()
	if err != nil {
		return nil
	}

	snapshot := make(map[string]int64, len(families))
	for _, family := range families {
		name := strings.TrimSuffix(
			strings.TrimPrefix(family.GetName(), namespace+"_"+subsystem+"_"), "_total")
		for _, metric := range family.GetMetric() {
			snapshot[name] += int64(metric.GetCounter().GetValue())
		}
	}
	return snapshot
}
