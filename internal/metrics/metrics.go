// Package metrics exposes relay counters in Prometheus format.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a metrics endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pairchat/internal/message"
)

const namespace = "pairchat"

type Metrics struct {
	registry *prometheus.Registry

	connected      prometheus.Gauge
	registered     prometheus.Counter
	relayed        prometheus.Counter
	dropped        prometheus.Counter
	protocolErrors *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clients_connected",
			Help:      "Number of clients currently registered.",
		}),
		registered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clients_registered_total",
			Help:      "Number of client ids handed out.",
		}),
		relayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_relayed_total",
			Help:      "Number of new_message frames forwarded to a peer.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Number of outbound frames dropped because a client queue was full.",
		}),
		protocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Number of error frames sent to clients, by kind.",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		m.connected,
		m.registered,
		m.relayed,
		m.dropped,
		m.protocolErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ClientRegistered(connected int) {
	if m == nil {
		return
	}
	m.registered.Inc()
	m.connected.Set(float64(connected))
}

func (m *Metrics) ClientRemoved(connected int) {
	if m == nil {
		return
	}
	m.connected.Set(float64(connected))
}

func (m *Metrics) MessageRelayed() {
	if m == nil {
		return
	}
	m.relayed.Inc()
}

func (m *Metrics) MessageDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) ProtocolError(kind message.Kind) {
	if m == nil {
		return
	}
	m.protocolErrors.WithLabelValues(string(kind)).Inc()
}
