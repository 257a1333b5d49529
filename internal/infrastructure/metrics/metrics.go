package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "watchsync"

// Metrics groups the coordinator collectors. Every method is safe on a nil
// receiver so components can run without instrumentation.
type Metrics struct {
	connections    prometheus.Gauge
	rooms          prometheus.Gauge
	events         *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	failovers      prometheus.Counter
	droppedClients prometheus.Counter
	sinkErrors     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Live WebSocket connections.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Rooms currently present in the room table.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_events_total",
			Help:      "Inbound client events by name.",
		}, []string{"event"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_events_total",
			Help:      "Inbound events answered with an error, by event and reason.",
		}, []string{"event", "reason"}),
		failovers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "host_failovers_total",
			Help:      "Hosts promoted after the previous host left.",
		}),
		droppedClients: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slow_clients_dropped_total",
			Help:      "Connections closed because their send buffer was full.",
		}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_sink_errors_total",
			Help:      "Room lifecycle events a sink failed to handle.",
		}, []string{"sink"}),
	}

	reg.MustRegister(
		m.connections,
		m.rooms,
		m.events,
		m.rejections,
		m.failovers,
		m.droppedClients,
		m.sinkErrors,
	)

	return m
}

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.rooms.Set(float64(n))
}

func (m *Metrics) Event(name string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(name).Inc()
}

func (m *Metrics) Rejected(event, reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(event, reason).Inc()
}

func (m *Metrics) Failover() {
	if m == nil {
		return
	}
	m.failovers.Inc()
}

func (m *Metrics) SlowClientDropped() {
	if m == nil {
		return
	}
	m.droppedClients.Inc()
}

func (m *Metrics) SinkError(sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}
