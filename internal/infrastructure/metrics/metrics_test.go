package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectors(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.SetRooms(3)
	m.Event("sync-event")
	m.Rejected("change-url", "not_host")
	m.Failover()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.connections))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.rooms))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("sync-event")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("change-url", "not_host")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failovers))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ConnectionOpened()
		m.SetRooms(1)
		m.Event("chat-message")
		m.SinkError("rabbitmq")
	})
}
