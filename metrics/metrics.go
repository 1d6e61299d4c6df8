// Package metrics provides Prometheus metrics for the tracker bridge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters the bridge components report into. A nil
// *Metrics is allowed; callers guard with a nil check so tests can run
// without a registry.
type Metrics struct {
	registry *prometheus.Registry

	messagesReceived *prometheus.CounterVec
	parseErrors      prometheus.Counter

	pointsCreated        prometheus.Counter
	pointsFinalized      prometheus.Counter
	coordinatesPersisted prometheus.Counter
	coordinatesDropped   prometheus.Counter
	storeRetries         prometheus.Counter

	broadcasts prometheus.Counter
	reconnects prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		messagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracker",
			Subsystem: "bridge",
			Name:      "messages_received_total",
			Help:      "Bus messages received, by topic.",
		}, []string{"topic"}),
		parseErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tracker",
			Subsystem: "bridge",
			Name:      "parse_errors_total",
			Help:      "Malformed payloads dropped by the topic router.",
		}),
		pointsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tracker",
			Subsystem: "store",
			Name:      "points_created_total",
			Help:      "Point records opened in the store.",
		}),
		pointsFinalized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tracker",
			Subsystem: "store",
			Name:      "points_finalized_total",
			Help:      "Point records finalized in the store.",
		}),
		coordinatesPersisted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tracker",
			Subsystem: "store",
			Name:      "coordinates_persisted_total",
			Help:      "Coordinate samples written to the store.",
		}),
		coordinatesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tracker",
			Subsystem: "store",
			Name:      "coordinates_dropped_total",
			Help:      "Coordinate samples dropped (idle point, full queue, or write failure).",
		}),
		storeRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tracker",
			Subsystem: "store",
			Name:      "write_retries_total",
			Help:      "Retried create/finalize writes after transient store errors.",
		}),
		broadcasts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tracker",
			Subsystem: "fanout",
			Name:      "broadcasts_total",
			Help:      "Notifications offered to the live-subscriber hub.",
		}),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tracker",
			Subsystem: "bridge",
			Name:      "bus_reconnects_total",
			Help:      "Reconnects to the message bus after a lost connection.",
		}),
	}
}

// Handler serves the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordMessage(topic string) { m.messagesReceived.WithLabelValues(topic).Inc() }
func (m *Metrics) RecordParseError() { m.parseErrors.Inc() }
func (m *Metrics) RecordPointCreated() { m.pointsCreated.Inc() }
func (m *Metrics) RecordPointFinalized() { m.pointsFinalized.Inc() }
func (m *Metrics) RecordCoordinatePersisted() { m.coordinatesPersisted.Inc() }
func (m *Metrics) RecordCoordinateDropped() { m.coordinatesDropped.Inc() }
func (m *Metrics) RecordStoreRetry() { m.storeRetries.Inc() }
func (m *Metrics) RecordBroadcast() { m.broadcasts.Inc() }
func (m *Metrics) RecordReconnect() { m.reconnects.Inc() }
