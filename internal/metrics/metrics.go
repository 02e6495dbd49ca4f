// Package metrics holds the Prometheus collectors of the realtime layer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_active_connections",
		Help: "Active websocket connections",
	})

	Subscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_room_subscriptions",
		Help: "Room subscriptions across all connections",
	})

	Intents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_intents_total",
		Help: "Inbound realtime intents by type and outcome",
	}, []string{"type", "outcome"})

	Deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_broadcast_deliveries_total",
		Help: "Broadcast events handed to connections, by result",
	}, []string{"result"})
)

// Init registers every collector with the default registry.
func Init() {
	prometheus.MustRegister(Connections, Subscriptions, Intents, Deliveries)
}

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
