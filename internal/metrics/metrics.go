package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics Prometheus реализация service.Metrics на собственном registry
type Metrics struct {
	registry *prometheus.Registry

	cartMutations   *prometheus.CounterVec
	favoriteToggles *prometheus.CounterVec
	persistWrites   *prometheus.CounterVec
	catalogFetches  *prometheus.CounterVec
	staleResponses  prometheus.Counter
	wsClients       prometheus.Gauge
}

// New создаёт и регистрирует все коллекторы
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Cart mutations by operation",
		}, []string{"op"}),
		favoriteToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "favorite_toggles_total",
			Help:      "Favorite toggles by resulting action",
		}, []string{"action"}),
		persistWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_writes_total",
			Help:      "Key-value store writes by key and result",
		}, []string{"key", "result"}),
		catalogFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_fetches_total",
			Help:      "Catalog requests by operation and result",
		}, []string{"op", "result"}),
		staleResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_stale_responses_total",
			Help:      "Listing responses discarded because their session was superseded",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected WebSocket clients",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cartMutations,
		m.favoriteToggles,
		m.persistWrites,
		m.catalogFetches,
		m.staleResponses,
		m.wsClients,
	)
	return m
}

// Handler отдаёт /metrics для собственного registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) CartMutation(op string) {
	m.cartMutations.WithLabelValues(op).Inc()
}

func (m *Metrics) FavoriteToggled(added bool) {
	action := "removed"
	if added {
		action = "added"
	}
	m.favoriteToggles.WithLabelValues(action).Inc()
}

func (m *Metrics) PersistWrite(key string, err error) {
	m.persistWrites.WithLabelValues(key, result(err)).Inc()
}

func (m *Metrics) CatalogFetch(op string, err error) {
	m.catalogFetches.WithLabelValues(op, result(err)).Inc()
}

func (m *Metrics) StaleResponseDiscarded() {
	m.staleResponses.Inc()
}

// WSClientConnected / WSClientDisconnected вызываются из internal/api/ws
func (m *Metrics) WSClientConnected() {
	m.wsClients.Inc()
}

func (m *Metrics) WSClientDisconnected() {
	m.wsClients.Dec()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
