// Package metrics holds the Prometheus instruments of the ledger services.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	EntriesCreated   prometheus.Counter
	EntriesDeleted   prometheus.Counter
	EntriesRejected  *prometheus.CounterVec
	Settlements      *prometheus.CounterVec
	SettlementAmount *prometheus.GaugeVec
	PublishFailures  prometheus.Counter
	SyncProcessed    *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the instruments on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewWithRegistry registers the instruments on reg; tests pass a fresh
// prometheus.NewRegistry for both arguments.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EntriesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "kakeibo_entries_created_total",
			Help: "Ledger entries appended.",
		}),
		EntriesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "kakeibo_entries_deleted_total",
			Help: "Ledger entries deleted.",
		}),
		EntriesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kakeibo_entries_rejected_total",
			Help: "Entry submissions rejected by validation, by reason.",
		}, []string{"reason"}),
		Settlements: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kakeibo_settlements_total",
			Help: "Settlements computed, by resulting direction.",
		}, []string{"direction"}),
		SettlementAmount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kakeibo_settlement_amount_yen",
			Help: "Directional totals of the last computed settlement.",
		}, []string{"side"}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "kakeibo_publish_failures_total",
			Help: "Entry events that could not be published to the broker.",
		}),
		SyncProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kakeibo_sync_messages_total",
			Help: "Sync messages handled by the worker, by action and result.",
		}, []string{"action", "result"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kakeibo_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kakeibo_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		gatherer: gatherer,
	}
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
