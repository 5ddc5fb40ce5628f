// Package metrics holds the Prometheus instruments of the brokerage service.
// Every method is safe on a nil *Metrics so services can run uninstrumented.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for quotes, rule writes and documents.
type Metrics struct {
	// Offers returned by insurance type
	OffersTotal *prometheus.CounterVec

	// Quote latency by insurance type
	QuoteDuration *prometheus.HistogramVec

	// Rule upserts by insurance type and mode (CREATED, UPDATED)
	RuleUpserts *prometheus.CounterVec

	// Deleted rows by entity (health, life, car, car_group)
	RulesDeleted *prometheus.CounterVec

	// Issued documents by insurance type
	DocumentsIssued *prometheus.CounterVec

	// Notifications handled by topic and outcome (sent, failed)
	Notifications *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New registers every instrument on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OffersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerage_offers_total",
			Help: "Total offers returned by insurance type",
		}, []string{"insurance_type"}),

		QuoteDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "brokerage_quote_duration_seconds",
			Help:    "Duration of offer computation including store reads",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"insurance_type"}),

		RuleUpserts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerage_rule_upserts_total",
			Help: "Total rules written by insurance type and mode",
		}, []string{"insurance_type", "mode"}),

		RulesDeleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerage_rules_deleted_total",
			Help: "Total rule rows deleted by entity",
		}, []string{"entity"}),

		DocumentsIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerage_documents_issued_total",
			Help: "Total documents issued by insurance type",
		}, []string{"insurance_type"}),

		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerage_notifications_total",
			Help: "Total document notifications by topic and outcome",
		}, []string{"topic", "outcome"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerage_http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),

		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "brokerage_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ObserveQuote records one offer computation.
func (m *Metrics) ObserveQuote(insuranceType string, offers int, d time.Duration) {
	if m != nil {
		m.OffersTotal.WithLabelValues(insuranceType).Add(float64(offers))
		m.QuoteDuration.WithLabelValues(insuranceType).Observe(d.Seconds())
	}
}

// IncRuleUpsert records one written rule.
func (m *Metrics) IncRuleUpsert(insuranceType, mode string) {
	if m != nil {
		m.RuleUpserts.WithLabelValues(insuranceType, mode).Inc()
	}
}

// AddRulesDeleted records n deleted rows.
func (m *Metrics) AddRulesDeleted(entity string, n int64) {
	if m != nil {
		m.RulesDeleted.WithLabelValues(entity).Add(float64(n))
	}
}

// IncDocumentIssued records one issued document.
func (m *Metrics) IncDocumentIssued(insuranceType string) {
	if m != nil {
		m.DocumentsIssued.WithLabelValues(insuranceType).Inc()
	}
}

// IncNotification records one handled notification.
func (m *Metrics) IncNotification(topic, outcome string) {
	if m != nil {
		m.Notifications.WithLabelValues(topic, outcome).Inc()
	}
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
	}
}
