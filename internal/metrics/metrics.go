// Package metrics exposes the POS business counters to Prometheus.
package metrics

import (
	"strings"
	"time"

	"restopos-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "restopos"

// Metrics methods are safe on a nil receiver so services can run without a registry.
type Metrics struct {
	ordersCreated  *prometheus.CounterVec
	invoicesIssued prometheus.Counter
	invoiceTotal   prometheus.Counter
	issueDuration  prometheus.Histogram
	rejections     *prometheus.CounterVec
	cashSessions   *prometheus.CounterVec
	notifyFailures *prometheus.CounterVec
	caiRemaining   prometheus.Gauge
}

func New(registerer prometheus.Registerer, environment string) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	environment = strings.TrimSpace(environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{"env": environment}

	m := &Metrics{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "orders_created_total",
			Help:        "Orders committed, by kind.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		invoicesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "invoices_issued_total",
			Help:        "Fiscal invoices committed.",
			ConstLabels: constLabels,
		}),
		invoiceTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "invoiced_amount_total",
			Help:        "Sum of committed invoice totals.",
			ConstLabels: constLabels,
		}),
		issueDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "invoice_issue_duration_seconds",
			Help:        "Time spent inside the issuance transaction.",
			ConstLabels: constLabels,
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "rejections_total",
			Help:        "Business rejections, by operation and error code.",
			ConstLabels: constLabels,
		}, []string{"operation", "code"}),
		cashSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "cash_sessions_total",
			Help:        "Cash session lifecycle events.",
			ConstLabels: constLabels,
		}, []string{"event"}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "notification_failures_total",
			Help:        "Notifications that could not be delivered, by sink.",
			ConstLabels: constLabels,
		}, []string{"sink"}),
		caiRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "cai_remaining_correlatives",
			Help:        "Correlatives left in the active CAI after the last issuance.",
			ConstLabels: constLabels,
		}),
	}

	registerer.MustRegister(
		m.ordersCreated,
		m.invoicesIssued,
		m.invoiceTotal,
		m.issueDuration,
		m.rejections,
		m.cashSessions,
		m.notifyFailures,
		m.caiRemaining,
	)
	return m
}

func (m *Metrics) OrderCreated(kind string) {
	if m == nil {
		return
	}
	m.ordersCreated.WithLabelValues(kind).Inc()
}

func (m *Metrics) InvoiceIssued(total float64, remaining int64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.invoicesIssued.Inc()
	m.invoiceTotal.Add(total)
	m.caiRemaining.Set(float64(remaining))
	m.issueDuration.Observe(elapsed.Seconds())
}

// Rejected counts err under its error code; unclassified errors count as "internal_error".
func (m *Metrics) Rejected(operation string, err error) {
	if m == nil || err == nil {
		return
	}
	m.rejections.WithLabelValues(operation, apperr.From(err).Code).Inc()
}

func (m *Metrics) CashSession(event string) {
	if m == nil {
		return
	}
	m.cashSessions.WithLabelValues(event).Inc()
}

func (m *Metrics) NotifyFailed(sink string) {
	if m == nil {
		return
	}
	m.notifyFailures.WithLabelValues(sink).Inc()
}

// Handler serves the given gatherer in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) fiber.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
