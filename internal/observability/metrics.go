package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the payment core's Prometheus collectors. A nil *Metrics is
// valid and records nothing, which keeps tests free of registry setup.
type Metrics struct {
	paymentsCreated    *prometheus.CounterVec
	statusTransitions  *prometheus.CounterVec
	callbacksProcessed *prometheus.CounterVec
	gateDenials        *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// NewMetrics registers the payment collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		paymentsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payment",
			Name:      "payments_created_total",
			Help:      "Payments created, labeled by method.",
		}, []string{"method"}),
		statusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payment",
			Name:      "status_transitions_total",
			Help:      "Payment status transitions out of PENDING, labeled by target status.",
		}, []string{"to_status"}),
		callbacksProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payment",
			Name:      "provider_callbacks_total",
			Help:      "Provider callbacks and IPNs processed, labeled by source and outcome.",
		}, []string{"source", "outcome"}),
		gateDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payment",
			Name:      "gate_denials_total",
			Help:      "Write-access gate denials, labeled by reason code.",
		}, []string{"reason"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "payment",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, labeled by route, method and status class.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}

func (m *Metrics) PaymentCreated(method string) {
	if m == nil {
		return
	}
	m.paymentsCreated.WithLabelValues(method).Inc()
}

func (m *Metrics) Transition(toStatus string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(toStatus).Inc()
}

func (m *Metrics) CallbackProcessed(source, outcome string) {
	if m == nil {
		return
	}
	m.callbacksProcessed.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) GateDenied(reason string) {
	if m == nil {
		return
	}
	m.gateDenials.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveHTTPRequest(route, method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(route, method, status).Observe(seconds)
}
