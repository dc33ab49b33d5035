/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package regulator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsLabelService = "service"
	metricsLabelStatus  = "status"
)

// Statuses of finished wrapped calls as they are reported to metrics.
const (
	CallStatusOK            = "ok"
	CallStatusError         = "error"
	CallStatusNotConfigured = "not_configured"
	CallStatusCanceled      = "canceled"
)

// MetricsCollector represents a collector of metrics about regulated calls.
type MetricsCollector interface {
	// IncPendingCalls increments the number of calls that are queued at the
	// concurrency gate or executing for the service.
	IncPendingCalls(service string)

	// DecPendingCalls decrements the number of calls that are queued at the
	// concurrency gate or executing for the service.
	DecPendingCalls(service string)

	// IncThrottleDelays increments the number of operation starts that were
	// delayed by the rate throttle for the service.
	IncThrottleDelays(service string)

	// IncRetryAttempts increments the number of retried attempts for the service.
	IncRetryAttempts(service string)

	// ObserveCall registers a finished wrapped call with its status and duration.
	ObserveCall(service string, status string, elapsed time.Duration)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels

	// CurriedLabelNames is a list of label names that will be curried with the provided labels.
	// See PrometheusMetrics.MustCurryWith method for more details.
	// Keep in mind that if this list is not empty,
	// PrometheusMetrics.MustCurryWith method must be called further with the same labels.
	// Otherwise, the collector will panic.
	CurriedLabelNames []string
}

// PrometheusMetrics represents Prometheus metrics for regulated calls.
type PrometheusMetrics struct {
	PendingCalls        *prometheus.GaugeVec
	ThrottleDelaysTotal *prometheus.CounterVec
	RetryAttemptsTotal  *prometheus.CounterVec
	CallDurationSeconds *prometheus.HistogramVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	pendingCalls := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "regulator_pending_calls",
			Help:        "Number of calls queued at the concurrency gate or executing.",
			ConstLabels: opts.ConstLabels,
		},
		append([]string{metricsLabelService}, opts.CurriedLabelNames...),
	)

	throttleDelaysTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "regulator_throttle_delays_total",
			Help:        "Number of operation starts delayed by the rate throttle.",
			ConstLabels: opts.ConstLabels,
		},
		append([]string{metricsLabelService}, opts.CurriedLabelNames...),
	)

	retryAttemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "regulator_retry_attempts_total",
			Help:        "Number of retried operation attempts.",
			ConstLabels: opts.ConstLabels,
		},
		append([]string{metricsLabelService}, opts.CurriedLabelNames...),
	)

	callDurationSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "regulator_call_duration_seconds",
			Help:        "Time spent in a wrapped call, waiting and retries included.",
			ConstLabels: opts.ConstLabels,
			Buckets:     prometheus.DefBuckets,
		},
		append([]string{metricsLabelService, metricsLabelStatus}, opts.CurriedLabelNames...),
	)

	return &PrometheusMetrics{
		PendingCalls:        pendingCalls,
		ThrottleDelaysTotal: throttleDelaysTotal,
		RetryAttemptsTotal:  retryAttemptsTotal,
		CallDurationSeconds: callDurationSeconds,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		PendingCalls:        pm.PendingCalls.MustCurryWith(labels),
		ThrottleDelaysTotal: pm.ThrottleDelaysTotal.MustCurryWith(labels),
		RetryAttemptsTotal:  pm.RetryAttemptsTotal.MustCurryWith(labels),
		CallDurationSeconds: pm.CallDurationSeconds.MustCurryWith(labels).(*prometheus.HistogramVec),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.PendingCalls,
		pm.ThrottleDelaysTotal,
		pm.RetryAttemptsTotal,
		pm.CallDurationSeconds,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.PendingCalls)
	prometheus.Unregister(pm.ThrottleDelaysTotal)
	prometheus.Unregister(pm.RetryAttemptsTotal)
	prometheus.Unregister(pm.CallDurationSeconds)
}

// IncPendingCalls increments the number of pending calls for the service.
func (pm *PrometheusMetrics) IncPendingCalls(service string) {
	pm.PendingCalls.With(prometheus.Labels{metricsLabelService: service}).Inc()
}

// DecPendingCalls decrements the number of pending calls for the service.
func (pm *PrometheusMetrics) DecPendingCalls(service string) {
	pm.PendingCalls.With(prometheus.Labels{metricsLabelService: service}).Dec()
}

// IncThrottleDelays increments the number of delayed operation starts for the service.
func (pm *PrometheusMetrics) IncThrottleDelays(service string) {
	pm.ThrottleDelaysTotal.With(prometheus.Labels{metricsLabelService: service}).Inc()
}

// IncRetryAttempts increments the number of retried attempts for the service.
func (pm *PrometheusMetrics) IncRetryAttempts(service string) {
	pm.RetryAttemptsTotal.With(prometheus.Labels{metricsLabelService: service}).Inc()
}

// ObserveCall registers a finished wrapped call with its status and duration.
func (pm *PrometheusMetrics) ObserveCall(service string, status string, elapsed time.Duration) {
	pm.CallDurationSeconds.With(
		prometheus.Labels{metricsLabelService: service, metricsLabelStatus: status},
	).Observe(elapsed.Seconds())
}

type disabledMetrics struct{}

func (disabledMetrics) IncPendingCalls(string)                    {}
func (disabledMetrics) DecPendingCalls(string)                    {}
func (disabledMetrics) IncThrottleDelays(string)                  {}
func (disabledMetrics) IncRetryAttempts(string)                   {}
func (disabledMetrics) ObserveCall(string, string, time.Duration) {}

var disabledMetricsCollector = disabledMetrics{}
