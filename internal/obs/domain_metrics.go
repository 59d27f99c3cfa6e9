package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CouponEvaluationsTotal counts store group evaluations by mode and strategy label.
	CouponEvaluationsTotal *prometheus.CounterVec
	// CouponInvalidInputTotal counts evaluations rejected as invalid input.
	CouponInvalidInputTotal prometheus.Counter
	// CouponSavingsCents observes the savings of each evaluated store group in cents.
	CouponSavingsCents prometheus.Histogram
	// CatalogFetchLatency records coupon catalog lookups in milliseconds.
	CatalogFetchLatency *prometheus.HistogramVec
	// RateLimitRejectedTotal counts requests refused by the rate limiter.
	RateLimitRejectedTotal prometheus.Counter
	// BreakerState reports breaker state per target: 0=closed, 1=open, 2=half-open.
	BreakerState *prometheus.GaugeVec
	// BreakerTransitionsTotal counts breaker state changes.
	BreakerTransitionsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CouponEvaluationsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_evaluations_total",
			Help:      "Count of store group coupon evaluations by mode and strategy.",
		}, []string{"mode", "strategy"}))
		CouponInvalidInputTotal = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_invalid_input_total",
			Help:      "Count of evaluations rejected because the catalog or cart was malformed.",
		}))
		CouponSavingsCents = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "coupon_savings_cents",
			Help:      "Savings per evaluated store group in cents.",
			Buckets:   []float64{0, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}))
		CatalogFetchLatency = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_fetch_duration_ms",
			Help:      "Latency of coupon catalog lookups in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"result"}))
		RateLimitRejectedTotal = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejected_total",
			Help:      "Number of requests rejected by the rate limiter.",
		}))
		BreakerState = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Current breaker state: 0=closed,1=open,2=half-open.",
		}, []string{"target"}))
		BreakerTransitionsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transition_total",
			Help:      "Count of breaker state transitions.",
		}, []string{"target", "from", "to"}))
	})
}

// ObserveEvaluation records the outcome of one store group evaluation. It is
// a no-op until MustRegisterDomainMetrics has run.
func ObserveEvaluation(mode, strategy string, savingsCents int64) {
	if CouponEvaluationsTotal != nil {
		CouponEvaluationsTotal.WithLabelValues(mode, strategy).Inc()
	}
	if CouponSavingsCents != nil {
		CouponSavingsCents.Observe(float64(savingsCents))
	}
}

// ObserveInvalidInput counts one rejected evaluation.
func ObserveInvalidInput() {
	if CouponInvalidInputTotal != nil {
		CouponInvalidInputTotal.Inc()
	}
}

// ObserveCatalogFetch records a catalog lookup latency.
func ObserveCatalogFetch(result string, ms float64) {
	if CatalogFetchLatency != nil {
		CatalogFetchLatency.WithLabelValues(result).Observe(ms)
	}
}

// ObserveRateLimited counts one rejected request.
func ObserveRateLimited() {
	if RateLimitRejectedTotal != nil {
		RateLimitRejectedTotal.Inc()
	}
}

// SetBreakerState publishes a breaker's current state.
func SetBreakerState(target string, state int) {
	if BreakerState != nil {
		BreakerState.WithLabelValues(target).Set(float64(state))
	}
}

// ObserveBreakerTransition counts one breaker state change.
func ObserveBreakerTransition(target, from, to string) {
	if BreakerTransitionsTotal != nil {
		BreakerTransitionsTotal.WithLabelValues(target, from, to).Inc()
	}
}
