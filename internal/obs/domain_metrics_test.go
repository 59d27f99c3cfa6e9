package obs

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestDomainMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustRegisterDomainMetrics("grocery", reg)

	ObserveEvaluation("group", "stacked", 1150)
	ObserveEvaluation("group", "stacked", 300)
	ObserveEvaluation("single", "none", 0)
	ObserveInvalidInput()
	ObserveCatalogFetch("ok", 3.5)
	ObserveRateLimited()
	SetBreakerState("catalog", 1)
	ObserveBreakerTransition("catalog", "closed", "open")

	require.Equal(t, 2.0, testutil.ToFloat64(CouponEvaluationsTotal.WithLabelValues("group", "stacked")))
	require.Equal(t, 1.0, testutil.ToFloat64(CouponEvaluationsTotal.WithLabelValues("single", "none")))
	require.Equal(t, 1.0, testutil.ToFloat64(CouponInvalidInputTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(RateLimitRejectedTotal))
	require.Equal(t, 1, testutil.CollectAndCount(CouponSavingsCents))
	require.Equal(t, 1, testutil.CollectAndCount(CatalogFetchLatency))
	require.Equal(t, 1.0, testutil.ToFloat64(BreakerState.WithLabelValues("catalog")))
	require.Equal(t, 1.0, testutil.ToFloat64(BreakerTransitionsTotal.WithLabelValues("catalog", "closed", "open")))
}
