package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCheckoutMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)

	m.IncReservationAttempt("procedure", "ok")
	m.IncReservationAttempt("optimistic", "contention")
	m.IncContentionRetry()
	m.IncFallbackActivation()
	m.AddReleasedUnits("compensation", 3)
	m.AddReleasedUnits("compensation", 0)

	if got := testutil.ToFloat64(m.contentionRetries); got != 1 {
		t.Fatalf("contention retries = %v", got)
	}
	if got := testutil.ToFloat64(m.fallbackActivations); got != 1 {
		t.Fatalf("fallback activations = %v", got)
	}
	if got := testutil.ToFloat64(m.releasedUnits.WithLabelValues("compensation")); got != 3 {
		t.Fatalf("released units = %v", got)
	}
	if got := testutil.ToFloat64(m.reservationAttempts.WithLabelValues("procedure", "ok")); got != 1 {
		t.Fatalf("procedure attempts = %v", got)
	}
}

func TestCheckoutMetricsNilSafe(t *testing.T) {
	var m *CheckoutMetrics
	m.IncReservationAttempt("procedure", "ok")
	m.IncContentionRetry()
	m.IncFallbackActivation()
	m.AddReleasedUnits("cancel", 2)

	empty := NewCheckoutMetrics(nil)
	empty.IncReservationAttempt("", "")
	empty.AddReleasedUnits("", 1)
}
