package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records inventory reservation activity.
type CheckoutMetrics struct {
	reservationAttempts *prometheus.CounterVec
	contentionRetries   prometheus.Counter
	fallbackActivations prometheus.Counter
	releasedUnits       *prometheus.CounterVec
}

// NewCheckoutMetrics registers the reservation metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_attempts_total",
		Help: "Stock reservation attempts by backend and outcome.",
	}, []string{"backend", "outcome"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reservation_contention_retries_total",
		Help: "Optimistic reservation retries caused by concurrent writers.",
	})
	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reservation_fallback_activations_total",
		Help: "Times the optimistic path was used because stored procedures were unavailable.",
	})
	released := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_released_units_total",
		Help: "Units of stock returned by compensation or cancellation.",
	}, []string{"reason"})
	reg.MustRegister(attempts, retries, fallbacks, released)
	return &CheckoutMetrics{
		reservationAttempts: attempts,
		contentionRetries:   retries,
		fallbackActivations: fallbacks,
		releasedUnits:       released,
	}
}

// IncReservationAttempt records one reservation attempt for a backend with the given outcome.
func (c *CheckoutMetrics) IncReservationAttempt(backend, outcome string) {
	if c == nil || c.reservationAttempts == nil {
		return
	}
	c.reservationAttempts.WithLabelValues(normalizeLabel(backend), normalizeLabel(outcome)).Inc()
}

// IncContentionRetry counts a retry triggered by a lost stock race.
func (c *CheckoutMetrics) IncContentionRetry() {
	if c == nil || c.contentionRetries == nil {
		return
	}
	c.contentionRetries.Inc()
}

// IncFallbackActivation counts a switch to the optimistic path.
func (c *CheckoutMetrics) IncFallbackActivation() {
	if c == nil || c.fallbackActivations == nil {
		return
	}
	c.fallbackActivations.Inc()
}

// AddReleasedUnits counts stock units restored for the given reason.
func (c *CheckoutMetrics) AddReleasedUnits(reason string, units int) {
	if c == nil || c.releasedUnits == nil || units <= 0 {
		return
	}
	c.releasedUnits.WithLabelValues(normalizeLabel(reason)).Add(float64(units))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
