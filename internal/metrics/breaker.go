// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BreakerState is 0 when closed, 1 when half-open and 2 when open.
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "corerpc_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, []string{"breaker"})

	// BreakerTrips counts transitions to open by reason.
	BreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corerpc_breaker_trips_total",
		Help: "Circuit breaker transitions to open by reason",
	}, []string{"breaker", "reason"})
)

// SetBreakerState records the numeric state of a breaker.
func SetBreakerState(breaker string, value float64) {
	BreakerState.WithLabelValues(breaker).Set(value)
}

// IncBreakerTrip records a breaker opening.
func IncBreakerTrip(breaker, reason string) {
	BreakerTrips.WithLabelValues(breaker, reason).Inc()
}
