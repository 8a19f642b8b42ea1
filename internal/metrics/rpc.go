// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the prometheus collectors of the RPC endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesSent counts frames written to the peer.
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corerpc_messages_sent_total",
		Help: "Total messages written to the peer by type",
	}, []string{"type"})

	// MessagesReceived counts frames decoded from the peer.
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corerpc_messages_received_total",
		Help: "Total messages decoded from the peer by type",
	}, []string{"type"})

	// SendErrors counts failed writes.
	SendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "corerpc_send_errors_total",
		Help: "Total messages that could not be written to the peer",
	})

	// DecodeErrors counts frames the listener had to discard.
	DecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "corerpc_decode_errors_total",
		Help: "Total malformed frames discarded by the listener",
	})

	// UnmatchedResponses counts responses nobody was waiting for.
	UnmatchedResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "corerpc_unmatched_responses_total",
		Help: "Total responses received without a pending request",
	})

	// PendingCalls tracks requests waiting for their response.
	PendingCalls = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "corerpc_pending_calls",
		Help: "Requests currently waiting for a response",
	})

	// QueuedNotifications tracks notifications waiting for their callback.
	QueuedNotifications = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "corerpc_queued_notifications",
		Help: "Notifications decoded but not yet handed to a callback",
	})

	callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "corerpc_call_duration_seconds",
		Help:    "Round-trip duration of calls by method and outcome",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2.0, 18), // 100us to ~13s
	}, []string{"method", "outcome"})

	handlerPanics = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corerpc_handler_panics_total",
		Help: "Total panics recovered from request and notification handlers",
	}, []string{"kind"})
)

// IncSent records a written message.
func IncSent(msgType string) {
	MessagesSent.WithLabelValues(msgType).Inc()
}

// IncReceived records a decoded message.
func IncReceived(msgType string) {
	MessagesReceived.WithLabelValues(msgType).Inc()
}

// ObserveCall records the duration of a finished call.
// Outcome is one of "ok", "peer_error", "timeout", "canceled", "closed",
// "circuit_open" or "error".
func ObserveCall(method, outcome string, d time.Duration) {
	callDuration.WithLabelValues(method, outcome).Observe(d.Seconds())
}

// IncHandlerPanic records a recovered handler panic.
func IncHandlerPanic(kind string) {
	handlerPanics.WithLabelValues(kind).Inc()
}
