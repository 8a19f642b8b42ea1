// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	procTerminate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corerpc_process_signals_total",
		Help: "Signals sent to peer process groups by signal and result",
	}, []string{"signal", "result"})

	procWait = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corerpc_process_exits_total",
		Help: "Peer process exits observed during termination by outcome",
	}, []string{"outcome"})

	// ConnectionsOpened counts connections by transport.
	ConnectionsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corerpc_connections_opened_total",
		Help: "Total connections opened by transport",
	}, []string{"transport"})
)

// IncProcTerminate records a signal sent to a process group.
func IncProcTerminate(signal, result string) {
	procTerminate.WithLabelValues(signal, result).Inc()
}

// IncProcWait records how a terminated process exited.
func IncProcWait(outcome string) {
	procWait.WithLabelValues(outcome).Inc()
}

// IncConnection records an opened connection.
func IncConnection(transport string) {
	ConnectionsOpened.WithLabelValues(transport).Inc()
}
