// SPDX-License-Identifier: MIT

package health

import (
	"context"

	"github.com/ManuGH/corerpc/internal/resilience"
)

// Connection is the part of an RPC endpoint a ConnectionChecker observes.
type Connection interface {
	Done() <-chan struct{}
	Err() error
}

// ConnectionChecker reports the peer connection as unhealthy once it has
// ended.
type ConnectionChecker struct {
	conn Connection
}

func NewConnectionChecker(conn Connection) *ConnectionChecker {
	return &ConnectionChecker{conn: conn}
}

func (c *ConnectionChecker) Name() string {
	return "connection"
}

func (c *ConnectionChecker) Check(context.Context) CheckResult {
	select {
	case <-c.conn.Done():
	default:
		return CheckResult{Status: StatusHealthy, Message: "connected"}
	}
	if err := c.conn.Err(); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: "connection failed",
			Error:   err.Error(),
		}
	}
	return CheckResult{Status: StatusUnhealthy, Message: "connection closed"}
}

// BreakerChecker maps circuit breaker states: open is unhealthy and
// half-open is degraded.
type BreakerChecker struct {
	breaker *resilience.CircuitBreaker
}

func NewBreakerChecker(cb *resilience.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{breaker: cb}
}

func (c *BreakerChecker) Name() string {
	return "circuit_breaker"
}

func (c *BreakerChecker) Check(context.Context) CheckResult {
	switch state := c.breaker.State(); state {
	case resilience.StateOpen:
		return CheckResult{Status: StatusUnhealthy, Message: "calls rejected: breaker " + string(state)}
	case resilience.StateHalfOpen:
		return CheckResult{Status: StatusDegraded, Message: "probing: breaker " + string(state)}
	default:
		return CheckResult{Status: StatusHealthy, Message: "breaker " + string(state)}
	}
}
