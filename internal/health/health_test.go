// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/corerpc/internal/resilience"
)

type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(context.Context) CheckResult {
	return CheckResult{Status: m.status}
}

func TestManager_Health_NoCheckers(t *testing.T) {
	m := NewManager("v1.0.0")

	resp := m.Health(context.Background(), true)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.GreaterOrEqual(t, resp.Uptime, int64(0))
	assert.Nil(t, resp.Checks)
}

func TestManager_Health_Verbosity(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "healthy", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestManager_Ready(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})
	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusDegraded, resp.Status)

	m.RegisterChecker(&mockChecker{name: "down", status: StatusUnhealthy})
	m.RegisterChecker(&mockChecker{name: "degraded-again", status: StatusDegraded})
	resp = m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestServeHandlers(t *testing.T) {
	m := NewManager("v9")
	m.RegisterChecker(&mockChecker{name: "down", status: StatusUnhealthy})

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var health HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, StatusUnhealthy, health.Status)
	assert.Equal(t, "v9", health.Version)

	rec = httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var ready ReadinessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ready))
	assert.False(t, ready.Ready)
	assert.Contains(t, ready.Checks, "down")
}

type fakeConn struct {
	done chan struct{}
	err  error
}

func (f *fakeConn) Done() <-chan struct{} { return f.done }
func (f *fakeConn) Err() error            { return f.err }

func TestConnectionChecker(t *testing.T) {
	conn := &fakeConn{done: make(chan struct{})}
	c := NewConnectionChecker(conn)
	assert.Equal(t, "connection", c.Name())
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	close(conn.done)
	res := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "connection closed", res.Message)

	conn.err = errors.New("read: connection reset")
	res = c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "read: connection reset", res.Error)
}

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time { return c.now }

func TestBreakerChecker(t *testing.T) {
	clk := &manualClock{now: time.Unix(0, 0)}
	cb := resilience.NewCircuitBreaker("health-test", 1, time.Second, resilience.WithClock(clk.Now))
	c := NewBreakerChecker(cb)
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	_ = cb.Execute(func() error { return errors.New("down") })
	assert.Equal(t, StatusUnhealthy, c.Check(context.Background()).Status)

	clk.now = clk.now.Add(2 * time.Second)
	var during Status
	_ = cb.Execute(func() error {
		during = c.Check(context.Background()).Status
		return nil
	})
	assert.Equal(t, StatusDegraded, during)
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)
}

type blockingChecker struct{}

func (blockingChecker) Name() string { return "blocking" }

func (blockingChecker) Check(ctx context.Context) CheckResult {
	<-ctx.Done()
	return CheckResult{Status: StatusUnhealthy, Error: ctx.Err().Error()}
}

func TestManager_Ready_CheckTimeout(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(blockingChecker{})
	m.RegisterChecker(&mockChecker{name: "ok", status: StatusHealthy})

	start := time.Now()
	resp := m.Ready(context.Background())
	assert.Less(t, time.Since(start), CheckTimeout+time.Second)
	assert.False(t, resp.Ready)
	assert.Equal(t, context.DeadlineExceeded.Error(), resp.Checks["blocking"].Error)
	assert.Equal(t, StatusHealthy, resp.Checks["ok"].Status)
}
