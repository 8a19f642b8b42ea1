// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ManuGH/corerpc/internal/metrics"
)

type mockClock struct {
	now time.Time
}

func (m *mockClock) Now() time.Time { return m.now }

var errTransport = errors.New("broken pipe")

func fail() error    { return errTransport }
func succeed() error { return nil }

func TestCircuitBreaker_TripsAtThreshold(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 3, 10*time.Second, WithClock(clock.Now))

	assert.ErrorIs(t, cb.Execute(fail), errTransport)
	assert.ErrorIs(t, cb.Execute(fail), errTransport)
	assert.Equal(t, StateClosed, cb.State())

	assert.ErrorIs(t, cb.Execute(fail), errTransport)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open breaker must not run fn")
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Second, WithClock((&mockClock{now: time.Now()}).Now))

	_ = cb.Execute(fail)
	_ = cb.Execute(succeed)
	_ = cb.Execute(fail)
	assert.Equal(t, StateClosed, cb.State(), "failures are consecutive only")
}

func TestCircuitBreaker_HalfOpenBehavior(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 1, 10*time.Second, WithClock(clock.Now))

	_ = cb.Execute(fail)
	assert.Equal(t, StateOpen, cb.State())

	// Probe fails: back to open
	clock.now = clock.now.Add(11 * time.Second)
	assert.ErrorIs(t, cb.Execute(fail), errTransport)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(succeed), ErrCircuitOpen)

	// Probe succeeds: closed
	clock.now = clock.now.Add(11 * time.Second)
	assert.NoError(t, cb.Execute(succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenSingleProbe(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 1, time.Second, WithClock(clock.Now))
	_ = cb.Execute(fail)
	clock.now = clock.now.Add(2 * time.Second)

	probeStarted := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(func() error {
			close(probeStarted)
			<-release
			return nil
		})
	}()
	<-probeStarted

	assert.Equal(t, StateHalfOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(succeed), ErrCircuitOpen, "second probe must be rejected")

	close(release)
	assert.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_FailureClassifier(t *testing.T) {
	errPeer := errors.New("peer said no")
	cb := NewCircuitBreaker("test", 1, time.Second,
		WithClock((&mockClock{now: time.Now()}).Now),
		WithFailureClassifier(func(err error) bool { return !errors.Is(err, errPeer) }),
	)

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return errPeer }), errPeer)
	}
	assert.Equal(t, StateClosed, cb.State(), "classified errors must not trip the breaker")

	_ = cb.Execute(fail)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_PanicRecovery(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, time.Second, WithClock((&mockClock{now: time.Now()}).Now), WithPanicRecovery(true))

	assert.Panics(t, func() {
		_ = cb.Execute(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_PanicInHalfOpenFreesTrial(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 1, time.Second, WithClock(clock.Now))
	_ = cb.Execute(fail)
	clock.now = clock.now.Add(2 * time.Second)

	assert.Panics(t, func() {
		_ = cb.Execute(func() error { panic("boom") })
	})
	assert.Equal(t, StateHalfOpen, cb.State())

	assert.NoError(t, cb.Execute(succeed), "next trial must be admitted")
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_CountedPanicInHalfOpenReopens(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 1, time.Second, WithClock(clock.Now), WithPanicRecovery(true))
	_ = cb.Execute(fail)
	clock.now = clock.now.Add(2 * time.Second)

	assert.Panics(t, func() {
		_ = cb.Execute(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(succeed), ErrCircuitOpen)
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker("test", 0, 0)

	assert.Equal(t, defaultThreshold, cb.threshold)
	assert.Equal(t, defaultCooldown, cb.cooldown)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_IgnoresStaleResults(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("stale", 1, time.Minute, WithClock(clock.Now))

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	_ = cb.Execute(fail)
	assert.Equal(t, StateOpen, cb.State())

	close(release)
	assert.NoError(t, <-done)
	assert.Equal(t, StateOpen, cb.State(), "a call started while closed must not close an open breaker")
}

func TestCircuitBreaker_Metrics(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("metrics-test", 1, time.Second, WithClock(clock.Now))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.BreakerState.WithLabelValues("metrics-test")))

	_ = cb.Execute(fail)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.BreakerState.WithLabelValues("metrics-test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BreakerTrips.WithLabelValues("metrics-test", "threshold_exceeded")))

	clock.now = clock.now.Add(2 * time.Second)
	_ = cb.Execute(fail)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BreakerTrips.WithLabelValues("metrics-test", "probe_failed")))
}
