// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resilience guards calls to a peer that keeps failing.
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/corerpc/internal/log"
	"github.com/ManuGH/corerpc/internal/metrics"
)

// State is the position of a CircuitBreaker.
type State string

const (
	StateClosed   State = "closed"
	StateHalfOpen State = "half-open"
	StateOpen     State = "open"
)

func (s State) gauge() float64 {
	switch s {
	case StateHalfOpen:
		return 1
	case StateOpen:
		return 2
	default:
		return 0
	}
}

// ErrCircuitOpen is returned by Execute without running the function.
var ErrCircuitOpen = errors.New("circuit breaker is open")

const (
	defaultThreshold = 3
	defaultCooldown  = 30 * time.Second
)

// CircuitBreaker opens after threshold consecutive failures and rejects
// calls until the cooldown has passed. Then a single probe is let through:
// success closes the breaker, failure opens it again.
//
// Results of calls started before the last state change are ignored.
type CircuitBreaker struct {
	name        string
	threshold   int
	cooldown    time.Duration
	now         func() time.Time
	isFailure   func(error) bool
	countPanics bool
	logger      zerolog.Logger

	mu          sync.Mutex
	state       State
	generation  uint64
	consecutive int
	openedAt    time.Time
	probing     bool
}

type Option func(*CircuitBreaker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) {
		if now != nil {
			cb.now = now
		}
	}
}

// WithPanicRecovery counts a panicking call as a failure before the panic
// continues. Without it a panic leaves the failure count as it was.
func WithPanicRecovery(enabled bool) Option {
	return func(cb *CircuitBreaker) { cb.countPanics = enabled }
}

// WithFailureClassifier sets which errors count as failures. By default
// every non-nil error does; other errors pass through as successes.
func WithFailureClassifier(fn func(error) bool) Option {
	return func(cb *CircuitBreaker) {
		if fn != nil {
			cb.isFailure = fn
		}
	}
}

// NewCircuitBreaker returns a closed breaker. Non-positive threshold or
// cooldown select the defaults of 3 failures and 30 seconds.
func NewCircuitBreaker(name string, threshold int, cooldown time.Duration, opts ...Option) *CircuitBreaker {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	cb := &CircuitBreaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		isFailure: func(err error) bool { return err != nil },
		logger:    log.WithComponent("resilience").With().Str("breaker", name).Logger(),
		state:     StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	metrics.SetBreakerState(name, StateClosed.gauge())
	return cb
}

// Execute runs fn unless the breaker is open and records its outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	gen, err := cb.acquire()
	if err != nil {
		return err
	}
	returned := false
	defer func() {
		if returned {
			return
		}
		// fn panicked or called runtime.Goexit.
		if cb.countPanics {
			cb.release(gen, true)
		} else {
			cb.abandon(gen)
		}
	}()
	err = fn()
	returned = true
	cb.release(gen, err != nil && cb.isFailure(err))
	return err
}

func (cb *CircuitBreaker) acquire() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return 0, ErrCircuitOpen
		}
		cb.setState(StateHalfOpen, "")
	case StateHalfOpen:
		if cb.probing {
			return 0, ErrCircuitOpen
		}
	default:
		return cb.generation, nil
	}
	cb.probing = true
	return cb.generation, nil
}

func (cb *CircuitBreaker) release(gen uint64, failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if gen != cb.generation {
		return
	}
	switch cb.state {
	case StateHalfOpen:
		if failed {
			cb.setState(StateOpen, "probe_failed")
		} else {
			cb.setState(StateClosed, "")
		}
	case StateClosed:
		if !failed {
			cb.consecutive = 0
			return
		}
		cb.consecutive++
		if cb.consecutive >= cb.threshold {
			cb.setState(StateOpen, "threshold_exceeded")
		}
	}
}

// abandon frees the half-open trial slot without recording an outcome.
func (cb *CircuitBreaker) abandon(gen uint64) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if gen == cb.generation && cb.state == StateHalfOpen {
		cb.probing = false
	}
}

// setState moves to next and starts a new generation. Callers hold mu.
func (cb *CircuitBreaker) setState(next State, reason string) {
	prev := cb.state
	cb.state = next
	cb.generation++
	cb.consecutive = 0
	cb.probing = false
	if next == StateOpen {
		cb.openedAt = cb.now()
		metrics.IncBreakerTrip(cb.name, reason)
	}
	metrics.SetBreakerState(cb.name, next.gauge())

	ev := cb.logger.Info()
	if next == StateOpen {
		ev = cb.logger.Warn().Str("reason", reason)
	}
	ev.Str(log.FieldEvent, "breaker.state_changed").
		Str("from", string(prev)).
		Str("to", string(next)).
		Msg("circuit breaker state changed")
}

// State returns the current state. An open breaker whose cooldown has
// passed reports open until the next Execute lets a probe through.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
