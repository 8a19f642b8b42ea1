// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package client

import (
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ManuGH/corerpc/internal/message"
	"github.com/ManuGH/corerpc/internal/resilience"
	"github.com/ManuGH/corerpc/internal/rpc"
)

// Option configures a Client. Later options override earlier ones.
type Option func(*options)

type options struct {
	streamer    rpc.Streamer
	sender      rpc.MessageSender
	listener    rpc.MessageListener
	ids         message.IDGenerator
	logger      *zerolog.Logger
	callTimeout time.Duration
	breaker     *resilience.CircuitBreaker
	sendLimit   rate.Limit
	sendBurst   int
	tracer      trace.TracerProvider
}

// WithStreamer uses s as is. It takes precedence over WithSender,
// WithListener and WithIDGenerator.
func WithStreamer(s rpc.Streamer) Option {
	return func(o *options) { o.streamer = s }
}

func WithSender(s rpc.MessageSender) Option {
	return func(o *options) { o.sender = s }
}

func WithListener(l rpc.MessageListener) Option {
	return func(o *options) { o.listener = l }
}

func WithSenderAndListener(s rpc.MessageSender, l rpc.MessageListener) Option {
	return func(o *options) {
		o.sender = s
		o.listener = l
	}
}

func WithIDGenerator(ids message.IDGenerator) Option {
	return func(o *options) { o.ids = ids }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = &logger }
}

// WithCallTimeout bounds every Call. Zero leaves calls bounded only by
// their context.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) { o.callTimeout = d }
}

// WithBreaker guards Call with cb. Only transport failures count against
// it; errors returned by the peer do not.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(o *options) { o.breaker = cb }
}

// WithSendRate limits outgoing messages of the default sender.
func WithSendRate(limit rate.Limit, burst int) Option {
	return func(o *options) {
		o.sendLimit = limit
		o.sendBurst = burst
	}
}

// WithTracerProvider traces calls with tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}

func (o *options) build() rpc.Streamer {
	if o.streamer != nil {
		return o.streamer
	}
	sender := o.sender
	if sender == nil {
		var sopts []rpc.SenderOption
		if o.sendLimit > 0 {
			sopts = append(sopts, rpc.WithRateLimit(o.sendLimit, o.sendBurst))
		}
		sender = rpc.NewSender(sopts...)
	}
	listener := o.listener
	if listener == nil {
		listener = rpc.NewListener()
	}
	ids := o.ids
	if ids == nil {
		ids = message.NewSequentialIDs()
	}
	// All components are non-nil here.
	s, _ := rpc.NewStream(sender, listener, ids)
	return s
}
