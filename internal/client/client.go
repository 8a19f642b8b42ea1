// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package client is the user-facing MessagePack-RPC endpoint: typed calls,
// notifications and method-routed request handling over an rpc.Streamer.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/corerpc/internal/log"
	"github.com/ManuGH/corerpc/internal/message"
	"github.com/ManuGH/corerpc/internal/metrics"
	"github.com/ManuGH/corerpc/internal/resilience"
	"github.com/ManuGH/corerpc/internal/rpc"
	"github.com/ManuGH/corerpc/internal/telemetry"
	"github.com/ManuGH/corerpc/internal/transport"
)

var (
	ErrCallTimeout = errors.New("client: call timed out")
	ErrClosed      = errors.New("client: connection closed")
)

const tracerName = "github.com/ManuGH/corerpc/internal/client"

// Client wraps a Streamer.
//
//	c := client.New(client.WithCallTimeout(5 * time.Second))
//	if err := c.Attach(conn); err != nil {
//		return err
//	}
//	defer c.Close()
//	var mode map[string]any
//	err := c.Call(ctx, "nvim_get_mode", &mode)
type Client struct {
	stream      rpc.Streamer
	logger      zerolog.Logger
	callTimeout time.Duration
	breaker     *resilience.CircuitBreaker
	tracer      trace.Tracer

	// ctx is canceled by Close. Handler contexts derive from it.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	conn     transport.Conn
	connID   string
	closed   bool
	handlers map[string]HandlerFunc
	routing  bool
}

// New builds a client. Without options it uses a default Sender, Listener
// and SequentialIDs.
func New(opts ...Option) *Client {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	c := &Client{
		stream:      o.build(),
		callTimeout: o.callTimeout,
		breaker:     o.breaker,
		handlers:    make(map[string]HandlerFunc),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	if o.logger != nil {
		c.logger = *o.logger
	} else {
		c.logger = log.WithComponent("client")
	}
	if o.tracer != nil {
		c.tracer = o.tracer.Tracer(tracerName)
	} else {
		c.tracer = telemetry.Tracer(tracerName)
	}
	return c
}

// NewDefault returns a new client with default components.
func NewDefault() *Client {
	return New()
}

var (
	defaultOnce   sync.Once
	defaultClient *Client
)

// Default returns the process-wide client, creating it on first use.
func Default() *Client {
	defaultOnce.Do(func() { defaultClient = NewDefault() })
	return defaultClient
}

// Attach connects the client to conn and starts reading. The connection is
// given an id that appears in every log entry of this client.
func (c *Client) Attach(conn transport.Conn) error {
	if err := c.stream.Attach(conn); err != nil {
		return err
	}
	id := uuid.NewString()
	c.mu.Lock()
	c.conn = conn
	c.connID = id
	c.logger = c.logger.With().Str(log.FieldConnID, id).Logger()
	logger := c.logger
	c.mu.Unlock()
	logger.Info().
		Str(log.FieldEvent, "client.attached").
		Str("conn", conn.String()).
		Msg("client attached")
	return nil
}

// ConnID returns the id assigned on Attach.
func (c *Client) ConnID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connID
}

func (c *Client) currentLogger() zerolog.Logger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logger
}

func (c *Client) Send(ctx context.Context, msg message.Message) error {
	return c.stream.Send(ctx, msg)
}

func (c *Client) SendRequest(ctx context.Context, req *message.Request) (uint32, error) {
	return c.stream.SendRequest(ctx, req)
}

func (c *Client) SendRequestFunc(ctx context.Context, req *message.Request, cb rpc.ResponseCallback) (uint32, error) {
	return c.stream.SendRequestFunc(ctx, req, cb)
}

func (c *Client) AddRequestHandler(h rpc.RequestCallback) rpc.HandlerID {
	return c.stream.AddRequestHandler(h)
}

func (c *Client) RemoveRequestHandler(id rpc.HandlerID) {
	c.stream.RemoveRequestHandler(id)
}

func (c *Client) AddNotificationHandler(h rpc.NotificationCallback) rpc.HandlerID {
	return c.stream.AddNotificationHandler(h)
}

func (c *Client) RemoveNotificationHandler(id rpc.HandlerID) {
	c.stream.RemoveNotificationHandler(id)
}

// Done is closed when the connection has ended.
func (c *Client) Done() <-chan struct{} { return c.stream.Done() }

// Err reports why the connection ended.
func (c *Client) Err() error { return c.stream.Err() }

// Notify sends a notification.
func (c *Client) Notify(ctx context.Context, method string, args ...any) error {
	return c.stream.Send(ctx, message.NewNotification(method, args...))
}

// Call sends a request and waits for its response. A response error is
// returned as *message.Error. Otherwise the result is decoded into result
// unless result is nil.
func (c *Client) Call(ctx context.Context, method string, result any, args ...any) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	ctx, span := c.tracer.Start(ctx, "rpc.call "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.CallAttributes(method, 0, "outgoing")...))
	defer span.End()

	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, c.callTimeout, ErrCallTimeout)
		defer cancel()
	}

	start := time.Now()
	var (
		resp *message.Response
		err  error
	)
	if c.breaker != nil {
		var callErr error
		err = c.breaker.Execute(func() error {
			resp, callErr = c.roundTrip(ctx, span, method, args)
			if isTransportFailure(callErr) {
				return callErr
			}
			return nil
		})
		if err == nil {
			err = callErr
		}
	} else {
		resp, err = c.roundTrip(ctx, span, method, args)
	}

	logger := c.currentLogger()
	if err != nil {
		outcome := outcomeOf(err)
		metrics.ObserveCall(method, outcome, time.Since(start))
		span.RecordError(err)
		span.SetAttributes(telemetry.ErrorAttributes(err, outcome)...)
		span.SetStatus(codes.Error, outcome)
		logger.Debug().
			Err(err).
			Str(log.FieldEvent, "client.call_failed").
			Str(log.FieldMethod, method).
			Msg("call failed")
		return err
	}
	if resp.Error != nil {
		metrics.ObserveCall(method, "peer_error", time.Since(start))
		span.SetAttributes(telemetry.PeerErrorAttributes(resp.Error.Type.String())...)
		span.SetStatus(codes.Error, resp.Error.Message)
		return resp.Error
	}
	if result != nil {
		if err := resp.Decode(result); err != nil {
			metrics.ObserveCall(method, "error", time.Since(start))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode")
			return fmt.Errorf("client: decode %s result: %w", method, err)
		}
	}
	metrics.ObserveCall(method, "ok", time.Since(start))
	span.SetStatus(codes.Ok, "")
	return nil
}

func (c *Client) roundTrip(ctx context.Context, span trace.Span, method string, args []any) (*message.Response, error) {
	metrics.PendingCalls.Inc()
	defer metrics.PendingCalls.Dec()

	ch := make(chan *message.Response, 1)
	id, err := c.stream.SendRequestFunc(ctx, message.NewRequest(method, args...), func(r *message.Response) {
		ch <- r
	})
	span.SetAttributes(telemetry.CallAttributes(method, id, "outgoing")...)
	if err != nil {
		return nil, c.callErr(ctx, err)
	}

	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		c.stream.CancelResponse(id)
		if r, ok := delivered(ch); ok {
			return r, nil
		}
		return nil, c.callErr(ctx, ctx.Err())
	case <-c.stream.Done():
		c.stream.CancelResponse(id)
		if r, ok := delivered(ch); ok {
			return r, nil
		}
		return nil, ErrClosed
	case <-c.ctx.Done():
		c.stream.CancelResponse(id)
		if r, ok := delivered(ch); ok {
			return r, nil
		}
		return nil, ErrClosed
	}
}

// delivered returns a response that arrived while select picked another
// ready case.
func delivered(ch <-chan *message.Response) (*message.Response, bool) {
	select {
	case r := <-ch:
		return r, true
	default:
		return nil, false
	}
}

func (c *Client) callErr(ctx context.Context, err error) error {
	switch {
	case errors.Is(context.Cause(ctx), ErrCallTimeout):
		return fmt.Errorf("%w after %s", ErrCallTimeout, c.callTimeout)
	case errors.Is(err, rpc.ErrStopped):
		return ErrClosed
	default:
		return err
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrCallTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrClosed):
		return "closed"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	default:
		return "error"
	}
}

// isTransportFailure reports whether err means the connection misbehaved,
// as opposed to the caller giving up or the peer answering with an error.
func isTransportFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var rpcErr *message.Error
	return !errors.As(err, &rpcErr)
}

// Close stops the stream and closes the attached connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	logger := c.logger
	c.mu.Unlock()

	c.cancel()
	c.stream.Stop()
	logger.Info().Str(log.FieldEvent, "client.closed").Msg("client closed")
	if conn == nil {
		return nil
	}
	return conn.Close()
}
