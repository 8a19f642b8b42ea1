// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/corerpc/internal/log"
	"github.com/ManuGH/corerpc/internal/message"
	"github.com/ManuGH/corerpc/internal/metrics"
	"github.com/ManuGH/corerpc/internal/telemetry"
)

// HandlerFunc answers a request. Returning a *message.Error sends it as is;
// any other error is sent as an exception.
type HandlerFunc func(ctx context.Context, args []any) (any, error)

// Handle routes requests for method to fn, replacing any previous handler
// for that method. Once a method is handled, requests for unknown methods
// are answered with a validation error.
func (c *Client) Handle(method string, fn HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn == nil {
		delete(c.handlers, method)
		return
	}
	c.handlers[method] = fn
	if !c.routing {
		c.routing = true
		c.stream.AddRequestHandler(c.route)
	}
}

func (c *Client) route(req *message.Request) {
	c.mu.Lock()
	fn := c.handlers[req.Method]
	connID := c.connID
	logger := c.logger
	c.mu.Unlock()

	ctx := log.ContextWithConnID(c.ctx, connID)
	ctx = log.ContextWithRequestID(ctx, uuid.NewString())
	ctx, span := c.tracer.Start(ctx, "rpc.handle "+req.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(telemetry.CallAttributes(req.Method, req.ID, "incoming")...))
	defer span.End()

	var resp *message.Response
	if fn == nil {
		resp = message.NewErrorResponse(message.Validation("method not found: " + req.Method))
	} else {
		resp = c.invoke(ctx, fn, req)
	}
	if resp.Error != nil {
		span.SetAttributes(telemetry.PeerErrorAttributes(resp.Error.Type.String())...)
		span.SetStatus(codes.Error, resp.Error.Message)
	}

	if err := c.stream.Send(ctx, resp.WithID(req.ID)); err != nil {
		span.RecordError(err)
		logger.Warn().
			Err(err).
			Str(log.FieldEvent, "client.reply_failed").
			Str(log.FieldMethod, req.Method).
			Uint32(log.FieldMsgID, req.ID).
			Msg("failed to send response")
	}
}

func (c *Client) invoke(ctx context.Context, fn HandlerFunc, req *message.Request) (resp *message.Response) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncHandlerPanic("request")
			logger := c.currentLogger()
			logger.Error().
				Str(log.FieldEvent, "client.handler_panic").
				Str(log.FieldRequestID, log.RequestIDFromContext(ctx)).
				Str(log.FieldMethod, req.Method).
				Uint32(log.FieldMsgID, req.ID).
				Interface("panic", r).
				Msg("recovered panic in request handler")
			resp = message.NewErrorResponse(message.Exception(fmt.Sprintf("handler panicked: %v", r)))
		}
	}()

	result, err := fn(ctx, req.Args)
	if err == nil {
		return message.NewResponse(result)
	}
	var rpcErr *message.Error
	if errors.As(err, &rpcErr) {
		return message.NewErrorResponse(rpcErr)
	}
	return message.NewErrorResponse(message.Exception(err.Error()))
}
