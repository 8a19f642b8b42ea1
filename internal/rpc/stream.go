// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rpc

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/corerpc/internal/log"
	"github.com/ManuGH/corerpc/internal/message"
	"github.com/ManuGH/corerpc/internal/metrics"
	"github.com/ManuGH/corerpc/internal/transport"
)

// HandlerID identifies a registered handler for later removal.
type HandlerID uint64

// Streamer is a bidirectional RPC endpoint.
type Streamer interface {
	Attach(conn transport.Conn) error
	Send(ctx context.Context, msg message.Message) error
	SendRequest(ctx context.Context, req *message.Request) (uint32, error)
	SendRequestFunc(ctx context.Context, req *message.Request, cb ResponseCallback) (uint32, error)
	CancelResponse(id uint32)
	AddRequestHandler(h RequestCallback) HandlerID
	RemoveRequestHandler(id HandlerID)
	AddNotificationHandler(h NotificationCallback) HandlerID
	RemoveNotificationHandler(id HandlerID)
	Done() <-chan struct{}
	Err() error
	Stop()
}

type requestEntry struct {
	id HandlerID
	fn RequestCallback
}

type notificationEntry struct {
	id HandlerID
	fn NotificationCallback
}

// Stream is the default Streamer. Every registered handler sees every
// incoming request or notification, in registration order.
type Stream struct {
	sender   MessageSender
	listener MessageListener
	ids      message.IDGenerator
	logger   zerolog.Logger

	mu            sync.RWMutex
	lastHandler   HandlerID
	requests      []requestEntry
	notifications []notificationEntry
}

// NewStream combines the given components. None of them may be nil.
func NewStream(sender MessageSender, listener MessageListener, ids message.IDGenerator) (*Stream, error) {
	if sender == nil || listener == nil || ids == nil {
		return nil, ErrNilComponent
	}
	return &Stream{
		sender:   sender,
		listener: listener,
		ids:      ids,
		logger:   log.WithComponent("stream"),
	}, nil
}

// NewDefaultStream returns a stream over a new Sender, Listener and
// SequentialIDs.
func NewDefaultStream() *Stream {
	s, _ := NewStream(NewSender(), NewListener(), message.NewSequentialIDs())
	return s
}

// Attach wires the stream to conn and starts reading.
func (s *Stream) Attach(conn transport.Conn) error {
	if conn == nil {
		return transport.ErrNilConn
	}
	s.listener.ListenForRequests(s.fanOutRequest)
	s.listener.ListenForNotifications(s.fanOutNotification)
	s.sender.Attach(conn.Writer())
	if err := s.listener.Start(conn.Reader()); err != nil {
		return fmt.Errorf("rpc: attach %s: %w", conn, err)
	}
	s.logger.Info().
		Str(log.FieldEvent, "stream.attached").
		Str("conn", conn.String()).
		Msg("stream attached")
	return nil
}

func (s *Stream) Send(ctx context.Context, msg message.Message) error {
	return s.sender.Send(ctx, msg)
}

// SendRequest assigns the next id to req and sends it.
func (s *Stream) SendRequest(ctx context.Context, req *message.Request) (uint32, error) {
	if req == nil {
		return 0, ErrNilMessage
	}
	id := s.ids.NextID()
	return id, s.sender.Send(ctx, req.WithID(id))
}

// SendRequestFunc assigns the next id to req, registers cb for its
// response and sends it. The registration is removed if the send fails.
func (s *Stream) SendRequestFunc(ctx context.Context, req *message.Request, cb ResponseCallback) (uint32, error) {
	if req == nil {
		return 0, ErrNilMessage
	}
	id := s.ids.NextID()
	s.listener.ListenForResponse(id, cb)
	if err := s.sender.Send(ctx, req.WithID(id)); err != nil {
		s.listener.CancelResponse(id)
		return id, err
	}
	return id, nil
}

func (s *Stream) CancelResponse(id uint32) {
	s.listener.CancelResponse(id)
}

func (s *Stream) AddRequestHandler(h RequestCallback) HandlerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHandler++
	s.requests = append(s.requests, requestEntry{id: s.lastHandler, fn: h})
	return s.lastHandler
}

func (s *Stream) RemoveRequestHandler(id HandlerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.requests {
		if e.id == id {
			s.requests = append(s.requests[:i:i], s.requests[i+1:]...)
			return
		}
	}
}

func (s *Stream) AddNotificationHandler(h NotificationCallback) HandlerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHandler++
	s.notifications = append(s.notifications, notificationEntry{id: s.lastHandler, fn: h})
	return s.lastHandler
}

func (s *Stream) RemoveNotificationHandler(id HandlerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.notifications {
		if e.id == id {
			s.notifications = append(s.notifications[:i:i], s.notifications[i+1:]...)
			return
		}
	}
}

func (s *Stream) Done() <-chan struct{} { return s.listener.Done() }

func (s *Stream) Err() error { return s.listener.Err() }

// Stop stops the listener and the sender. The connection stays open.
func (s *Stream) Stop() {
	s.listener.Stop()
	s.sender.Stop()
	s.logger.Debug().Str(log.FieldEvent, "stream.stopped").Msg("stream stopped")
}

func (s *Stream) fanOutRequest(req *message.Request) {
	s.mu.RLock()
	handlers := s.requests
	s.mu.RUnlock()
	for _, h := range handlers {
		s.guard("request", req.Method, func() { h.fn(req) })
	}
}

func (s *Stream) fanOutNotification(n *message.Notification) {
	s.mu.RLock()
	handlers := s.notifications
	s.mu.RUnlock()
	for _, h := range handlers {
		s.guard("notification", n.Method, func() { h.fn(n) })
	}
}

// guard runs fn and logs a panic instead of letting it skip the remaining
// handlers.
func (s *Stream) guard(kind, method string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncHandlerPanic(kind)
			s.logger.Error().
				Str(log.FieldEvent, "stream.handler_panic").
				Str(log.FieldMsgType, kind).
				Str(log.FieldMethod, method).
				Interface("panic", r).
				Msg("recovered panic in handler")
		}
	}()
	fn()
}
