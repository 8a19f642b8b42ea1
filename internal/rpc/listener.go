// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rpc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"runtime"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/corerpc/internal/log"
	"github.com/ManuGH/corerpc/internal/message"
	"github.com/ManuGH/corerpc/internal/metrics"
)

type (
	ResponseCallback     func(*message.Response)
	RequestCallback      func(*message.Request)
	NotificationCallback func(*message.Notification)
)

// MessageListener reads messages from the peer and dispatches them.
type MessageListener interface {
	// Start begins reading r on a background goroutine.
	Start(r io.Reader) error
	// ListenForResponse registers a one-shot callback for response id.
	ListenForResponse(id uint32, cb ResponseCallback)
	// CancelResponse drops the callback registered for id.
	CancelResponse(id uint32)
	// ListenForRequests sets the request callback. Nil clears it.
	ListenForRequests(cb RequestCallback)
	// ListenForNotifications sets the notification callback. Nil clears it.
	ListenForNotifications(cb NotificationCallback)
	// Stop ends dispatching and waits for running callbacks.
	Stop()
	// Done is closed once reading has ended.
	Done() <-chan struct{}
	// Err reports why reading ended.
	Err() error
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithListenerLogger replaces the component logger.
func WithListenerLogger(logger zerolog.Logger) ListenerOption {
	return func(l *Listener) { l.logger = logger }
}

const (
	listenerIdle = iota
	listenerRunning
	listenerStopped
)

// Listener is the default MessageListener.
//
// Responses are delivered on the reader goroutine in arrival order, so a
// response callback must not block. Notifications are delivered in arrival
// order on their own goroutine through an unbounded queue, so the reader
// never waits for a notification callback. Each request runs on a fresh
// goroutine and may call back into the peer.
type Listener struct {
	logger zerolog.Logger

	mu             sync.Mutex
	state          int
	responses      map[uint32]ResponseCallback
	onRequest      RequestCallback
	onNotification NotificationCallback
	err            error

	// running counts callbacks in progress per goroutine id.
	running map[uint64]int
	idle    *sync.Cond

	notifications *notificationQueue
	done          chan struct{}
}

// NewListener returns a listener that has not started reading.
func NewListener(opts ...ListenerOption) *Listener {
	l := &Listener{
		logger:        log.WithComponent("listener"),
		responses:     make(map[uint32]ResponseCallback),
		running:       make(map[uint64]int),
		notifications: newNotificationQueue(),
		done:          make(chan struct{}),
	}
	l.idle = sync.NewCond(&l.mu)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start begins reading r. It fails with ErrAlreadyStarted on a second call
// and with ErrStopped after Stop.
func (l *Listener) Start(r io.Reader) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case listenerRunning:
		return ErrAlreadyStarted
	case listenerStopped:
		return ErrStopped
	}
	l.state = listenerRunning

	notifyDone := make(chan struct{})
	go l.deliverNotifications(notifyDone)
	go l.read(r, notifyDone)
	return nil
}

func (l *Listener) ListenForResponse(id uint32, cb ResponseCallback) {
	if cb == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == listenerStopped {
		return
	}
	l.responses[id] = cb
}

func (l *Listener) CancelResponse(id uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.responses, id)
}

func (l *Listener) ListenForRequests(cb RequestCallback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onRequest = cb
}

func (l *Listener) ListenForNotifications(cb NotificationCallback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onNotification = cb
}

// Stop ends dispatching: messages not yet handed to a callback are dropped
// and pending response callbacks are discarded. Stop returns once every
// running callback has returned, so no callback runs after it. Called from
// inside a callback it returns without waiting, since that callback cannot
// return before Stop does.
// The reader keeps draining its input until that fails, so callers close
// the connection to release it. Stop cannot be undone.
func (l *Listener) Stop() {
	gid := goroutineID()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != listenerStopped {
		wasIdle := l.state == listenerIdle
		l.state = listenerStopped
		l.responses = make(map[uint32]ResponseCallback)
		l.onRequest = nil
		l.onNotification = nil
		l.notifications.clear()
		if wasIdle {
			close(l.done)
		}
	}
	if l.running[gid] > 0 {
		return
	}
	for len(l.running) > 0 {
		l.idle.Wait()
	}
}

func (l *Listener) Done() <-chan struct{} { return l.done }

// Err is nil while reading, after a clean end of input and after Stop.
func (l *Listener) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Pending reports how many response callbacks are registered.
func (l *Listener) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.responses)
}

func (l *Listener) read(r io.Reader, notifyDone <-chan struct{}) {
	gid := goroutineID()
	dec := message.NewDecoder(r)
	var readErr error
	for {
		msg, err := dec.Next()
		if err != nil {
			if errors.Is(err, message.ErrMalformed) {
				metrics.DecodeErrors.Inc()
				l.logger.Warn().
					Err(err).
					Str(log.FieldEvent, "listener.decode_failed").
					Msg("discarding malformed frame")
				continue
			}
			readErr = err
			break
		}
		metrics.IncReceived(msg.Type().String())
		l.dispatch(gid, msg)
	}

	l.notifications.close()
	<-notifyDone

	l.mu.Lock()
	stopped := l.state == listenerStopped
	if !stopped && !isClosedErr(readErr) {
		l.err = fmt.Errorf("rpc: read: %w", readErr)
	}
	l.state = listenerStopped
	l.responses = make(map[uint32]ResponseCallback)
	err := l.err
	l.mu.Unlock()

	if err != nil {
		l.logger.Warn().Err(err).Str(log.FieldEvent, "listener.read_failed").Msg("listener stopped reading")
	} else {
		l.logger.Debug().Str(log.FieldEvent, "listener.eof").Msg("listener reached end of input")
	}
	close(l.done)
}

func (l *Listener) dispatch(gid uint64, msg message.Message) {
	switch m := msg.(type) {
	case *message.Response:
		l.mu.Lock()
		cb, ok := l.responses[m.ID]
		delete(l.responses, m.ID)
		stopped := l.state == listenerStopped
		if ok && !stopped {
			l.running[gid]++
		}
		l.mu.Unlock()
		if stopped {
			return
		}
		if !ok {
			metrics.UnmatchedResponses.Inc()
			l.logger.Warn().
				Str(log.FieldEvent, "listener.unmatched_response").
				Uint32(log.FieldMsgID, m.ID).
				Msg("no callback registered for response")
			return
		}
		l.respond(gid, cb, m)
	case *message.Request:
		l.mu.Lock()
		cb := l.onRequest
		l.mu.Unlock()
		if cb == nil {
			l.logger.Debug().
				Str(log.FieldEvent, "listener.request_dropped").
				Str(log.FieldMethod, m.Method).
				Uint32(log.FieldMsgID, m.ID).
				Msg("no request callback registered")
			return
		}
		go l.deliverRequest(m)
	case *message.Notification:
		l.notifications.push(m)
	}
}

// enter marks a callback as running on goroutine gid. It returns false
// once the listener is stopped. Callers hold mu.
func (l *Listener) enter(gid uint64) bool {
	if l.state == listenerStopped {
		return false
	}
	l.running[gid]++
	return true
}

func (l *Listener) leave(gid uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running[gid]--
	if l.running[gid] <= 0 {
		delete(l.running, gid)
	}
	if len(l.running) == 0 {
		l.idle.Broadcast()
	}
}

func (l *Listener) respond(gid uint64, cb ResponseCallback, r *message.Response) {
	defer l.leave(gid)
	cb(r)
}

func (l *Listener) deliverRequest(req *message.Request) {
	gid := goroutineID()
	l.mu.Lock()
	cb := l.onRequest
	ok := cb != nil && l.enter(gid)
	l.mu.Unlock()
	if !ok {
		return
	}
	defer l.leave(gid)
	defer l.recoverPanic("request", req.Method)
	cb(req)
}

func (l *Listener) deliverNotifications(done chan<- struct{}) {
	defer close(done)
	gid := goroutineID()
	for {
		n, ok := l.notifications.pop()
		if !ok {
			return
		}
		l.mu.Lock()
		cb := l.onNotification
		run := cb != nil && l.enter(gid)
		l.mu.Unlock()
		if run {
			l.notify(gid, cb, n)
		}
	}
}

func (l *Listener) notify(gid uint64, cb NotificationCallback, n *message.Notification) {
	defer l.leave(gid)
	defer l.recoverPanic("notification", n.Method)
	cb(n)
}

func (l *Listener) recoverPanic(kind, method string) {
	if r := recover(); r != nil {
		metrics.IncHandlerPanic(kind)
		l.logger.Error().
			Str(log.FieldEvent, "listener.callback_panic").
			Str(log.FieldMsgType, kind).
			Str(log.FieldMethod, method).
			Interface("panic", r).
			Msg("recovered panic in callback")
	}
}

func isClosedErr(err error) bool {
	return err == nil ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrClosed)
}

// goroutineID parses the id of the calling goroutine from its stack header.
// Stop uses it to tell a call from inside a callback from any other caller.
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

// notificationQueue is an unbounded FIFO between the reader and the
// notification goroutine.
type notificationQueue struct {
	mu     sync.Mutex
	ready  *sync.Cond
	items  []*message.Notification
	closed bool
}

func newNotificationQueue() *notificationQueue {
	q := &notificationQueue{}
	q.ready = sync.NewCond(&q.mu)
	return q
}

func (q *notificationQueue) push(n *message.Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, n)
	metrics.QueuedNotifications.Inc()
	q.ready.Signal()
}

// pop blocks until a notification is queued. It returns false once the
// queue is closed and empty.
func (q *notificationQueue) pop() (*message.Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.ready.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	n := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	metrics.QueuedNotifications.Dec()
	return n, true
}

// clear drops queued notifications.
func (q *notificationQueue) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	metrics.QueuedNotifications.Sub(float64(len(q.items)))
	q.items = nil
}

func (q *notificationQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.ready.Broadcast()
}
