// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"

	"github.com/ManuGH/corerpc/internal/message"
	"github.com/ManuGH/corerpc/internal/resilience"
	"github.com/ManuGH/corerpc/internal/rpc"
	"github.com/ManuGH/corerpc/internal/transport"
)

const waitFor = 2 * time.Second

type peer struct {
	conn net.Conn
	enc  *message.Encoder
	dec  *message.Decoder
}

func (p *peer) next(t *testing.T) message.Message {
	t.Helper()
	require.NoError(t, p.conn.SetReadDeadline(time.Now().Add(waitFor)))
	m, err := p.dec.Next()
	require.NoError(t, err)
	return m
}

func (p *peer) send(t *testing.T, m message.Message) {
	t.Helper()
	require.NoError(t, p.enc.Encode(m))
}

// serve answers every request with reply until the connection closes.
func (p *peer) serve(reply func(*message.Request) *message.Response) {
	go func() {
		for {
			m, err := p.dec.Next()
			if err != nil {
				return
			}
			if req, ok := m.(*message.Request); ok {
				if resp := reply(req); resp != nil {
					_ = p.enc.Encode(resp.WithID(req.ID))
				}
			}
		}
	}()
}

func attached(t *testing.T, opts ...Option) (*Client, *peer) {
	t.Helper()
	local, remote := net.Pipe()
	conn, err := transport.NewSocketConn(local)
	require.NoError(t, err)
	c := New(opts...)
	require.NoError(t, c.Attach(conn))
	t.Cleanup(func() {
		_ = c.Close()
		_ = remote.Close()
	})
	return c, &peer{conn: remote, enc: message.NewEncoder(remote), dec: message.NewDecoder(remote)}
}

func TestCall_DecodesResult(t *testing.T) {
	c, p := attached(t)
	p.serve(func(r *message.Request) *message.Response {
		a, _ := r.Args[0].(int64)
		b, _ := r.Args[1].(int64)
		return message.NewResponse(a + b)
	})

	var sum int
	require.NoError(t, c.Call(context.Background(), "add", &sum, 2, 40))
	assert.Equal(t, 42, sum)
}

func TestCall_NilResultIgnoresValue(t *testing.T) {
	c, p := attached(t)
	p.serve(func(*message.Request) *message.Response { return message.NewResponse("ignored") })
	assert.NoError(t, c.Call(context.Background(), "fire", nil))
}

func TestCall_PeerErrorIsTyped(t *testing.T) {
	c, p := attached(t)
	p.serve(func(*message.Request) *message.Response {
		return message.NewErrorResponse(message.Validation("bad args"))
	})

	err := c.Call(context.Background(), "strict", nil)
	var rpcErr *message.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, message.ErrorValidation, rpcErr.Type)
	assert.Equal(t, "bad args", rpcErr.Message)
}

func TestCall_DecodeFailure(t *testing.T) {
	c, p := attached(t)
	p.serve(func(*message.Request) *message.Response { return message.NewResponse("not a number") })

	var n int
	err := c.Call(context.Background(), "wrong", &n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode wrong result")
}

func TestCall_Timeout(t *testing.T) {
	c, p := attached(t, WithCallTimeout(50*time.Millisecond))
	p.serve(func(*message.Request) *message.Response { return nil })

	err := c.Call(context.Background(), "slow", nil)
	assert.ErrorIs(t, err, ErrCallTimeout)
}

func TestCall_CallerDeadlineIsNotCallTimeout(t *testing.T) {
	c, p := attached(t, WithCallTimeout(time.Minute))
	p.serve(func(*message.Request) *message.Response { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := c.Call(ctx, "slow", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrCallTimeout)
}

func TestCall_ConnectionEndsWhileWaiting(t *testing.T) {
	c, p := attached(t)
	go func() {
		_, _ = p.dec.Next()
		_ = p.conn.Close()
	}()

	err := c.Call(context.Background(), "never", nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCall_AfterClose(t *testing.T) {
	c, _ := attached(t)
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Call(context.Background(), "x", nil), ErrClosed)
	assert.NoError(t, c.Close())
}

func TestCall_NotAttached(t *testing.T) {
	c := New()
	defer c.Close()
	assert.ErrorIs(t, c.Call(context.Background(), "x", nil), rpc.ErrNotAttached)
}

func TestCall_BreakerCountsTransportFailuresOnly(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test-client", 2, time.Hour)
	c, p := attached(t, WithBreaker(cb), WithCallTimeout(30*time.Millisecond))
	p.serve(func(r *message.Request) *message.Response {
		if r.Method == "reject" {
			return message.NewErrorResponse(message.Exception("no"))
		}
		return nil
	})

	for i := 0; i < 3; i++ {
		var rpcErr *message.Error
		assert.ErrorAs(t, c.Call(context.Background(), "reject", nil), &rpcErr)
	}
	assert.Equal(t, resilience.StateClosed, cb.State())

	assert.ErrorIs(t, c.Call(context.Background(), "hang", nil), ErrCallTimeout)
	assert.ErrorIs(t, c.Call(context.Background(), "hang", nil), ErrCallTimeout)
	assert.Equal(t, resilience.StateOpen, cb.State())
	assert.ErrorIs(t, c.Call(context.Background(), "reject", nil), resilience.ErrCircuitOpen)
}

func TestCall_RecordsSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	c, p := attached(t, WithTracerProvider(tp))
	p.serve(func(*message.Request) *message.Response { return message.NewResponse(true) })

	require.NoError(t, c.Call(context.Background(), "nvim_get_mode", nil))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "rpc.call nvim_get_mode", spans[0].Name())
	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "msgpack-rpc", attrs["rpc.system"])
	assert.Equal(t, int64(1), attrs["rpc.msgid"])
}

func TestNotify(t *testing.T) {
	c, p := attached(t)
	go func() { _ = c.Notify(context.Background(), "nvim_command", "echo 'hi'") }()

	n, ok := p.next(t).(*message.Notification)
	require.True(t, ok)
	assert.Equal(t, "nvim_command", n.Method)
	assert.Equal(t, []any{"echo 'hi'"}, n.Args)
}

func TestAttach_AssignsConnID(t *testing.T) {
	c, _ := attached(t)
	_, err := uuid.Parse(c.ConnID())
	assert.NoError(t, err)
}

func TestDefault_IsSingleton(t *testing.T) {
	a := Default()
	b := Default()
	assert.Same(t, a, b)
	assert.NotSame(t, a, NewDefault())
	assert.NotSame(t, NewDefault(), NewDefault())
}

func TestClose_ReleasesGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	local, remote := net.Pipe()
	defer remote.Close()
	conn, err := transport.NewSocketConn(local)
	require.NoError(t, err)
	c := New()
	require.NoError(t, c.Attach(conn))

	require.NoError(t, c.Close())
	select {
	case <-c.Done():
	case <-time.After(waitFor):
		t.Fatal("client not done after Close")
	}
}

func TestCallErr_MapsStopped(t *testing.T) {
	c := New()
	assert.ErrorIs(t, c.callErr(context.Background(), rpc.ErrStopped), ErrClosed)
	boom := errors.New("boom")
	assert.ErrorIs(t, c.callErr(context.Background(), boom), boom)
}

func TestCall_FromNotificationHandlerDuringBurst(t *testing.T) {
	c, p := attached(t, WithCallTimeout(waitFor))
	requests := make(chan *message.Request, 1)
	go func() {
		for {
			m, err := p.dec.Next()
			if err != nil {
				return
			}
			if req, ok := m.(*message.Request); ok {
				requests <- req
			}
		}
	}()

	result := make(chan error, 1)
	var once sync.Once
	c.AddNotificationHandler(func(*message.Notification) {
		once.Do(func() {
			var s string
			err := c.Call(context.Background(), "ping", &s)
			if err == nil && s != "pong" {
				err = errors.New("unexpected reply " + s)
			}
			result <- err
		})
	})

	// The reply goes out only after the whole burst, so the handler's call
	// completes only if the reader keeps going past the queued notifications.
	sent := make(chan error, 1)
	go func() {
		for i := 0; i < 300; i++ {
			if err := p.enc.Encode(message.NewNotification("tick", i)); err != nil {
				sent <- err
				return
			}
		}
		select {
		case req := <-requests:
			sent <- p.enc.Encode(message.NewResponse("pong").WithID(req.ID))
		case <-time.After(waitFor):
			sent <- errors.New("no request from handler")
		}
	}()

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(2 * waitFor):
		t.Fatal("call from notification handler did not complete")
	}
	assert.NoError(t, <-sent)
}

// deliveringStream answers every request before SendRequestFunc returns.
type deliveringStream struct {
	*rpc.Stream
}

func (s deliveringStream) SendRequestFunc(_ context.Context, _ *message.Request, cb rpc.ResponseCallback) (uint32, error) {
	cb(message.NewResponse("ready").WithID(1))
	return 1, nil
}

func TestCall_ResponseWinsOverEndedContext(t *testing.T) {
	c := New(WithStreamer(deliveringStream{Stream: rpc.NewDefaultStream()}))
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// select picks randomly among ready cases, so repeat to hit both.
	for i := 0; i < 100; i++ {
		var s string
		require.NoError(t, c.Call(ctx, "now", &s))
		assert.Equal(t, "ready", s)
	}
}

func TestClose_ReleasesCallInsideHandler(t *testing.T) {
	l := rpc.NewListener()
	c, p := attached(t, WithListener(l))
	p.serve(func(*message.Request) *message.Response { return nil })

	result := make(chan error, 1)
	c.AddNotificationHandler(func(*message.Notification) {
		result <- c.Call(context.Background(), "never", nil)
	})
	p.send(t, message.NewNotification("go"))
	require.Eventually(t, func() bool { return l.Pending() == 1 }, waitFor, 5*time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- c.Close() }()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Close blocked on a running handler")
	}
	assert.ErrorIs(t, <-result, ErrClosed)
}
