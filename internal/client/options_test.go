// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ManuGH/corerpc/internal/message"
	"github.com/ManuGH/corerpc/internal/rpc"
	"github.com/ManuGH/corerpc/internal/transport"
)

// recordingStreamer records which methods the client forwarded.
type recordingStreamer struct {
	calls []string
	done  chan struct{}
}

func newRecordingStreamer() *recordingStreamer {
	return &recordingStreamer{done: make(chan struct{})}
}

func (r *recordingStreamer) Attach(transport.Conn) error {
	r.calls = append(r.calls, "Attach")
	return nil
}

func (r *recordingStreamer) Send(context.Context, message.Message) error {
	r.calls = append(r.calls, "Send")
	return nil
}

func (r *recordingStreamer) SendRequest(context.Context, *message.Request) (uint32, error) {
	r.calls = append(r.calls, "SendRequest")
	return 11, nil
}

func (r *recordingStreamer) SendRequestFunc(context.Context, *message.Request, rpc.ResponseCallback) (uint32, error) {
	r.calls = append(r.calls, "SendRequestFunc")
	return 12, nil
}

func (r *recordingStreamer) CancelResponse(uint32) {
	r.calls = append(r.calls, "CancelResponse")
}

func (r *recordingStreamer) AddRequestHandler(rpc.RequestCallback) rpc.HandlerID {
	r.calls = append(r.calls, "AddRequestHandler")
	return 1
}

func (r *recordingStreamer) RemoveRequestHandler(rpc.HandlerID) {
	r.calls = append(r.calls, "RemoveRequestHandler")
}

func (r *recordingStreamer) AddNotificationHandler(rpc.NotificationCallback) rpc.HandlerID {
	r.calls = append(r.calls, "AddNotificationHandler")
	return 2
}

func (r *recordingStreamer) RemoveNotificationHandler(rpc.HandlerID) {
	r.calls = append(r.calls, "RemoveNotificationHandler")
}

func (r *recordingStreamer) Done() <-chan struct{} { return r.done }
func (r *recordingStreamer) Err() error            { return nil }
func (r *recordingStreamer) Stop() {
	r.calls = append(r.calls, "Stop")
}

type nopConn struct{ transport.Conn }

func (nopConn) Close() error   { return nil }
func (nopConn) String() string { return "nop" }

func TestDelegatesToStreamer(t *testing.T) {
	s := newRecordingStreamer()
	c := New(WithStreamer(s))
	ctx := context.Background()

	assert.NoError(t, c.Attach(nopConn{}))
	assert.NoError(t, c.Send(ctx, message.NewNotification("n")))
	id, err := c.SendRequest(ctx, message.NewRequest("r"))
	assert.NoError(t, err)
	assert.Equal(t, uint32(11), id)
	id, err = c.SendRequestFunc(ctx, message.NewRequest("r"), nil)
	assert.NoError(t, err)
	assert.Equal(t, uint32(12), id)
	assert.Equal(t, rpc.HandlerID(1), c.AddRequestHandler(nil))
	c.RemoveRequestHandler(1)
	assert.Equal(t, rpc.HandlerID(2), c.AddNotificationHandler(nil))
	c.RemoveNotificationHandler(2)
	assert.NoError(t, c.Close())

	assert.Equal(t, []string{
		"Attach", "Send", "SendRequest", "SendRequestFunc",
		"AddRequestHandler", "RemoveRequestHandler",
		"AddNotificationHandler", "RemoveNotificationHandler",
		"Stop",
	}, s.calls)
}

func TestStreamerTakesPrecedence(t *testing.T) {
	s := newRecordingStreamer()
	c := New(WithSender(rpc.NewSender()), WithStreamer(s), WithListener(rpc.NewListener()))
	assert.Same(t, s, c.stream)
}

func TestLaterOptionsOverride(t *testing.T) {
	first := newRecordingStreamer()
	second := newRecordingStreamer()
	c := New(WithStreamer(first), WithStreamer(second))
	assert.Same(t, second, c.stream)
}

type fixedIDs struct{}

func (fixedIDs) NextID() uint32 { return 77 }

func TestComponentsBuildStream(t *testing.T) {
	sender := rpc.NewSender()
	listener := rpc.NewListener()
	c := New(WithSenderAndListener(sender, listener), WithIDGenerator(fixedIDs{}))
	defer c.Close()

	_, ok := c.stream.(*rpc.Stream)
	assert.True(t, ok)
	id, err := c.SendRequest(context.Background(), message.NewRequest("m"))
	assert.ErrorIs(t, err, rpc.ErrNotAttached)
	assert.Equal(t, uint32(77), id)
}
