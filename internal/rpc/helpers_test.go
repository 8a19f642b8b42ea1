// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rpc

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/corerpc/internal/message"
	"github.com/ManuGH/corerpc/internal/transport"
)

const waitFor = 2 * time.Second

// peer is the far end of an in-memory connection.
type peer struct {
	conn net.Conn
	enc  *message.Encoder
	dec  *message.Decoder
}

func newPeer(t *testing.T) (*transport.SocketConn, *peer) {
	t.Helper()
	local, remote := net.Pipe()
	conn, err := transport.NewSocketConn(local)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		_ = remote.Close()
	})
	return conn, &peer{
		conn: remote,
		enc:  message.NewEncoder(remote),
		dec:  message.NewDecoder(remote),
	}
}

func (p *peer) send(t *testing.T, m message.Message) {
	t.Helper()
	require.NoError(t, p.enc.Encode(m))
}

func (p *peer) next(t *testing.T) message.Message {
	t.Helper()
	require.NoError(t, p.conn.SetReadDeadline(time.Now().Add(waitFor)))
	m, err := p.dec.Next()
	require.NoError(t, err)
	return m
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func closed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(waitFor):
		t.Fatal("channel not closed")
	}
}
