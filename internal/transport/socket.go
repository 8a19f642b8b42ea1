// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ManuGH/corerpc/internal/log"
	"github.com/ManuGH/corerpc/internal/metrics"
)

// SocketConn is a Conn over a stream socket (TCP or Unix). It passes
// reads, writes and Close straight to the socket.
//
//	conn, err := transport.DialTCP(ctx, "127.0.0.1:6666", 5*time.Second)
//	if err != nil {
//		return err
//	}
//	stream.Attach(conn)
type SocketConn struct {
	conn      net.Conn
	closeOnce sync.Once
	closeErr  error
}

// NewSocketConn wraps an established socket.
func NewSocketConn(conn net.Conn) (*SocketConn, error) {
	if conn == nil {
		return nil, ErrNilConn
	}
	return &SocketConn{conn: conn}, nil
}

// Dial connects to address on the named network ("tcp", "unix", ...).
func Dial(ctx context.Context, network, address string, timeout time.Duration) (*SocketConn, error) {
	d := net.Dialer{Timeout: timeout}
	c, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s %s: %w", network, address, err)
	}
	metrics.IncConnection(network)
	logger := log.WithComponent("transport")
	logger.Debug().
		Str(log.FieldEvent, "socket.connected").
		Str(log.FieldTransport, network).
		Str(log.FieldAddress, address).
		Msg("connected to peer")
	return &SocketConn{conn: c}, nil
}

// DialTCP connects to a TCP address such as "127.0.0.1:6666".
func DialTCP(ctx context.Context, address string, timeout time.Duration) (*SocketConn, error) {
	return Dial(ctx, "tcp", address, timeout)
}

// DialUnix connects to a Unix domain socket path.
func DialUnix(ctx context.Context, path string, timeout time.Duration) (*SocketConn, error) {
	return Dial(ctx, "unix", path, timeout)
}

func (s *SocketConn) Reader() io.Reader { return s.conn }

func (s *SocketConn) Writer() io.Writer { return s.conn }

// Close closes the socket. Further calls return the first result.
func (s *SocketConn) Close() error {
	s.closeOnce.Do(func() {
		logger := log.WithComponent("transport")
		logger.Info().
			Str(log.FieldEvent, "socket.closed").
			Str(log.FieldAddress, s.conn.RemoteAddr().String()).
			Msg("closing socket")
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *SocketConn) String() string {
	return fmt.Sprintf("SocketConn{local=%s, remote=%s}", s.conn.LocalAddr(), s.conn.RemoteAddr())
}
