// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package transport provides the byte-stream connections an RPC stream
// attaches to: sockets, child processes and the process's own stdio.
package transport

import (
	"errors"
	"io"
)

var (
	ErrNilConn          = errors.New("transport: connection is required")
	ErrNilCommand       = errors.New("transport: command is required")
	ErrUnknownTransport = errors.New("transport: unknown transport")
)

// Conn is a bidirectional connection to a peer.
type Conn interface {
	// Reader returns the incoming stream (data sent by the peer).
	Reader() io.Reader
	// Writer returns the outgoing stream (data for the peer).
	Writer() io.Writer
	// Close ends communication. What happens to the peer depends on the
	// implementation.
	io.Closer
	String() string
}

// Transport names accepted by Open.
const (
	TCP     = "tcp"
	Unix    = "unix"
	Process = "process"
	Stdio   = "stdio"
)
