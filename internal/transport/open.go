// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transport

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// Options describes the connection Open builds.
type Options struct {
	// Transport is one of "tcp", "unix", "process" or "stdio".
	Transport string
	// Address is the host:port (tcp) or socket path (unix).
	Address string
	// Command is the program and arguments to spawn (process).
	Command []string
	// DialTimeout bounds socket connects.
	DialTimeout time.Duration
	// KillOnClose and Grace apply to the process transport.
	KillOnClose bool
	Grace       time.Duration
}

// Open builds the connection described by o.
func Open(ctx context.Context, o Options) (Conn, error) {
	switch o.Transport {
	case TCP:
		return DialTCP(ctx, o.Address, o.DialTimeout)
	case Unix:
		return DialUnix(ctx, o.Address, o.DialTimeout)
	case Process:
		if len(o.Command) == 0 {
			return nil, ErrNilCommand
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cmd := exec.Command(o.Command[0], o.Command[1:]...)
		return StartProcess(cmd, ProcessOptions{KillOnClose: o.KillOnClose, Grace: o.Grace})
	case Stdio:
		return NewStdioConn(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, o.Transport)
	}
}
