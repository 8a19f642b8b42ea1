// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transport

import (
	"io"
	"os"

	"github.com/ManuGH/corerpc/internal/log"
	"github.com/ManuGH/corerpc/internal/metrics"
)

// StdioConn talks to the parent process over stdin and stdout, as a
// remote plugin does. Nothing else may write to stdout while it is in use.
type StdioConn struct {
	in  io.Reader
	out io.Writer
}

// NewStdioConn returns a connection over os.Stdin and os.Stdout.
func NewStdioConn() *StdioConn {
	return newStdioConn(os.Stdin, os.Stdout)
}

func newStdioConn(in io.Reader, out io.Writer) *StdioConn {
	metrics.IncConnection(Stdio)
	return &StdioConn{in: in, out: out}
}

func (s *StdioConn) Reader() io.Reader { return s.in }

func (s *StdioConn) Writer() io.Writer { return s.out }

// Close only logs: the standard streams belong to the process.
func (s *StdioConn) Close() error {
	logger := log.WithComponent("transport")
	logger.Info().
		Str(log.FieldEvent, "stdio.closed").
		Msg("closing stdio connection")
	return nil
}

func (s *StdioConn) String() string { return "StdioConn{}" }
