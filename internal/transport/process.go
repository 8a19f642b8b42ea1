// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/corerpc/internal/log"
	"github.com/ManuGH/corerpc/internal/metrics"
	"github.com/ManuGH/corerpc/internal/procgroup"
)

// DefaultGrace is how long Close waits after SIGTERM before SIGKILL.
const DefaultGrace = 2 * time.Second

// ProcessOptions controls how a ProcessConn ends its child.
type ProcessOptions struct {
	// KillOnClose terminates the child's process group on Close.
	KillOnClose bool
	// Grace is the SIGTERM to SIGKILL delay. Zero means DefaultGrace.
	Grace time.Duration
}

// ProcessConn talks to a child process over its stdin and stdout, for
// example `nvim --embed`. The child runs in its own process group.
type ProcessConn struct {
	cmd    *exec.Cmd
	opts   ProcessOptions
	stdin  *os.File
	stdout *os.File
	logger zerolog.Logger

	done      chan struct{}
	exitErr   error
	closeOnce sync.Once
	closeErr  error
}

// StartProcess starts cmd and connects to its standard streams. Stdin and
// Stdout of cmd must be unset. When Stderr is unset the child's stderr is
// written to the log at debug level.
func StartProcess(cmd *exec.Cmd, opts ProcessOptions) (*ProcessConn, error) {
	if cmd == nil {
		return nil, ErrNilCommand
	}
	if cmd.Stdin != nil || cmd.Stdout != nil {
		return nil, fmt.Errorf("transport: %s: stdin and stdout must be unset", cmd.Path)
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}

	logger := log.Derive(func(c *zerolog.Context) {
		*c = c.Str(log.FieldComponent, "transport").Str(log.FieldTransport, Process)
	})

	childIn, parentOut, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("transport: stdin pipe: %w", err)
	}
	parentIn, childOut, err := os.Pipe()
	if err != nil {
		_ = childIn.Close()
		_ = parentOut.Close()
		return nil, fmt.Errorf("transport: stdout pipe: %w", err)
	}
	cmd.Stdin = childIn
	cmd.Stdout = childOut
	if cmd.Stderr == nil {
		cmd.Stderr = &lineLogger{logger: logger}
	}
	procgroup.Set(cmd)

	startErr := cmd.Start()
	// The child holds its own copies now.
	_ = childIn.Close()
	_ = childOut.Close()
	if startErr != nil {
		_ = parentOut.Close()
		_ = parentIn.Close()
		return nil, fmt.Errorf("transport: start %s: %w", cmd.Path, startErr)
	}

	p := &ProcessConn{
		cmd:    cmd,
		opts:   opts,
		stdin:  parentOut,
		stdout: parentIn,
		logger: logger.With().Int(log.FieldPID, cmd.Process.Pid).Logger(),
		done:   make(chan struct{}),
	}
	go p.wait()

	metrics.IncConnection(Process)
	p.logger.Info().
		Str(log.FieldEvent, "process.started").
		Strs("args", cmd.Args).
		Msg("started peer process")
	return p, nil
}

// SpawnProcess starts name with args. See StartProcess.
func SpawnProcess(name string, args []string, opts ProcessOptions) (*ProcessConn, error) {
	return StartProcess(exec.Command(name, args...), opts)
}

func (p *ProcessConn) wait() {
	p.exitErr = p.cmd.Wait()
	close(p.done)
	ev := p.logger.Debug()
	if p.exitErr != nil {
		ev = p.logger.Info().Err(p.exitErr)
	}
	ev.Str(log.FieldEvent, "process.exited").Msg("peer process exited")
}

func (p *ProcessConn) Reader() io.Reader { return p.stdout }

func (p *ProcessConn) Writer() io.Writer { return p.stdin }

// PID returns the child's process id.
func (p *ProcessConn) PID() int { return p.cmd.Process.Pid }

// Exited closes when the child has exited.
func (p *ProcessConn) Exited() <-chan struct{} { return p.done }

// Wait blocks until the child exits and returns its exit status.
func (p *ProcessConn) Wait() error {
	<-p.done
	return p.exitErr
}

// Close closes the child's stdin and the parent's end of its stdout. With
// KillOnClose the process group is then terminated, otherwise the child
// keeps running. Terminating a child that exits on a signal is not an
// error. Further calls return the first result.
func (p *ProcessConn) Close() error {
	p.closeOnce.Do(func() {
		_ = p.stdin.Close()
		select {
		case <-p.done:
			p.logger.Debug().
				Str(log.FieldEvent, "process.closed").
				Msg("peer process already exited")
		default:
			p.stop()
		}
		_ = p.stdout.Close()
	})
	return p.closeErr
}

func (p *ProcessConn) stop() {
	if !p.opts.KillOnClose {
		p.logger.Info().
			Str(log.FieldEvent, "process.detached").
			Msg("closed pipes, leaving peer process running")
		return
	}

	waitCh := make(chan error, 1)
	go func() {
		<-p.done
		waitCh <- p.exitErr
	}()
	err := procgroup.Terminate(p.cmd, waitCh, p.opts.Grace)
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		p.closeErr = fmt.Errorf("transport: terminate pid %d: %w", p.PID(), err)
	}
	p.logger.Info().
		Str(log.FieldEvent, "process.terminated").
		Msg("terminated peer process")
}

func (p *ProcessConn) String() string {
	return fmt.Sprintf("ProcessConn{pid=%d, cmd=%q, killOnClose=%t}",
		p.cmd.Process.Pid, strings.Join(p.cmd.Args, " "), p.opts.KillOnClose)
}

// lineLogger writes each complete line it receives as a debug entry.
type lineLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	buf    bytes.Buffer
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Write(p)
	for {
		line, err := l.buf.ReadString('\n')
		if err != nil {
			// Keep the partial line for the next write.
			l.buf.Reset()
			l.buf.WriteString(line)
			break
		}
		l.logger.Debug().
			Str(log.FieldEvent, "process.stderr").
			Msg(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}
