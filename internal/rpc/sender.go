// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rpc

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/corerpc/internal/log"
	"github.com/ManuGH/corerpc/internal/message"
	"github.com/ManuGH/corerpc/internal/metrics"
)

// MessageSender writes messages to the peer.
type MessageSender interface {
	// Attach sets the stream messages are written to.
	Attach(w io.Writer)
	// Send writes msg and returns once it has been flushed.
	Send(ctx context.Context, msg message.Message) error
	// Stop rejects further sends.
	Stop()
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithRateLimit caps outgoing messages at limit per second with the given
// burst. Senders wait for a token before queueing a frame.
func WithRateLimit(limit rate.Limit, burst int) SenderOption {
	return func(s *Sender) {
		if limit > 0 {
			s.limiter = rate.NewLimiter(limit, max(burst, 1))
		}
	}
}

// WithSenderLogger replaces the component logger.
func WithSenderLogger(logger zerolog.Logger) SenderOption {
	return func(s *Sender) { s.logger = logger }
}

type sendJob struct {
	msg  message.Message
	done chan error
}

// Sender is the default MessageSender. Frames from concurrent callers are
// written one at a time by a single goroutine started on first Attach.
type Sender struct {
	logger  zerolog.Logger
	limiter *rate.Limiter

	mu      sync.Mutex
	enc     *message.Encoder
	running bool
	stopped bool

	jobs     chan sendJob
	stop     chan struct{}
	stopOnce sync.Once
}

// NewSender returns an unattached sender.
func NewSender(opts ...SenderOption) *Sender {
	s := &Sender{
		logger: log.WithComponent("sender"),
		jobs:   make(chan sendJob),
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach directs subsequent frames to w. Attaching again replaces the
// writer; frames already being written finish on the old one.
func (s *Sender) Attach(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.enc = message.NewEncoder(w)
	if !s.running {
		s.running = true
		go s.loop()
	}
}

// Send queues msg for the writer goroutine and waits until it has been
// written or ctx ends. A frame already handed to the writer is written
// even if ctx ends first.
func (s *Sender) Send(ctx context.Context, msg message.Message) error {
	if msg == nil {
		return ErrNilMessage
	}
	s.mu.Lock()
	stopped, attached := s.stopped, s.enc != nil
	s.mu.Unlock()
	if stopped {
		return ErrStopped
	}
	if !attached {
		return ErrNotAttached
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rpc: rate limit: %w", err)
		}
	}

	job := sendJob{msg: msg, done: make(chan error, 1)}
	select {
	case s.jobs <- job:
	case <-s.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop rejects further sends and ends the writer goroutine once the frame
// in progress, if any, is written. It is safe to call more than once.
func (s *Sender) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		close(s.stop)
	})
}

func (s *Sender) loop() {
	for {
		select {
		case <-s.stop:
			return
		case job := <-s.jobs:
			job.done <- s.write(job.msg)
		}
	}
}

func (s *Sender) write(msg message.Message) error {
	s.mu.Lock()
	enc := s.enc
	s.mu.Unlock()

	if err := enc.Encode(msg); err != nil {
		metrics.SendErrors.Inc()
		s.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "sender.write_failed").
			Str(log.FieldMsgType, msg.Type().String()).
			Msg("failed to write message")
		return fmt.Errorf("rpc: write %s: %w", msg.Type(), err)
	}
	metrics.IncSent(msg.Type().String())
	if ev := s.logger.Trace(); ev.Enabled() {
		ev.Str(log.FieldMsgType, msg.Type().String()).
			Str("message", fmt.Sprint(msg)).
			Msg("sent message")
	}
	return nil
}
