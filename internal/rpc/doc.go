// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package rpc moves MessagePack-RPC messages over an attached connection.
//
// A Sender serialises outgoing frames on one writer goroutine. A Listener
// decodes the incoming stream and dispatches each message by type. A
// Stream combines both with an id generator into a bidirectional endpoint:
//
//	stream, _ := rpc.NewStream(rpc.NewSender(), rpc.NewListener(), message.NewSequentialIDs())
//	if err := stream.Attach(conn); err != nil {
//		return err
//	}
//	id, err := stream.SendRequestFunc(ctx, message.NewRequest("nvim_get_mode"), func(r *message.Response) {
//		// runs on the listener goroutine
//	})
package rpc

import "errors"

var (
	ErrNotAttached    = errors.New("rpc: no writer attached")
	ErrStopped        = errors.New("rpc: stopped")
	ErrAlreadyStarted = errors.New("rpc: listener already started")
	ErrNilComponent   = errors.New("rpc: sender, listener and id generator are required")
	ErrNilMessage     = errors.New("rpc: message is required")
)
