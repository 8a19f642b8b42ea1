// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package message

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Notification is a fire-and-forget event. The peer never answers it.
type Notification struct {
	Method string
	Args   []any
}

var (
	_ Message               = (*Notification)(nil)
	_ msgpack.CustomEncoder = (*Notification)(nil)
	_ msgpack.CustomDecoder = (*Notification)(nil)
)

// NewNotification returns a notification for method with a private copy of args.
func NewNotification(method string, args ...any) *Notification {
	return &Notification{Method: method, Args: cloneArgs(args)}
}

func (n *Notification) Type() Type { return TypeNotification }

// AddArgs appends args to n and returns n.
func (n *Notification) AddArgs(args ...any) *Notification {
	n.Args = append(n.Args, args...)
	return n
}

func (n *Notification) String() string {
	return fmt.Sprintf("Notification{method=%q, args=%v}", n.Method, n.Args)
}

func (n *Notification) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(3); err != nil {
		return err
	}
	if err := enc.EncodeInt(int64(TypeNotification)); err != nil {
		return err
	}
	if err := enc.EncodeString(n.Method); err != nil {
		return err
	}
	return encodeArgs(enc, n.Args)
}

func (n *Notification) DecodeMsgpack(dec *msgpack.Decoder) error {
	if err := decodeHeader(dec, TypeNotification, 3); err != nil {
		return err
	}
	method, err := dec.DecodeString()
	if err != nil {
		return fmt.Errorf("%w: method: %v", ErrMalformed, err)
	}
	args, err := decodeArgs(dec)
	if err != nil {
		return err
	}
	n.Method, n.Args = method, args
	return nil
}
