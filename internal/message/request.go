// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package message

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Request asks the peer to run Method and answer with a Response carrying ID.
//
// Callers normally leave ID at zero: the stream assigns a fresh id right
// before the request is written.
type Request struct {
	ID     uint32
	Method string
	Args   []any
}

var (
	_ Identifiable          = (*Request)(nil)
	_ msgpack.CustomEncoder = (*Request)(nil)
	_ msgpack.CustomDecoder = (*Request)(nil)
)

// NewRequest returns a request for method with a private copy of args.
func NewRequest(method string, args ...any) *Request {
	return &Request{Method: method, Args: cloneArgs(args)}
}

func (r *Request) Type() Type    { return TypeRequest }
func (r *Request) MsgID() uint32 { return r.ID }

// WithID returns a copy of r carrying id.
func (r *Request) WithID(id uint32) *Request {
	c := &Request{ID: id, Method: r.Method, Args: cloneArgs(r.Args)}
	return c
}

// AddArgs appends args to r and returns r.
func (r *Request) AddArgs(args ...any) *Request {
	r.Args = append(r.Args, args...)
	return r
}

func (r *Request) String() string {
	return fmt.Sprintf("Request{id=%d, method=%q, args=%v}", r.ID, r.Method, r.Args)
}

func (r *Request) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(4); err != nil {
		return err
	}
	if err := enc.EncodeInt(int64(TypeRequest)); err != nil {
		return err
	}
	if err := enc.EncodeUint(uint64(r.ID)); err != nil {
		return err
	}
	if err := enc.EncodeString(r.Method); err != nil {
		return err
	}
	return encodeArgs(enc, r.Args)
}

func (r *Request) DecodeMsgpack(dec *msgpack.Decoder) error {
	if err := decodeHeader(dec, TypeRequest, 4); err != nil {
		return err
	}
	id, err := dec.DecodeUint32()
	if err != nil {
		return fmt.Errorf("%w: msgid: %v", ErrMalformed, err)
	}
	method, err := dec.DecodeString()
	if err != nil {
		return fmt.Errorf("%w: method: %v", ErrMalformed, err)
	}
	args, err := decodeArgs(dec)
	if err != nil {
		return err
	}
	r.ID, r.Method, r.Args = id, method, args
	return nil
}
