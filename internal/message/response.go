// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package message

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// Response answers the request whose msgid equals ID. At most one of
// Error and Result is meaningful; a nil Error means success.
//
// Decoded responses keep Result as a msgpack.RawMessage so callers can
// decode it into a concrete type with Decode.
type Response struct {
	ID     uint32
	Error  *Error
	Result any
}

var (
	_ Identifiable          = (*Response)(nil)
	_ msgpack.CustomEncoder = (*Response)(nil)
	_ msgpack.CustomDecoder = (*Response)(nil)
)

// NewResponse returns a successful response carrying result.
func NewResponse(result any) *Response {
	return &Response{Result: result}
}

// NewErrorResponse returns a failed response carrying err.
func NewErrorResponse(err *Error) *Response {
	return &Response{Error: err}
}

func (r *Response) Type() Type { return TypeResponse }

func (r *Response) MsgID() uint32 { return r.ID }

// WithID returns a copy of r answering the request with the given id.
func (r *Response) WithID(id uint32) *Response {
	return &Response{ID: id, Error: r.Error, Result: r.Result}
}

// WithError returns a copy of r carrying err.
func (r *Response) WithError(err *Error) *Response {
	return &Response{ID: r.ID, Error: err, Result: r.Result}
}

// WithResult returns a copy of r carrying result.
func (r *Response) WithResult(result any) *Response {
	return &Response{ID: r.ID, Error: r.Error, Result: result}
}

// Decode stores the result in the value pointed to by v. A nil result
// leaves v untouched.
func (r *Response) Decode(v any) error {
	switch res := r.Result.(type) {
	case nil:
		return nil
	case msgpack.RawMessage:
		return msgpack.Unmarshal(res, v)
	default:
		b, err := msgpack.Marshal(res)
		if err != nil {
			return err
		}
		return msgpack.Unmarshal(b, v)
	}
}

func (r *Response) String() string {
	return fmt.Sprintf("Response{id=%d, error=%v, result=%v}", r.ID, r.Error, r.Result)
}

func (r *Response) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(4); err != nil {
		return err
	}
	if err := enc.EncodeInt(int64(TypeResponse)); err != nil {
		return err
	}
	if err := enc.EncodeUint(uint64(r.ID)); err != nil {
		return err
	}
	if r.Error == nil {
		if err := enc.EncodeNil(); err != nil {
			return err
		}
	} else if err := r.Error.EncodeMsgpack(enc); err != nil {
		return err
	}
	return enc.Encode(r.Result)
}

func (r *Response) DecodeMsgpack(dec *msgpack.Decoder) error {
	if err := decodeHeader(dec, TypeResponse, 4); err != nil {
		return err
	}
	id, err := dec.DecodeUint32()
	if err != nil {
		return fmt.Errorf("%w: msgid: %v", ErrMalformed, err)
	}

	var rpcErr *Error
	c, err := dec.PeekCode()
	if err != nil {
		return fmt.Errorf("%w: error: %v", ErrMalformed, err)
	}
	if c == msgpcode.Nil {
		if err := dec.DecodeNil(); err != nil {
			return fmt.Errorf("%w: error: %v", ErrMalformed, err)
		}
	} else {
		rpcErr = &Error{}
		if err := rpcErr.DecodeMsgpack(dec); err != nil {
			return fmt.Errorf("%w: error: %v", ErrMalformed, err)
		}
	}

	raw, err := dec.DecodeRaw()
	if err != nil {
		return fmt.Errorf("%w: result: %v", ErrMalformed, err)
	}
	var result any
	if !bytes.Equal(raw, []byte{msgpcode.Nil}) {
		result = raw
	}

	r.ID, r.Error, r.Result = id, rpcErr, result
	return nil
}
