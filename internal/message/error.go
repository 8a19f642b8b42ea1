// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package message

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// ErrorType classifies an application error sent by a peer.
// Values other than the named constants are preserved as received.
type ErrorType int

const (
	ErrorException  ErrorType = 0
	ErrorValidation ErrorType = 1
)

func (t ErrorType) String() string {
	switch t {
	case ErrorException:
		return "Exception"
	case ErrorValidation:
		return "Validation"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Error is an error reported by the peer inside a response (bad request,
// bad payload, failed handler). It is not a transport failure.
type Error struct {
	Type    ErrorType
	Message string
}

var (
	_ error                 = (*Error)(nil)
	_ msgpack.CustomEncoder = (*Error)(nil)
	_ msgpack.CustomDecoder = (*Error)(nil)
)

// Exception returns an error of type ErrorException.
func Exception(msg string) *Error {
	return &Error{Type: ErrorException, Message: msg}
}

// Validation returns an error of type ErrorValidation.
func Validation(msg string) *Error {
	return &Error{Type: ErrorValidation, Message: msg}
}

// Other returns an error with an arbitrary type code.
func Other(t ErrorType, msg string) *Error {
	return &Error{Type: t, Message: msg}
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc: %s: %s", e.Type, e.Message)
}

func (e *Error) String() string {
	return fmt.Sprintf("Error{type=%s, message=%q}", e.Type, e.Message)
}

func (e *Error) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeInt(int64(e.Type)); err != nil {
		return err
	}
	return enc.EncodeString(e.Message)
}

// DecodeMsgpack accepts the [type, message] pair and, for peers that do
// not follow it, any other value, which becomes the message of an
// exception.
func (e *Error) DecodeMsgpack(dec *msgpack.Decoder) error {
	c, err := dec.PeekCode()
	if err != nil {
		return err
	}
	if !isArrayCode(c) {
		v, err := dec.DecodeInterfaceLoose()
		if err != nil {
			return err
		}
		e.Type, e.Message = ErrorException, stringify(v)
		return nil
	}

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	e.Type, e.Message = ErrorException, ""
	for i := 0; i < n; i++ {
		v, err := dec.DecodeInterfaceLoose()
		if err != nil {
			return err
		}
		switch i {
		case 0:
			if t, ok := asInt(v); ok {
				e.Type = ErrorType(t)
			} else {
				e.Message = stringify(v)
			}
		case 1:
			e.Message = stringify(v)
		}
	}
	return nil
}

func isArrayCode(c byte) bool {
	return msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	default:
		return 0, false
	}
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
