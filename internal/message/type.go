// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package message

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownType = errors.New("message: unknown type")
	ErrMalformed   = errors.New("message: malformed frame")
)

// Type identifies the kind of a message on the wire.
type Type int

const (
	TypeRequest      Type = 0
	TypeResponse     Type = 1
	TypeNotification Type = 2
)

// ParseType converts the integer wire code into a Type.
func ParseType(v int) (Type, error) {
	switch Type(v) {
	case TypeRequest, TypeResponse, TypeNotification:
		return Type(v), nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownType, v)
	}
}

// Int returns the wire code of t.
func (t Type) Int() int {
	return int(t)
}

func (t Type) String() string {
	switch t {
	case TypeRequest:
		return "request"
	case TypeResponse:
		return "response"
	case TypeNotification:
		return "notification"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Message is a single message in RPC communication.
type Message interface {
	Type() Type
}

// Identifiable is a message carrying a msgid: requests and the responses to them.
type Identifiable interface {
	Message
	MsgID() uint32
}
