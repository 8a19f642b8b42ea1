// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService   = "service"
	FieldVersion   = "version"
	FieldComponent = "component"
	FieldEvent     = "event"
	FieldConnID    = "conn_id"
	FieldRequestID = "request_id"

	// Message fields
	FieldMsgID   = "msgid"
	FieldMethod  = "method"
	FieldMsgType = "msg_type"

	// Connection fields
	FieldTransport = "transport"
	FieldAddress   = "address"
	FieldPID       = "pid"
)
