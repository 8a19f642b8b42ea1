// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// RPC attributes
	RPCSystemKey    = "rpc.system"
	RPCMethodKey    = "rpc.method"
	RPCMsgIDKey     = "rpc.msgid"
	RPCDirectionKey = "rpc.direction"

	// Connection attributes
	TransportKey = "net.transport"
	PeerKey      = "net.peer"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
	RPCErrorKey  = "rpc.error_type"
)

// RPCSystem is the value of RPCSystemKey for every span of this module.
const RPCSystem = "msgpack-rpc"

// CallAttributes creates span attributes for an outgoing or incoming call.
func CallAttributes(method string, msgID uint32, direction string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RPCSystemKey, RPCSystem),
		attribute.String(RPCMethodKey, method),
		attribute.Int64(RPCMsgIDKey, int64(msgID)),
		attribute.String(RPCDirectionKey, direction),
	}
}

// ConnectionAttributes creates connection-related span attributes.
func ConnectionAttributes(transport, peer string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if transport != "" {
		attrs = append(attrs, attribute.String(TransportKey, transport))
	}
	if peer != "" {
		attrs = append(attrs, attribute.String(PeerKey, peer))
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

// PeerErrorAttributes marks a span whose call was answered with an application error.
func PeerErrorAttributes(errType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, "peer"),
		attribute.String(RPCErrorKey, errType),
	}
}
