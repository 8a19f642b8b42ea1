// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package message defines the MessagePack-RPC message model and its wire codec.
//
// Every message is a MessagePack array:
//
//	request:      [0, msgid, method, params]
//	response:     [1, msgid, error, result]
//	notification: [2, method, params]
//
// Errors carried in responses follow the Neovim convention [type, message].
package message
