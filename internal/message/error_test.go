// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package message

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestErrorConstructors(t *testing.T) {
	assert.Equal(t, &Error{Type: ErrorException, Message: "a"}, Exception("a"))
	assert.Equal(t, &Error{Type: ErrorValidation, Message: "b"}, Validation("b"))
	assert.Equal(t, &Error{Type: ErrorType(5), Message: "c"}, Other(5, "c"))
}

func TestErrorTypeString(t *testing.T) {
	assert.Equal(t, "Exception", ErrorException.String())
	assert.Equal(t, "Validation", ErrorValidation.String())
	assert.Equal(t, "Type(5)", ErrorType(5).String())
}

func TestErrorImplementsError(t *testing.T) {
	var err error = Validation("wrong argument count")

	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, ErrorValidation, rpcErr.Type)
	assert.Contains(t, err.Error(), "Validation")
	assert.Contains(t, err.Error(), "wrong argument count")
}

func TestErrorWireForm(t *testing.T) {
	b, err := msgpack.Marshal(Other(7, "custom"))
	require.NoError(t, err)

	var pair []any
	require.NoError(t, msgpack.Unmarshal(b, &pair))
	require.Len(t, pair, 2)
	assert.EqualValues(t, 7, pair[0])
	assert.Equal(t, "custom", pair[1])
}

func TestErrorDecodeVariants(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Error
	}{
		{"pair", []any{1, "bad"}, Error{Type: ErrorValidation, Message: "bad"}},
		{"unknown type kept", []any{42, "odd"}, Error{Type: 42, Message: "odd"}},
		{"bare string", "plain failure", Error{Type: ErrorException, Message: "plain failure"}},
		{"binary message", []any{0, []byte("bytes")}, Error{Type: ErrorException, Message: "bytes"}},
		{"message only", []any{"only text"}, Error{Type: ErrorException, Message: "only text"}},
		{"extra elements", []any{1, "msg", "extra"}, Error{Type: ErrorValidation, Message: "msg"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := msgpack.Marshal(tt.in)
			require.NoError(t, err)

			var got Error
			require.NoError(t, msgpack.Unmarshal(b, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}
