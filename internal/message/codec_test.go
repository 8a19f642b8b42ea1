// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package message

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestRequestWireLayout(t *testing.T) {
	b, err := Marshal(NewRequest("nvim_get_mode").WithID(3))
	require.NoError(t, err)

	var frame []any
	require.NoError(t, msgpack.Unmarshal(b, &frame))
	require.Len(t, frame, 4)
	assert.EqualValues(t, 0, frame[0])
	assert.EqualValues(t, 3, frame[1])
	assert.Equal(t, "nvim_get_mode", frame[2])
	assert.Equal(t, []any{}, frame[3], "params must be an empty array, not nil")
}

func TestNotificationWireLayout(t *testing.T) {
	b, err := Marshal(NewNotification("redraw", "flush"))
	require.NoError(t, err)

	var frame []any
	require.NoError(t, msgpack.Unmarshal(b, &frame))
	require.Len(t, frame, 3)
	assert.EqualValues(t, 2, frame[0])
	assert.Equal(t, "redraw", frame[1])
	assert.Equal(t, []any{"flush"}, frame[2])
}

func TestResponseWireLayout(t *testing.T) {
	b, err := Marshal(NewResponse("done").WithID(11))
	require.NoError(t, err)

	var frame []any
	require.NoError(t, msgpack.Unmarshal(b, &frame))
	require.Len(t, frame, 4)
	assert.EqualValues(t, 1, frame[0])
	assert.EqualValues(t, 11, frame[1])
	assert.Nil(t, frame[2])
	assert.Equal(t, "done", frame[3])
}

func TestDecoderStream(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Encode(NewRequest("sum", 1, 2).WithID(1)))
	require.NoError(t, enc.Encode(NewNotification("tick", "a")))
	require.NoError(t, enc.Encode(NewErrorResponse(Validation("nope")).WithID(1)))
	require.NoError(t, enc.Encode(NewResponse([]any{"x", 3}).WithID(2)))

	dec := NewDecoder(&buf)

	m, err := dec.Next()
	require.NoError(t, err)
	want := &Request{ID: 1, Method: "sum", Args: []any{int64(1), int64(2)}}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}

	m, err = dec.Next()
	require.NoError(t, err)
	if diff := cmp.Diff(&Notification{Method: "tick", Args: []any{"a"}}, m); diff != "" {
		t.Errorf("notification mismatch (-want +got):\n%s", diff)
	}

	m, err = dec.Next()
	require.NoError(t, err)
	resp, ok := m.(*Response)
	require.True(t, ok)
	assert.Equal(t, uint32(1), resp.ID)
	assert.Equal(t, Validation("nope"), resp.Error)
	assert.Nil(t, resp.Result)

	m, err = dec.Next()
	require.NoError(t, err)
	resp, ok = m.(*Response)
	require.True(t, ok)
	assert.Nil(t, resp.Error)
	var result []any
	require.NoError(t, resp.Decode(&result))
	assert.Equal(t, []any{"x", int8(3)}, result)

	_, err = dec.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestResponseDecodeTyped(t *testing.T) {
	type mode struct {
		Mode     string `msgpack:"mode"`
		Blocking bool   `msgpack:"blocking"`
	}
	b, err := Marshal(NewResponse(map[string]any{"mode": "n", "blocking": false}).WithID(4))
	require.NoError(t, err)

	m, err := Unmarshal(b)
	require.NoError(t, err)

	var got mode
	require.NoError(t, m.(*Response).Decode(&got))
	assert.Equal(t, mode{Mode: "n"}, got)
}

func TestDecoderSkipsMalformedFrames(t *testing.T) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	require.NoError(t, enc.Encode("not an array"))
	require.NoError(t, enc.Encode([]any{9, 1, "x", []any{}}))
	require.NoError(t, enc.Encode([]any{0, 1, "short"}))
	require.NoError(t, enc.Encode([]any{}))
	require.NoError(t, Encode(&buf, NewNotification("after")))

	dec := NewDecoder(&buf)
	for i := 0; i < 4; i++ {
		_, err := dec.Next()
		assert.True(t, errors.Is(err, ErrMalformed), "frame %d: %v", i, err)
	}

	m, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "after", m.(*Notification).Method)
}

func TestDecoderNilParams(t *testing.T) {
	b, err := msgpack.Marshal([]any{2, "event", nil})
	require.NoError(t, err)

	m, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, []any{}, m.(*Notification).Args)
}

func TestDecoderTruncatedFrame(t *testing.T) {
	b, err := Marshal(NewRequest("long_method_name", "payload").WithID(1))
	require.NoError(t, err)

	dec := NewDecoder(bytes.NewReader(b[:len(b)-3]))
	_, err = dec.Next()
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMalformed), "truncation is a stream error")
}
