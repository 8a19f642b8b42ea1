// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package message

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Encoder writes framed messages to a stream.
type Encoder struct {
	w   *bufio.Writer
	enc *msgpack.Encoder
}

// NewEncoder returns an encoder writing to w. Each Encode call flushes.
func NewEncoder(w io.Writer) *Encoder {
	bw := bufio.NewWriter(w)
	return &Encoder{w: bw, enc: msgpack.NewEncoder(bw)}
}

// Encode writes m as one frame and flushes it.
func (e *Encoder) Encode(m Message) error {
	if err := e.enc.Encode(m); err != nil {
		return err
	}
	return e.w.Flush()
}

// Encode writes a single message to w.
func Encode(w io.Writer, m Message) error {
	return NewEncoder(w).Encode(m)
}

// Marshal returns the wire form of m.
func Marshal(m Message) ([]byte, error) {
	return msgpack.Marshal(m)
}

// Decoder reads framed messages from a stream.
//
// A frame is read in full before it is interpreted, so a malformed frame
// yields ErrMalformed and leaves the stream positioned at the next frame.
// Any other error comes from the underlying reader and is final.
type Decoder struct {
	stream *msgpack.Decoder
	frame  *msgpack.Decoder
	buf    bytes.Reader
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		stream: msgpack.NewDecoder(bufio.NewReader(r)),
		frame:  msgpack.NewDecoder(nil),
	}
}

// Next reads the next message.
func (d *Decoder) Next() (Message, error) {
	raw, err := d.stream.DecodeRaw()
	if err != nil {
		return nil, err
	}
	return d.parse(raw)
}

// Unmarshal decodes one message from its wire form.
func Unmarshal(raw []byte) (Message, error) {
	d := &Decoder{frame: msgpack.NewDecoder(nil)}
	return d.parse(raw)
}

func (d *Decoder) parse(raw []byte) (Message, error) {
	d.reset(raw)
	n, err := d.frame.DecodeArrayLen()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: frame is not a message array", ErrMalformed)
	}
	code, err := d.frame.DecodeInt()
	if err != nil {
		return nil, fmt.Errorf("%w: type: %v", ErrMalformed, err)
	}
	t, err := ParseType(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var m interface {
		Message
		msgpack.CustomDecoder
	}
	switch t {
	case TypeRequest:
		m = &Request{}
	case TypeResponse:
		m = &Response{}
	default:
		m = &Notification{}
	}

	d.reset(raw)
	if err := m.DecodeMsgpack(d.frame); err != nil {
		return nil, err
	}
	return m, nil
}

func (d *Decoder) reset(raw []byte) {
	d.buf.Reset(raw)
	d.frame.Reset(&d.buf)
	d.frame.UseLooseInterfaceDecoding(true)
}
