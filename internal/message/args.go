// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package message

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

func cloneArgs(args []any) []any {
	out := make([]any, len(args))
	copy(out, args)
	return out
}

func encodeArgs(enc *msgpack.Encoder, args []any) error {
	if err := enc.EncodeArrayLen(len(args)); err != nil {
		return err
	}
	for _, a := range args {
		if err := enc.Encode(a); err != nil {
			return err
		}
	}
	return nil
}

func decodeArgs(dec *msgpack.Decoder) ([]any, error) {
	args, err := dec.DecodeSlice()
	if err != nil {
		return nil, fmt.Errorf("%w: params: %v", ErrMalformed, err)
	}
	if args == nil {
		args = []any{}
	}
	return args, nil
}

// decodeHeader reads the array header and type code and checks both.
func decodeHeader(dec *msgpack.Decoder, want Type, arity int) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if n != arity {
		return fmt.Errorf("%w: %s has %d elements, want %d", ErrMalformed, want, n, arity)
	}
	code, err := dec.DecodeInt()
	if err != nil {
		return fmt.Errorf("%w: type: %v", ErrMalformed, err)
	}
	if Type(code) != want {
		return fmt.Errorf("%w: type %d, want %d", ErrMalformed, code, want.Int())
	}
	return nil
}
