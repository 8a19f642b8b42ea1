// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// parseArgs turns a JSON argument string into RPC params. An array is used
// as the parameter list; any other value becomes the only parameter.
// Integral numbers become int64 so peers expecting integers accept them.
func parseArgs(raw string) ([]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON arguments: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("invalid JSON arguments: trailing data")
	}
	v = normalize(v)
	if list, ok := v.([]any); ok {
		return list, nil
	}
	return []any{v}, nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case []any:
		for i := range t {
			t[i] = normalize(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = normalize(t[k])
		}
		return t
	default:
		return v
	}
}

// toJSON renders a decoded result. Byte strings, which MessagePack peers
// use for text as often as for binary data, are printed as text.
func toJSON(v any) ([]byte, error) {
	return json.MarshalIndent(textify(v), "", "  ")
}

func textify(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = textify(t[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = textify(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(textify(k))] = textify(e)
		}
		return out
	default:
		return v
	}
}
