// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package message

import "sync/atomic"

// IDGenerator hands out msgids. An id must not repeat while a request
// carrying it may still be waiting for its response.
type IDGenerator interface {
	NextID() uint32
}

// SequentialIDs generates 1, 2, 3, ... and is safe for concurrent use.
type SequentialIDs struct {
	last atomic.Uint32
}

// NewSequentialIDs returns a generator whose first id is 1.
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{}
}

func (s *SequentialIDs) NextID() uint32 {
	return s.last.Add(1)
}
