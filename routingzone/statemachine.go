// Copyright 2025 CloudWeGo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package routingzone implements the per-sink real-time scheduler (spec.md
// §4.6-§4.8): conversion buffers, the streaming state machine that decides
// when to read from them, and the worker loop that drives a base or derived
// zone's periodic transfer.
package routingzone

// StreamState is one conversion buffer's warm-up/draining state (spec.md
// §4.7).
type StreamState int

const (
	BufferEmpty StreamState = iota
	BufferPartlyFromEmpty
	BufferFull
	BufferPartlyFromFull
)

func (s StreamState) String() string {
	switch s {
	case BufferEmpty:
		return "buffer_empty"
	case BufferPartlyFromEmpty:
		return "buffer_partly_from_empty"
	case BufferFull:
		return "buffer_full"
	case BufferPartlyFromFull:
		return "buffer_partly_from_full"
	default:
		return "unknown"
	}
}

// nextState implements the table in spec.md §4.7: next state is a function
// of the previous state and how available compares to requested.
//
//	previous \ input        available=0   available>=requested   otherwise
//	BufferEmpty              Empty          Full                  PartlyFromEmpty
//	BufferPartlyFromEmpty    Empty          Full                  PartlyFromEmpty
//	BufferFull                Empty          Full                  PartlyFromFull
//	BufferPartlyFromFull      Empty          Full                  PartlyFromFull
func nextState(prev StreamState, available, requested int) StreamState {
	switch {
	case available == 0:
		return BufferEmpty
	case available >= requested:
		return BufferFull
	default:
		switch prev {
		case BufferEmpty, BufferPartlyFromEmpty:
			return BufferPartlyFromEmpty
		default:
			return BufferPartlyFromFull
		}
	}
}

// shouldRead reports whether this state permits reading from the conversion
// buffer (spec.md §4.7 policy): in {BufferFull, BufferPartlyFromFull} copy
// whatever is available; in the Empty states, skip the read and zero-fill
// instead (warm-up).
func (s StreamState) shouldRead() bool {
	return s == BufferFull || s == BufferPartlyFromFull
}
