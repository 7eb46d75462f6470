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

// Package smartx is the top-level facade gluing config, switchmatrix,
// routingzone and events together (spec.md §2's control flow) and
// implementing the SmartX-client interface spec.md §6 names:
// get_ring_buffer, enable_event_queue, get_next_event_type.
package smartx

import (
	"github.com/audioxbar/xbarcore/internal/region"
	"github.com/audioxbar/xbarcore/ringbuffer"
	"github.com/audioxbar/xbarcore/routingzone"
	"github.com/audioxbar/xbarcore/xbarerr"
)

// ClientSink adapts a Real ring buffer into a routingzone.Sink for an
// in-process client (spec.md §4.1: "sinks and sources are one of {ALSA PCM,
// in-process client with shared-memory ring buffer}"). Its event queue
// carries the Start/Stop notifications spec.md §6's get_next_event_type
// returns; a real client drains it the way an ALSA sink's mirror buffer is
// drained by hardware.
type ClientSink struct {
	rb       *ringbuffer.Real
	capacity int
	events   chan routingzone.SinkEvent
}

// NewClientSink wraps rb, whose total frame capacity is periodSize ×
// numPeriods at construction (ringbuffer.NewReal doesn't expose it, so the
// caller — which built rb — passes it through).
func NewClientSink(rb *ringbuffer.Real, capacity int) *ClientSink {
	return &ClientSink{rb: rb, capacity: capacity, events: make(chan routingzone.SinkEvent, 8)}
}

func (s *ClientSink) UpdateAvailable(dir ringbuffer.Direction) (int, error) {
	return s.rb.UpdateAvailable(dir)
}

func (s *ClientSink) BeginAccess(dir ringbuffer.Direction, wantFrames int) (region.Area, int, error) {
	return s.rb.BeginAccess(dir, wantFrames)
}

func (s *ClientSink) EndAccess(dir ringbuffer.Direction, offsetFrames, framesDone int) error {
	return s.rb.EndAccess(dir, offsetFrames, framesDone)
}

func (s *ClientSink) ResetFromWriter() error { return s.rb.ResetFromWriter() }
func (s *ClientSink) ZeroOut() error         { return s.rb.ZeroOut() }
func (s *ClientSink) Channels() int          { return s.rb.Channels() }
func (s *ClientSink) Format() region.Format  { return s.rb.Format() }
func (s *ClientSink) PeriodSize() int        { return s.rb.PeriodSize() }
func (s *ClientSink) Capacity() int          { return s.capacity }
func (s *ClientSink) IsAlsaSink() bool       { return false }

// PushEvent enqueues ev for the client to observe via GetNextEventType. It
// never blocks: a full queue drops the oldest entry, matching the no-wait
// contract every real-time-adjacent queue in this codebase follows
// (filter.Bundle.Enqueue, switchmatrix's probe-action queue).
func (s *ClientSink) PushEvent(ev routingzone.SinkEvent) {
	select {
	case s.events <- ev:
	default:
		select {
		case <-s.events:
		default:
		}
		select {
		case s.events <- ev:
		default:
		}
	}
}

// GetNextEventType implements routingzone.Sink and the client-facing
// get_next_event_type: the oldest queued event, or NoEvent if none is
// pending.
func (s *ClientSink) GetNextEventType() routingzone.SinkEvent {
	select {
	case ev := <-s.events:
		return ev
	default:
		return routingzone.NoEvent
	}
}

// RingBuffer returns the backing ring buffer for get_ring_buffer.
func (s *ClientSink) RingBuffer() ringbuffer.RingBuffer { return s.rb }

var errNoRingBuffer = xbarerr.New(xbarerr.NotInitialized, "smartx: port has no ring buffer")

var _ routingzone.Sink = (*ClientSink)(nil)
