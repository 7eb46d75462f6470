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

package smartx

import (
	"github.com/audioxbar/xbarcore/alsahandler"
	"github.com/audioxbar/xbarcore/internal/region"
	"github.com/audioxbar/xbarcore/ringbuffer"
	"github.com/audioxbar/xbarcore/routingzone"
)

// AlsaSink adapts an alsahandler.Handler into a routingzone.Sink, the other
// half of spec.md §4.1's "{ALSA PCM, in-process client}" device split. It
// has no event queue of its own: an ALSA sink's Start/Stop transitions come
// from the routing-zone worker's own prefill/drain tracking, not a queue
// (spec.md §4.8), so GetNextEventType always reports NoEvent here.
type AlsaSink struct {
	h *alsahandler.Handler
}

// NewAlsaSink wraps h for use as a routing zone's sink.
func NewAlsaSink(h *alsahandler.Handler) *AlsaSink { return &AlsaSink{h: h} }

func (s *AlsaSink) UpdateAvailable(dir ringbuffer.Direction) (int, error) {
	return s.h.Buffer().UpdateAvailable(dir)
}

func (s *AlsaSink) BeginAccess(dir ringbuffer.Direction, wantFrames int) (region.Area, int, error) {
	return s.h.Buffer().BeginAccess(dir, wantFrames)
}

func (s *AlsaSink) EndAccess(dir ringbuffer.Direction, offsetFrames, framesDone int) error {
	return s.h.Buffer().EndAccess(dir, offsetFrames, framesDone)
}

func (s *AlsaSink) ResetFromWriter() error { return s.h.ResetFromWriter() }
func (s *AlsaSink) ZeroOut() error         { return s.h.ZeroOut() }
func (s *AlsaSink) Channels() int          { return s.h.Channels() }
func (s *AlsaSink) Format() region.Format  { return s.h.Format() }
func (s *AlsaSink) PeriodSize() int        { return s.h.PeriodSize() }
func (s *AlsaSink) Capacity() int          { return s.h.Capacity() }
func (s *AlsaSink) IsAlsaSink() bool       { return true }

func (s *AlsaSink) GetNextEventType() routingzone.SinkEvent { return routingzone.NoEvent }

// Handler returns the underlying ALSA handler, for callers that need
// SetNonBlock or FeederErr.
func (s *AlsaSink) Handler() *alsahandler.Handler { return s.h }

var _ routingzone.Sink = (*AlsaSink)(nil)
