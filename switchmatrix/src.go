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

package switchmatrix

import (
	"github.com/audioxbar/xbarcore/internal/region"
	"github.com/audioxbar/xbarcore/ringbuffer"
)

// srcState is a linear-interpolation sample-rate converter carrying a
// fractional phase accumulator across Execute calls, the behavior
// SUPPLEMENTED FEATURES #2 calls for: the original's libsamplerate-style
// src_state_t needed to hit the "+-1 frame over 50 ticks" accuracy bound
// (spec.md E2). Not a reference-quality resampler: matches the generic
// scalar contract the filter engine follows for the same reason (spec.md
// §5 Design Notes).
type srcState struct {
	ratio    float64 // srcRate / sinkRate: input frames consumed per output frame
	channels int

	phase    float64   // fractional position between prevSamp and the next input frame; [0, 1), except up to 1+ratio when an Execute call runs out of input mid-step
	prevSamp []float64 // last input frame, one value per channel, for interpolation
	havePrev bool

	pendingRemainder int // frames_still_to_process carried from a prior Execute
}

func newSRCState(srcRate, sinkRate, channels int) *srcState {
	return &srcState{
		ratio:    float64(srcRate) / float64(sinkRate),
		channels: channels,
		prevSamp: make([]float64, channels),
	}
}

// reset drops the phase accumulator and any pending remainder (spec.md
// §4.3: "if no new input arrives while a remainder exists, the SRC is
// reset and the remainder is dropped").
func (s *srcState) reset() {
	s.phase = 0
	s.havePrev = false
	s.pendingRemainder = 0
}

// executeSRC implements spec.md §4.3's resample path: "consumes input until
// either dest_size output frames are produced or the requested
// frames_to_read are consumed; the remainder to produce is returned via
// frames_still_to_process".
func (j *Job) executeSRC(srcArea region.Area, framesToRead int) (int, int, error) {
	s := j.src
	available := srcArea.Frames()
	if available > framesToRead {
		available = framesToRead
	}
	if available <= 0 {
		if s.pendingRemainder > 0 {
			s.reset()
		}
		return 0, 0, nil
	}

	sinkSpace, err := j.sink.UpdateAvailable(ringbuffer.Write)
	if err != nil {
		return 0, 0, err
	}
	if sinkSpace <= 0 {
		return 0, available, nil
	}

	dstArea, off, err := j.sink.BeginAccess(ringbuffer.Write, sinkSpace)
	if err != nil {
		return 0, 0, err
	}
	destSize := dstArea.Frames()
	if destSize > sinkSpace {
		destSize = sinkSpace
	}

	produced := 0
	consumed := 0
	for produced < destSize {
		// Interpolate the next output frame between prevSamp and the
		// sample at srcArea[consumed], at fractional position s.phase.
		if !s.havePrev {
			if consumed >= available {
				break
			}
			for ch := 0; ch < s.channels; ch++ {
				s.prevSamp[ch] = region.Decode(srcArea.Format, srcArea.Sample(consumed, ch+srcArea.FirstChannel))
			}
			consumed++
			s.havePrev = true
			if consumed >= available && s.phase > 0 {
				break
			}
		}
		if consumed >= available {
			break
		}
		for ch := 0; ch < s.channels; ch++ {
			cur := region.Decode(srcArea.Format, srcArea.Sample(consumed, ch+srcArea.FirstChannel))
			v := s.prevSamp[ch] + (cur-s.prevSamp[ch])*s.phase
			region.Encode(dstArea.Format, dstArea.Sample(produced, ch+dstArea.FirstChannel), v)
		}
		produced++
		s.phase += s.ratio
		for s.phase >= 1 && consumed < available {
			for ch := 0; ch < s.channels; ch++ {
				s.prevSamp[ch] = region.Decode(srcArea.Format, srcArea.Sample(consumed, ch+srcArea.FirstChannel))
			}
			consumed++
			s.phase -= 1
		}
	}

	if err := j.sink.EndAccess(ringbuffer.Write, off, produced); err != nil {
		return consumed, 0, err
	}

	remainder := 0
	if produced < destSize && consumed >= available {
		// Ran out of input before filling dest_size: remaining output
		// frames are reported so the caller can re-enter with more input.
		remainder = destSize - produced
	}
	s.pendingRemainder = remainder
	return consumed, remainder, nil
}
