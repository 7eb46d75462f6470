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

// Package filter implements the biquad filter engine (spec.md §4.10): a
// bundle of four channels sharing coefficient and state layout, a command
// queue for parameter changes, and the per-frame calculate() hot path.
package filter

import (
	"math"

	"github.com/audioxbar/xbarcore/xbarerr"
)

const bundleChannels = 4

// Type is a biquad filter family (spec.md §4.10).
type Type int

const (
	Flat Type = iota
	Peak
	BandPass
	LowPass
	HighPass
	LowShelving
	HighShelving
)

// Precision selects which coefficient/state slot a channel's calculate()
// pass runs in.
type Precision int

const (
	Float32 Precision = iota
	Float64
)

// coeffs is one biquad's (b0, b1, b2, a1, a2) set; a0 is normalized to 1.
type coeffs struct {
	b0, b1, b2, a1, a2 float64
}

// state holds the four recursion variables a running biquad needs.
type state struct {
	x1, x2, y1, y2 float64
}

// channelParams is the last validated SetChannelFilter request for one
// channel, plus the live gain-ramp state.
type channelParams struct {
	typ       Type
	freq      float64
	gain      float64
	quality   float64
	order     int
	sections  int
	precision Precision

	currentGain float64
	targetGain  float64
	ramping     bool
	upFactor    float64 // multiplicative per-frame step while ramping up, 10^(gradient/20)
	downFactor  float64 // 1/upFactor
	rampUser    interface{}
}

// Bundle is a contiguous four-channel biquad engine (spec.md §4.10
// "a contiguous array of four-channel bundles").
type Bundle struct {
	sampleRate float64

	coeffsF32 [bundleChannels]coeffs
	coeffsF64 [bundleChannels]coeffs
	stateF32  [bundleChannels]state
	stateF64  [bundleChannels]state

	params [bundleChannels]channelParams

	commands chan Command

	announce func(channel int, gain float64, user interface{})
}

// NewBundle constructs a Bundle sampling at sampleRate Hz. Every channel
// starts flat (unity gain, pass-through coefficients).
func NewBundle(sampleRate float64) *Bundle {
	b := &Bundle{sampleRate: sampleRate, commands: make(chan Command, 32)}
	for ch := 0; ch < bundleChannels; ch++ {
		b.coeffsF32[ch] = coeffs{b0: 1}
		b.coeffsF64[ch] = coeffs{b0: 1}
		up := rampFactor(defaultRampGradientDB)
		b.params[ch] = channelParams{typ: Flat, currentGain: 1, targetGain: 1, upFactor: up, downFactor: 1 / up}
	}
	return b
}

// AnnounceCallback registers the callback invoked when a ramp completes or
// is preempted by an immediate gain update (spec.md §4.10 announce_callback).
func (b *Bundle) AnnounceCallback(cb func(channel int, gain float64, user interface{})) {
	b.announce = cb
}

// Enqueue posts a command for processing on the next Calculate call. The
// queue never blocks the caller: when full, the oldest pending command is
// dropped to make room, matching a real-time thread's no-wait requirement.
func (b *Bundle) Enqueue(cmd Command) {
	select {
	case b.commands <- cmd:
	default:
		select {
		case <-b.commands:
		default:
		}
		select {
		case b.commands <- cmd:
		default:
		}
	}
}

// Calculate runs one frame: drain the command queue, advance active gain
// ramps, then run the recursive filter for every channel (spec.md §4.10).
func (b *Bundle) Calculate(in [bundleChannels]float64) [bundleChannels]float64 {
	b.drainCommands()
	b.advanceRamps()

	var out [bundleChannels]float64
	for ch := 0; ch < bundleChannels; ch++ {
		p := &b.params[ch]
		var y float64
		if p.precision == Float64 {
			y = runBiquad(&b.coeffsF64[ch], &b.stateF64[ch], in[ch])
		} else {
			y = runBiquad(&b.coeffsF32[ch], &b.stateF32[ch], in[ch])
		}
		out[ch] = y * p.currentGain
	}
	return out
}

// runBiquad implements spec.md §4.10's direct-form-I recursion:
// y[n] = b0*x[n] + b1*x[n-1] + b2*x[n-2] - a1*y[n-1] - a2*y[n-2].
func runBiquad(c *coeffs, s *state, x float64) float64 {
	y := c.b0*x + c.b1*s.x1 + c.b2*s.x2 - c.a1*s.y1 - c.a2*s.y2
	s.x2 = s.x1
	s.x1 = x
	s.y2 = s.y1
	s.y1 = y
	return y
}

// Reset zeros the state variables for every channel but preserves
// coefficients and gain (spec.md §8 property 7).
func (b *Bundle) Reset() {
	for ch := 0; ch < bundleChannels; ch++ {
		b.stateF32[ch] = state{}
		b.stateF64[ch] = state{}
	}
}

// Gain returns channel ch's current (possibly mid-ramp) gain.
func (b *Bundle) Gain(ch int) float64 {
	if ch < 0 || ch >= bundleChannels {
		return 0
	}
	return b.params[ch].currentGain
}

// IsRamping reports whether channel ch is currently ramping toward a
// target gain.
func (b *Bundle) IsRamping(ch int) bool {
	if ch < 0 || ch >= bundleChannels {
		return false
	}
	return b.params[ch].ramping
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func preWarp(freq, sampleRate float64) float64 {
	return math.Tan(math.Pi * freq / sampleRate)
}

var errInvalidFilterParam = xbarerr.New(xbarerr.InvalidParam, "filter: invalid channel filter parameters")
