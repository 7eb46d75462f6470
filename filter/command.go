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

package filter

import "math"

// errInvalidFilterParam (defined in biquad.go) covers every validation
// failure in this file; no additional import is needed here.

// Selector picks which Command payload is populated.
type Selector int

const (
	SetChannelFilterSel Selector = iota
	UpdateGainSel
	RampGainSel
	SetRampGradientSel
)

// SetChannelFilter carries a validated filter-parameter change for one
// channel of a Bundle (spec.md §4.10 set_channel_filter).
type SetChannelFilter struct {
	Channel   int
	Type      Type
	Frequency float64
	Gain      float64
	Quality   float64
	Order     int
}

// UpdateGain applies a gain change immediately, no ramp.
type UpdateGain struct {
	Channel int
	Gain    float64
}

// RampGain requests a gain change toward Target at the channel's current
// ramp gradient (set via SetRampGradient, or the package default),
// announcing completion via the Bundle's callback with User attached.
type RampGain struct {
	Channel int
	Target  float64
	User    interface{}
}

// SetRampGradient sets channel Channel's per-frame ramp rate in dB (spec.md
// §4.10 "gradient ∈ [0.01, 6.0] dB").
type SetRampGradient struct {
	Channel    int
	DBPerFrame float64
}

// Command is the typed, queue-friendly schema the real-time thread drains,
// every queued command at the start of each Calculate call (spec.md §4.10,
// supplement #3).
type Command struct {
	Selector         Selector
	SetChannelFilter SetChannelFilter
	UpdateGain       UpdateGain
	RampGain         RampGain
	SetRampGradient  SetRampGradient
}

const (
	minFrequency          = 10.0
	minGain               = 1e-3
	maxGain               = 1e3
	minQuality            = 1e-2
	maxQuality            = 1e2
	maxOrderLowHi         = 20
	maxOrderShelf         = 2
	defaultRampGradientDB = 1.0
	minRampGradientDB     = 0.01
	maxRampGradientDB     = 6.0
	rampTolerance         = 0.001 // 0.1% per spec.md §4.10
)

// rampFactor converts a dB/frame gradient into the multiplicative per-frame
// step a ramp-up applies to the current gain (spec.md §4.10
// set_ramp_gradient: "10^(g/20)").
func rampFactor(dBPerFrame float64) float64 {
	return math.Pow(10, dBPerFrame/20)
}

// drainCommands applies every queued Command without blocking; it is
// called once per Calculate frame from the real-time thread.
func (b *Bundle) drainCommands() {
	for {
		select {
		case cmd := <-b.commands:
			b.apply(cmd)
		default:
			return
		}
	}
}

func (b *Bundle) apply(cmd Command) {
	switch cmd.Selector {
	case SetChannelFilterSel:
		_ = b.SetChannelFilter(cmd.SetChannelFilter)
	case UpdateGainSel:
		b.applyUpdateGain(cmd.UpdateGain)
	case RampGainSel:
		b.applyRampGain(cmd.RampGain)
	case SetRampGradientSel:
		b.applySetRampGradient(cmd.SetRampGradient)
	}
}

func (b *Bundle) applyUpdateGain(u UpdateGain) {
	if u.Channel < 0 || u.Channel >= bundleChannels {
		return
	}
	p := &b.params[u.Channel]
	wasRamping := p.ramping
	user := p.rampUser
	interrupted := p.currentGain
	p.currentGain = clamp(u.Gain, minGain, maxGain)
	p.targetGain = p.currentGain
	p.ramping = false
	if wasRamping && b.announce != nil {
		b.announce(u.Channel, interrupted, user)
	}
}

func (b *Bundle) applyRampGain(r RampGain) {
	if r.Channel < 0 || r.Channel >= bundleChannels {
		return
	}
	p := &b.params[r.Channel]
	p.targetGain = clamp(r.Target, minGain, maxGain)
	p.ramping = p.targetGain != p.currentGain
	p.rampUser = r.User
}

func (b *Bundle) applySetRampGradient(g SetRampGradient) {
	if g.Channel < 0 || g.Channel >= bundleChannels {
		return
	}
	db := clamp(g.DBPerFrame, minRampGradientDB, maxRampGradientDB)
	up := rampFactor(db)
	p := &b.params[g.Channel]
	p.upFactor = up
	p.downFactor = 1 / up
}

// advanceRamps multiplies every ramping channel's gain by its up/down
// factor, firing the announce callback exactly once when the gain comes
// within rampTolerance of the target (spec.md §4.10).
func (b *Bundle) advanceRamps() {
	for ch := 0; ch < bundleChannels; ch++ {
		p := &b.params[ch]
		if !p.ramping {
			continue
		}
		if p.currentGain < p.targetGain {
			p.currentGain *= p.upFactor
			if p.currentGain > p.targetGain {
				p.currentGain = p.targetGain
			}
		} else {
			p.currentGain *= p.downFactor
			if p.currentGain < p.targetGain {
				p.currentGain = p.targetGain
			}
		}
		if math.Abs(p.currentGain-p.targetGain) <= rampTolerance*p.targetGain {
			p.currentGain = p.targetGain
			p.ramping = false
			if b.announce != nil {
				b.announce(ch, p.currentGain, p.rampUser)
			}
		}
	}
}

// SetChannelFilter validates req against spec.md §4.10's bounds and
// recomputes the channel's coefficients and precision. An invalid request
// returns an error and leaves the channel's prior filter untouched.
func (b *Bundle) SetChannelFilter(req SetChannelFilter) error {
	if req.Channel < 0 || req.Channel >= bundleChannels {
		return errInvalidFilterParam
	}
	if req.Frequency < minFrequency || req.Frequency > b.sampleRate/2 {
		return errInvalidFilterParam
	}
	if req.Gain < minGain || req.Gain > maxGain {
		return errInvalidFilterParam
	}
	if req.Quality < minQuality || req.Quality > maxQuality {
		return errInvalidFilterParam
	}
	maxOrder := maxOrderLowHi
	switch req.Type {
	case LowShelving, HighShelving:
		maxOrder = maxOrderShelf
	case Peak, BandPass:
		maxOrder = 2
	}
	if req.Order <= 0 || req.Order > maxOrder {
		return errInvalidFilterParam
	}
	if (req.Type == Peak || req.Type == BandPass) && req.Order != 2 {
		return errInvalidFilterParam
	}

	sections := (req.Order + 1) / 2
	c, err := designCoeffs(req.Type, req.Frequency, req.Gain, req.Quality, b.sampleRate)
	if err != nil {
		return err
	}

	p := &b.params[req.Channel]
	p.typ = req.Type
	p.freq = req.Frequency
	p.gain = req.Gain
	p.quality = req.Quality
	p.order = req.Order
	p.sections = sections
	p.precision = selectPrecision(req.Type, req.Frequency, req.Quality)

	if p.precision == Float64 {
		b.coeffsF64[req.Channel] = c
	} else {
		b.coeffsF32[req.Channel] = roundTripFloat32(c)
	}
	return nil
}

// selectPrecision implements spec.md §4.10's precision-selection rule: low
// frequency or high-Q peak/band-pass filters are numerically sensitive
// enough near fs/2 wraparound that they run in float64; everything else
// runs in float32.
func selectPrecision(typ Type, freq, quality float64) Precision {
	if (typ == Peak || typ == BandPass) && (freq < 300 || quality > 1) {
		return Float64
	}
	return Float32
}

// roundTripFloat32 truncates coefficients to float32 precision and back,
// matching what running the filter in the float32 state slot actually
// computes with.
func roundTripFloat32(c coeffs) coeffs {
	return coeffs{
		b0: float64(float32(c.b0)),
		b1: float64(float32(c.b1)),
		b2: float64(float32(c.b2)),
		a1: float64(float32(c.a1)),
		a2: float64(float32(c.a2)),
	}
}
