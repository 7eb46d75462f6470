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

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLowPassCoefficientsMatchVector(t *testing.T) {
	b := NewBundle(48000)
	require.NoError(t, b.SetChannelFilter(SetChannelFilter{
		Channel: 0, Type: LowPass, Frequency: 200, Gain: 1, Quality: 1, Order: 1,
	}))
	c := b.coeffsF32[0]
	assert.InDelta(t, 0.01292063, c.b0, 1e-6)
	assert.InDelta(t, 0.01292063, c.b1, 1e-6)
	assert.InDelta(t, -0.97415874, c.a1, 1e-6)
}

func TestFlatFilterPassesSignalUnchanged(t *testing.T) {
	b := NewBundle(48000)
	require.NoError(t, b.SetChannelFilter(SetChannelFilter{
		Channel: 0, Type: Flat, Frequency: 1000, Gain: 1, Quality: 1, Order: 1,
	}))
	out := b.Calculate([4]float64{0.5, 0, 0, 0})
	assert.InDelta(t, 0.5, out[0], 1e-9)
}

func TestSetChannelFilterRejectsOutOfRangeFrequency(t *testing.T) {
	b := NewBundle(48000)
	err := b.SetChannelFilter(SetChannelFilter{Channel: 0, Type: LowPass, Frequency: 5, Gain: 1, Quality: 1, Order: 1})
	assert.Error(t, err)
}

func TestSetChannelFilterRejectsPeakWithWrongOrder(t *testing.T) {
	b := NewBundle(48000)
	err := b.SetChannelFilter(SetChannelFilter{Channel: 0, Type: Peak, Frequency: 1000, Gain: 2, Quality: 1, Order: 1})
	assert.Error(t, err)
}

func TestSetChannelFilterRejectsShelvingHighOrder(t *testing.T) {
	b := NewBundle(48000)
	err := b.SetChannelFilter(SetChannelFilter{Channel: 0, Type: LowShelving, Frequency: 200, Gain: 2, Quality: 1, Order: 4})
	assert.Error(t, err)
}

func TestPrecisionSelectionForPeakFilter(t *testing.T) {
	b := NewBundle(48000)
	require.NoError(t, b.SetChannelFilter(SetChannelFilter{Channel: 0, Type: Peak, Frequency: 1000, Gain: 2, Quality: 1, Order: 2}))
	assert.Equal(t, Float32, b.params[0].precision, "peak at 1 kHz with Q=1 stays float32")

	require.NoError(t, b.SetChannelFilter(SetChannelFilter{Channel: 1, Type: Peak, Frequency: 200, Gain: 2, Quality: 0.5, Order: 2}))
	assert.Equal(t, Float64, b.params[1].precision, "f<300Hz forces float64")
}

func TestPeakCoefficientsUseExpectedPrewarp(t *testing.T) {
	b := NewBundle(48000)
	require.NoError(t, b.SetChannelFilter(SetChannelFilter{Channel: 0, Type: Peak, Frequency: 1000, Gain: 2, Quality: 1, Order: 2}))
	k := math.Tan(math.Pi / 48)
	assert.InDelta(t, k, preWarp(1000, 48000), 1e-9)
}

func TestResetPreservesCoefficientsClearsState(t *testing.T) {
	b := NewBundle(48000)
	require.NoError(t, b.SetChannelFilter(SetChannelFilter{Channel: 0, Type: LowPass, Frequency: 200, Gain: 1, Quality: 1, Order: 1}))
	b.Calculate([4]float64{1, 0, 0, 0})
	before := b.coeffsF32[0]
	b.Reset()
	assert.Equal(t, before, b.coeffsF32[0])
	assert.Equal(t, state{}, b.stateF32[0])
}

func TestUpdateGainAppliesImmediately(t *testing.T) {
	b := NewBundle(48000)
	b.Enqueue(Command{Selector: UpdateGainSel, UpdateGain: UpdateGain{Channel: 0, Gain: 2}})
	b.Calculate([4]float64{})
	assert.InDelta(t, 2, b.Gain(0), 1e-9)
}

func TestRampGainCompletesAndAnnouncesOnce(t *testing.T) {
	b := NewBundle(48000)
	var announced int
	var gotChannel int
	var gotGain float64
	var gotUser interface{}
	b.AnnounceCallback(func(ch int, gain float64, user interface{}) {
		announced++
		gotChannel, gotGain, gotUser = ch, gain, user
	})
	b.Enqueue(Command{Selector: SetRampGradientSel, SetRampGradient: SetRampGradient{Channel: 0, DBPerFrame: 0.25}})
	b.Calculate([4]float64{})
	b.Enqueue(Command{Selector: RampGainSel, RampGain: RampGain{Channel: 0, Target: 3.9811, User: 42}})
	for i := 0; i < 48; i++ {
		b.Calculate([4]float64{})
	}
	assert.Equal(t, 1, announced)
	assert.Equal(t, 0, gotChannel)
	assert.InDelta(t, 3.9811, gotGain, 1e-9)
	assert.Equal(t, 42, gotUser)
	assert.False(t, b.IsRamping(0))
}

func TestImmediateUpdateDuringRampAnnouncesInterruptedGainAndClearsRamping(t *testing.T) {
	b := NewBundle(48000)
	var gotGain float64
	b.AnnounceCallback(func(ch int, gain float64, user interface{}) { gotGain = gain })
	b.Enqueue(Command{Selector: SetRampGradientSel, SetRampGradient: SetRampGradient{Channel: 0, DBPerFrame: 0.05}})
	b.Calculate([4]float64{})
	b.Enqueue(Command{Selector: RampGainSel, RampGain: RampGain{Channel: 0, Target: 4}})
	b.Calculate([4]float64{})
	b.Calculate([4]float64{})
	b.Enqueue(Command{Selector: UpdateGainSel, UpdateGain: UpdateGain{Channel: 0, Gain: 1}})
	b.Calculate([4]float64{})
	assert.False(t, b.IsRamping(0))
	assert.InDelta(t, rampFactor(0.05)*rampFactor(0.05), gotGain, 1e-9)
}

func TestSetRampGradientClampsToDocumentedRange(t *testing.T) {
	b := NewBundle(48000)
	b.Enqueue(Command{Selector: SetRampGradientSel, SetRampGradient: SetRampGradient{Channel: 0, DBPerFrame: 50}})
	b.Calculate([4]float64{})
	assert.InDelta(t, rampFactor(maxRampGradientDB), b.params[0].upFactor, 1e-9)

	b.Enqueue(Command{Selector: SetRampGradientSel, SetRampGradient: SetRampGradient{Channel: 1, DBPerFrame: -1}})
	b.Calculate([4]float64{})
	assert.InDelta(t, rampFactor(minRampGradientDB), b.params[1].upFactor, 1e-9)
}

func TestEnqueueDropsOldestWhenQueueFull(t *testing.T) {
	b := NewBundle(48000)
	for i := 0; i < 64; i++ {
		b.Enqueue(Command{Selector: UpdateGainSel, UpdateGain: UpdateGain{Channel: 0, Gain: 1 + float64(i)*0.001}})
	}
	b.Calculate([4]float64{})
	assert.True(t, b.Gain(0) >= 1)
}
