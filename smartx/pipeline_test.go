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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audioxbar/xbarcore/filter"
	"github.com/audioxbar/xbarcore/internal/region"
	"github.com/audioxbar/xbarcore/ringbuffer"
	"github.com/audioxbar/xbarcore/routingzone"
)

func TestProvideInputDataFiltersInPlaceWithoutConsuming(t *testing.T) {
	rb, err := ringbuffer.NewReal(region.FormatInt16, 2, 8, 2)
	require.NoError(t, err)
	area, off, err := rb.BeginAccess(ringbuffer.Write, 4)
	require.NoError(t, err)
	for i := 0; i < area.Frames(); i++ {
		region.Encode(area.Format, area.Sample(i, 0+area.FirstChannel), 0.5)
		region.Encode(area.Format, area.Sample(i, 1+area.FirstChannel), 0.5)
	}
	require.NoError(t, rb.EndAccess(ringbuffer.Write, off, area.Frames()))

	p := NewFilterPipeline(48000)
	require.NoError(t, p.PortBundle(1).SetChannelFilter(filter.SetChannelFilter{
		Channel: 0, Type: filter.Flat, Frequency: 1000, Gain: 1, Quality: 1, Order: 1,
	}))
	p.PortBundle(1).Enqueue(filter.Command{Selector: filter.UpdateGainSel, UpdateGain: filter.UpdateGain{Channel: 0, Gain: 0.5}})

	entry := &routingzone.ConversionBufferEntry{PortID: 1, Channels: 2, Buffer: rb}
	before, err := rb.UpdateAvailable(ringbuffer.Read)
	require.NoError(t, err)

	p.ProvideInputData(entry)

	after, err := rb.UpdateAvailable(ringbuffer.Read)
	require.NoError(t, err)
	assert.Equal(t, before, after, "ProvideInputData must not consume frames")

	readArea, readOff, err := rb.BeginAccess(ringbuffer.Read, 4)
	require.NoError(t, err)
	got := region.Decode(readArea.Format, readArea.Sample(0, 0+readArea.FirstChannel))
	assert.InDelta(t, 0.25, got, 1e-6, "channel 0 gain-halved by the per-port bundle")
	require.NoError(t, rb.EndAccess(ringbuffer.Read, readOff, 0))
}

func TestRetrieveOutputDataRunsMasterBundle(t *testing.T) {
	p := NewFilterPipeline(48000)
	p.Master().Enqueue(filter.Command{Selector: filter.UpdateGainSel, UpdateGain: filter.UpdateGain{Channel: 0, Gain: 0.5}})
	p.Master().Calculate([4]float64{}) // drain the queued gain command once

	data := make([]byte, 2*2) // 1 frame, 1 channel, int16
	area := region.Area{Data: data, Format: region.FormatInt16, Channels: 1, FrameStride: 2}
	region.Encode(area.Format, area.Sample(0, 0), 1.0)

	p.RetrieveOutputData(area, 1)
	got := region.Decode(area.Format, area.Sample(0, 0))
	assert.InDelta(t, 0.5, got, 1e-3)
}
