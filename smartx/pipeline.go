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
	"sync"

	"github.com/audioxbar/xbarcore/filter"
	"github.com/audioxbar/xbarcore/internal/region"
	"github.com/audioxbar/xbarcore/ringbuffer"
	"github.com/audioxbar/xbarcore/routingzone"
)

// FilterPipeline is a routingzone.Pipeline built on the biquad filter
// engine: one Bundle per zone-input-port runs in ProvideInputData (a
// per-source EQ stage), and one master Bundle runs in RetrieveOutputData
// (a post-mix volume/tone stage), matching spec.md §4.8 step 8/9's two
// pipeline hooks. The specific DSP algorithms of the volume/loudness
// modules beyond the filter engine are out of scope (spec.md §1); this is
// the filter engine wired to the one pipeline seam the core defines.
type FilterPipeline struct {
	mu         sync.Mutex
	sampleRate float64
	perPort    map[uint64]*filter.Bundle
	master     *filter.Bundle
}

// NewFilterPipeline creates a FilterPipeline sampling at sampleRate Hz.
func NewFilterPipeline(sampleRate float64) *FilterPipeline {
	return &FilterPipeline{
		sampleRate: sampleRate,
		perPort:    make(map[uint64]*filter.Bundle),
		master:     filter.NewBundle(sampleRate),
	}
}

// PortBundle returns the per-port filter bundle for portID, creating one
// (flat, unity gain) on first use.
func (p *FilterPipeline) PortBundle(portID uint64) *filter.Bundle {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.perPort[portID]
	if !ok {
		b = filter.NewBundle(p.sampleRate)
		p.perPort[portID] = b
	}
	return b
}

// Master returns the shared post-mix filter bundle.
func (p *FilterPipeline) Master() *filter.Bundle { return p.master }

// ProvideInputData runs buf's per-port bundle over every frame currently
// queued in its conversion buffer, in place. It peeks rather than consumes
// (EndAccess commits zero frames): the worker's own copy step still does
// the actual read that advances the buffer, this only shapes the bytes it
// will read (spec.md §4.8 step 8: "feed the pipeline's provide_input_data"
// happens before the copy).
func (p *FilterPipeline) ProvideInputData(buf *routingzone.ConversionBufferEntry) {
	n, err := buf.Buffer.UpdateAvailable(ringbuffer.Read)
	if err != nil || n <= 0 {
		return
	}
	area, off, err := buf.Buffer.BeginAccess(ringbuffer.Read, n)
	if err != nil {
		return
	}
	frames := area.Frames()
	if frames > 0 {
		runBundleInPlace(p.PortBundle(buf.PortID), area, frames, buf.Channels)
	}
	_ = buf.Buffer.EndAccess(ringbuffer.Read, off, 0)
}

// RetrieveOutputData runs the master bundle over the sink region just
// copied into, in place (spec.md §4.8 step 9).
func (p *FilterPipeline) RetrieveOutputData(sinkArea region.Area, frames int) {
	if frames <= 0 {
		return
	}
	runBundleInPlace(p.master, sinkArea, frames, sinkArea.Channels)
}

// runBundleInPlace decodes up to 4 channels of area per frame, runs them
// through bundle, and encodes the result back — the filter engine's
// channel bundling (spec.md §4.10) is fixed at 4, so channels beyond that
// pass through unfiltered.
func runBundleInPlace(bundle *filter.Bundle, area region.Area, frames, channels int) {
	if channels > 4 {
		channels = 4
	}
	for i := 0; i < frames; i++ {
		var in [4]float64
		for ch := 0; ch < channels; ch++ {
			in[ch] = region.Decode(area.Format, area.Sample(i, ch+area.FirstChannel))
		}
		out := bundle.Calculate(in)
		for ch := 0; ch < channels; ch++ {
			region.Encode(area.Format, area.Sample(i, ch+area.FirstChannel), out[ch])
		}
	}
}

var _ routingzone.Pipeline = (*FilterPipeline)(nil)
