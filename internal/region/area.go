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

package region

import (
	"sync"

	"github.com/bytedance/gopkg/lang/mcache"
)

// Scratch is a reusable staging buffer for a Job (switchmatrix package) that
// copies across a wrap boundary or converts sample width: both cases need a
// temporary contiguous run to decode/encode into before the result is
// spliced back across the destination's own areas. Pooling it the way
// gridbuf.ReadBuffer pools its chunk-hopping scratch via mcache keeps the
// real-time copy path allocation-free after warm-up.
type Scratch struct {
	buf []byte
}

var scratchPool = sync.Pool{
	New: func() interface{} { return new(Scratch) },
}

// GetScratch returns a Scratch whose buffer has at least n bytes.
func GetScratch(n int) *Scratch {
	s := scratchPool.Get().(*Scratch)
	if cap(s.buf) < n {
		if s.buf != nil {
			mcache.Free(s.buf)
		}
		s.buf = mcache.Malloc(n)
	}
	s.buf = s.buf[:n]
	return s
}

// Bytes returns the staging buffer.
func (s *Scratch) Bytes() []byte { return s.buf }

// Release returns the Scratch to the pool. The caller must not use Bytes()
// after calling Release.
func (s *Scratch) Release() {
	scratchPool.Put(s)
}

// Area is one contiguous run of interleaved PCM frames, byte-addressed so a
// copy never has to assume anything about how channels are packed beyond
// "FrameStride bytes per frame, Channels samples per frame starting at
// FirstChannel". This is the "area" spec.md §3 requires begin_access to
// return.
type Area struct {
	Data         []byte
	Format       Format
	Channels     int
	FirstChannel int
	FrameStride  int // bytes from one frame to the next
}

// Frames reports how many whole frames Data holds.
func (a Area) Frames() int {
	if a.FrameStride == 0 {
		return 0
	}
	return len(a.Data) / a.FrameStride
}

// Sample returns the byte slice for channel ch (absolute channel index;
// Sample subtracts FirstChannel itself) of frame i.
func (a Area) Sample(i, ch int) []byte {
	bps := a.Format.BytesPerSample()
	off := i*a.FrameStride + (ch-a.FirstChannel)*bps
	return a.Data[off : off+bps]
}

// Region is the result of a begin_access call: one or two Areas. A second
// Area is present only when the requested run wraps the ring's backing
// array tail, mirroring how gridbuf.ReadBuffer transparently hops from one
// underlying chunk to the next without the caller noticing.
type Region struct {
	Areas [2]Area
	N     int // 1 or 2 valid entries in Areas
}

// Frames is the total number of frames spanned by all areas in the region.
func (r Region) Frames() int {
	total := 0
	for i := 0; i < r.N; i++ {
		total += r.Areas[i].Frames()
	}
	return total
}

// ForEachFrame calls f once per frame index in [0, frames) with the Area and
// local (area-relative) frame index owning it, hopping across the wrap
// boundary the same way gridbuf.ReadBuffer.readSlow hops across chunks.
func (r Region) ForEachFrame(frames int, f func(a Area, localFrame int)) {
	remaining := frames
	for i := 0; i < r.N && remaining > 0; i++ {
		a := r.Areas[i]
		n := a.Frames()
		if n > remaining {
			n = remaining
		}
		for j := 0; j < n; j++ {
			f(a, j)
		}
		remaining -= n
	}
}
