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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripAllFormatPairs(t *testing.T) {
	formats := []Format{FormatInt16, FormatInt32, FormatFloat32}
	values := []float64{0, 0.5, -0.5, 0.999, -1}

	for _, src := range formats {
		for _, dst := range formats {
			for _, v := range values {
				buf := make([]byte, 4)
				n := Encode(src, buf, v)
				decoded := Decode(src, buf[:n])

				out := make([]byte, 4)
				m := Encode(dst, out, decoded)
				roundTripped := Decode(dst, out[:m])

				assert.InDelta(t, v, roundTripped, 0.01, "src=%s dst=%s v=%v", src, dst, v)
			}
		}
	}
}

func TestAreaFramesAndSample(t *testing.T) {
	a := Area{
		Data:        make([]byte, 4*2*3), // 3 frames, stereo, int32
		Format:      FormatInt32,
		Channels:    2,
		FrameStride: 8,
	}
	require.Equal(t, 3, a.Frames())
	Encode(FormatInt32, a.Sample(1, 1), 0.25)
	assert.InDelta(t, 0.25, Decode(FormatInt32, a.Sample(1, 1)), 1e-6)
}

func TestRegionForEachFrameHopsWrap(t *testing.T) {
	first := Area{Data: make([]byte, 8), Format: FormatInt16, Channels: 2, FrameStride: 4}
	second := Area{Data: make([]byte, 4), Format: FormatInt16, Channels: 2, FrameStride: 4}
	r := Region{Areas: [2]Area{first, second}, N: 2}
	require.Equal(t, 3, r.Frames())

	seen := 0
	r.ForEachFrame(3, func(a Area, localFrame int) {
		seen++
	})
	assert.Equal(t, 3, seen)
}

func TestScratchReuse(t *testing.T) {
	s := GetScratch(16)
	assert.GreaterOrEqual(t, cap(s.Bytes()), 16)
	s.Release()

	s2 := GetScratch(8)
	assert.GreaterOrEqual(t, cap(s2.Bytes()), 8)
	s2.Release()
}
