/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package pcmpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMallocFramesSizesExactly(t *testing.T) {
	for nframes := 127; nframes < 1<<14; nframes += 997 {
		b := MallocFrames(nframes, 2, 2)
		require.Len(t, b, nframes*2*2)
		Free(b)
	}
}

func TestMallocFramesReusesPooledCapacity(t *testing.T) {
	// 192-frame stereo int16 conversion buffer, the size a real routing
	// zone allocates and frees across Stop/Prepare cycles.
	b := MallocFrames(192, 2, 2)
	require.Len(t, b, 192*2*2)
	wantCap := cap(b)
	Free(b)

	b2 := MallocFrames(192, 2, 2)
	require.Equal(t, wantCap, cap(b2))
	Free(b2)
}

func TestFrameBytes(t *testing.T) {
	require.Equal(t, 192*2*2, FrameBytes(192, 2, 2))
}

func TestMallocFramesZeroSize(t *testing.T) {
	b := MallocFrames(0, 2, 2)
	require.Len(t, b, 0)
	require.NotPanics(t, func() { Free(b) })
}

func TestFreeIgnoresForeignBuffers(t *testing.T) {
	require.NotPanics(t, func() {
		Free([]byte{})
		Free(make([]byte, 10))
	})
}
