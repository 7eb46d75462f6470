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

package probe

import (
	"bytes"
	"testing"

	"github.com/audioxbar/xbarcore/internal/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWriterWritesInterleavedSamples(t *testing.T) {
	var buf bytes.Buffer
	w := NewFileWriter(&buf, 2)

	data := make([]byte, 4*2*2) // 4 frames, 2 channels, int16
	area := region.Area{Data: data, Format: region.FormatInt16, Channels: 2, FrameStride: 4}
	for i := 0; i < 4; i++ {
		region.Encode(region.FormatInt16, area.Sample(i, 0), 0.5)
		region.Encode(region.FormatInt16, area.Sample(i, 1), -0.5)
	}

	require.NoError(t, w.WriteFrames(area, 4))
	require.NoError(t, w.Close())
	assert.Equal(t, 16, buf.Len())
}

func TestStartStopActionsCarryWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewFileWriter(&buf, 1)
	start := NewStartAction(w)
	assert.True(t, start.Start)
	assert.Same(t, w, start.Writer)

	stop := NewStopAction()
	assert.False(t, stop.Start)
	assert.Nil(t, stop.Writer)
}
