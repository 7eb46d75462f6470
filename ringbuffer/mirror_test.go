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

package ringbuffer

import (
	"testing"
	"time"

	"github.com/audioxbar/xbarcore/internal/region"
	"github.com/stretchr/testify/require"
)

// fakeMirrorDevice implements Device over a Real, the way an ALSA PCM
// handle would, so Mirror can be exercised without any hardware.
type fakeMirrorDevice struct {
	real        *Real
	lastTimeout time.Duration
}

func newFakeMirrorDevice(t *testing.T) *fakeMirrorDevice {
	t.Helper()
	return &fakeMirrorDevice{real: newTestReal(t)}
}

func (f *fakeMirrorDevice) UpdateAvailable(dir Direction, timeout time.Duration) (int, error) {
	f.lastTimeout = timeout
	return f.real.UpdateAvailable(dir)
}

func (f *fakeMirrorDevice) BeginAccess(dir Direction, wantFrames int) (region.Area, int, error) {
	return f.real.BeginAccess(dir, wantFrames)
}

func (f *fakeMirrorDevice) EndAccess(dir Direction, offsetFrames, framesDone int) error {
	return f.real.EndAccess(dir, offsetFrames, framesDone)
}

func (f *fakeMirrorDevice) Timestamp(dir Direction) (time.Time, error) {
	return f.real.Timestamp(dir)
}

func (f *fakeMirrorDevice) Channels() int         { return f.real.Channels() }
func (f *fakeMirrorDevice) Format() region.Format { return f.real.Format() }
func (f *fakeMirrorDevice) PeriodSize() int       { return f.real.PeriodSize() }

func TestMirrorUsesConfiguredTimeout(t *testing.T) {
	dev := newFakeMirrorDevice(t)
	m := NewMirror(dev, 40*time.Millisecond)

	_, err := m.UpdateAvailable(Read)
	require.NoError(t, err)
	require.Equal(t, 40*time.Millisecond, dev.lastTimeout)
}

// TestMirrorZeroOutIsNoOp covers the underrun path a routing-zone worker
// drives on every zone.Sink: ZeroOut must succeed on a Mirror rather than
// erroring, since a device's own silence insertion handles the fill.
func TestMirrorZeroOutIsNoOp(t *testing.T) {
	dev := newFakeMirrorDevice(t)
	m := NewMirror(dev, time.Millisecond)
	require.NoError(t, m.ZeroOut())
}

func TestMirrorResetIsNoOp(t *testing.T) {
	dev := newFakeMirrorDevice(t)
	m := NewMirror(dev, time.Millisecond)
	require.NoError(t, m.ResetFromReader())
	require.NoError(t, m.ResetFromWriter())
}
