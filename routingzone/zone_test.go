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

package routingzone

import (
	"testing"

	"github.com/audioxbar/xbarcore/internal/region"
	"github.com/audioxbar/xbarcore/ringbuffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSink adapts a ringbuffer.Real to the Sink interface for tests, with a
// scripted event queue instead of a real ALSA/SmartX-client backend.
type fakeSink struct {
	rb       *ringbuffer.Real
	events   []SinkEvent
	isAlsa   bool
	capacity int
}

func newFakeSink(t *testing.T, channels, periodSize, numPeriods int, isAlsa bool) *fakeSink {
	t.Helper()
	rb, err := ringbuffer.NewReal(region.FormatInt16, channels, periodSize, numPeriods)
	require.NoError(t, err)
	return &fakeSink{rb: rb, isAlsa: isAlsa, capacity: periodSize * numPeriods}
}

func (s *fakeSink) UpdateAvailable(dir ringbuffer.Direction) (int, error) { return s.rb.UpdateAvailable(dir) }
func (s *fakeSink) BeginAccess(dir ringbuffer.Direction, want int) (region.Area, int, error) {
	return s.rb.BeginAccess(dir, want)
}
func (s *fakeSink) EndAccess(dir ringbuffer.Direction, off, n int) error {
	return s.rb.EndAccess(dir, off, n)
}
func (s *fakeSink) ResetFromWriter() error { return s.rb.ResetFromWriter() }
func (s *fakeSink) ZeroOut() error         { return s.rb.ZeroOut() }
func (s *fakeSink) Channels() int          { return s.rb.Channels() }
func (s *fakeSink) Format() region.Format  { return s.rb.Format() }
func (s *fakeSink) PeriodSize() int        { return s.rb.PeriodSize() }
func (s *fakeSink) Capacity() int          { return s.capacity }
func (s *fakeSink) IsAlsaSink() bool       { return s.isAlsa }
func (s *fakeSink) GetNextEventType() SinkEvent {
	if len(s.events) == 0 {
		return NoEvent
	}
	e := s.events[0]
	s.events = s.events[1:]
	return e
}

func TestPrepareActivateLifecycle(t *testing.T) {
	sink := newFakeSink(t, 2, 32, 4, false)
	z := NewBaseZone(1, 32, sink, nil, nil)
	assert.Equal(t, Inactive, z.State())

	require.NoError(t, z.Prepare())
	assert.Equal(t, ActivePending, z.State())

	z.Activate()
	assert.Equal(t, Active, z.State())

	z.Inactivate()
	assert.Equal(t, Inactive, z.State())
}

func TestTransferPeriodNoOpWhenNotActive(t *testing.T) {
	sink := newFakeSink(t, 2, 32, 4, false)
	z := NewBaseZone(1, 32, sink, nil, nil)
	require.NoError(t, z.TransferPeriod())
	assert.Equal(t, uint64(0), z.Stats().FramesWritten)
}

func TestTransferPeriodZeroFillsWhenUnderrun(t *testing.T) {
	// A single-period-deep sink starts with periodSize frames of write
	// room; partially filling it first (simulating a device that hasn't
	// drained yet) drops the remaining space below period_size, which
	// step 7 treats as "no space this period".
	sink := newFakeSink(t, 2, 32, 1, false)
	z := NewBaseZone(1, 32, sink, nil, nil)
	require.NoError(t, z.Prepare())
	z.Activate()

	area, off, err := sink.rb.BeginAccess(ringbuffer.Write, 16)
	require.NoError(t, err)
	require.NoError(t, sink.rb.EndAccess(ringbuffer.Write, off, area.Frames()))

	require.NoError(t, z.TransferPeriod())
	assert.Equal(t, uint64(1), z.Stats().UnderrunCount)
}

func TestTransferPeriodCopiesFromConversionBufferOnceFull(t *testing.T) {
	sink := newFakeSink(t, 1, 16, 8, false)
	z := NewBaseZone(1, 16, sink, nil, nil)
	require.NoError(t, z.Buffers().Create(100, 1, region.FormatInt16, 16, 4))
	require.NoError(t, z.Prepare())
	z.Activate()

	entry := z.Buffers().Entries()[0]
	area, off, err := entry.Buffer.BeginAccess(ringbuffer.Write, 16)
	require.NoError(t, err)
	for i := range area.Data {
		area.Data[i] = 0x7F
	}
	require.NoError(t, entry.Buffer.EndAccess(ringbuffer.Write, off, area.Frames()))

	require.NoError(t, z.TransferPeriod())
	assert.Equal(t, uint64(16), z.Stats().FramesWritten)

	avail, _ := sink.rb.UpdateAvailable(ringbuffer.Read)
	assert.Equal(t, 16, avail)
}

func TestTransferPeriodHandlesStopEvent(t *testing.T) {
	sink := newFakeSink(t, 1, 16, 4, false)
	sink.events = []SinkEvent{Stop}
	z := NewBaseZone(1, 16, sink, nil, nil)
	require.NoError(t, z.Prepare())
	z.Activate()

	require.NoError(t, z.TransferPeriod())
	// handleStop re-prepares, landing back in ActivePending.
	assert.Equal(t, ActivePending, z.State())
}

func TestDerivedZonePrefillSizing(t *testing.T) {
	sink := newFakeSink(t, 1, 16, 8, true) // ALSA: capacity 128, prefill = 128-16=112
	z := NewDerivedZone(2, 16, sink, nil)
	require.NoError(t, z.Prepare())
	avail, _ := sink.UpdateAvailable(ringbuffer.Write)
	assert.Equal(t, 16, avail, "after prefill, exactly one period of write space should remain")
}
