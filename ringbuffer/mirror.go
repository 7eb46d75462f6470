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
	"time"

	"github.com/audioxbar/xbarcore/internal/region"
)

// Device is the external collaborator a Mirror ring buffer adapts: an ALSA
// PCM handle's DMA region, or an in-process client's shared-memory ring.
// spec.md §1 treats ALSA device enumeration as out of scope, "specified
// only by the interfaces the core requires from it" — this is that
// interface.
type Device interface {
	UpdateAvailable(dir Direction, timeout time.Duration) (int, error)
	BeginAccess(dir Direction, wantFrames int) (region.Area, int, error)
	EndAccess(dir Direction, offsetFrames, framesDone int) error
	Timestamp(dir Direction) (time.Time, error)
	Channels() int
	Format() region.Format
	PeriodSize() int
}

// Mirror is a ring buffer whose storage is a Device's own memory (spec.md
// §3: "Mirror buffers carry a device handle instead of memory").
type Mirror struct {
	dev     Device
	timeout time.Duration
}

// NewMirror wraps dev with the given UpdateAvailable timeout (spec.md §4.9:
// "a timeout of 10 × period_time_ms").
func NewMirror(dev Device, timeout time.Duration) *Mirror {
	return &Mirror{dev: dev, timeout: timeout}
}

func (m *Mirror) Channels() int         { return m.dev.Channels() }
func (m *Mirror) Format() region.Format { return m.dev.Format() }
func (m *Mirror) PeriodSize() int       { return m.dev.PeriodSize() }

func (m *Mirror) UpdateAvailable(dir Direction) (int, error) {
	n, err := m.dev.UpdateAvailable(dir, m.timeout)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (m *Mirror) BeginAccess(dir Direction, wantFrames int) (region.Area, int, error) {
	return m.dev.BeginAccess(dir, wantFrames)
}

func (m *Mirror) EndAccess(dir Direction, offsetFrames, framesDone int) error {
	return m.dev.EndAccess(dir, offsetFrames, framesDone)
}

// ResetFromReader is not meaningful for a device-backed mirror: the device
// owns its own DMA pointers. ALSA's own recovery path (prepare/drop) is the
// collaborator's responsibility; this is a deliberate no-op so callers that
// treat Real and Mirror uniformly don't need a type switch.
func (m *Mirror) ResetFromReader() error { return nil }

// ResetFromWriter: see ResetFromReader.
func (m *Mirror) ResetFromWriter() error { return nil }

// ZeroOut is a no-op on a Mirror: the device owns its own DMA memory, and
// ALSA's own silence insertion (driven by the software params the handler
// configures, not an application-level write) is what fills a playback
// underrun. There is nothing for this call to do but succeed.
func (m *Mirror) ZeroOut() error { return nil }

func (m *Mirror) Timestamp(dir Direction) (time.Time, error) {
	return m.dev.Timestamp(dir)
}

func (m *Mirror) Close() error { return nil }
