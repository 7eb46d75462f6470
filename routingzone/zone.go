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
	"sync"
	"time"

	"github.com/audioxbar/xbarcore/internal/region"
	"github.com/audioxbar/xbarcore/ringbuffer"
	"github.com/audioxbar/xbarcore/switchmatrix"
	"github.com/audioxbar/xbarcore/xbarlog"
)

// SinkEvent is one of the SmartX-client event types spec.md §6 names.
type SinkEvent int

const (
	NoEvent SinkEvent = iota
	Start
	Stop
)

// Sink is the narrow surface a Zone needs from its sink device: the ring
// buffer write side plus the device event queue spec.md §4.8 step 2 drains.
type Sink interface {
	UpdateAvailable(dir ringbuffer.Direction) (int, error)
	BeginAccess(dir ringbuffer.Direction, wantFrames int) (region.Area, int, error)
	EndAccess(dir ringbuffer.Direction, offsetFrames, framesDone int) error
	ResetFromWriter() error
	ZeroOut() error
	Channels() int
	Format() region.Format
	PeriodSize() int
	Capacity() int // total frames the device's buffer holds, for derived-zone prefill sizing
	GetNextEventType() SinkEvent
	IsAlsaSink() bool // selects the Prepare prefill amount (spec.md §4.8)
}

// Pipeline is the optional per-zone-input-port processing hook spec.md
// §4.8 step 8/9 calls out: provide_input_data feeds a conversion buffer
// before it's read, retrieve_output_data post-processes the sink region
// after the copy.
type Pipeline interface {
	ProvideInputData(buf *ConversionBufferEntry)
	RetrieveOutputData(sinkArea region.Area, frames int)
}

// WorkerState is the routing-zone worker's lifecycle state (spec.md §4.8).
type WorkerState int

const (
	Inactive WorkerState = iota
	ActivePending
	Active
)

func (s WorkerState) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case ActivePending:
		return "active_pending"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// Zone is a routing-zone worker: a base zone owns a switch matrix it
// triggers once per period; a derived zone instead runs on a period
// multiple of some base zone and has no switch matrix of its own (spec.md
// §3/§4.8).
type Zone struct {
	id         uint64
	isBase     bool
	periodSize int

	sink     Sink
	matrix   *switchmatrix.Matrix // nil for a derived zone
	buffers  *ConversionBuffers
	pipeline Pipeline

	mu    sync.Mutex
	state WorkerState

	// transferMu is the "in-progress-transfer mutex" spec.md §5 describes:
	// Inactivate takes it with a 100ms timeout to let a concurrent
	// TransferPeriod finish before tearing the zone down.
	transferMu sync.Mutex

	derived []*DerivedZoneRunner

	// prefillAvail is the sink's write-space availability recorded right
	// after Prepare's prefill; isSinkServiced fires once avail has grown
	// past it, meaning the device has started draining the prefill.
	prefillAvail int

	logThrottle *xbarlog.Throttle

	stats statsCounters
}

// NewBaseZone constructs a base routing zone: it owns matrix and triggers
// it once per transfer_period (spec.md §4.8 step 6).
func NewBaseZone(id uint64, periodSize int, sink Sink, matrix *switchmatrix.Matrix, pipeline Pipeline) *Zone {
	return &Zone{
		id:          id,
		isBase:      true,
		periodSize:  periodSize,
		sink:        sink,
		matrix:      matrix,
		buffers:     NewConversionBuffers(),
		pipeline:    pipeline,
		logThrottle: xbarlog.NewThrottle(time.Second),
	}
}

// NewDerivedZone constructs a derived routing zone: no switch matrix of its
// own, driven by its base zone's worker (spec.md §4.8 step 10).
func NewDerivedZone(id uint64, periodSize int, sink Sink, pipeline Pipeline) *Zone {
	return &Zone{
		id:          id,
		isBase:      false,
		periodSize:  periodSize,
		sink:        sink,
		buffers:     NewConversionBuffers(),
		pipeline:    pipeline,
		logThrottle: xbarlog.NewThrottle(time.Second),
	}
}

func (z *Zone) ID() uint64             { return z.id }
func (z *Zone) IsBase() bool           { return z.isBase }
func (z *Zone) Buffers() *ConversionBuffers { return z.buffers }
func (z *Zone) State() WorkerState {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.state
}
func (z *Zone) Stats() Stats { return z.stats.snapshot() }

// Prepare transitions Inactive -> ActivePending (spec.md §4.8). On a
// derived zone it prefills the sink so the device can start draining:
// bufferSize-periodSize zeros for an ALSA sink, periodSize zeros for an
// in-process sink.
func (z *Zone) Prepare() error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.state != Inactive {
		return nil
	}
	if err := z.sink.ResetFromWriter(); err != nil {
		return err
	}
	if !z.isBase {
		prefill := z.periodSize
		if z.sink.IsAlsaSink() {
			if c := z.sink.Capacity(); c > z.periodSize {
				prefill = c - z.periodSize
			}
		}
		if err := z.prefillZeros(prefill); err != nil {
			return err
		}
		avail, err := z.sink.UpdateAvailable(ringbuffer.Write)
		if err != nil {
			return err
		}
		z.prefillAvail = avail
	}
	z.state = ActivePending
	return nil
}

func (z *Zone) prefillZeros(frames int) error {
	for frames > 0 {
		area, off, err := z.sink.BeginAccess(ringbuffer.Write, frames)
		if err != nil {
			return err
		}
		n := area.Frames()
		if n == 0 {
			break
		}
		for i := range area.Data {
			area.Data[i] = 0
		}
		if err := z.sink.EndAccess(ringbuffer.Write, off, n); err != nil {
			return err
		}
		frames -= n
	}
	return nil
}

// Activate transitions ActivePending -> Active (spec.md §4.8). For the base
// zone this is unconditional; derived zones are activated externally by
// their base zone's worker once isSinkServiced observes draining.
func (z *Zone) Activate() {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.state == ActivePending {
		z.state = Active
	}
}

// Inactivate transitions any state to Inactive, taking a 100ms timed lock
// on the in-progress-transfer mutex so a concurrent TransferPeriod can
// finish cleanly (spec.md §4.8).
func (z *Zone) Inactivate() {
	locked := tryLockTimeout(&z.transferMu, 100*time.Millisecond)
	if locked {
		defer z.transferMu.Unlock()
	} else {
		xbarlog.Default.Errorf("routingzone: zone %d inactivate proceeded without the transfer lock after 100ms", z.id)
	}
	z.mu.Lock()
	z.state = Inactive
	z.mu.Unlock()
}

// isSinkServiced reports whether a derived zone's prefill has started
// draining: its available write space has grown past the value recorded
// right after Prepare's prefill, meaning the device consumed some of it.
func (z *Zone) isSinkServiced() bool {
	avail, err := z.sink.UpdateAvailable(ringbuffer.Write)
	if err != nil {
		return false
	}
	return avail > z.prefillAvail
}

// AddDerived registers a derived-zone runner this base zone's worker wakes
// once per periodSizeMultiple ticks (spec.md §4.8 step 10).
func (z *Zone) AddDerived(r *DerivedZoneRunner) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.derived = append(z.derived, r)
}
