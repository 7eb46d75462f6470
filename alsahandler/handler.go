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

// Package alsahandler wraps one ALSA PCM handle (spec.md §4.9). ALSA device
// enumeration itself is out of scope (spec.md §1, "specified only by the
// interfaces the core requires from it") — ringbuffer.Device is that
// interface, and this package only computes the hardware/software
// parameters and, for the asynchronous clock path, runs the feeder that
// adapts the device's mirror buffer to an ASRC ring buffer.
package alsahandler

import (
	"sync/atomic"
	"time"

	"github.com/audioxbar/xbarcore/internal/region"
	"github.com/audioxbar/xbarcore/ringbuffer"
	"github.com/audioxbar/xbarcore/xbarerr"
)

// ClockType selects the synchronous or asynchronous handling path
// (spec.md §4.9).
type ClockType int

const (
	Sync ClockType = iota
	ReceivedAsync
)

// HardwareParams are the ALSA hardware/software parameter names spec.md
// §4.9 and §4.1 call out: mmap-interleaved access, rate, channels, periods,
// period_size, plus the derived software params.
type HardwareParams struct {
	Format     region.Format
	Channels   int
	SampleRate int
	PeriodSize int
	NumPeriods int
}

func (p HardwareParams) bufferSize() int { return p.PeriodSize * p.NumPeriods }

// startThreshold implements spec.md §4.9's "start threshold =
// (bufferSize/periodSize)*periodSize" literally, rather than simplifying it
// to bufferSize, so a non-exact bufferSize/periodSize ratio rounds down the
// same way the original formula does.
func (p HardwareParams) startThreshold() int {
	return (p.bufferSize() / p.PeriodSize) * p.PeriodSize
}

func (p HardwareParams) availMin() int { return p.PeriodSize }

func (p HardwareParams) periodTime() time.Duration {
	seconds := float64(p.PeriodSize) / float64(p.SampleRate)
	return time.Duration(seconds * float64(time.Second))
}

// mirrorTimeout is spec.md §4.9's "a timeout of 10 × period_time_ms".
func (p HardwareParams) mirrorTimeout() time.Duration {
	return 10 * p.periodTime()
}

func (p HardwareParams) validate() error {
	if p.Channels <= 0 || p.PeriodSize <= 0 || p.NumPeriods <= 0 || p.SampleRate <= 0 {
		return xbarerr.New(xbarerr.InvalidParam, "alsahandler: channels/periodSize/numPeriods/sampleRate must be > 0")
	}
	return nil
}

const feederIdleSleep = time.Millisecond

// Handler wraps one ALSA PCM handle running in a single direction (capture
// or playback). Synchronous handlers expose the device's mirror buffer
// directly; asynchronous handlers (ClockType == ReceivedAsync) add an ASRC
// ring buffer and a feeder goroutine (spec.md §4.9).
type Handler struct {
	dev    ringbuffer.Device
	dir    ringbuffer.Direction
	params HardwareParams
	clock  ClockType

	mirror *ringbuffer.Mirror

	nonBlock atomic.Bool

	asrc         *ringbuffer.Real
	feederStop   chan struct{}
	feederDone   chan struct{}
	feederErr    atomic.Value // error
}

// Open wraps dev, computing the hardware/software parameters spec.md §4.9
// describes. dir is the direction data flows through this handle (Read for
// a capture source, Write for a playback sink). For clock ==
// ReceivedAsync, numPeriodsAsrcBuffer sizes the additional ASRC real ring
// buffer (spec.md §4.9: "period_size × numPeriodsAsrcBuffer") and a feeder
// goroutine starts immediately.
func Open(dev ringbuffer.Device, dir ringbuffer.Direction, params HardwareParams, clock ClockType, numPeriodsAsrcBuffer int) (*Handler, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	h := &Handler{
		dev:    dev,
		dir:    dir,
		params: params,
		clock:  clock,
		mirror: ringbuffer.NewMirror(dev, params.mirrorTimeout()),
	}

	if clock == ReceivedAsync {
		if numPeriodsAsrcBuffer <= 0 {
			return nil, xbarerr.New(xbarerr.InvalidParam, "alsahandler: numPeriodsAsrcBuffer must be > 0 for ReceivedAsync")
		}
		asrc, err := ringbuffer.NewReal(params.Format, params.Channels, params.PeriodSize, numPeriodsAsrcBuffer)
		if err != nil {
			return nil, err
		}
		h.asrc = asrc
		h.feederStop = make(chan struct{})
		h.feederDone = make(chan struct{})
		go h.feedLoop()
	}

	return h, nil
}

// SetNonBlock toggles blocking mode. Blocking (the default) waits up to
// 10×period_time on UpdateAvailable; non-blocking returns immediately —
// used for derived-zone sinks so a slow consumer can't deadlock the base
// zone's worker (spec.md §4.9).
func (h *Handler) SetNonBlock(nonBlock bool) { h.nonBlock.Store(nonBlock) }

func (h *Handler) effectiveTimeout() time.Duration {
	if h.nonBlock.Load() {
		return 0
	}
	return h.params.mirrorTimeout()
}

// UpdateAvailable reports available frames on the device side, honoring
// the current blocking mode (SetNonBlock), bypassing the Mirror's fixed
// timeout so the toggle takes effect without reconstructing it.
func (h *Handler) UpdateAvailable() (int, error) {
	return h.dev.UpdateAvailable(h.dir, h.effectiveTimeout())
}

// Buffer returns the ring buffer external callers (the routing zone
// worker) should read from or write to: the ASRC real buffer when
// asynchronous, the device mirror otherwise (spec.md §4.9: "External
// callers see the ASRC buffer; the device is fed through the worker").
func (h *Handler) Buffer() ringbuffer.RingBuffer {
	if h.asrc != nil {
		return h.asrc
	}
	return h.mirror
}

// StartThreshold is the software param spec.md §4.9 names.
func (h *Handler) StartThreshold() int { return h.params.startThreshold() }

// AvailMin is the software param spec.md §4.9 names.
func (h *Handler) AvailMin() int { return h.params.availMin() }

// Capacity is the device buffer's total frame count (periodSize ×
// numPeriods), the size routingzone.Sink.Capacity needs for derived-zone
// prefill sizing (spec.md §4.8).
func (h *Handler) Capacity() int { return h.params.bufferSize() }

// ClockType reports which path this handler runs.
func (h *Handler) ClockType() ClockType { return h.clock }

func (h *Handler) Channels() int         { return h.params.Channels }
func (h *Handler) Format() region.Format { return h.params.Format }
func (h *Handler) PeriodSize() int       { return h.params.PeriodSize }

// ResetFromWriter and ZeroOut forward to the buffer external callers use
// (spec.md §4.9: "external callers see the ASRC buffer").
func (h *Handler) ResetFromWriter() error { return h.Buffer().ResetFromWriter() }
func (h *Handler) ZeroOut() error         { return h.Buffer().ZeroOut() }

// Async reports whether this handler runs the asynchronous path.
func (h *Handler) Async() bool { return h.asrc != nil }

// FeederErr returns the most recent error the feeder goroutine observed, or
// nil if the feeder has not failed. Sync handlers always report nil.
func (h *Handler) FeederErr() error {
	v := h.feederErr.Load()
	if v == nil {
		return nil
	}
	return v.(error)
}

// Close stops the feeder (if running) and releases the ASRC buffer. The
// device itself is the caller's collaborator to close.
func (h *Handler) Close() error {
	if h.feederStop != nil {
		close(h.feederStop)
		<-h.feederDone
	}
	if h.asrc != nil {
		return h.asrc.Close()
	}
	return nil
}
