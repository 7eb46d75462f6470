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

// Package switchmatrix implements one clock domain's fan-out scheduling
// (spec.md §4.3-§4.5): a Job moves frames from one source area to one sink
// ring buffer, a BufferTask groups every Job reading the same source, and a
// SwitchMatrix owns the set of live BufferTasks for the domain.
package switchmatrix

import (
	"sync/atomic"
	"time"

	"github.com/audioxbar/xbarcore/internal/region"
	"github.com/audioxbar/xbarcore/ringbuffer"
	"github.com/audioxbar/xbarcore/xbarerr"
	"github.com/audioxbar/xbarcore/xbarlog"
)

// ProbeAction is a start/stop request for the data-probe tap a Job can carry
// (spec.md §4.3 "drains the probe-action queue").
type ProbeAction struct {
	Start  bool
	Writer ProbeWriter
}

// ProbeWriter is the external collaborator a running probe tap writes PCM
// frames to (spec.md §1: "the data-probe WAV file writer... specified only
// by the interface the core requires from it").
type ProbeWriter interface {
	WriteFrames(area region.Area, frames int) error
	Close() error
}

// Sink is the narrow surface a Job needs from its destination: enough to
// begin/end a write access without depending on the concrete ring buffer
// package's full RingBuffer interface (SRC jobs additionally need Format
// for sample-rate bookkeeping, already on ringbuffer.RingBuffer).
type Sink interface {
	UpdateAvailable(dir ringbuffer.Direction) (int, error)
	BeginAccess(dir ringbuffer.Direction, wantFrames int) (region.Area, int, error)
	EndAccess(dir ringbuffer.Direction, offsetFrames, framesDone int) error
	Channels() int
	Format() region.Format
}

// Job moves frames from a source Area into one sink, converting sample
// format and, when the clock domains differ, sample rate (spec.md §4.3).
type Job struct {
	sink       Sink
	srcRate    int
	sinkRate   int
	srcFormat  region.Format
	sinkFormat region.Format

	locked    atomic.Bool
	lastLockLog atomic.Int64 // unix nanos, for the once-per-second throttle

	probeQueue chan ProbeAction
	probe      ProbeWriter

	src *srcState // nil unless srcRate != sinkRate
}

// NewJob builds a Job copying from a source of srcRate/srcFormat into sink,
// which runs at sinkRate/sinkFormat. Rates equal means a plain copy job;
// rates differing means a sample-rate-convert job (spec.md §4.3/§4.5).
func NewJob(sink Sink, srcRate, sinkRate int, srcFormat, sinkFormat region.Format) *Job {
	j := &Job{
		sink:       sink,
		srcRate:    srcRate,
		sinkRate:   sinkRate,
		srcFormat:  srcFormat,
		sinkFormat: sinkFormat,
		probeQueue: make(chan ProbeAction, 4),
	}
	if srcRate != sinkRate {
		j.src = newSRCState(srcRate, sinkRate, sink.Channels())
	}
	// Jobs start locked until the sink's routing zone is observed active
	// (spec.md §4.3: "this synchronizes producers with their consumer").
	j.locked.Store(true)
	return j
}

// Lock forces the job back into the locked state, e.g. when its buffer
// task observes an underrun.
func (j *Job) Lock() { j.locked.Store(true) }

// Locked reports whether the job is currently throttled.
func (j *Job) Locked() bool { return j.locked.Load() }

// Unlock transitions locked -> false only if sinkActive is true (spec.md
// §4.3: "only if the sink's routing zone is currently active").
func (j *Job) Unlock(sinkActive bool) {
	if sinkActive {
		j.locked.Store(false)
	}
}

// QueueProbeAction enqueues a probe start/stop request, applied on the next
// Execute call.
func (j *Job) QueueProbeAction(a ProbeAction) {
	select {
	case j.probeQueue <- a:
	default:
		xbarlog.Default.Errorf("switchmatrix: job probe queue full, dropping action")
	}
}

func (j *Job) drainProbeQueue() {
	for {
		select {
		case a := <-j.probeQueue:
			if a.Start {
				j.probe = a.Writer
			} else {
				if j.probe != nil {
					j.probe.Close()
				}
				j.probe = nil
			}
		default:
			return
		}
	}
}

// Execute runs one iteration of the job against srcArea (spec.md §4.3).
// framesConsumed is how many source frames were read; framesStillToProcess
// is non-zero only for SRC jobs: when the sink has no space it is the count
// of unread source frames, and when the input runs out before the granted
// sink region is filled it is the count of output frames still to produce.
func (j *Job) Execute(srcArea region.Area, framesToRead int) (framesConsumed, framesStillToProcess int, err error) {
	if j.locked.Load() {
		now := time.Now()
		last := time.Unix(0, j.lastLockLog.Load())
		if now.Sub(last) >= time.Second {
			j.lastLockLog.Store(now.UnixNano())
			xbarlog.Default.Printf("switchmatrix: job locked, dropping %d frames", framesToRead)
		}
		return 0, 0, nil
	}

	j.drainProbeQueue()

	if j.probe != nil {
		n := framesToRead
		if a := srcArea.Frames(); n > a {
			n = a
		}
		if n > 0 {
			if perr := j.probe.WriteFrames(srcArea, n); perr != nil {
				xbarlog.Default.Errorf("switchmatrix: probe write failed: %v", perr)
			}
		}
	}

	if j.src != nil {
		return j.executeSRC(srcArea, framesToRead)
	}
	return j.executeCopy(srcArea, framesToRead)
}

// executeCopy implements spec.md §4.3's copy path: "writes
// min(dest_size, frames_to_read, sink_space) frames, handling any
// source->sink format conversion from the 3x3 matrix".
func (j *Job) executeCopy(srcArea region.Area, framesToRead int) (int, int, error) {
	sinkSpace, err := j.sink.UpdateAvailable(ringbuffer.Write)
	if err != nil {
		return 0, 0, err
	}
	want := framesToRead
	if a := srcArea.Frames(); want > a {
		want = a
	}
	if want > sinkSpace {
		want = sinkSpace
	}
	if want <= 0 {
		return 0, 0, nil
	}

	dstArea, off, err := j.sink.BeginAccess(ringbuffer.Write, want)
	if err != nil {
		return 0, 0, err
	}
	n := dstArea.Frames()
	if n > want {
		n = want
	}
	copyFrames(srcArea, dstArea, n)
	if err := j.sink.EndAccess(ringbuffer.Write, off, n); err != nil {
		return 0, 0, err
	}
	return n, 0, nil
}

// copyFrames converts n frames from src to dst, sample by sample, through
// the float64 intermediate region.Decode/Encode gives every format pair
// (spec.md Supplement #2: the 3x3 matrix fully enumerated).
func copyFrames(src, dst region.Area, n int) {
	channels := src.Channels
	if dst.Channels < channels {
		channels = dst.Channels
	}
	for i := 0; i < n; i++ {
		for ch := 0; ch < channels; ch++ {
			v := region.Decode(src.Format, src.Sample(i, ch+src.FirstChannel))
			region.Encode(dst.Format, dst.Sample(i, ch+dst.FirstChannel), v)
		}
	}
}
