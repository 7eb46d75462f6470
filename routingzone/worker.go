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
	"github.com/audioxbar/xbarcore/xbarlog"
)

// tryLockTimeout attempts to acquire mu, giving up after d. Go's sync.Mutex
// has no native timed lock, so this polls TryLock once per millisecond
// until it succeeds or d has passed (spec.md §4.8's 100ms bound). On
// timeout mu is left untouched.
func tryLockTimeout(mu *sync.Mutex, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		if mu.TryLock() {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// TransferPeriod is the core hot path (spec.md §4.8).
func (z *Zone) TransferPeriod() error {
	if z.State() != Active {
		return nil
	}

	if !tryLockTimeout(&z.transferMu, 100*time.Millisecond) {
		return nil
	}
	defer z.transferMu.Unlock()

	start := time.Now()

	// Step 2: drain the sink device event queue.
	if z.sink.GetNextEventType() == Stop {
		z.handleStop()
		return nil
	}

	// Step 5: update_available(write) on the sink.
	avail, err := z.sink.UpdateAvailable(ringbuffer.Write)
	if err != nil {
		if z.logThrottle.Allow(time.Now()) {
			xbarlog.Default.Printf("routingzone: zone %d sink update_available timed out, treating as no space this period", z.id)
		}
		avail = 0
	}

	// Step 6: base zone triggers its switch matrix before any conversion
	// buffer is read.
	if z.isBase && z.matrix != nil {
		if err := z.matrix.Trigger(); err != nil {
			return err
		}
	}

	if z.isBase {
		z.activatePendingDerivedZones()
	}

	if avail < z.periodSize {
		if zerr := z.sink.ZeroOut(); zerr != nil {
			return zerr
		}
		z.stats.underrunCount.Add(1)
		z.stats.lastTransferNanos.Store(int64(time.Since(start)))
		z.advanceDerivedZones()
		return nil
	}

	if err := z.runPeriod(); err != nil {
		return err
	}

	z.stats.framesWritten.Add(uint64(z.periodSize))
	z.stats.lastTransferNanos.Store(int64(time.Since(start)))
	z.advanceDerivedZones()
	return nil
}

// runPeriod implements steps 8-9: for each conversion-buffer entry, run the
// state machine, feed the pipeline, copy into the sink, zero-fill anything
// unserviced, then run retrieve_output_data.
func (z *Zone) runPeriod() error {
	sinkArea, off, err := z.sink.BeginAccess(ringbuffer.Write, z.periodSize)
	if err != nil {
		return err
	}
	n := sinkArea.Frames()
	if n > z.periodSize {
		n = z.periodSize
	}

	serviced := make([]bool, z.sink.Channels())

	for _, e := range z.buffers.Entries() {
		avail, aerr := e.Buffer.UpdateAvailable(ringbuffer.Read)
		if aerr != nil {
			continue
		}
		e.State = nextState(e.State, avail, n)

		if z.pipeline != nil {
			z.pipeline.ProvideInputData(e)
		}

		if !e.State.shouldRead() {
			continue
		}

		readN := avail
		if readN > n {
			readN = n
		}
		if readN == 0 {
			continue
		}
		srcArea, srcOff, rerr := e.Buffer.BeginAccess(ringbuffer.Read, readN)
		if rerr != nil {
			continue
		}
		m := srcArea.Frames()
		copyIntoSink(srcArea, sinkArea, m, e.Channels)
		if err := e.Buffer.EndAccess(ringbuffer.Read, srcOff, m); err != nil {
			return err
		}
		for ch := 0; ch < e.Channels && ch < len(serviced); ch++ {
			serviced[ch] = true
		}
	}

	zeroUnserviced(sinkArea, n, serviced)

	if z.pipeline != nil {
		z.pipeline.RetrieveOutputData(sinkArea, n)
	}

	return z.sink.EndAccess(ringbuffer.Write, off, n)
}

// copyIntoSink writes m frames of channels [0, channels) from src into the
// first channels of dst, through the same float64 intermediate
// switchmatrix.Job uses, so any format mismatch between a conversion buffer
// and the sink is handled transparently.
func copyIntoSink(src, dst region.Area, m, channels int) {
	if dst.Channels < channels {
		channels = dst.Channels
	}
	for i := 0; i < m; i++ {
		for ch := 0; ch < channels; ch++ {
			v := region.Decode(src.Format, src.Sample(i, ch+src.FirstChannel))
			region.Encode(dst.Format, dst.Sample(i, ch+dst.FirstChannel), v)
		}
	}
}

func zeroUnserviced(area region.Area, frames int, serviced []bool) {
	for ch, ok := range serviced {
		if ok {
			continue
		}
		for i := 0; i < frames; i++ {
			s := area.Sample(i, ch)
			for b := range s {
				s[b] = 0
			}
		}
	}
}

// handleStop implements spec.md §4.8 step 2's Stop resynchronization: mark
// Inactive, lock every connected switch-matrix job, reset the sink ring
// buffer, clear all conversion buffers, re-Prepare. Residual
// conversion-buffer data is dropped rather than preserved (spec.md §9 Open
// Question: this implementation documents the drop as the chosen
// behavior, matching reset_from_reader's semantics of discarding whatever
// the reader side hadn't consumed yet).
func (z *Zone) handleStop() {
	z.mu.Lock()
	z.state = Inactive
	z.mu.Unlock()
	if z.matrix != nil {
		z.matrix.LockAllJobs()
	}
	z.sink.ResetFromWriter()
	z.buffers.Reset()
	z.Prepare()
}

// activatePendingDerivedZones implements "Activation of pending derived
// zones" (spec.md §4.8): when mDerivedZoneCallCount == 0 at the top of a
// base-zone tick, unlock all switch-matrix jobs and promote any
// ActivePending derived zone whose sink has observed draining.
func (z *Zone) activatePendingDerivedZones() {
	allIdle := true
	z.mu.Lock()
	derived := append([]*DerivedZoneRunner(nil), z.derived...)
	z.mu.Unlock()
	for _, r := range derived {
		if r.pendingCount() != 0 {
			allIdle = false
			break
		}
	}
	if !allIdle {
		return
	}
	if z.matrix != nil {
		z.matrix.UnlockAllJobs()
	}
	for _, r := range derived {
		if r.zone.State() == ActivePending && r.zone.isSinkServiced() {
			r.zone.Activate()
		}
	}
}

// advanceDerivedZones implements step 10: bump each derived runner's period
// counter and wake it when its multiple is reached; inline the transfer
// when the runner has no dedicated goroutine.
func (z *Zone) advanceDerivedZones() {
	z.mu.Lock()
	derived := append([]*DerivedZoneRunner(nil), z.derived...)
	z.mu.Unlock()
	for _, r := range derived {
		r.tick()
	}
}
