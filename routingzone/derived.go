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

	"github.com/audioxbar/xbarcore/xbarlog"
)

// DerivedZoneRunner drives one derived zone whose period is a multiple of
// its base zone's period (spec.md §4.8 step 10, §5 "one runner thread per
// distinct derived-zone period multiple"). With useGoroutine true it wakes
// a dedicated goroutine via a condition-variable-style channel signal; with
// it false (multiple == 1, or the runner disabled) the base zone inlines
// the derived transfer directly on its own tick.
type DerivedZoneRunner struct {
	zone             *Zone
	periodMultiple   int
	useGoroutine     bool

	mu          sync.Mutex
	count       int
	processing  bool
	wake        chan struct{}
	stopc       chan struct{}
	stoppedOnce sync.Once
}

// NewDerivedZoneRunner builds a runner for zone, ticking every
// periodMultiple base-zone periods. useGoroutine selects whether the
// derived transfer runs on its own goroutine (woken via a channel, the
// stand-in for the original's condition variable) or inline.
func NewDerivedZoneRunner(zone *Zone, periodMultiple int, useGoroutine bool) *DerivedZoneRunner {
	if periodMultiple < 1 {
		periodMultiple = 1
	}
	r := &DerivedZoneRunner{
		zone:           zone,
		periodMultiple: periodMultiple,
		useGoroutine:   useGoroutine,
		wake:           make(chan struct{}, 1),
		stopc:          make(chan struct{}),
	}
	if useGoroutine {
		go r.loop()
	}
	return r
}

// pendingCount reports the runner's current period counter, used by the
// base zone to detect "mDerivedZoneCallCount == 0" across all its derived
// runners.
func (r *DerivedZoneRunner) pendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// IsProcessing reports whether the runner is mid-batch, the condition
// spec.md §5 requires a shutdown path to wait on before joining.
func (r *DerivedZoneRunner) IsProcessing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processing
}

// tick is called once per base-zone period: bump the counter, and either
// wake the dedicated goroutine or run inline once the multiple is reached
// (spec.md §4.8 step 10).
func (r *DerivedZoneRunner) tick() {
	r.mu.Lock()
	r.count++
	reached := r.count >= r.periodMultiple
	if reached {
		r.count = 0
	}
	r.mu.Unlock()

	if !reached {
		return
	}

	if r.useGoroutine {
		select {
		case r.wake <- struct{}{}:
		default:
		}
		return
	}

	r.runOnce()
}

func (r *DerivedZoneRunner) runOnce() {
	r.mu.Lock()
	r.processing = true
	r.mu.Unlock()

	if err := r.zone.TransferPeriod(); err != nil {
		xbarlog.Default.Errorf("routingzone: derived zone %d transfer_period failed: %v", r.zone.id, err)
	}

	r.mu.Lock()
	r.processing = false
	r.mu.Unlock()
}

func (r *DerivedZoneRunner) loop() {
	for {
		select {
		case <-r.wake:
			r.runOnce()
		case <-r.stopc:
			return
		}
	}
}

// Stop signals the dedicated goroutine (if any) to exit. Per spec.md §5,
// a runner mid-batch finishes its current batch before the shutdown path
// should join it; callers should poll IsProcessing before assuming the
// runner has quiesced.
func (r *DerivedZoneRunner) Stop() {
	r.stoppedOnce.Do(func() { close(r.stopc) })
}
