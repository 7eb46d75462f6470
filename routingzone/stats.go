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
	"sync/atomic"
	"time"
)

// Stats is a read-only diagnostic snapshot of a Zone's worker, refreshed
// once per transfer_period tick (SUPPLEMENTED FEATURES #1: present in the
// original as internal bookkeeping behind its debug/dump facilities).
type Stats struct {
	FramesWritten    uint64
	UnderrunCount    uint64
	LastTransferTook time.Duration
}

// statsCounters holds the atomically updated fields a Zone mutates from its
// worker goroutine; Snapshot copies them out for callers on any goroutine.
type statsCounters struct {
	framesWritten   atomic.Uint64
	underrunCount   atomic.Uint64
	lastTransferNanos atomic.Int64
}

func (c *statsCounters) snapshot() Stats {
	return Stats{
		FramesWritten:    c.framesWritten.Load(),
		UnderrunCount:    c.underrunCount.Load(),
		LastTransferTook: time.Duration(c.lastTransferNanos.Load()),
	}
}
