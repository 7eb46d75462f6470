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

	"github.com/audioxbar/xbarcore/internal/region"
	"github.com/audioxbar/xbarcore/ringbuffer"
	"github.com/audioxbar/xbarcore/xbarerr"
)

// ConversionBufferEntry is a routing zone's bookkeeping for one
// zone-input-port (spec.md §3/§4.6): its ring buffer, streaming state, and
// the sink-device input port it's directly linked to, if any.
type ConversionBufferEntry struct {
	PortID       uint64
	Channels     int
	Buffer       ringbuffer.RingBuffer
	State        StreamState
	LinkedSinkID uint64
	linked       bool
}

// ConversionBuffers owns one conversion buffer per zone-input-port for a
// routing zone (spec.md §4.6).
type ConversionBuffers struct {
	mu      sync.Mutex
	entries map[uint64]*ConversionBufferEntry
}

// NewConversionBuffers creates an empty registry.
func NewConversionBuffers() *ConversionBuffers {
	return &ConversionBuffers{entries: make(map[uint64]*ConversionBufferEntry)}
}

// Create registers a new conversion buffer for portID (spec.md §4.6:
// "create_conversion_buffer(port, format) fails if the port is already
// registered").
func (c *ConversionBuffers) Create(portID uint64, channels int, format region.Format, periodSize, numPeriods int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[portID]; ok {
		return xbarerr.New(xbarerr.InvalidParam, "routingzone: conversion buffer for port %d already registered", portID)
	}
	rb, err := ringbuffer.NewReal(format, channels, periodSize, numPeriods)
	if err != nil {
		return err
	}
	c.entries[portID] = &ConversionBufferEntry{PortID: portID, Channels: channels, Buffer: rb, State: BufferEmpty}
	return nil
}

// Destroy unregisters portID then releases its ring buffer (spec.md §4.6).
func (c *ConversionBuffers) Destroy(portID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[portID]
	if !ok {
		return xbarerr.New(xbarerr.InvalidParam, "routingzone: no conversion buffer for port %d", portID)
	}
	delete(c.entries, portID)
	return e.Buffer.Close()
}

// Link records that portID's conversion buffer feeds sinkPortID directly
// (spec.md §4.6). channels must match per invariant 4 in spec.md §8.
func (c *ConversionBuffers) Link(portID, sinkPortID uint64, sinkChannels int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[portID]
	if !ok {
		return xbarerr.New(xbarerr.InvalidParam, "routingzone: no conversion buffer for port %d", portID)
	}
	if sinkChannels != e.Channels {
		return xbarerr.New(xbarerr.InvalidParam, "routingzone: sink port channel count %d != conversion buffer channel count %d", sinkChannels, e.Channels)
	}
	e.LinkedSinkID = sinkPortID
	e.linked = true
	return nil
}

// Unlink clears portID's link field.
func (c *ConversionBuffers) Unlink(portID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[portID]; ok {
		e.linked = false
		e.LinkedSinkID = 0
	}
}

// Entries returns a snapshot of the live entries for the worker's
// per-period iteration, in no defined order (it walks a map). The slice is
// safe to range over without
// holding the lock; the Entry pointers alias live state.
func (c *ConversionBuffers) Entries() []*ConversionBufferEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ConversionBufferEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out
}

// Reset clears every entry's ring buffer back to empty and its state back
// to BufferEmpty (spec.md §4.8 step 2: "clear all conversion buffers" on a
// sink Stop event).
func (c *ConversionBuffers) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		e.Buffer.ResetFromReader()
		e.State = BufferEmpty
	}
}
