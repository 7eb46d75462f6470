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

// Package audioport implements the named I/O handle (spec.md §4.2) that a
// source or sink side of the topology uses to reference a ring buffer and,
// for output ports, the switch matrix currently pulling from it.
package audioport

import (
	"sync"

	"github.com/audioxbar/xbarcore/internal/region"
	"github.com/audioxbar/xbarcore/ringbuffer"
	"github.com/audioxbar/xbarcore/xbarerr"
)

// Direction is the data-flow direction of a port.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// Owner is the entity an AudioPort belongs to (an AudioDevice or a Pipeline,
// per spec.md §2's topology). It's deliberately thin: the port only needs to
// ask its owner for the sample rate and period size that get folded into
// CopyInformation.
type Owner interface {
	SampleRate() int
	PeriodSize() int
}

// CopyInformation is what switchmatrix.Job needs to set up a copy or SRC
// job between two ports (spec.md §4.2: "areas + channel count + channel
// start index + period size + sample rate + data format").
type CopyInformation struct {
	Channels     int
	FirstChannel int
	PeriodSize   int
	SampleRate   int
	Format       region.Format
}

// Port is a named I/O handle with at most one ring buffer and, for output
// ports, at most one switch matrix pulling from it (spec.md §3 AudioPort).
type Port struct {
	mu sync.Mutex

	name         string
	id           uint64
	direction    Direction
	channels     int
	firstChannel int

	owner Owner
	rb    ringbuffer.RingBuffer

	// matrix is the switch matrix currently connected to this port,
	// compared by identity; nil means unconnected. Stored as interface{}
	// since the concrete type lives in package switchmatrix, which depends
	// on this package, not the other way around.
	matrix    interface{}
	connCount int
}

// New constructs a Port. channels and firstChannel describe the slice of an
// interleaved buffer this port reads or writes, matching
// IasAudioPortOwner's first-channel indexing in the original implementation.
func New(name string, id uint64, dir Direction, channels, firstChannel int) *Port {
	return &Port{
		name:         name,
		id:           id,
		direction:    dir,
		channels:     channels,
		firstChannel: firstChannel,
	}
}

func (p *Port) Name() string        { return p.name }
func (p *Port) ID() uint64          { return p.id }
func (p *Port) Direction() Direction { return p.direction }
func (p *Port) Channels() int       { return p.channels }
func (p *Port) FirstChannel() int   { return p.firstChannel }

// SetOwner attaches the device or pipeline this port belongs to.
func (p *Port) SetOwner(o Owner) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.owner = o
}

// ClearOwner detaches the owner, e.g. during topology teardown.
func (p *Port) ClearOwner() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.owner = nil
}

// SetRingBuffer attaches the ring buffer this port reads from or writes to.
func (p *Port) SetRingBuffer(rb ringbuffer.RingBuffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rb = rb
}

// ClearRingBuffer detaches the ring buffer.
func (p *Port) ClearRingBuffer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rb = nil
}

// RingBuffer returns the currently attached ring buffer, or nil.
func (p *Port) RingBuffer() ringbuffer.RingBuffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rb
}

// StoreConnection records that matrix is now pulling from (output port) or
// feeding (input port) this port, enforcing the invariants of spec.md §4.2:
// an input port rejects a second connection; an output port already
// connected to a different matrix rejects the new one (cross-clock-domain).
// Repeated calls with the same matrix just bump the reference count, which
// is how derived zones sharing a base zone's switch matrix are accounted
// for.
func (p *Port) StoreConnection(matrix interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.direction == Input {
		if p.connCount > 0 {
			return xbarerr.New(xbarerr.InvalidParam, "audioport: input port %q already connected", p.name)
		}
		p.matrix = matrix
		p.connCount = 1
		return nil
	}

	// Output port.
	if p.connCount > 0 && p.matrix != matrix {
		return xbarerr.New(xbarerr.InvalidParam, "audioport: output port %q already bound to a different switch matrix", p.name)
	}
	p.matrix = matrix
	p.connCount++
	return nil
}

// ForgetConnection decrements the connection counter, clearing the switch
// matrix pointer once it reaches zero.
func (p *Port) ForgetConnection() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connCount == 0 {
		return
	}
	p.connCount--
	if p.connCount == 0 {
		p.matrix = nil
	}
}

// IsConnected reports whether any connection is currently recorded.
func (p *Port) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connCount > 0
}

// ConnectionCount returns the number of simultaneous uses recorded, the
// counter spec.md §3 describes as tracking "derived zones sharing the
// switch matrix".
func (p *Port) ConnectionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connCount
}

// Matrix returns the currently stored switch-matrix reference, or nil.
func (p *Port) Matrix() interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.matrix
}

// GetCopyInformation returns what a switchmatrix.Job needs to run a copy or
// sample-rate-convert against this port's ring buffer.
func (p *Port) GetCopyInformation() (CopyInformation, error) {
	p.mu.Lock()
	rb := p.rb
	owner := p.owner
	channels, firstChannel := p.channels, p.firstChannel
	p.mu.Unlock()

	if rb == nil {
		return CopyInformation{}, xbarerr.New(xbarerr.NotInitialized, "audioport: %q has no ring buffer", p.name)
	}
	sampleRate := 0
	periodSize := rb.PeriodSize()
	if owner != nil {
		sampleRate = owner.SampleRate()
		if ownerPeriod := owner.PeriodSize(); ownerPeriod > 0 {
			periodSize = ownerPeriod
		}
	}
	return CopyInformation{
		Channels:     channels,
		FirstChannel: firstChannel,
		PeriodSize:   periodSize,
		SampleRate:   sampleRate,
		Format:       rb.Format(),
	}, nil
}
