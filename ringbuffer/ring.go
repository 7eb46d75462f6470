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

// Package ringbuffer implements the core's single-producer/single-consumer
// PCM transport (spec.md §4.1): a Real variant that owns its own backing
// memory, and a Mirror variant that adapts an external device (ALSA PCM,
// in-process client) behind the same interface. Indexing is fixed-slot
// modular arithmetic over a capacity of periodSize × numPeriods frames
// (not required to be a power of two), specialized here to a
// ring of interleaved PCM frames with begin/end access and a streaming
// availability contract rather than a ring of arbitrary values.
package ringbuffer

import (
	"sync/atomic"
	"time"

	"github.com/audioxbar/xbarcore/internal/pcmpool"
	"github.com/audioxbar/xbarcore/internal/region"
	"github.com/audioxbar/xbarcore/xbarerr"
)

// Direction selects which side of the ring buffer an operation concerns.
type Direction int

const (
	Read Direction = iota
	Write
)

func (d Direction) String() string {
	if d == Read {
		return "read"
	}
	return "write"
}

// RingBuffer is the contract both the Real and Mirror variants satisfy.
type RingBuffer interface {
	// UpdateAvailable reports the max frames producible/consumable without
	// blocking (Real), or blocks up to a configured timeout waiting on the
	// backing device (Mirror).
	UpdateAvailable(dir Direction) (int, error)
	// BeginAccess returns a contiguous Area for up to wantFrames frames; the
	// Area may hold fewer frames than requested if the region wraps the
	// buffer tail, matching ALSA's mmap_begin semantics.
	BeginAccess(dir Direction, wantFrames int) (region.Area, int, error)
	// EndAccess commits framesDone frames at offsetFrames (as returned by
	// BeginAccess) to the ring.
	EndAccess(dir Direction, offsetFrames, framesDone int) error
	ResetFromReader() error
	ResetFromWriter() error
	ZeroOut() error
	Timestamp(dir Direction) (time.Time, error)
	Channels() int
	Format() region.Format
	PeriodSize() int
	Close() error
}

// Real is a ring buffer that owns period_size × num_periods × num_channels
// worth of backing memory (spec.md §3).
type Real struct {
	format      region.Format
	channels    int
	periodSize  int
	numPeriods  int
	frameStride int
	capacity    int // frames

	data []byte

	head atomic.Int64 // frames consumed, monotonically increasing
	tail atomic.Int64 // frames produced, monotonically increasing

	readTS  atomic.Int64 // unix nanos of last EndAccess(Read)
	writeTS atomic.Int64 // unix nanos of last EndAccess(Write)
}

// NewReal allocates a Real ring buffer sized periodSize × numPeriods frames.
func NewReal(format region.Format, channels, periodSize, numPeriods int) (*Real, error) {
	if channels <= 0 || periodSize <= 0 || numPeriods <= 0 {
		return nil, xbarerr.New(xbarerr.InvalidParam, "ringbuffer: channels/periodSize/numPeriods must be > 0")
	}
	frameStride := channels * format.BytesPerSample()
	capacity := periodSize * numPeriods
	data := pcmpool.MallocFrames(capacity, channels, format.BytesPerSample())
	return &Real{
		format:      format,
		channels:    channels,
		periodSize:  periodSize,
		numPeriods:  numPeriods,
		frameStride: frameStride,
		capacity:    capacity,
		data:        data,
	}, nil
}

func (r *Real) Channels() int      { return r.channels }
func (r *Real) Format() region.Format { return r.format }
func (r *Real) PeriodSize() int    { return r.periodSize }

func (r *Real) UpdateAvailable(dir Direction) (int, error) {
	head := r.head.Load()
	tail := r.tail.Load()
	switch dir {
	case Read:
		return int(tail - head), nil
	case Write:
		return r.capacity - int(tail-head), nil
	default:
		return 0, xbarerr.New(xbarerr.InvalidParam, "ringbuffer: unknown direction")
	}
}

func (r *Real) BeginAccess(dir Direction, wantFrames int) (region.Area, int, error) {
	if wantFrames < 0 {
		return region.Area{}, 0, xbarerr.New(xbarerr.InvalidParam, "ringbuffer: negative frame count")
	}
	avail, err := r.UpdateAvailable(dir)
	if err != nil {
		return region.Area{}, 0, err
	}
	if avail <= 0 || wantFrames == 0 {
		return region.Area{}, 0, nil
	}
	grant := wantFrames
	if grant > avail {
		grant = avail
	}

	var pos int64
	if dir == Read {
		pos = r.head.Load()
	} else {
		pos = r.tail.Load()
	}
	slot := int(pos % int64(r.capacity))
	contiguous := r.capacity - slot
	if grant > contiguous {
		grant = contiguous
	}

	off := slot * r.frameStride
	area := region.Area{
		Data:        r.data[off : off+grant*r.frameStride],
		Format:      r.format,
		Channels:    r.channels,
		FrameStride: r.frameStride,
	}
	return area, slot, nil
}

func (r *Real) EndAccess(dir Direction, offsetFrames, framesDone int) error {
	if framesDone < 0 {
		return xbarerr.New(xbarerr.InvalidParam, "ringbuffer: negative framesDone")
	}
	now := time.Now().UnixNano()
	switch dir {
	case Read:
		r.head.Add(int64(framesDone))
		r.readTS.Store(now)
	case Write:
		r.tail.Add(int64(framesDone))
		r.writeTS.Store(now)
	default:
		return xbarerr.New(xbarerr.InvalidParam, "ringbuffer: unknown direction")
	}
	return nil
}

// ResetFromReader reinitializes the ring to empty from the reader's side:
// only head (owned by the reader) is mutated.
func (r *Real) ResetFromReader() error {
	r.head.Store(r.tail.Load())
	return nil
}

// ResetFromWriter reinitializes the ring to empty from the writer's side:
// only tail (owned by the writer) is mutated.
func (r *Real) ResetFromWriter() error {
	r.tail.Store(r.head.Load())
	return nil
}

func (r *Real) ZeroOut() error {
	for i := range r.data {
		r.data[i] = 0
	}
	return nil
}

func (r *Real) Timestamp(dir Direction) (time.Time, error) {
	switch dir {
	case Read:
		return time.Unix(0, r.readTS.Load()), nil
	case Write:
		return time.Unix(0, r.writeTS.Load()), nil
	default:
		return time.Time{}, xbarerr.New(xbarerr.InvalidParam, "ringbuffer: unknown direction")
	}
}

// Close releases the backing memory back to the pool. Not safe to call
// while a producer or consumer still holds a reference.
func (r *Real) Close() error {
	if r.data != nil {
		pcmpool.Free(r.data)
		r.data = nil
	}
	return nil
}
