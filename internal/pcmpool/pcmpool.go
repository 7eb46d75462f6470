/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package pcmpool is a GC-friendly pooled allocator for PCM sample storage.
// Real ring buffers and conversion buffers are sized once at topology-build
// time (spec.md §3, "entities are constructed in topology-build order") and
// never resized on the real-time path, so every allocation this package
// serves is frame-shaped — nframes × channels × bytesPerSample — rather
// than an arbitrary byte count. That shape is the entry point, not a helper
// bolted on afterward: there is no generic byte-count Malloc here, and no
// self-describing footer either, because the only caller (ringbuffer.Real)
// always frees exactly what it allocated and never hands this package a
// foreign or resliced buffer.
package pcmpool

import (
	"math/bits"
	"sync"
)

// minFrameBytes/maxFrameBytes bound the size classes. A mono period of a
// few hundred int16 frames is well under 1KB, far below a general-purpose
// RPC buffer pool's floor; the ceiling is generous for any single PCM
// buffer a routing zone or ring buffer builds.
const (
	minFrameBytes = 512
	maxFrameBytes = 256 << 20
)

// framePool is one size class: a free list of full-capacity buffers whose
// length always equals the class size.
type framePool struct {
	sync.Pool
	size int
}

var pools []*framePool

// bits2idx maps bits.Len(size) to the framePool holding that size class.
var bits2idx [64]int

func init() {
	idx := 0
	for sz := minFrameBytes; sz <= maxFrameBytes; sz <<= 1 {
		size := sz
		p := &framePool{size: size}
		p.New = func() interface{} {
			b := make([]byte, size)
			return &b
		}
		pools = append(pools, p)
		bits2idx[bits.Len(uint(size))] = idx
		idx++
	}
}

// classFor returns the framePool whose buffers are big enough to hold n
// bytes, rounding up to the next power of two.
func classFor(n int) *framePool {
	if n <= minFrameBytes {
		return pools[0]
	}
	i := bits2idx[bits.Len(uint(n))]
	if uint(n)&(uint(n)-1) != 0 {
		i++
	}
	return pools[i]
}

// FrameBytes is the byte size of nframes interleaved frames of channels
// samples at bytesPerSample width — the one sizing computation every PCM
// buffer allocation in this repo goes through.
func FrameBytes(nframes, channels, bytesPerSample int) int {
	return nframes * channels * bytesPerSample
}

// MallocFrames returns a []byte sized to exactly FrameBytes(nframes,
// channels, bytesPerSample), backed by a pooled size-classed buffer.
// Contents are not zeroed.
//
// MallocFrames/Free are only ever called from the non-real-time
// setup/teardown thread (spec.md §5, "no allocation on the real-time path
// after prepare_states()"); the hot path only ever touches buffers already
// returned by a prior MallocFrames.
func MallocFrames(nframes, channels, bytesPerSample int) []byte {
	size := FrameBytes(nframes, channels, bytesPerSample)
	if size == 0 {
		return []byte{}
	}
	pool := classFor(size)
	buf := *pool.Get().(*[]byte)
	return buf[:size]
}

// Free returns a buffer obtained from MallocFrames to its size class. The
// caller must not use buf again afterward. A buffer whose capacity isn't an
// exact size class is dropped rather than pooled, rather than trusting a
// magic-tagged footer to authenticate it: MallocFrames is this package's
// only producer, and ringbuffer.Real — its only caller — always frees
// exactly the slice it received, at its original capacity.
func Free(buf []byte) {
	c := cap(buf)
	if c < minFrameBytes || uint(c)&uint(c-1) != 0 {
		return
	}
	i := bits2idx[bits.Len(uint(c))]
	if i >= len(pools) || pools[i].size != c {
		return
	}
	full := buf[:c]
	pools[i].Put(&full)
}
