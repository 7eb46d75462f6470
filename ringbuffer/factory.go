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

package ringbuffer

import "sync"

// Factory is the per-process registry spec.md's Design Notes (§9) ask for:
// "a per-process registry that hands out handles, not free-standing
// pointers", reconciling the lifetime of any backing memory shared between
// a mirror ring buffer's ASRC buffer and the async feeder thread that reads
// it. Handles are reference counted; the underlying arena block is only
// released once every holder has called Release.
type Factory struct {
	mu   sync.Mutex
	a    *arena
	next uint64
	refs map[uint64]*handleState
}

type handleState struct {
	block []byte
	refs  int
}

// Handle is an opaque reference to arena-backed memory. Retain/Release must
// balance; the memory is freed back to the arena on the last Release.
type Handle struct {
	id uint64
	f  *Factory
}

// NewFactory creates a Factory backed by a slabBytes-sized arena. Pass 0 to
// use DefaultArenaMaxBlock * 64 (32MB), enough for a handful of concurrent
// ASRC buffers.
func NewFactory(slabBytes int) (*Factory, error) {
	if slabBytes <= 0 {
		slabBytes = DefaultArenaMaxBlock * 64
	}
	// round up to a multiple of the max block size
	if rem := slabBytes % DefaultArenaMaxBlock; rem != 0 {
		slabBytes += DefaultArenaMaxBlock - rem
	}
	a, err := newArena(make([]byte, slabBytes), DefaultArenaMinBlock, DefaultArenaMaxBlock)
	if err != nil {
		return nil, err
	}
	return &Factory{a: a, refs: make(map[uint64]*handleState)}, nil
}

// defaultFactory is the process-wide singleton returned by DefaultFactory;
// NewFactory builds further, independent instances.
var defaultFactory = func() *Factory {
	f, err := NewFactory(0)
	if err != nil {
		panic(err)
	}
	return f
}()

// DefaultFactory returns the process-wide ring buffer Factory singleton.
func DefaultFactory() *Factory { return defaultFactory }

// Alloc carves size bytes from the arena and returns a Handle with one
// reference already held.
func (f *Factory) Alloc(size int) (Handle, []byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	block := f.a.alloc(size)
	if block == nil {
		return Handle{}, nil, false
	}
	f.next++
	id := f.next
	f.refs[id] = &handleState{block: block, refs: 1}
	return Handle{id: id, f: f}, block, true
}

// Retain increments the handle's reference count, for the case where a
// derived zone's runner and the base zone's worker both observe the same
// mirror-adjacent ASRC buffer.
func (h Handle) Retain() {
	if h.f == nil {
		return
	}
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	if st, ok := h.f.refs[h.id]; ok {
		st.refs++
	}
}

// Release decrements the handle's reference count, freeing the underlying
// arena block back to the Factory when it reaches zero.
func (h Handle) Release() {
	if h.f == nil {
		return
	}
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	st, ok := h.f.refs[h.id]
	if !ok {
		return
	}
	st.refs--
	if st.refs <= 0 {
		h.f.a.free(st.block)
		delete(h.f.refs, h.id)
	}
}

// Available reports the free bytes remaining in the Factory's arena.
func (f *Factory) Available() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.a.available()
}
