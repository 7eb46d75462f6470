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

import (
	"fmt"
	"math/bits"
	"unsafe"
)

// arena is a buddy-system allocator, adapted from unsafex/malloc's
// BuddyAllocator, that backs the ring buffer Factory (spec.md §3: "Ring
// buffers are destroyed through a singleton factory that reconciles
// shared-memory lifetimes"). Mirror-adjacent ASRC buffers (spec.md §4.9)
// come in a handful of sizes driven by period_size × numPeriodsAsrcBuffer,
// which is exactly the workload a buddy allocator is good at: few
// size-classes, frequent alloc/free pairs, no long-term fragmentation.
type arena struct {
	slab       []byte
	slabStart  unsafe.Pointer
	freeLists  [][]int
	needsMerge bool

	minBlockSize  int
	minBlockShift int
	maxBlockSize  int
	maxBlockOrder int
}

const (
	arenaHeaderSize = 8
	arenaMagic      = uint32(0xA0D10BAD)

	// DefaultArenaMinBlock is the smallest block the arena will carve:
	// enough for a mono, low-period-count ASRC buffer.
	DefaultArenaMinBlock = 8 * 1024
	// DefaultArenaMaxBlock bounds the largest single ASRC/mirror buffer a
	// base zone's async sink will ever need.
	DefaultArenaMaxBlock = 512 * 1024
)

// newArena creates an arena over slab. len(slab) must be a multiple of
// maxBlock.
func newArena(slab []byte, minBlock, maxBlock int) (*arena, error) {
	if minBlock <= 0 || minBlock&(minBlock-1) != 0 {
		return nil, fmt.Errorf("ringbuffer: minBlock must be a power of two, got %d", minBlock)
	}
	if maxBlock <= 0 || maxBlock&(maxBlock-1) != 0 {
		return nil, fmt.Errorf("ringbuffer: maxBlock must be a power of two, got %d", maxBlock)
	}
	if minBlock > maxBlock {
		return nil, fmt.Errorf("ringbuffer: minBlock (%d) must be <= maxBlock (%d)", minBlock, maxBlock)
	}
	if minBlock <= arenaHeaderSize {
		return nil, fmt.Errorf("ringbuffer: minBlock must be > header size (%d)", arenaHeaderSize)
	}
	total := len(slab)
	if total < maxBlock || total%maxBlock != 0 {
		return nil, fmt.Errorf("ringbuffer: arena size must be a multiple of %d, got %d", maxBlock, total)
	}

	minShift := bits.TrailingZeros(uint(minBlock))
	maxShift := bits.TrailingZeros(uint(maxBlock))
	maxOrder := maxShift - minShift

	a := &arena{
		slab:          slab,
		slabStart:     unsafe.Pointer(&slab[0]),
		minBlockSize:  minBlock,
		minBlockShift: minShift,
		maxBlockSize:  maxBlock,
		maxBlockOrder: maxOrder,
		freeLists:     make([][]int, maxOrder+1),
	}
	for i := 0; i < maxOrder; i++ {
		cap := 1 << (maxOrder - i)
		if cap > 64 {
			cap = 64
		}
		a.freeLists[i] = make([]int, 0, cap)
	}
	numRoots := total / maxBlock
	a.freeLists[maxOrder] = make([]int, 0, numRoots)
	for i := 0; i < numRoots; i++ {
		a.freeLists[maxOrder] = append(a.freeLists[maxOrder], i*maxBlock)
	}
	return a, nil
}

// alloc returns a block of at least size bytes, or nil if the arena is full.
func (a *arena) alloc(size int) []byte {
	if size <= 0 || size > a.maxBlockSize-arenaHeaderSize {
		return nil
	}
	order := a.orderForSize(size + arenaHeaderSize)
	if fl := a.freeLists[order]; len(fl) > 0 {
		n := len(fl) - 1
		offset := fl[n]
		a.freeLists[order] = fl[:n]
		return a.commit(offset, order, size)
	}
	return a.allocSlow(size, order)
}

func (a *arena) allocSlow(size, order int) []byte {
	found := -1
	for o := order + 1; o <= a.maxBlockOrder; o++ {
		if len(a.freeLists[o]) > 0 {
			found = o
			break
		}
	}
	if found == -1 {
		if !a.needsMerge {
			return nil
		}
		found = a.coalesceUntil(order)
		if found == -1 {
			a.needsMerge = false
			return nil
		}
	}
	fl := a.freeLists[found]
	n := len(fl) - 1
	offset := fl[n]
	a.freeLists[found] = fl[:n]
	for found > order {
		found--
		right := offset + (a.minBlockSize << found)
		a.freeLists[found] = append(a.freeLists[found], right)
	}
	return a.commit(offset, order, size)
}

func (a *arena) commit(offset, order, size int) []byte {
	ptr := unsafe.Add(a.slabStart, offset)
	*(*uint32)(ptr) = arenaMagic
	*(*uint32)(unsafe.Add(ptr, 4)) = uint32(size)
	blockSize := a.minBlockSize << order
	return unsafe.Slice((*byte)(unsafe.Add(ptr, arenaHeaderSize)), blockSize-arenaHeaderSize)[:size]
}

// free returns block (the exact slice returned by alloc) to the arena.
func (a *arena) free(block []byte) {
	size := cap(block)
	if size == 0 {
		return
	}
	if size > a.maxBlockSize {
		panic("ringbuffer: invalid block size")
	}
	dataPtr := *(*uintptr)(unsafe.Pointer(&block))
	offset := int(dataPtr-uintptr(a.slabStart)) - arenaHeaderSize
	if offset < 0 || offset >= len(a.slab) {
		panic("ringbuffer: block not owned by this arena")
	}
	headerPtr := unsafe.Add(a.slabStart, offset)
	magicPtr := (*uint32)(headerPtr)
	if *magicPtr != arenaMagic {
		panic("ringbuffer: double free or invalid block")
	}
	storedSize := int(*(*uint32)(unsafe.Add(headerPtr, 4)))
	if storedSize > size {
		panic("ringbuffer: corrupted arena block")
	}
	totalBlockSize := size + arenaHeaderSize
	order := a.orderForSize(totalBlockSize)
	if offset&(totalBlockSize-1) != 0 {
		panic("ringbuffer: misaligned arena block")
	}
	*magicPtr = 0
	a.freeLists[order] = append(a.freeLists[order], offset)
	if order < a.maxBlockOrder {
		a.needsMerge = true
	}
}

func (a *arena) available() int {
	total := 0
	for order, fl := range a.freeLists {
		blockSize := a.minBlockSize << order
		total += len(fl) * (blockSize - arenaHeaderSize)
	}
	return total
}

func (a *arena) coalesceUntil(targetOrder int) int {
	for o := targetOrder; o <= a.maxBlockOrder; o++ {
		if len(a.freeLists[o]) > 0 {
			return o
		}
	}
	for order := 0; order < targetOrder; order++ {
		fl := a.freeLists[order]
		n := len(fl)
		if n < 2 {
			continue
		}
		sorted := true
		for i := 1; i < n; i++ {
			if fl[i] < fl[i-1] {
				sorted = false
				break
			}
		}
		if !sorted {
			for i := 1; i < n; i++ {
				for j := i; j > 0 && fl[j] < fl[j-1]; j-- {
					fl[j], fl[j-1] = fl[j-1], fl[j]
				}
			}
		}
		blockSize := a.minBlockSize << order
		w := 0
		for i := 0; i < n; {
			offset := fl[i]
			if i+1 < n && fl[i+1] == offset^blockSize {
				a.freeLists[order+1] = append(a.freeLists[order+1], offset&^blockSize)
				i += 2
			} else {
				fl[w] = offset
				w++
				i++
			}
		}
		a.freeLists[order] = fl[:w]
	}
	for o := targetOrder; o <= a.maxBlockOrder; o++ {
		if len(a.freeLists[o]) > 0 {
			return o
		}
	}
	return -1
}

func (a *arena) orderForSize(size int) int {
	if size <= a.minBlockSize {
		return 0
	}
	return bits.Len(uint(size-1)) - a.minBlockShift
}
