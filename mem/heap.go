// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mem

import (
	"errors"
	"fmt"
	"sync"
)

// Reserver represents an allocator of physical memory blocks, such as a
// TamaGo DMA region.
type Reserver interface {
	// Reserve allocates a block, returning its address and a slice
	// mapping it.
	Reserve(size int, align int) (addr uint32, buf []byte)
	// Release frees a block previously returned by Reserve.
	Release(addr uint32)
}

// RegionHeap is a Heap over a Reserver, buffers are backed by the region
// physical memory.
type RegionHeap struct {
	sync.Mutex

	// Region is the backing allocator
	Region Reserver

	used map[*byte]uint32
}

func (h *RegionHeap) reserve(size int, align int) (addr uint32, buf []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w, %v", ErrNoSpace, r)
		}
	}()

	addr, buf = h.Region.Reserve(size, align)

	if len(buf) < size {
		h.Region.Release(addr)
		err = ErrNoSpace
	}

	return
}

// Alloc implements Heap, returned buffers are 4 bytes aligned and zeroed.
func (h *RegionHeap) Alloc(size int) (buf []byte, err error) {
	h.Lock()
	defer h.Unlock()

	if size <= 0 {
		return nil, errors.New("invalid allocation size")
	}

	addr, buf, err := h.reserve(size, 4)

	if err != nil {
		return nil, err
	}

	for i := range buf {
		buf[i] = 0
	}

	if h.used == nil {
		h.used = make(map[*byte]uint32)
	}

	h.used[&buf[0]] = addr

	return buf[:size:size], nil
}

// Free implements Heap.
func (h *RegionHeap) Free(buf []byte) {
	h.Lock()
	defer h.Unlock()

	if len(buf) == 0 {
		return
	}

	addr, ok := h.used[&buf[0]]

	if !ok {
		return
	}

	delete(h.used, &buf[0])
	h.Region.Release(addr)
}

// Guard reserves a dedicated word, never handed out by Alloc, returning its
// address for use as stack guard location.
func (h *RegionHeap) Guard() (addr uint32, err error) {
	h.Lock()
	defer h.Unlock()

	addr, _, err = h.reserve(4, 4)

	return
}
