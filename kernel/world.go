// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package kernel

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/usbarmory/GoTEE-addin/drivers"
	"github.com/usbarmory/GoTEE-addin/mem"
)

// ErrOutOfMemory is returned when a world buffer cannot be allocated.
var ErrOutOfMemory = errors.New("world buffer allocation failed")

// World represents a world buffer, holding one serialized hardware state
// slot per driver.
//
// The buffer is a single block: a header of one 32-bit offset per driver
// followed by the slots, each rounded up to 4 bytes.
type World struct {
	block []byte
	slots [][]byte
}

func align4(n int) int {
	return (n + 3) &^ 3
}

// Alloc allocates a world buffer for all registered drivers.
func Alloc(reg *drivers.Registry, heap mem.Heap) (w *World, err error) {
	sizes := reg.StateSizes()
	header := len(sizes) * 4
	size := header

	for _, s := range sizes {
		size += align4(s)
	}

	// an empty driver table still gets a valid (empty) world
	if size == 0 {
		return &World{}, nil
	}

	block, err := heap.Alloc(size)

	if err != nil {
		return nil, fmt.Errorf("%w (%d bytes), %v", ErrOutOfMemory, size, err)
	}

	w = &World{
		block: block,
		slots: make([][]byte, len(sizes)),
	}

	off := header

	for i, s := range sizes {
		binary.LittleEndian.PutUint32(block[i*4:], uint32(off))
		w.slots[i] = block[off : off+s : off+align4(s)]
		off += align4(s)
	}

	return
}

// Free releases a world buffer, slots must not be accessed afterwards.
func Free(heap mem.Heap, w *World) {
	if w == nil {
		return
	}

	if w.block != nil {
		heap.Free(w.block)
	}

	w.block = nil
	w.slots = nil
}

// Slot returns the state buffer of driver i.
func (w *World) Slot(i int) []byte {
	return w.slots[i]
}

// Offset returns the offset of driver i slot within the world block, as
// recorded in the buffer header.
func (w *World) Offset(i int) int {
	return int(binary.LittleEndian.Uint32(w.block[i*4:]))
}

// Size returns the world buffer total size.
func (w *World) Size() int {
	return len(w.block)
}
