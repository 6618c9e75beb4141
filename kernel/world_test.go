// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package kernel_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usbarmory/GoTEE-addin/drivers"
	"github.com/usbarmory/GoTEE-addin/kernel"
	"github.com/usbarmory/GoTEE-addin/mem"
)

func registry(t *testing.T, sizes ...int) *drivers.Registry {
	reg := &drivers.Registry{}

	for i, size := range sizes {
		require.NoError(t, reg.Register(&drivers.Descriptor{
			Name:      string(rune('a' + i)),
			StateSize: size,
			Driver:    drivers.Base{},
		}))
	}

	return reg
}

func TestAllocLayout(t *testing.T) {
	heap := mem.NewArena(256)
	reg := registry(t, 5, 0, 8)

	w, err := kernel.Alloc(reg, heap)
	require.NoError(t, err)

	// 3 header words, then 8 + 0 + 8 bytes of slots
	assert.Equal(t, 28, w.Size())
	assert.Equal(t, 12, w.Offset(0))
	assert.Equal(t, 20, w.Offset(1))
	assert.Equal(t, 20, w.Offset(2))

	assert.Len(t, w.Slot(0), 5)
	assert.Len(t, w.Slot(1), 0)
	assert.Len(t, w.Slot(2), 8)

	// slots must not overlap
	for i := range w.Slot(0) {
		w.Slot(0)[i] = 0xaa
	}

	for i := range w.Slot(2) {
		w.Slot(2)[i] = 0xbb
	}

	for _, b := range w.Slot(0) {
		assert.Equal(t, byte(0xaa), b)
	}

	// the header is left untouched by slot writes
	assert.Equal(t, 12, w.Offset(0))
	assert.Equal(t, 20, w.Offset(2))
}

func TestAllocOutOfMemory(t *testing.T) {
	heap := mem.NewArena(16)
	reg := registry(t, 64)

	w, err := kernel.Alloc(reg, heap)

	assert.Nil(t, w)
	assert.True(t, errors.Is(err, kernel.ErrOutOfMemory))
}

func TestFree(t *testing.T) {
	heap := mem.NewArena(256)
	reg := registry(t, 16, 16)

	w, err := kernel.Alloc(reg, heap)
	require.NoError(t, err)
	assert.Equal(t, 256-40, heap.Available())

	kernel.Free(heap, w)
	assert.Equal(t, 256, heap.Available())
	assert.Equal(t, 0, w.Size())

	assert.Panics(t, func() { w.Slot(0) })
}

func TestAllocEmptyRegistry(t *testing.T) {
	heap := mem.NewArena(16)

	w, err := kernel.Alloc(&drivers.Registry{}, heap)
	require.NoError(t, err)

	assert.Equal(t, 0, w.Size())
	assert.Equal(t, 16, heap.Available())
}
