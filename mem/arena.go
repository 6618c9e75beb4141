// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mem

import (
	"errors"
	"sync"
)

// ErrNoSpace is returned when an allocation cannot be satisfied.
var ErrNoSpace = errors.New("out of memory")

// Heap represents a kernel memory allocator.
type Heap interface {
	// Alloc reserves size bytes.
	Alloc(size int) ([]byte, error)
	// Free releases a buffer previously returned by Alloc.
	Free(buf []byte)
}

type block struct {
	off  int
	size int
}

// Arena is a first-fit allocator over a fixed buffer, modelled after the
// TamaGo DMA region allocator.
type Arena struct {
	sync.Mutex

	buf  []byte
	free []*block
	used map[*byte]*block
}

// NewArena returns an allocator of the given capacity.
func NewArena(size int) *Arena {
	return &Arena{
		buf:  make([]byte, size),
		free: []*block{{off: 0, size: size}},
		used: make(map[*byte]*block),
	}
}

// Alloc implements Heap, returned buffers are 4 bytes aligned and zeroed.
func (a *Arena) Alloc(size int) (buf []byte, err error) {
	a.Lock()
	defer a.Unlock()

	if size <= 0 {
		return nil, errors.New("invalid allocation size")
	}

	size = (size + 3) &^ 3

	for i, b := range a.free {
		if b.size < size {
			continue
		}

		r := &block{off: b.off, size: size}

		if b.size == size {
			a.free = append(a.free[:i], a.free[i+1:]...)
		} else {
			b.off += size
			b.size -= size
		}

		buf = a.buf[r.off : r.off+size : r.off+size]

		for i := range buf {
			buf[i] = 0
		}

		a.used[&buf[0]] = r

		return
	}

	return nil, ErrNoSpace
}

// Free implements Heap.
func (a *Arena) Free(buf []byte) {
	a.Lock()
	defer a.Unlock()

	if len(buf) == 0 {
		return
	}

	r, ok := a.used[&buf[0]]

	if !ok {
		return
	}

	delete(a.used, &buf[0])

	// insert in address order and coalesce with neighbours
	i := 0
	for i < len(a.free) && a.free[i].off < r.off {
		i++
	}

	a.free = append(a.free, nil)
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = r

	if i+1 < len(a.free) && r.off+r.size == a.free[i+1].off {
		r.size += a.free[i+1].size
		a.free = append(a.free[:i+1], a.free[i+2:]...)
	}

	if i > 0 && a.free[i-1].off+a.free[i-1].size == r.off {
		a.free[i-1].size += r.size
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
}

// Available returns the total free space.
func (a *Arena) Available() (n int) {
	a.Lock()
	defer a.Unlock()

	for _, b := range a.free {
		n += b.size
	}

	return
}
