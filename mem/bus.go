// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mem

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// Memory represents the add-in view of the physical/virtual address space.
//
// Accesses to unmapped addresses are fatal, as they would be on hardware,
// and therefore implementations panic rather than returning an error.
type Memory interface {
	// Read fills buf with the memory content at addr.
	Read(addr uint32, buf []byte)
	// Write stores buf at addr.
	Write(addr uint32, buf []byte)
}

// Read32 reads one 32-bit little-endian word.
func Read32(m Memory, addr uint32) uint32 {
	buf := make([]byte, 4)
	m.Read(addr, buf)

	return binary.LittleEndian.Uint32(buf)
}

// Write32 writes one 32-bit little-endian word.
func Write32(m Memory, addr uint32, val uint32) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, val)

	m.Write(addr, buf)
}

// Fill sets size bytes at addr to zero.
func Fill(m Memory, addr uint32, size int) {
	m.Write(addr, make([]byte, size))
}

// Window represents a contiguous block of RAM backed memory.
type Window struct {
	// Name is a descriptive label used in fault messages
	Name string
	// Start is the window base address
	Start uint32
	// Data is the window content
	Data []byte
}

// End returns the first address past the window.
func (w *Window) End() uint64 {
	return uint64(w.Start) + uint64(len(w.Data))
}

// RAM is a Memory implementation backed by Go slices, it is used to run the
// kernel on hosted targets (tests and simulation).
type RAM struct {
	windows []*Window
}

// Map adds a zero filled window of the given size.
func (r *RAM) Map(name string, start uint32, size int) (w *Window, err error) {
	w = &Window{
		Name:  name,
		Start: start,
		Data:  make([]byte, size),
	}

	for _, o := range r.windows {
		if uint64(w.Start) < o.End() && uint64(o.Start) < w.End() {
			return nil, fmt.Errorf("window %s overlaps %s", name, o.Name)
		}
	}

	r.windows = append(r.windows, w)

	sort.Slice(r.windows, func(i, j int) bool {
		return r.windows[i].Start < r.windows[j].Start
	})

	return
}

// Windows returns all mapped windows in address order.
func (r *RAM) Windows() []*Window {
	return r.windows
}

func (r *RAM) slice(addr uint32, size int) []byte {
	for _, w := range r.windows {
		if addr >= w.Start && uint64(addr)+uint64(size) <= w.End() {
			off := addr - w.Start
			return w.Data[off : int(off)+size]
		}
	}

	panic(fmt.Sprintf("access to unmapped memory addr:%#.8x size:%d", addr, size))
}

// Read implements Memory.
func (r *RAM) Read(addr uint32, buf []byte) {
	copy(buf, r.slice(addr, len(buf)))
}

// Write implements Memory.
func (r *RAM) Write(addr uint32, buf []byte) {
	copy(r.slice(addr, len(buf)), buf)
}
