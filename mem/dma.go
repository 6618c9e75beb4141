// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago
// +build tamago

package mem

import (
	"github.com/usbarmory/tamago/dma"
)

// Physical is a Memory implementation giving direct access to the physical
// address space through temporary DMA regions (use with caution).
type Physical struct{}

func (p *Physical) access(addr uint32, size int, fn func(buf []byte)) {
	if size == 0 {
		return
	}

	mem := &dma.Region{
		Start: addr,
		Size:  size,
	}

	mem.Init()

	start, buf := mem.Reserve(size, 0)
	defer mem.Release(start)

	fn(buf)
}

// Read implements Memory.
func (p *Physical) Read(addr uint32, buf []byte) {
	p.access(addr, len(buf), func(b []byte) {
		copy(buf, b)
	})
}

// Write implements Memory.
func (p *Physical) Write(addr uint32, buf []byte) {
	p.access(addr, len(buf), func(b []byte) {
		copy(b, buf)
	})
}
