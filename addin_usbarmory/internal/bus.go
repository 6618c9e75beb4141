// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm
// +build tamago,arm

package board

import (
	"github.com/usbarmory/GoTEE-addin/mem"
)

// Identification register values reported to the kernel, the board runs the
// kernel as an SH4 fx-CG class machine.
const (
	PVR = 0x10300b00
	PRR = 0x00002c00
)

const (
	ccnStart = 0xff000000
	ccnSize  = 0x100
)

// onchip maps the kernel on-chip memory windows to OCRAM.
var onchip = []struct {
	start uint32
	size  uint32
	phys  uint32
}{
	{mem.ILRAMStart, mem.ILRAMSize, mem.OCRAMStart},
	{mem.XRAMStart, mem.XRAMSize, mem.OCRAMStart + mem.ILRAMSize},
	{mem.YRAMStart, mem.YRAMSize, mem.OCRAMStart + mem.ILRAMSize + mem.XRAMSize},
}

// Bus represents the board address space as seen by the kernel: on-chip
// windows are translated to OCRAM and identification registers are
// emulated, all other accesses are physical.
type Bus struct {
	phys mem.Physical
	id   *mem.RAM
}

// NewBus returns the board address space.
func NewBus() (b *Bus, err error) {
	b = &Bus{
		id: &mem.RAM{},
	}

	if _, err = b.id.Map("ccn", ccnStart, ccnSize); err != nil {
		return
	}

	mem.Write32(b.id, mem.PVR, PVR)
	mem.Write32(b.id, mem.PRR, PRR)

	return
}

func (b *Bus) translate(addr uint32) uint32 {
	for _, w := range onchip {
		if addr >= w.start && addr < w.start+w.size {
			return w.phys + (addr - w.start)
		}
	}

	return addr
}

// Read implements mem.Memory.
func (b *Bus) Read(addr uint32, buf []byte) {
	if addr >= ccnStart && addr < ccnStart+ccnSize {
		b.id.Read(addr, buf)
		return
	}

	b.phys.Read(b.translate(addr), buf)
}

// Write implements mem.Memory, identification registers are read-only.
func (b *Bus) Write(addr uint32, buf []byte) {
	if addr >= ccnStart && addr < ccnStart+ccnSize {
		return
	}

	b.phys.Write(b.translate(addr), buf)
}
