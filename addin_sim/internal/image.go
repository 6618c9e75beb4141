// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sim

import (
	"encoding/binary"

	"github.com/usbarmory/GoTEE-addin/mem"
)

// Built-in add-in image layout
const (
	ImageSize    = 0x8000
	ImageData    = mem.ROMStart + 0x1000
	ImageILRAM   = mem.ROMStart + 0x2000
	ImageXYRAM   = mem.ROMStart + 0x3000
	ImageGMapped = mem.ROMStart + 0x4000

	DataStart  = RAMStart + 0x0100
	BSSStart   = RAMStart + 0x0200
	RelocStart = RAMStart + 0x0300
	StackTop   = RAMStart + 0x7000

	SectionSize = 0x40
)

// Relocations are offsets within the permanently mapped section.
var Relocations = []uint32{0x10, 0x20}

func pattern(m mem.Memory, addr uint32, size int, seed byte) {
	buf := make([]byte, size)

	for i := range buf {
		buf[i] = seed + byte(i)
	}

	m.Write(addr, buf)
}

// TestImage writes the built-in add-in image to ROM, each section is
// filled with a distinct byte pattern.
func TestImage(m mem.Memory, onchip bool) *mem.Layout {
	l := &mem.Layout{
		ROM:      mem.Region{Load: mem.ROMStart, Size: ImageSize},
		Data:     mem.Region{Load: ImageData, Size: SectionSize, Run: DataStart},
		BSS:      mem.Region{Size: SectionSize, Run: BSSStart},
		GMapped:  mem.Region{Load: ImageGMapped, Size: SectionSize},
		Reloc:    mem.Region{Load: RelocStart, Size: uint32(len(Relocations) * 4)},
		StackTop: StackTop,
	}

	pattern(m, ImageData, SectionSize, 0x10)
	pattern(m, ImageGMapped, SectionSize, 0x40)
	pattern(m, BSSStart, SectionSize, 0xee)

	if onchip {
		l.ILRAM = mem.Region{Load: ImageILRAM, Size: SectionSize, Run: mem.ILRAMStart}
		l.XYRAM = mem.Region{Load: ImageXYRAM, Size: SectionSize, Run: mem.XRAMStart}

		pattern(m, ImageILRAM, SectionSize, 0x20)
		pattern(m, ImageXYRAM, SectionSize, 0x30)
	}

	buf := make([]byte, len(Relocations)*4)

	for i, off := range Relocations {
		binary.LittleEndian.PutUint32(buf[i*4:], off)
	}

	m.Write(RelocStart, buf)

	return l
}
