// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mem

// Section sizes are always a multiple of this alignment, the linker script
// pads every region accordingly.
const Alignment = 16

// Fixed SH7305 on-chip memory windows, absent on SH3 variants.
const (
	ILRAMStart = 0xe5200000
	ILRAMSize  = 0x1000 // 4KB

	XRAMStart = 0xe500e000
	XRAMSize  = 0x2000 // 8KB

	YRAMStart = 0xe5010000
	YRAMSize  = 0x2000 // 8KB

	// OnchipSize is the backup buffer size required to preserve all
	// on-chip windows across a world switch.
	OnchipSize = ILRAMSize + XRAMSize + YRAMSize
)

// ROM is mapped from this address in the add-in virtual address space, pages
// are 1KB on the SH3 static mapping scheme.
const (
	ROMStart    = 0x00300000
	ROMPageSize = 0x400
)

// CANARY is written at the top of the add-in stack to detect overflows
// across host world calls.
const CANARY = 0xb7c0ffee

// Processor identification registers.
const (
	PVR = 0xff000030
	PRR = 0xff000044
)
