// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mem

import (
	"fmt"
)

// Region represents a link-time section description: the image content is
// found at Load and must be placed at Run before use.
type Region struct {
	// Load is the section load address
	Load uint32
	// Size is the section size in bytes
	Size uint32
	// Run is the section relocation address
	Run uint32
}

// Validate checks the region invariants.
func (r Region) Validate() error {
	if r.Size%Alignment != 0 {
		return fmt.Errorf("region size %#x is not %d bytes aligned", r.Size, Alignment)
	}

	// forward copy order breaks when the destination starts within the
	// source
	if r.Run > r.Load && r.Run < r.Load+r.Size {
		return fmt.Errorf("region run address %#.8x overlaps load area %#.8x-%#.8x", r.Run, r.Load, r.Load+r.Size)
	}

	return nil
}

// Copy moves the section image from its load address to its run address,
// one 16 bytes block at a time in increasing address order.
func (r Region) Copy(m Memory) {
	r.CopyTo(m, r.Run)
}

// CopyTo is like Copy but relocates the image at an arbitrary destination.
func (r Region) CopyTo(m Memory, dst uint32) {
	buf := make([]byte, Alignment)

	for off := uint32(0); off < r.Size; off += Alignment {
		m.Read(r.Load+off, buf)
		m.Write(dst+off, buf)
	}
}

// Clear zero fills the section at its run address.
func (r Region) Clear(m Memory) {
	if r.Size == 0 {
		return
	}

	Fill(m, r.Run, int(r.Size))
}

// Relocate adds base to every 32-bit word of a fixup table described by the
// region load address and size.
func (r Region) Relocate(m Memory, base uint32) {
	for off := uint32(0); off+4 <= r.Size; off += 4 {
		Write32(m, r.Load+off, Read32(m, r.Load+off)+base)
	}
}
