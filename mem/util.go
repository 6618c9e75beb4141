// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mem

// Prime reads one byte from every ROM page up to limit bytes past ROMStart,
// forcing the host page mapper to establish all mappings before the kernel
// takes over TLB miss handling. It returns the number of touched pages.
func Prime(m Memory, limit uint32) (pages int) {
	var b [1]byte

	for loaded := uint32(0); loaded < limit; loaded += ROMPageSize {
		m.Read(ROMStart+loaded, b[:])
		pages++
	}

	return
}
