// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mem

// USB armory Mk II memory layout, 32MB for each world.
const (
	// Add-in kernel runtime (Secure World)
	SecureStart = 0x80000000
	SecureSize  = 0x01ef0000

	// Add-in kernel world buffers and stack guard, outside both the Go
	// runtime heap and the DMA region
	KernelStart = 0x81ef0000
	KernelSize  = 0x00010000

	// Add-in kernel DMA (relocated to avoid conflicts with the host OS)
	SecureDMAStart = 0x81f00000
	SecureDMASize  = 0x00100000

	// Host OS (NonSecure World)
	NonSecureStart = 0x84000000
	NonSecureSize  = 0x02000000

	// On-chip RAM, backing the ILRAM, XRAM and YRAM windows
	OCRAMStart = 0x00900000
	OCRAMSize  = 0x00020000
)
