// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sim

import (
	"sync"
)

// CPU represents the simulated processor interrupt and exception state.
type CPU struct {
	sync.Mutex

	masked bool
	vbr    uint32
}

// DisableInterrupts implements kernel.CPU.
func (c *CPU) DisableInterrupts() {
	c.Lock()
	defer c.Unlock()

	c.masked = true
}

// EnableInterrupts implements kernel.CPU.
func (c *CPU) EnableInterrupts() {
	c.Lock()
	defer c.Unlock()

	c.masked = false
}

// SetVBR implements kernel.CPU.
func (c *CPU) SetVBR(vbr uint32) (prev uint32) {
	c.Lock()
	defer c.Unlock()

	prev = c.vbr
	c.vbr = vbr

	return
}

// Masked returns whether interrupts are currently disabled.
func (c *CPU) Masked() bool {
	c.Lock()
	defer c.Unlock()

	return c.masked
}

// VBR returns the current exception vector base.
func (c *CPU) VBR() uint32 {
	c.Lock()
	defer c.Unlock()

	return c.vbr
}
