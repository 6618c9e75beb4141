// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm
// +build tamago,arm

package board

import (
	"github.com/usbarmory/tamago/soc/imx6"
)

// CPU implements kernel.CPU on the i.MX6 ARM core.
type CPU struct {
	vbr uint32
}

// DisableInterrupts implements kernel.CPU.
func (c *CPU) DisableInterrupts() {
	imx6.ARM.DisableInterrupts()
}

// EnableInterrupts implements kernel.CPU.
func (c *CPU) EnableInterrupts() {
	imx6.ARM.EnableInterrupts()
}

// SetVBR implements kernel.CPU, the exception vectors are owned by the
// GoTEE monitor and the vector base is only tracked.
func (c *CPU) SetVBR(vbr uint32) (prev uint32) {
	prev = c.vbr
	c.vbr = vbr

	return
}
