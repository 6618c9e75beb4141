// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package kernel

import (
	"errors"

	"github.com/usbarmory/GoTEE-addin/hw"
	"github.com/usbarmory/GoTEE-addin/mem"
)

// ErrStackOverflow is returned, after the panic handler returns, when the
// add-in stack canary is found overwritten after a host world call.
var ErrStackOverflow = errors.New("add-in stack overflow")

// VRAM layouts
const (
	// FX monochrome 128x64 1bpp
	fxVRAMSize = 1024

	// CG RGB565 with 396 pixels wide kernel rows, the 384x216 visible
	// area starts 6 pixels in.
	cgWidth       = 384
	cgHeight      = 216
	cgKernelWidth = 396
	cgKernelSkip  = 6
)

// WorldSwitch runs call with the host OS world active and returns its
// result. Driver state, on-chip memory and the add-in stack are preserved
// across the call.
//
// A stack overflow detected on return is fatal: the panic handler is invoked
// and the add-in world is not switched back in.
func (k *Kernel) WorldSwitch(call func() int) (rc int, err error) {
	if k.busy {
		return 0, ErrBusy
	}

	k.busy = true
	defer func() { k.busy = false }()

	k.SwitchOut(k.Addin, k.OS)

	canary := k.stackTop()

	if canary != 0 {
		mem.Write32(k.Memory, canary, mem.CANARY)
	}

	onchip := k.Variant.OnchipRAM()

	if onchip && k.onchipMode == ONCHIP_BACKUP {
		k.backupOnchip()
	}

	rc = call()

	switch {
	case onchip && k.onchipMode == ONCHIP_BACKUP:
		k.restoreOnchip()
	case onchip && k.onchipMode == ONCHIP_REINITIALIZE:
		k.LoadOnchipSections()
	}

	// the check must happen before switching in, resuming the add-in world
	// on a smashed stack could corrupt host OS memory
	if canary != 0 && mem.Read32(k.Memory, canary) != mem.CANARY {
		k.Fault(PANIC_STACK_OVERFLOW)
		return rc, ErrStackOverflow
	}

	k.SwitchIn(k.OS, k.Addin)

	return
}

// Switch runs fn with the host OS world active.
func (k *Kernel) Switch(fn func()) error {
	_, err := k.WorldSwitch(func() int {
		fn()
		return 0
	})

	return err
}

func (k *Kernel) stackTop() uint32 {
	if k.Layout == nil || k.Memory == nil {
		return 0
	}

	return k.Layout.StackTop
}

// CopyVRAM copies the kernel video memory to the host video memory, so that
// the host displays the last add-in frame while it is in control.
func (k *Kernel) CopyVRAM() {
	if k.Host == nil || k.VRAM == nil {
		return
	}

	dst := k.Host.VRAM()

	switch k.Variant.OS {
	case hw.FX:
		n := fxVRAMSize

		if len(dst) < n || len(k.VRAM) < n {
			return
		}

		copy(dst[:n], k.VRAM[:n])
	case hw.CG:
		if len(dst) < cgWidth*cgHeight*2 || len(k.VRAM) < cgKernelWidth*cgHeight*2 {
			return
		}

		for y := 0; y < cgHeight; y++ {
			s := (y*cgKernelWidth + cgKernelSkip) * 2
			d := y * cgWidth * 2

			copy(dst[d:d+cgWidth*2], k.VRAM[s:s+cgWidth*2])
		}
	}
}

// Poweroff switches to the host world to power the device off, the add-in
// resumes when the device is powered on again.
func (k *Kernel) Poweroff(showLogo bool) error {
	if k.Variant.OS == hw.CP || k.Host == nil {
		return nil
	}

	k.CopyVRAM()

	return k.Switch(func() {
		k.Host.PowerOff(showLogo)
	})
}

// OSMenu switches to the host world to display its main menu, the add-in
// resumes when selected again.
func (k *Kernel) OSMenu() error {
	if !k.Variant.MenuReturn() || k.Host == nil {
		return nil
	}

	k.CopyVRAM()

	return k.Switch(k.Host.OSMenu)
}
