// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package kernel

import (
	"fmt"

	"github.com/usbarmory/GoTEE-addin/mem"
)

// OnchipMode represents the on-chip memory handling across world switches.
type OnchipMode int

const (
	// ONCHIP_REINITIALIZE clears on-chip memory and reloads its static
	// image after each host world call, runtime state is lost.
	ONCHIP_REINITIALIZE OnchipMode = iota
	// ONCHIP_BACKUP copies on-chip memory to a backup buffer before each
	// host world call and restores it afterwards.
	ONCHIP_BACKUP
)

func (m OnchipMode) String() string {
	switch m {
	case ONCHIP_REINITIALIZE:
		return "reinitialize"
	case ONCHIP_BACKUP:
		return "backup"
	default:
		return fmt.Sprintf("unknown (%d)", int(m))
	}
}

var onchipWindows = []struct {
	start uint32
	size  int
}{
	{mem.ILRAMStart, mem.ILRAMSize},
	{mem.XRAMStart, mem.XRAMSize},
	{mem.YRAMStart, mem.YRAMSize},
}

// SetOnchipSaveMode sets the on-chip memory handling mode, the backup mode
// requires a buffer of at least mem.OnchipSize bytes.
func (k *Kernel) SetOnchipSaveMode(mode OnchipMode, buf []byte) error {
	switch mode {
	case ONCHIP_REINITIALIZE:
	case ONCHIP_BACKUP:
		if len(buf) < mem.OnchipSize {
			return fmt.Errorf("on-chip backup buffer must be at least %d bytes", mem.OnchipSize)
		}
	default:
		return fmt.Errorf("invalid on-chip save mode %d", mode)
	}

	k.onchipMode = mode
	k.onchipBuffer = buf

	return nil
}

// OnchipSaveMode returns the current on-chip memory handling mode and
// backup buffer.
func (k *Kernel) OnchipSaveMode() (OnchipMode, []byte) {
	return k.onchipMode, k.onchipBuffer
}

// LoadOnchipSections clears on-chip memory and loads the static ILRAM, XRAM
// and YRAM images, it has no effect on variants without on-chip memory.
func (k *Kernel) LoadOnchipSections() {
	if !k.Variant.OnchipRAM() {
		return
	}

	mem.Fill(k.Memory, mem.ILRAMStart, mem.ILRAMSize)

	if k.Layout != nil {
		k.Layout.ILRAM.Copy(k.Memory)
	}

	mem.Fill(k.Memory, mem.XRAMStart, mem.XRAMSize)
	mem.Fill(k.Memory, mem.YRAMStart, mem.YRAMSize)

	if k.Layout != nil {
		k.Layout.XYRAM.Copy(k.Memory)
	}
}

func (k *Kernel) backupOnchip() {
	off := 0

	for _, w := range onchipWindows {
		k.Memory.Read(w.start, k.onchipBuffer[off:off+w.size])
		off += w.size
	}
}

func (k *Kernel) restoreOnchip() {
	off := 0

	for _, w := range onchipWindows {
		k.Memory.Write(w.start, k.onchipBuffer[off:off+w.size])
		off += w.size
	}
}
