// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sim

import (
	"fmt"
	"sync"

	"github.com/usbarmory/GoTEE-addin/mem"
	"github.com/usbarmory/GoTEE-addin/service"
	"github.com/usbarmory/GoTEE-addin/util"
)

// Host OS peripheral configuration
var (
	HostFRQCR = uint32(0x0f011112)
	HostTCOR0 = uint32(0x0000ffff)
	HostRCR2  = byte(0x81)
	HostKEYSC = byte(0x07)
)

// Register offsets within the peripheral windows
const (
	TSTR  = TMU_BASE + 0x04
	TCOR0 = TMU_BASE + 0x08
	TCNT0 = TMU_BASE + 0x0c
	RCR2  = RTC_BASE + 0x1c
	KYCR  = KEYSC_BASE + 0x00
	FRQCR = CPG_BASE + 0x00
)

// MSTPCR0 bits
const (
	MSTP_USB   = 11
	MSTP_KEYSC = 14
	MSTP_TMU   = 15
)

// HostOS represents the simulated host operating system, it drives the
// machine peripherals with its own configuration whenever it runs.
type HostOS struct {
	sync.Mutex

	// Bus is the address space
	Bus mem.Memory
	// CPU is the processor the host runs on
	CPU *CPU
	// Screen is the host display frame buffer
	Screen []byte
	// Log receives host console output, util.BufferedStdoutLog is used
	// when nil
	Log func(c byte, addin bool)

	menu     int
	poweroff []bool
	ticks    uint32
}

func (h *HostOS) print(s string) {
	out := h.Log

	if out == nil {
		out = util.BufferedStdoutLog
	}

	for i := 0; i < len(s); i++ {
		out(s[i], false)
	}
}

// Boot applies the host OS peripheral configuration.
func (h *HostOS) Boot() {
	mem.Write32(h.Bus, FRQCR, HostFRQCR)
	mem.Write32(h.Bus, TCOR0, HostTCOR0)
	h.Bus.Write(TSTR, []byte{0x01})
	h.Bus.Write(RCR2, []byte{HostRCR2})
	h.Bus.Write(KYCR, []byte{HostKEYSC})

	// the host leaves the USB module stopped until a cable is connected
	mstp := uint32(1 << MSTP_USB)
	mem.Write32(h.Bus, MSTPCR0, mstp)

	h.CPU.SetVBR(HostVBR)
	h.print("host booted\n")
}

// run simulates the host scheduling its timer for one tick, the counter
// persists in the host world only.
func (h *HostOS) run(req service.Request) {
	h.Lock()
	defer h.Unlock()

	h.ticks = mem.Read32(h.Bus, TCNT0) + 1
	mem.Write32(h.Bus, TCNT0, h.ticks)

	h.print(fmt.Sprintf("host %s (vbr:%#.8x tick:%d)\n", req, h.CPU.VBR(), h.ticks))
}

// OSMenu implements kernel.Host.
func (h *HostOS) OSMenu() {
	h.Lock()
	h.menu++
	h.Unlock()

	h.run(service.Menu())
}

// PowerOff implements kernel.Host.
func (h *HostOS) PowerOff(showLogo bool) {
	h.Lock()
	h.poweroff = append(h.poweroff, showLogo)
	h.Unlock()

	h.run(service.PowerOff(showLogo))
}

// VRAM implements kernel.Host.
func (h *HostOS) VRAM() []byte {
	return h.Screen
}

// Menus returns the number of main menu calls.
func (h *HostOS) Menus() int {
	h.Lock()
	defer h.Unlock()

	return h.menu
}

// Poweroffs returns the logo argument of each power off call.
func (h *HostOS) Poweroffs() []bool {
	h.Lock()
	defer h.Unlock()

	return append([]bool(nil), h.poweroff...)
}

// Ticks returns the host timer counter as of its last run.
func (h *HostOS) Ticks() uint32 {
	h.Lock()
	defer h.Unlock()

	return h.ticks
}
