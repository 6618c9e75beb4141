// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package kernel implements the add-in kernel world switch: the transfer of
// peripheral ownership between the host OS world and the add-in world.
//
// There are exactly two worlds which are never active concurrently, a world
// switch always runs to completion or halts the system.
package kernel

import (
	"errors"
	"fmt"
	"log"

	"github.com/usbarmory/GoTEE-addin/drivers"
	"github.com/usbarmory/GoTEE-addin/hw"
	"github.com/usbarmory/GoTEE-addin/mem"
)

// Fixed panic codes
const (
	PANIC_BOOT           = 0x1000
	PANIC_STACK_OVERFLOW = 0x1080
)

// ErrBusy is returned when a world switch is requested while another one is
// in progress.
var ErrBusy = errors.New("world switch in progress")

// CPU represents the processor control operations used by the kernel.
type CPU interface {
	// DisableInterrupts masks all interrupts.
	DisableInterrupts()
	// EnableInterrupts unmasks interrupts.
	EnableInterrupts()
	// SetVBR sets the exception vector base, returning the previous one.
	SetVBR(vbr uint32) (prev uint32)
}

// Host represents the host OS services reachable from the host world.
type Host interface {
	// PowerOff turns the device off, returning when powered on again.
	PowerOff(showLogo bool)
	// OSMenu shows the host main menu, returning when the add-in is
	// resumed.
	OSMenu()
	// VRAM returns the host video memory.
	VRAM() []byte
}

// Kernel represents the kernel context, it owns the driver flags and both
// world buffers.
type Kernel struct {
	// Drivers is the driver table, sealed at installation
	Drivers *drivers.Registry
	// Heap is used to allocate world buffers
	Heap mem.Heap
	// CPU controls interrupts and exception vectors
	CPU CPU
	// Memory is the address space
	Memory mem.Memory
	// Layout is the add-in image layout
	Layout *mem.Layout
	// Variant is the detected hardware
	Variant hw.Variant
	// Host provides host OS services
	Host Host
	// VBR is the kernel exception vector base
	VBR uint32
	// VRAM is the kernel video memory
	VRAM []byte
	// Panic is invoked on unrecoverable faults, when it returns the
	// faulting operation fails with an error. When nil a Go panic is
	// raised.
	Panic func(code uint32)

	// OS is the host OS world buffer
	OS *World
	// Addin is the add-in world buffer
	Addin *World

	flags     []drivers.Flags
	osVBR     uint32
	atomic    int
	busy      bool
	installed bool

	onchipMode   OnchipMode
	onchipBuffer []byte
}

// Flags returns the current flags of driver i.
func (k *Kernel) Flags(i int) drivers.Flags {
	return k.flags[i]
}

// Installed returns whether the kernel is installed.
func (k *Kernel) Installed() bool {
	return k.installed
}

// AtomicStart disables interrupts, calls can be nested.
func (k *Kernel) AtomicStart() {
	if k.atomic == 0 && k.CPU != nil {
		k.CPU.DisableInterrupts()
	}

	k.atomic++
}

// AtomicEnd re-enables interrupts once the outermost atomic section ends.
func (k *Kernel) AtomicEnd() {
	k.atomic--

	if k.atomic == 0 && k.CPU != nil {
		k.CPU.EnableInterrupts()
	}
}

// Fault reports an unrecoverable fault to the panic handler.
func (k *Kernel) Fault(code uint32) {
	log.Printf("kernel panic code:%#x", code)

	if k.Panic == nil {
		panic(fmt.Sprintf("kernel panic %#x", code))
	}

	k.Panic(code)
}

// Install takes over the hardware: it allocates both world buffers,
// switches the exception vector base and switches the add-in world in.
func (k *Kernel) Install() (err error) {
	if k.installed {
		return errors.New("kernel already installed")
	}

	if k.Drivers == nil {
		k.Drivers = &drivers.Registry{}
	}

	if k.Heap == nil {
		return errors.New("missing kernel heap")
	}

	k.Drivers.Seal()

	if k.OS, err = Alloc(k.Drivers, k.Heap); err != nil {
		return fmt.Errorf("could not allocate host world, %v", err)
	}

	if k.Addin, err = Alloc(k.Drivers, k.Heap); err != nil {
		Free(k.Heap, k.OS)
		k.OS = nil

		return fmt.Errorf("could not allocate add-in world, %v", err)
	}

	k.flags = make([]drivers.Flags, k.Drivers.Count())

	for i := range k.flags {
		k.flags[i] = k.Drivers.Get(i).Flags
	}

	k.AtomicStart()

	if k.CPU != nil {
		k.osVBR = k.CPU.SetVBR(k.VBR)
	}

	k.SwitchIn(k.OS, k.Addin)
	k.AtomicEnd()

	k.installed = true

	log.Printf("kernel installed drivers:%d world:%d vbr:%#.8x", k.Drivers.Count(), k.Addin.Size(), k.VBR)

	return
}

// Uninstall gives the hardware back to the host OS, restoring its driver
// state and exception vector base, interrupts are disabled throughout.
func (k *Kernel) Uninstall() {
	if !k.installed {
		return
	}

	k.AtomicStart()

	k.SwitchOut(k.Addin, k.OS)

	if k.CPU != nil {
		k.CPU.SetVBR(k.osVBR)
	}

	Free(k.Heap, k.Addin)
	Free(k.Heap, k.OS)

	k.Addin = nil
	k.OS = nil
	k.installed = false

	k.AtomicEnd()

	log.Printf("kernel uninstalled")
}
