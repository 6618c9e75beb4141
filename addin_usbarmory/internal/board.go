// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm
// +build tamago,arm

// Package board binds the add-in kernel to the USB armory Mk II, the host OS
// runs in the TrustZone NonSecure World.
package board

import (
	"fmt"
	"log"

	"github.com/usbarmory/tamago/dma"

	"github.com/usbarmory/GoTEE-addin/boot"
	"github.com/usbarmory/GoTEE-addin/drivers"
	"github.com/usbarmory/GoTEE-addin/hw"
	"github.com/usbarmory/GoTEE-addin/kernel"
	"github.com/usbarmory/GoTEE-addin/mem"
)

// VBR is the add-in kernel exception vector base.
const VBR = mem.SecureStart

// Board represents the add-in kernel installed on the board.
type Board struct {
	Bus       *Bus
	Host      *HostOS
	LED       *LED
	Kernel    *kernel.Kernel
	Sequencer *boot.Sequencer
}

func flags(pos ...int) (f drivers.Flags) {
	for _, p := range pos {
		f.Set(p)
	}

	return
}

// New creates the kernel, its drivers and boot sequencer.
func New() (b *Board, err error) {
	b = &Board{
		Host: NewHostOS(),
		LED:  &LED{},
	}

	if b.Bus, err = NewBus(); err != nil {
		return nil, fmt.Errorf("could not initialize bus, %v", err)
	}

	if err = grantHostMemory(); err != nil {
		return nil, fmt.Errorf("could not configure TrustZone, %v", err)
	}

	tz := &TrustZone{}

	reg := &drivers.Registry{}

	descs := []*drivers.Descriptor{
		{Name: "VFP", Flags: flags(drivers.FLAG_SHARED), Driver: &Coprocessor{}},
		{Name: "CSU", StateSize: tz.StateSize(), Flags: flags(drivers.FLAG_CLEAN), Driver: tz},
		{Name: "RNGB", Flags: flags(drivers.FLAG_SHARED), Driver: &RNGB{}},
		{Name: "LED", StateSize: len(b.LED.state), Flags: flags(drivers.FLAG_CLEAN), Driver: b.LED},
	}

	for _, d := range descs {
		if err = reg.Register(d); err != nil {
			return nil, fmt.Errorf("could not register %s driver, %v", d.Name, err)
		}
	}

	region := &dma.Region{
		Start: mem.KernelStart,
		Size:  mem.KernelSize,
	}

	region.Init()

	heap := &mem.RegionHeap{Region: region}

	// the kernel image is loaded by the boot ROM, a dedicated guard word
	// detects overruns across world switches
	guard, err := heap.Guard()

	if err != nil {
		return nil, fmt.Errorf("could not reserve stack guard, %v", err)
	}

	b.Kernel = &kernel.Kernel{
		Drivers: reg,
		Heap:    heap,
		CPU:     &CPU{},
		Host:    b.Host,
		VBR:     VBR,
		VRAM:    make([]byte, 396*224*2),
		Panic:   b.panic,
	}

	b.Sequencer = &boot.Sequencer{
		Kernel: b.Kernel,
		Memory: b.Bus,
		Layout: &mem.Layout{StackTop: guard},
		OS:     hw.CG,
	}

	return
}

// panic reports kernel faults on the LEDs and returns, failed world switches
// are reported to their caller.
func (b *Board) panic(code uint32) {
	log.Printf("kernel fault %#x, world switch aborted", code)

	b.LED.Set("blue", false)
	b.LED.Set("white", true)
}
