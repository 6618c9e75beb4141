// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sim

import (
	"log"
	"sync"

	"github.com/usbarmory/tamago/bits"

	"github.com/usbarmory/GoTEE-addin/drivers"
	"github.com/usbarmory/GoTEE-addin/mem"
)

// Module stop control register, a set bit stops the module clock.
const MSTPCR0 = CPG_BASE + 0x30

// Peripheral represents a memory mapped peripheral driven by the add-in
// kernel, its world state is the register window.
type Peripheral struct {
	// Name is the driver name
	Name string
	// Base is the register window base address
	Base uint32
	// Size is the register window size
	Size int
	// MSTP is the module stop bit, or -1 for modules without power
	// control
	MSTP int
	// Flags are the initial driver flags
	Flags drivers.Flags
	// Defaults is the add-in configuration, applied on clean switches
	Defaults []byte

	// Bus is the address space the registers are mapped on
	Bus mem.Memory

	mu       sync.Mutex
	bound    bool
	foreign  bool
	inflight sync.WaitGroup
}

// Descriptor returns the kernel driver descriptor for the peripheral.
func (p *Peripheral) Descriptor() *drivers.Descriptor {
	return &drivers.Descriptor{
		Name:      p.Name,
		StateSize: p.Size,
		Flags:     p.Flags,
		Driver:    p,
	}
}

// Go starts an asynchronous operation on the peripheral, unbinding waits
// for its completion.
func (p *Peripheral) Go(fn func()) {
	p.inflight.Add(1)

	go func() {
		defer p.inflight.Done()
		fn()
	}()
}

// Bound returns whether the add-in currently owns the peripheral.
func (p *Peripheral) Bound() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.bound
}

func (p *Peripheral) setBound(bound bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.bound = bound
}

// Bind implements drivers.Driver.
func (p *Peripheral) Bind() {
	p.setBound(true)
}

// Unbind implements drivers.Driver.
func (p *Peripheral) Unbind() {
	p.inflight.Wait()
	p.setBound(false)
}

// ForeignBind implements drivers.Driver.
func (p *Peripheral) ForeignBind() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.foreign = true
}

// ForeignUnbind implements drivers.Driver.
func (p *Peripheral) ForeignUnbind() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.foreign = false
}

// Save implements drivers.Driver.
func (p *Peripheral) Save(buf []byte) {
	p.Bus.Read(p.Base, buf[:p.Size])
}

// Restore implements drivers.Driver.
func (p *Peripheral) Restore(buf []byte) {
	p.Bus.Write(p.Base, buf[:p.Size])
}

// Powered implements drivers.Driver.
func (p *Peripheral) Powered() bool {
	if p.MSTP < 0 {
		return true
	}

	mstp := mem.Read32(p.Bus, MSTPCR0)

	return bits.Get(&mstp, p.MSTP, 1) == 0
}

func (p *Peripheral) power(on bool) {
	if p.MSTP < 0 {
		return
	}

	mstp := mem.Read32(p.Bus, MSTPCR0)

	// a set bit stops the module clock
	if on {
		bits.Clear(&mstp, p.MSTP)
	} else {
		bits.Set(&mstp, p.MSTP)
	}

	mem.Write32(p.Bus, MSTPCR0, mstp)
}

// PowerOn implements drivers.Driver.
func (p *Peripheral) PowerOn() {
	p.power(true)
}

// PowerOff implements drivers.Driver.
func (p *Peripheral) PowerOff() {
	p.power(false)
}

// Configure implements drivers.Driver.
func (p *Peripheral) Configure() {
	log.Printf("sim configuring %s", p.Name)

	if p.Defaults != nil {
		p.Bus.Write(p.Base, p.Defaults)
	}
}
