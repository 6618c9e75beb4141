// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package drivers defines the peripheral driver lifecycle interface and the
// ordered driver registry handled by the kernel world switch.
package drivers

// Driver represents the lifecycle hooks of a peripheral driver.
//
// Drivers embed Base to leave unneeded hooks unimplemented.
type Driver interface {
	// Bind attaches the driver to the hardware after a switch to the
	// add-in world.
	Bind()
	// Unbind waits for asynchronous tasks to complete and detaches the
	// driver from the hardware.
	Unbind()
	// ForeignBind hands the hardware back to the host OS driver.
	ForeignBind()
	// ForeignUnbind waits for host OS asynchronous tasks to complete.
	ForeignUnbind()
	// Save stores the hardware state in buf.
	Save(buf []byte)
	// Restore loads the hardware state from buf.
	Restore(buf []byte)
	// Powered returns whether the device is powered.
	Powered() bool
	// PowerOn powers the device.
	PowerOn()
	// PowerOff removes power from the device.
	PowerOff()
	// Configure performs first time initialization of the add-in world
	// state.
	Configure()
}

// Base implements all Driver hooks as no-ops, a device without power control
// is always reported as powered.
type Base struct{}

func (Base) Bind()            {}
func (Base) Unbind()          {}
func (Base) ForeignBind()     {}
func (Base) ForeignUnbind()   {}
func (Base) Save(_ []byte)    {}
func (Base) Restore(_ []byte) {}
func (Base) Powered() bool    { return true }
func (Base) PowerOn()         {}
func (Base) PowerOff()        {}
func (Base) Configure()       {}

// Descriptor represents a registered driver.
type Descriptor struct {
	// Name is the driver name
	Name string
	// StateSize is the size of the serialized hardware state
	StateSize int
	// Flags holds the initial driver flags (FLAG_SHARED, FLAG_CLEAN)
	Flags Flags
	// Driver implements the lifecycle hooks
	Driver Driver
}
