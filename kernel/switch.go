// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package kernel

import (
	"github.com/usbarmory/GoTEE-addin/drivers"
)

// Sync unbinds all drivers in reverse registration order, which waits for
// their asynchronous tasks to complete.
func (k *Kernel) Sync() {
	for i := k.Drivers.Count() - 1; i >= 0; i-- {
		k.Drivers.Get(i).Driver.Unbind()
	}
}

// SwitchIn moves hardware ownership from the host OS world to the add-in
// world, saving host state in from and restoring add-in state from to.
func (k *Kernel) SwitchIn(from *World, to *World) {
	n := k.Drivers.Count()

	// complete foreign asynchronous tasks
	for i := n - 1; i >= 0; i-- {
		k.Drivers.Get(i).Driver.ForeignUnbind()
	}

	k.AtomicStart()
	defer k.AtomicEnd()

	for i := 0; i < n; i++ {
		d := k.Drivers.Get(i).Driver
		f := &k.flags[i]

		foreignPowered := d.Powered()
		f.SetTo(drivers.FLAG_FOREIGN_POWERED, foreignPowered)

		// save and restore need a powered device
		if !foreignPowered {
			d.PowerOn()
		}

		if !f.Has(drivers.FLAG_SHARED) {
			// save first, both states share the same registers
			d.Save(from.Slot(i))

			if !f.Has(drivers.FLAG_CLEAN) {
				d.Restore(to.Slot(i))
			}
		}

		d.Bind()

		// either configure or restore, never both
		if f.Has(drivers.FLAG_CLEAN) {
			d.Configure()
			f.Clear(drivers.FLAG_CLEAN)
		}
	}
}

// SwitchOut moves hardware ownership from the add-in world back to the host
// OS world, saving add-in state in from and restoring host state from to.
func (k *Kernel) SwitchOut(from *World, to *World) {
	n := k.Drivers.Count()

	// complete asynchronous tasks
	k.Sync()

	k.AtomicStart()

	for i := n - 1; i >= 0; i-- {
		d := k.Drivers.Get(i).Driver
		f := &k.flags[i]

		if !d.Powered() {
			d.PowerOn()
		}

		if !f.Has(drivers.FLAG_SHARED) {
			d.Save(from.Slot(i))
			d.Restore(to.Slot(i))
		}

		// restore the host power state
		if !f.Has(drivers.FLAG_FOREIGN_POWERED) {
			d.PowerOff()
		}
	}

	k.AtomicEnd()

	// Hand devices back to their host side drivers, the counterpart of the
	// ForeignUnbind pass in SwitchIn. Devices the add-in world keeps using
	// indirectly while the host runs (such as a random number generator
	// replaced by a software DRBG) are re-routed here, once host state is
	// restored.
	for i := 0; i < n; i++ {
		k.Drivers.Get(i).Driver.ForeignBind()
	}
}
