// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package drivers

import (
	"errors"
	"fmt"
	"sync"
)

// ErrSealed is returned when registering drivers after kernel installation.
var ErrSealed = errors.New("driver registry is sealed")

// Registry represents the ordered driver table, drivers must be registered
// in dependency order (lower level drivers first).
type Registry struct {
	sync.Mutex

	drivers []*Descriptor
	sealed  bool
}

// Register appends a driver to the table.
func (r *Registry) Register(d *Descriptor) (err error) {
	r.Lock()
	defer r.Unlock()

	if r.sealed {
		return ErrSealed
	}

	if d == nil || d.Driver == nil {
		return errors.New("invalid driver descriptor")
	}

	if d.StateSize < 0 {
		return fmt.Errorf("invalid %s state size %d", d.Name, d.StateSize)
	}

	for _, o := range r.drivers {
		if o.Name == d.Name {
			return fmt.Errorf("driver %s already registered", d.Name)
		}
	}

	r.drivers = append(r.drivers, d)

	return
}

// Seal makes the table read-only.
func (r *Registry) Seal() {
	r.Lock()
	defer r.Unlock()

	r.sealed = true
}

// Sealed returns whether the table is read-only.
func (r *Registry) Sealed() bool {
	r.Lock()
	defer r.Unlock()

	return r.sealed
}

// Count returns the number of registered drivers.
func (r *Registry) Count() int {
	return len(r.drivers)
}

// Get returns the driver at index i.
func (r *Registry) Get(i int) *Descriptor {
	return r.drivers[i]
}

// StateSizes returns the state size of each driver, in registration order.
func (r *Registry) StateSizes() (sizes []int) {
	for _, d := range r.drivers {
		sizes = append(sizes, d.StateSize)
	}

	return
}
