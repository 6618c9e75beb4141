// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package drivers

import (
	"strings"

	"github.com/usbarmory/tamago/bits"
)

// Driver flag bit positions
const (
	// FLAG_SHARED marks drivers whose state is identical in both worlds,
	// such drivers are bound and unbound but never saved or restored.
	FLAG_SHARED = 0
	// FLAG_CLEAN marks drivers whose add-in world state has never been
	// configured.
	FLAG_CLEAN = 1
	// FLAG_FOREIGN_POWERED records whether the host OS had the device
	// powered when the add-in world was switched in.
	FLAG_FOREIGN_POWERED = 2
)

// Flags represents the driver flags.
type Flags uint32

// Has returns whether the flag at position pos is set.
func (f *Flags) Has(pos int) bool {
	return bits.Get((*uint32)(f), pos, 1) == 1
}

// Set sets the flag at position pos.
func (f *Flags) Set(pos int) {
	bits.Set((*uint32)(f), pos)
}

// Clear clears the flag at position pos.
func (f *Flags) Clear(pos int) {
	bits.Clear((*uint32)(f), pos)
}

// SetTo sets the flag at position pos to val.
func (f *Flags) SetTo(pos int, val bool) {
	if val {
		bits.Set((*uint32)(f), pos)
	} else {
		bits.Clear((*uint32)(f), pos)
	}
}

func (f Flags) String() string {
	var s []string

	names := []string{
		FLAG_SHARED:          "shared",
		FLAG_CLEAN:           "clean",
		FLAG_FOREIGN_POWERED: "foreign-powered",
	}

	for pos, name := range names {
		if f.Has(pos) {
			s = append(s, name)
		}
	}

	if len(s) == 0 {
		return "-"
	}

	return strings.Join(s, ",")
}
