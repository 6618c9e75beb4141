// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mem

import (
	"bytes"
	"debug/elf"
	"fmt"
)

// Layout describes the add-in image sections as laid out by the linker.
type Layout struct {
	// ROM limits, only Size is relevant for ROM priming
	ROM Region
	// Statically initialized data
	Data Region
	// Zero initialized data, Load is unused
	BSS Region
	// Instruction local RAM image
	ILRAM Region
	// X and Y RAM image
	XYRAM Region
	// Permanently mapped code, placed at the user RAM base (Run unused)
	GMapped Region
	// Relocation table for references to permanently mapped code
	Reloc Region
	// StackTop is the lowest valid stack address (0 if unknown)
	StackTop uint32
}

// Validate checks that all copied or cleared sections are well formed.
func (l *Layout) Validate() (err error) {
	regions := map[string]Region{
		"data":    l.Data,
		"bss":     l.BSS,
		"ilram":   l.ILRAM,
		"xyram":   l.XYRAM,
		"gmapped": l.GMapped,
	}

	for name, r := range regions {
		if err = r.Validate(); err != nil {
			return fmt.Errorf("invalid %s section, %v", name, err)
		}
	}

	if l.Reloc.Size%4 != 0 {
		return fmt.Errorf("invalid relocation table size %#x", l.Reloc.Size)
	}

	return
}

func lookupSym(syms []elf.Symbol, name string) (uint32, error) {
	for _, sym := range syms {
		if sym.Name == name {
			return uint32(sym.Value), nil
		}
	}

	return 0, fmt.Errorf("symbol %s not found", name)
}

// LayoutFromELF builds the section layout from the linker script symbols
// found in an add-in ELF image, for each section l* is the load address, s*
// the size and r* the relocation address.
func LayoutFromELF(buf []byte) (l *Layout, err error) {
	exe, err := elf.NewFile(bytes.NewReader(buf))

	if err != nil {
		return
	}

	syms, err := exe.Symbols()

	if err != nil {
		return
	}

	l = &Layout{}

	fields := []struct {
		name string
		val  *uint32
	}{
		{"brom", &l.ROM.Load}, {"srom", &l.ROM.Size},
		{"ldata", &l.Data.Load}, {"sdata", &l.Data.Size}, {"rdata", &l.Data.Run},
		{"sbss", &l.BSS.Size}, {"rbss", &l.BSS.Run},
		{"lilram", &l.ILRAM.Load}, {"silram", &l.ILRAM.Size}, {"rilram", &l.ILRAM.Run},
		{"lxyram", &l.XYRAM.Load}, {"sxyram", &l.XYRAM.Size}, {"rxyram", &l.XYRAM.Run},
		{"lgmapped", &l.GMapped.Load}, {"sgmapped", &l.GMapped.Size},
		{"lreloc", &l.Reloc.Load}, {"sreloc", &l.Reloc.Size},
	}

	for _, f := range fields {
		if *f.val, err = lookupSym(syms, f.name); err != nil {
			return nil, err
		}
	}

	// the stack top is optional, canary checks are disabled without it
	l.StackTop, _ = lookupSym(syms, "gint_stack_top")

	return l, l.Validate()
}
