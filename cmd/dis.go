// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"

	"golang.org/x/arch/arm/armasm"
	"golang.org/x/term"
)

const maxInstructions = 256

func init() {
	Add(Cmd{
		Name:    "dis",
		Args:    2,
		Pattern: regexp.MustCompile(`^dis ([[:xdigit:]]+) (\d+)$`),
		Syntax:  "<hex offset> <count>",
		Help:    "ARM disassembly of host world code",
		Fn:      disCmd,
	})
}

func disCmd(_ *term.Terminal, arg []string) (res string, err error) {
	var buf bytes.Buffer

	addr, err := strconv.ParseUint(arg[0], 16, 32)

	if err != nil {
		return "", fmt.Errorf("invalid address, %v", err)
	}

	count, err := strconv.ParseUint(arg[1], 10, 32)

	if err != nil {
		return "", fmt.Errorf("invalid count, %v", err)
	}

	if (addr % 4) != 0 {
		return "", fmt.Errorf("only 32-bit aligned accesses are supported")
	}

	if count > maxInstructions {
		return "", fmt.Errorf("count argument must be <= %d", maxInstructions)
	}

	code := make([]byte, count*4)

	if err = memAccess(func() { Memory.Read(uint32(addr), code) }); err != nil {
		return
	}

	for off := 0; off < len(code); off += 4 {
		pc := uint32(addr) + uint32(off)
		word := code[off : off+4]

		inst, err := armasm.Decode(word, armasm.ModeARM)

		if err != nil {
			fmt.Fprintf(&buf, "%#.8x: % x\t?\n", pc, word)
			continue
		}

		fmt.Fprintf(&buf, "%#.8x: % x\t%s\n", pc, word, armasm.GNUSyntax(inst))
	}

	return buf.String(), nil
}
