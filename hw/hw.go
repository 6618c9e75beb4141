// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package hw implements detection of the hardware variant the kernel is
// running on.
package hw

import (
	"fmt"

	"github.com/usbarmory/GoTEE-addin/mem"
)

// OS families, fixed at build time by the add-in target.
const (
	FX = iota
	CG
	CP
)

// Processor families.
const (
	SH3 = iota
	SH4
)

// PVR family identifying SH4 (SH7305 and later) processors.
const pvrSH4 = 0x10

// Variant describes the detected hardware.
type Variant struct {
	// OS is the host OS family
	OS int
	// CPU is the processor family
	CPU int
	// PVR is the raw Processor Version Register value
	PVR uint32
	// PRR is the raw Product Register value (SH4 only)
	PRR uint32
}

// Detect reads the processor identification registers.
func Detect(m mem.Memory, os int) (v Variant) {
	v.OS = os
	v.PVR = mem.Read32(m, mem.PVR)

	if v.PVR>>24 == pvrSH4 {
		v.CPU = SH4
		v.PRR = mem.Read32(m, mem.PRR)
	} else {
		v.CPU = SH3
	}

	return
}

// OnchipRAM returns whether ILRAM, XRAM and YRAM are available.
func (v Variant) OnchipRAM() bool {
	return v.CPU != SH3
}

// PretouchROM returns whether ROM pages must be mapped preventively, as the
// dynamic TLB mechanism of early SH3 OS versions is not supported.
func (v Variant) PretouchROM() bool {
	return v.OS == FX && v.CPU == SH3
}

// ResidentGMapped returns whether permanently mapped code is already resident
// in on-chip memory, rather than copied to user RAM at boot.
func (v Variant) ResidentGMapped() bool {
	return v.OS == CP
}

// StaticData returns whether the data section must be copied at boot.
func (v Variant) StaticData() bool {
	return v.OS != CP
}

// MenuReturn returns whether the host OS supports returning to its main menu.
func (v Variant) MenuReturn() bool {
	return v.OS != CP
}

func (v Variant) String() string {
	os := map[int]string{FX: "fx", CG: "cg", CP: "cp"}[v.OS]
	cpu := map[int]string{SH3: "sh3", SH4: "sh4"}[v.CPU]

	return fmt.Sprintf("%s/%s pvr:%#.8x prr:%#.8x", os, cpu, v.PVR, v.PRR)
}
