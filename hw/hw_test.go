// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package hw_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usbarmory/GoTEE-addin/hw"
	"github.com/usbarmory/GoTEE-addin/mem"
)

func TestDetect(t *testing.T) {
	ram := &mem.RAM{}

	_, err := ram.Map("regs", 0xff000000, 0x100)
	require.NoError(t, err)

	mem.Write32(ram, mem.PVR, 0x10300b00)
	mem.Write32(ram, mem.PRR, 0x00002c00)

	v := hw.Detect(ram, hw.CG)

	assert.Equal(t, hw.SH4, v.CPU)
	assert.Equal(t, uint32(0x2c00), v.PRR)
	assert.True(t, v.OnchipRAM())
	assert.False(t, v.PretouchROM())
	assert.True(t, v.MenuReturn())
	assert.Contains(t, v.String(), "cg/sh4")

	mem.Write32(ram, mem.PVR, 0x00000000)

	v = hw.Detect(ram, hw.FX)

	assert.Equal(t, hw.SH3, v.CPU)
	assert.Equal(t, uint32(0), v.PRR)
	assert.False(t, v.OnchipRAM())
	assert.True(t, v.PretouchROM())
}

func TestVariantCP(t *testing.T) {
	v := hw.Variant{OS: hw.CP, CPU: hw.SH4}

	assert.True(t, v.ResidentGMapped())
	assert.False(t, v.StaticData())
	assert.False(t, v.MenuReturn())
}
