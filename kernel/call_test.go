// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package kernel_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usbarmory/GoTEE-addin/hw"
	"github.com/usbarmory/GoTEE-addin/kernel"
	"github.com/usbarmory/GoTEE-addin/mem"
)

var windows = []struct {
	start uint32
	size  int
}{
	{mem.ILRAMStart, mem.ILRAMSize},
	{mem.XRAMStart, mem.XRAMSize},
	{mem.YRAMStart, mem.YRAMSize},
}

func fillOnchip(m mem.Memory, seed byte) {
	for _, w := range windows {
		buf := make([]byte, w.size)

		for i := range buf {
			buf[i] = seed + byte(i*7)
		}

		m.Write(w.start, buf)
	}
}

func readOnchip(m mem.Memory) (res [][]byte) {
	for _, w := range windows {
		buf := make([]byte, w.size)
		m.Read(w.start, buf)
		res = append(res, buf)
	}

	return
}

func TestWorldSwitchResult(t *testing.T) {
	tb := newTestbed(t, cleanFlags(), "A")
	require.NoError(t, tb.k.Install())

	rc, err := tb.k.WorldSwitch(func() int {
		return 42
	})

	require.NoError(t, err)
	assert.Equal(t, 42, rc)
	assert.Equal(t, uint32(mem.CANARY), mem.Read32(tb.ram, stackTop))

	// the add-in world is active again
	assert.Equal(t, []string{"A.bind", "A.configure", "A.bind"}, filterAny(tb.rec.events, "bind", "configure"))
}

func TestWorldSwitchHostWorldActive(t *testing.T) {
	tb := newTestbed(t, cleanFlags(), "A")

	copy(tb.drv[0].regs, "hostregs")
	require.NoError(t, tb.k.Install())

	var seen []byte

	err := tb.k.Switch(func() {
		seen = append([]byte{}, tb.drv[0].regs...)
	})

	require.NoError(t, err)
	assert.Equal(t, []byte("hostregs"), seen)
	assert.Equal(t, bytes.Repeat([]byte{0xc0}, stateSize), tb.drv[0].regs)
}

func TestOnchipBackup(t *testing.T) {
	tb := newTestbed(t, cleanFlags(), "A")
	require.NoError(t, tb.k.Install())

	buf := make([]byte, mem.OnchipSize)
	require.NoError(t, tb.k.SetOnchipSaveMode(kernel.ONCHIP_BACKUP, buf))

	fillOnchip(tb.ram, 0x31)
	before := readOnchip(tb.ram)

	_, err := tb.k.WorldSwitch(func() int { return 0 })
	require.NoError(t, err)

	assert.Equal(t, before, readOnchip(tb.ram))
	assert.Equal(t, bytes.Join(before, nil), buf)

	// host world changes are reverted
	_, err = tb.k.WorldSwitch(func() int {
		fillOnchip(tb.ram, 0xee)
		return 0
	})
	require.NoError(t, err)

	assert.Equal(t, before, readOnchip(tb.ram))
}

func TestOnchipReinitialize(t *testing.T) {
	tb := newTestbed(t, cleanFlags(), "A")

	ilram := bytes.Repeat([]byte{0x11}, 0x20)
	xyram := bytes.Repeat([]byte{0x22}, 0x40)

	tb.ram.Write(romStart, ilram)
	tb.ram.Write(romStart+0x100, xyram)

	tb.k.Layout.ILRAM = mem.Region{Load: romStart, Size: 0x20, Run: mem.ILRAMStart}
	tb.k.Layout.XYRAM = mem.Region{Load: romStart + 0x100, Size: 0x40, Run: mem.XRAMStart}

	require.NoError(t, tb.k.Install())
	require.NoError(t, tb.k.SetOnchipSaveMode(kernel.ONCHIP_REINITIALIZE, nil))

	fillOnchip(tb.ram, 0x55)

	_, err := tb.k.WorldSwitch(func() int {
		fillOnchip(tb.ram, 0xee)
		return 0
	})
	require.NoError(t, err)

	res := readOnchip(tb.ram)

	assert.Equal(t, ilram, res[0][:0x20])
	assert.Equal(t, make([]byte, mem.ILRAMSize-0x20), res[0][0x20:])
	assert.Equal(t, xyram, res[1][:0x40])
	assert.Equal(t, make([]byte, mem.XRAMSize-0x40), res[1][0x40:])
	assert.Equal(t, make([]byte, mem.YRAMSize), res[2])
}

func TestOnchipSH3(t *testing.T) {
	tb := newTestbed(t, cleanFlags(), "A")
	tb.k.Variant = hw.Variant{OS: hw.FX, CPU: hw.SH3}

	// no on-chip windows on SH3
	tb.k.Memory = &mem.RAM{}
	tb.k.Layout.StackTop = 0

	require.NoError(t, tb.k.Install())
	require.NoError(t, tb.k.SetOnchipSaveMode(kernel.ONCHIP_BACKUP, make([]byte, mem.OnchipSize)))

	_, err := tb.k.WorldSwitch(func() int { return 0 })
	assert.NoError(t, err)

	require.NoError(t, tb.k.SetOnchipSaveMode(kernel.ONCHIP_REINITIALIZE, nil))

	_, err = tb.k.WorldSwitch(func() int { return 0 })
	assert.NoError(t, err)
}

func TestOnchipSaveMode(t *testing.T) {
	tb := newTestbed(t, cleanFlags())

	mode, buf := tb.k.OnchipSaveMode()
	assert.Equal(t, kernel.ONCHIP_REINITIALIZE, mode)
	assert.Nil(t, buf)

	assert.Error(t, tb.k.SetOnchipSaveMode(kernel.ONCHIP_BACKUP, make([]byte, 1024)))
	assert.Error(t, tb.k.SetOnchipSaveMode(kernel.OnchipMode(7), nil))

	backup := make([]byte, mem.OnchipSize)
	require.NoError(t, tb.k.SetOnchipSaveMode(kernel.ONCHIP_BACKUP, backup))

	mode, buf = tb.k.OnchipSaveMode()
	assert.Equal(t, kernel.ONCHIP_BACKUP, mode)
	assert.Len(t, buf, mem.OnchipSize)
	assert.Equal(t, "backup", mode.String())
}

func TestStackOverflow(t *testing.T) {
	tb := newTestbed(t, cleanFlags(), "A", "B")

	var codes []uint32
	tb.k.Panic = func(code uint32) {
		codes = append(codes, code)
	}

	require.NoError(t, tb.k.Install())
	tb.rec.reset()

	_, err := tb.k.WorldSwitch(func() int {
		mem.Write32(tb.ram, stackTop, 0xdeadbeef)
		return 0
	})

	assert.Equal(t, kernel.ErrStackOverflow, err)
	assert.Equal(t, []uint32{kernel.PANIC_STACK_OVERFLOW}, codes)

	// no switch in after the fault
	assert.Empty(t, tb.rec.filter("funbind"))
	assert.Empty(t, tb.rec.filter("bind"))
	assert.Len(t, tb.rec.filter("unbind"), 2)
}

func TestStackOverflowDefaultPanic(t *testing.T) {
	tb := newTestbed(t, cleanFlags(), "A")
	require.NoError(t, tb.k.Install())

	assert.Panics(t, func() {
		tb.k.WorldSwitch(func() int {
			mem.Write32(tb.ram, stackTop, 0)
			return 0
		})
	})
}

func TestWorldSwitchReentry(t *testing.T) {
	tb := newTestbed(t, cleanFlags(), "A")
	require.NoError(t, tb.k.Install())

	var inner error

	_, err := tb.k.WorldSwitch(func() int {
		_, inner = tb.k.WorldSwitch(func() int { return 1 })
		return 0
	})

	assert.NoError(t, err)
	assert.Equal(t, kernel.ErrBusy, inner)

	// the guard is released after the call
	_, err = tb.k.WorldSwitch(func() int { return 0 })
	assert.NoError(t, err)
}

func TestPoweroff(t *testing.T) {
	tb := newTestbed(t, cleanFlags(), "A")
	tb.k.Variant = hw.Variant{OS: hw.FX, CPU: hw.SH4}
	tb.k.VRAM = bytes.Repeat([]byte{0x5a}, 1024)

	require.NoError(t, tb.k.Install())
	require.NoError(t, tb.k.Poweroff(true))

	assert.Equal(t, []bool{true}, tb.host.poweroff)
	assert.Equal(t, tb.k.VRAM, tb.host.vram)
	assert.Len(t, tb.rec.filter("unbind"), 1)

	tb.k.Variant.OS = hw.CP
	require.NoError(t, tb.k.Poweroff(false))
	assert.Len(t, tb.host.poweroff, 1)
}

func TestOSMenu(t *testing.T) {
	tb := newTestbed(t, cleanFlags(), "A")
	require.NoError(t, tb.k.Install())

	require.NoError(t, tb.k.OSMenu())
	assert.Equal(t, 1, tb.host.menu)

	tb.k.Variant.OS = hw.CP
	require.NoError(t, tb.k.OSMenu())
	assert.Equal(t, 1, tb.host.menu)
}

func TestCopyVRAMCG(t *testing.T) {
	tb := newTestbed(t, cleanFlags())

	tb.host.vram = make([]byte, 384*216*2)
	tb.k.VRAM = make([]byte, 396*224*2)

	for i := range tb.k.VRAM {
		tb.k.VRAM[i] = byte(i % 251)
	}

	tb.k.CopyVRAM()

	for _, y := range []int{0, 5, 215} {
		src := tb.k.VRAM[(y*396+6)*2 : (y*396+6+384)*2]
		dst := tb.host.vram[y*384*2 : (y+1)*384*2]

		assert.Equal(t, src, dst, "row %d", y)
	}
}
