// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package kernel_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/usbarmory/GoTEE-addin/drivers"
	"github.com/usbarmory/GoTEE-addin/hw"
	"github.com/usbarmory/GoTEE-addin/kernel"
	"github.com/usbarmory/GoTEE-addin/mem"
)

const (
	romStart  = mem.ROMStart
	ramStart  = 0x88000000
	ramSize   = 0x10000
	stackTop  = ramStart + 0x8000
	stateSize = 8
)

type recorder struct {
	events []string
}

func (r *recorder) add(name string, hook string) {
	r.events = append(r.events, name+"."+hook)
}

// filter returns the recorded events for the given hook, in order.
func (r *recorder) filter(hook string) (res []string) {
	for _, e := range r.events {
		if strings.HasSuffix(e, "."+hook) {
			res = append(res, e)
		}
	}

	return
}

func (r *recorder) reset() {
	r.events = nil
}

// fakeDriver models a peripheral with stateSize bytes of registers.
type fakeDriver struct {
	name string
	rec  *recorder

	regs     []byte
	power    bool
	powerCtl bool
}

func newFakeDriver(name string, rec *recorder) *fakeDriver {
	return &fakeDriver{
		name:  name,
		rec:   rec,
		regs:  make([]byte, stateSize),
		power: true,
	}
}

func (d *fakeDriver) Bind()          { d.rec.add(d.name, "bind") }
func (d *fakeDriver) Unbind()        { d.rec.add(d.name, "unbind") }
func (d *fakeDriver) ForeignBind()   { d.rec.add(d.name, "fbind") }
func (d *fakeDriver) ForeignUnbind() { d.rec.add(d.name, "funbind") }

func (d *fakeDriver) Save(buf []byte) {
	d.rec.add(d.name, "save")
	copy(buf, d.regs)
}

func (d *fakeDriver) Restore(buf []byte) {
	d.rec.add(d.name, "restore")
	copy(d.regs, buf)
}

func (d *fakeDriver) Powered() bool {
	if !d.powerCtl {
		return true
	}

	return d.power
}

func (d *fakeDriver) PowerOn() {
	d.rec.add(d.name, "poweron")
	d.power = true
}

func (d *fakeDriver) PowerOff() {
	d.rec.add(d.name, "poweroff")
	d.power = false
}

func (d *fakeDriver) Configure() {
	d.rec.add(d.name, "configure")

	for i := range d.regs {
		d.regs[i] = 0xc0
	}
}

type fakeCPU struct {
	disabled int
	enabled  int
	masked   bool
	vbr      uint32
}

func (c *fakeCPU) DisableInterrupts() {
	c.disabled++
	c.masked = true
}

func (c *fakeCPU) EnableInterrupts() {
	c.enabled++
	c.masked = false
}

func (c *fakeCPU) SetVBR(vbr uint32) (prev uint32) {
	prev = c.vbr
	c.vbr = vbr
	return
}

type fakeHost struct {
	vram     []byte
	poweroff []bool
	menu     int
}

func (h *fakeHost) PowerOff(showLogo bool) { h.poweroff = append(h.poweroff, showLogo) }
func (h *fakeHost) OSMenu()                { h.menu++ }
func (h *fakeHost) VRAM() []byte           { return h.vram }

func newRAM(t *testing.T) *mem.RAM {
	ram := &mem.RAM{}

	maps := []struct {
		name  string
		start uint32
		size  int
	}{
		{"rom", romStart, 0x10000},
		{"ram", ramStart, ramSize},
		{"ilram", mem.ILRAMStart, mem.ILRAMSize},
		{"xram", mem.XRAMStart, mem.XRAMSize},
		{"yram", mem.YRAMStart, mem.YRAMSize},
	}

	for _, m := range maps {
		_, err := ram.Map(m.name, m.start, m.size)
		require.NoError(t, err)
	}

	return ram
}

type testbed struct {
	k    *kernel.Kernel
	cpu  *fakeCPU
	host *fakeHost
	ram  *mem.RAM
	heap *mem.Arena
	rec  *recorder
	drv  []*fakeDriver
}

// newTestbed registers one fake driver per name, in order, all flagged with
// the given initial flags.
func newTestbed(t *testing.T, flags drivers.Flags, names ...string) *testbed {
	tb := &testbed{
		cpu:  &fakeCPU{},
		host: &fakeHost{vram: make([]byte, 1024)},
		ram:  newRAM(t),
		heap: mem.NewArena(0x1000),
		rec:  &recorder{},
	}

	reg := &drivers.Registry{}

	for _, name := range names {
		d := newFakeDriver(name, tb.rec)
		tb.drv = append(tb.drv, d)

		require.NoError(t, reg.Register(&drivers.Descriptor{
			Name:      name,
			StateSize: stateSize,
			Flags:     flags,
			Driver:    d,
		}))
	}

	tb.k = &kernel.Kernel{
		Drivers: reg,
		Heap:    tb.heap,
		CPU:     tb.cpu,
		Memory:  tb.ram,
		Layout:  &mem.Layout{StackTop: stackTop},
		Variant: hw.Variant{OS: hw.CG, CPU: hw.SH4},
		Host:    tb.host,
		VBR:     0x8c000000,
	}

	return tb
}

func cleanFlags() (f drivers.Flags) {
	f.Set(drivers.FLAG_CLEAN)
	return
}
