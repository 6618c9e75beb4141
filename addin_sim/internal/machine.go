// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package sim implements a simulated calculator to run the add-in kernel on
// a development host.
package sim

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"log"

	"github.com/usbarmory/GoTEE-addin/boot"
	"github.com/usbarmory/GoTEE-addin/drivers"
	"github.com/usbarmory/GoTEE-addin/hw"
	"github.com/usbarmory/GoTEE-addin/kernel"
	"github.com/usbarmory/GoTEE-addin/mem"
)

// Peripheral register windows
const (
	CPG_BASE   = 0xa4150000
	RTC_BASE   = 0xa413fec0
	TMU_BASE   = 0xa4490000
	KEYSC_BASE = 0xa44b0000
	USB_BASE   = 0xa4d80000
	CCN_BASE   = 0xff000000
)

// Memory map
const (
	ROMSize   = 0x00200000
	RAMStart  = 0x88000000
	RAMSize   = 0x00080000
	URAMStart = 0x08100000
	URAMSize  = 0x00080000

	// VBR is the add-in kernel exception vector base
	VBR = RAMStart
	// HostVBR is the host OS exception vector base
	HostVBR = 0x80020000
)

// Processor identification register values
const (
	PVR_SH3 = 0x00000400
	PVR_SH4 = 0x10300b00
	PRR_SH4 = 0x00002c00
)

const defaultHeapSize = 0x4000

// VRAM sizes
const (
	fxVRAMSize   = 1024
	cgVRAMSize   = 396 * 224 * 2
	cgScreenSize = 384 * 216 * 2
)

// Config represents the simulated machine configuration.
type Config struct {
	// OS is the host OS family (hw.FX, hw.CG, hw.CP)
	OS int
	// CPU is the processor family (hw.SH3, hw.SH4)
	CPU int
	// ELF is an optional add-in image, a built-in test image is used
	// when empty
	ELF []byte
	// HeapSize is the kernel heap size
	HeapSize int
}

// Machine represents a simulated calculator running the add-in kernel.
type Machine struct {
	RAM         *mem.RAM
	CPU         *CPU
	Host        *HostOS
	Kernel      *kernel.Kernel
	Sequencer   *boot.Sequencer
	Peripherals []*Peripheral
}

func flags(pos ...int) (f drivers.Flags) {
	for _, p := range pos {
		f.Set(p)
	}

	return
}

func (m *Machine) mapMemory(conf *Config) (err error) {
	maps := []struct {
		name  string
		start uint32
		size  int
	}{
		{"rom", mem.ROMStart, ROMSize},
		{"uram", URAMStart, URAMSize},
		{"ram", RAMStart, RAMSize},
		{"cpg", CPG_BASE, 0x100},
		{"rtc", RTC_BASE, 0x40},
		{"tmu", TMU_BASE, 0x40},
		{"keysc", KEYSC_BASE, 0x20},
		{"usb", USB_BASE, 0x100},
		{"ccn", CCN_BASE, 0x100},
	}

	if conf.CPU == hw.SH4 {
		maps = append(maps, []struct {
			name  string
			start uint32
			size  int
		}{
			{"ilram", mem.ILRAMStart, mem.ILRAMSize},
			{"xram", mem.XRAMStart, mem.XRAMSize},
			{"yram", mem.YRAMStart, mem.YRAMSize},
		}...)
	}

	for _, w := range maps {
		if _, err = m.RAM.Map(w.name, w.start, w.size); err != nil {
			return
		}
	}

	if conf.CPU == hw.SH4 {
		mem.Write32(m.RAM, mem.PVR, PVR_SH4)
		mem.Write32(m.RAM, mem.PRR, PRR_SH4)
	} else {
		mem.Write32(m.RAM, mem.PVR, PVR_SH3)
	}

	return
}

func (m *Machine) addPeripherals() {
	rtc := make([]byte, 0x20)
	rtc[0x1c] = 0x09

	keysc := make([]byte, 0x10)
	keysc[0x00] = 0x31

	m.Peripherals = []*Peripheral{
		{Name: "CPG", Base: CPG_BASE, MSTP: -1, Flags: flags(drivers.FLAG_SHARED)},
		{Name: "TMU", Base: TMU_BASE + 0x04, Size: 0x28, MSTP: 15, Flags: flags(drivers.FLAG_CLEAN), Defaults: make([]byte, 0x28)},
		{Name: "RTC", Base: RTC_BASE, Size: 0x20, MSTP: -1, Flags: flags(drivers.FLAG_CLEAN), Defaults: rtc},
		{Name: "KEYSC", Base: KEYSC_BASE, Size: 0x10, MSTP: 14, Flags: flags(drivers.FLAG_CLEAN), Defaults: keysc},
		{Name: "USB", Base: USB_BASE, Size: 0x20, MSTP: 11},
	}

	for _, p := range m.Peripherals {
		p.Bus = m.RAM
	}
}

// Peripheral returns the named peripheral, or nil if not found.
func (m *Machine) Peripheral(name string) *Peripheral {
	for _, p := range m.Peripherals {
		if p.Name == name {
			return p
		}
	}

	return nil
}

func loadELF(m mem.Memory, buf []byte) (err error) {
	f, err := elf.NewFile(bytes.NewReader(buf))

	if err != nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid segment, %v", r)
		}
	}()

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Filesz == 0 {
			continue
		}

		seg := make([]byte, prog.Filesz)

		if _, err = prog.ReadAt(seg, 0); err != nil {
			return
		}

		m.Write(uint32(prog.Paddr), seg)
	}

	return
}

// NewMachine creates a simulated calculator with the host OS booted and the
// add-in image loaded.
func NewMachine(conf *Config) (m *Machine, err error) {
	var layout *mem.Layout

	if conf.OS == hw.CP && conf.CPU != hw.SH4 {
		return nil, errors.New("fx-CP models are SH4 only")
	}

	m = &Machine{
		RAM: &mem.RAM{},
		CPU: &CPU{},
	}

	if err = m.mapMemory(conf); err != nil {
		return nil, fmt.Errorf("could not map memory, %v", err)
	}

	if len(conf.ELF) > 0 {
		if layout, err = mem.LayoutFromELF(conf.ELF); err != nil {
			return nil, fmt.Errorf("could not parse add-in image, %v", err)
		}

		if err = loadELF(m.RAM, conf.ELF); err != nil {
			return nil, fmt.Errorf("could not load add-in image, %v", err)
		}
	} else {
		layout = TestImage(m.RAM, conf.CPU == hw.SH4)
	}

	m.addPeripherals()

	reg := &drivers.Registry{}

	for _, p := range m.Peripherals {
		if err = reg.Register(p.Descriptor()); err != nil {
			return nil, fmt.Errorf("could not register %s driver, %v", p.Name, err)
		}
	}

	heapSize := conf.HeapSize

	if heapSize == 0 {
		heapSize = defaultHeapSize
	}

	m.Host = &HostOS{
		Bus: m.RAM,
		CPU: m.CPU,
	}

	var vram []byte

	switch conf.OS {
	case hw.FX:
		m.Host.Screen = make([]byte, fxVRAMSize)
		vram = make([]byte, fxVRAMSize)
	case hw.CG:
		m.Host.Screen = make([]byte, cgScreenSize)
		vram = make([]byte, cgVRAMSize)
	}

	m.Host.Boot()

	m.Kernel = &kernel.Kernel{
		Drivers: reg,
		Heap:    mem.NewArena(heapSize),
		CPU:     m.CPU,
		Host:    m.Host,
		VBR:     VBR,
		VRAM:    vram,
		Panic:   m.panic,
	}

	m.Sequencer = &boot.Sequencer{
		Kernel: m.Kernel,
		Memory: m.RAM,
		Layout: layout,
		OS:     conf.OS,
		URAM:   URAMStart,
	}

	return
}

func (m *Machine) panic(code uint32) {
	log.Printf("sim kernel panic %#x, halting add-in", code)
}
