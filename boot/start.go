// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package boot implements the add-in entry point: hardware detection,
// section relocation, kernel installation and the add-in run cycle.
package boot

import (
	"errors"
	"fmt"
	"log"

	"github.com/usbarmory/GoTEE-addin/hw"
	"github.com/usbarmory/GoTEE-addin/kernel"
	"github.com/usbarmory/GoTEE-addin/mem"
)

// EXIT_FAULT is returned by Start when the boot sequence fails and the
// kernel panic handler returns. Faults are tracked separately from exit
// codes, an add-in returning the same value is still restarted.
const EXIT_FAULT = -1

// Args represents the host OS entry point arguments.
type Args struct {
	// IsAppli is non-zero when started from the main menu
	IsAppli int
	// OptNum is the option number
	OptNum int
}

// Addin represents the add-in program.
type Addin struct {
	// Ctors are the static constructors
	Ctors []func()
	// Main is the add-in entry function, its return value is the exit
	// code
	Main func() int
	// Dtors are the static destructors
	Dtors []func()
}

// Sequencer represents the add-in boot sequence.
type Sequencer struct {
	// Kernel is the kernel to install, its Memory and Layout are set by
	// the sequencer
	Kernel *kernel.Kernel
	// Memory is the address space
	Memory mem.Memory
	// Layout is the add-in image layout
	Layout *mem.Layout
	// OS is the host OS family (hw.FX, hw.CG, hw.CP)
	OS int
	// URAM is the user RAM base where permanently mapped code is placed
	URAM uint32
	// Addin is the program to run
	Addin *Addin

	args      Args
	restart   bool
	relocated bool
	variant   hw.Variant
}

// Args returns the entry point arguments of the current run.
func (s *Sequencer) Args() Args {
	return s.args
}

// Variant returns the detected hardware.
func (s *Sequencer) Variant() hw.Variant {
	return s.variant
}

// SetRestart sets whether the add-in restarts through the host main menu,
// rather than returning, after exiting. It has no effect on variants without
// main menu return.
func (s *Sequencer) SetRestart(restart bool) {
	s.restart = restart && s.OS != hw.CP
}

// Restart returns whether the add-in restarts after exiting.
func (s *Sequencer) Restart() bool {
	return s.restart
}

// Start runs the add-in until it exits without restart request, returning
// its exit code, or EXIT_FAULT when the boot sequence fails.
func (s *Sequencer) Start(args Args) (rc int) {
	for {
		var err error

		if rc, err = s.run(args); err != nil {
			log.Printf("boot %v", err)
			s.Kernel.Fault(kernel.PANIC_BOOT)

			return EXIT_FAULT
		}

		if !s.restart || !s.variant.MenuReturn() {
			break
		}

		log.Printf("boot restarting through host menu")

		// the kernel is not installed, call the host directly
		if s.Kernel.Host != nil {
			s.Kernel.Host.OSMenu()
		}
	}

	return
}

func (s *Sequencer) load() (err error) {
	m := s.Memory
	l := s.Layout

	if l == nil {
		return errors.New("missing add-in layout")
	}

	if err = l.Validate(); err != nil {
		return
	}

	if s.variant.PretouchROM() {
		pages := mem.Prime(m, l.ROM.Size)
		log.Printf("boot primed %d ROM pages", pages)
	}

	// data and bss first, for static variables to be initialized
	if s.variant.StaticData() {
		l.Data.Copy(m)
	}

	l.BSS.Clear(m)

	s.Kernel.LoadOnchipSections()

	if !s.variant.ResidentGMapped() {
		l.GMapped.CopyTo(m, s.URAM)

		if !s.relocated {
			l.Reloc.Relocate(m, s.URAM)
			s.relocated = true
		}
	}

	return
}

func (s *Sequencer) run(args Args) (rc int, err error) {
	s.args = args
	s.variant = hw.Detect(s.Memory, s.OS)

	k := s.Kernel
	k.Memory = s.Memory
	k.Layout = s.Layout
	k.Variant = s.variant

	log.Printf("boot detected %s", s.variant)

	if err = s.load(); err != nil {
		return 0, fmt.Errorf("could not load sections, %v", err)
	}

	if err = k.Install(); err != nil {
		return 0, fmt.Errorf("could not install kernel, %v", err)
	}

	a := s.Addin

	if a == nil {
		a = &Addin{}
	}

	exit := newExitChannel()
	setCurrent(exit)
	defer setCurrent(nil)

	done := make(chan struct{})

	go func(a *Addin) {
		defer close(done)

		for _, ctor := range a.Ctors {
			ctor()
		}

		rc := 0

		if a.Main != nil {
			rc = a.Main()
		}

		exit.send(rc)
	}(a)

	rc = <-exit.c

	// an exit requested by another goroutine still waits for the add-in
	// to return
	<-done

	for _, dtor := range a.Dtors {
		dtor()
	}

	k.Uninstall()

	log.Printf("boot add-in exited rc:%d", rc)

	return
}
