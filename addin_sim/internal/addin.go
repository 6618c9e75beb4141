// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/usbarmory/GoTEE-addin/boot"
	"github.com/usbarmory/GoTEE-addin/mem"
	"github.com/usbarmory/GoTEE-addin/util"
)

// Add-in peripheral configuration
var (
	AddinTCOR0 = uint32(0x00001000)
	AddinUSB   = uint32(0x5a5a0001)
)

const requestTimeout = 5 * time.Second

// ErrNotRunning is returned when requests are issued while the add-in is
// not running.
var ErrNotRunning = errors.New("add-in not running")

type request struct {
	fn   func()
	done chan struct{}
}

// Addin represents the simulated add-in program, it configures the machine
// peripherals and then serves requests until its exit.
type Addin struct {
	// Machine is the machine the add-in runs on
	Machine *Machine
	// Log receives add-in console output, util.BufferedStdoutLog is used
	// when nil
	Log func(c byte, addin bool)

	requests chan *request
	runs     int
	dtors    int
}

// NewAddin creates the add-in program for a machine.
func NewAddin(m *Machine) (a *Addin) {
	a = &Addin{
		Machine:  m,
		requests: make(chan *request),
	}

	m.Sequencer.Addin = a.Program()

	return
}

func (a *Addin) print(format string, args ...interface{}) {
	out := a.Log

	if out == nil {
		out = util.BufferedStdoutLog
	}

	s := fmt.Sprintf(format, args...)

	for i := 0; i < len(s); i++ {
		out(s[i], true)
	}
}

// Program returns the add-in constructors, entry point and destructors.
func (a *Addin) Program() *boot.Addin {
	return &boot.Addin{
		Ctors: []func(){a.init},
		Main:  a.main,
		Dtors: []func(){a.fini},
	}
}

func (a *Addin) init() {
	a.runs++
}

func (a *Addin) fini() {
	a.dtors++
	a.print("add-in destructors run:%d\n", a.runs)
}

// Runs returns the number of add-in runs.
func (a *Addin) Runs() int {
	return a.runs
}

// Destructors returns the number of destructor executions.
func (a *Addin) Destructors() int {
	return a.dtors
}

func (a *Addin) configure() {
	bus := a.Machine.RAM

	mem.Write32(bus, TCOR0, AddinTCOR0)
	bus.Write(TSTR, []byte{0x01})

	if usb := a.Machine.Peripheral("USB"); usb != nil {
		// transfers complete before the host world runs
		usb.Go(func() {
			time.Sleep(10 * time.Millisecond)
			mem.Write32(bus, USB_BASE, AddinUSB)
		})
	}
}

func (a *Addin) serve(req *request) {
	// closed even when the request terminates the add-in
	defer close(req.done)
	req.fn()
}

func (a *Addin) main() int {
	a.configure()
	a.print("add-in running (%s)\n", a.Machine.Sequencer.Variant())

	for req := range a.requests {
		a.serve(req)
	}

	return 0
}

// Run executes fn within the add-in, serialized with any other request.
func (a *Addin) Run(fn func()) (err error) {
	req := &request{
		fn:   fn,
		done: make(chan struct{}),
	}

	select {
	case a.requests <- req:
	case <-time.After(requestTimeout):
		return ErrNotRunning
	}

	<-req.done

	return
}

// Exit requests the add-in exit with the given code.
func (a *Addin) Exit(code int) error {
	return a.Run(func() {
		boot.RequestExit(code)
	})
}
