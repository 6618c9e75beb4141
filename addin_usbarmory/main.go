// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm
// +build tamago,arm

package main

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"time"
	_ "unsafe"

	"golang.org/x/term"

	usbarmory "github.com/usbarmory/tamago/board/usbarmory/mk2"
	"github.com/usbarmory/tamago/dma"
	"github.com/usbarmory/tamago/soc/imx6"
	"github.com/usbarmory/tamago/soc/imx6/usb"

	"github.com/usbarmory/imx-usbnet"

	"github.com/usbarmory/GoTEE-addin/boot"
	"github.com/usbarmory/GoTEE-addin/cmd"
	"github.com/usbarmory/GoTEE-addin/mem"
	"github.com/usbarmory/GoTEE-addin/util"

	board "github.com/usbarmory/GoTEE-addin/addin_usbarmory/internal"
)

const (
	sshPort   = 22
	deviceIP  = "10.0.0.1"
	deviceMAC = "1a:55:89:a2:69:41"
	hostMAC   = "1a:55:89:a2:69:42"
)

//go:linkname ramStart runtime.ramStart
var ramStart uint32 = mem.SecureStart

//go:linkname ramSize runtime.ramSize
var ramSize uint32 = mem.SecureSize

var ssh *util.Console

func init() {
	log.SetFlags(log.Ltime)
	log.SetOutput(os.Stdout)

	if imx6.Native {
		if err := imx6.SetARMFreq(900); err != nil {
			panic(fmt.Sprintf("WARNING: error setting ARM frequency: %v", err))
		}

		debugConsole, _ := usbarmory.DetectDebugAccessory(250 * time.Millisecond)
		<-debugConsole
	}

	// Move DMA region to prevent NonSecure access, alternatively
	// iRAM/OCRAM (default DMA region) can be locked down on its own (as it
	// is outside TZASC control).
	dma.Init(mem.SecureDMAStart, mem.SecureDMASize)

	log.Printf("%s/%s (%s) • add-in kernel (Secure World)", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

// addin blinks the white LED and serves console requests until its exit.
type addin struct {
	b        *board.Board
	requests chan func()
}

func (a *addin) main() int {
	for fn := range a.requests {
		func() {
			a.b.LED.Set("white", true)
			defer a.b.LED.Set("white", false)

			fn()
		}()
	}

	return 0
}

func (a *addin) run(fn func()) error {
	done := make(chan struct{})

	a.requests <- func() {
		defer close(done)
		fn()
	}

	<-done

	return nil
}

func startConsole() {
	gonet, err := usbnet.Init(deviceIP, deviceMAC, hostMAC, 1)

	if err != nil {
		log.Fatalf("could not initialize USB networking, %v", err)
	}

	gonet.EnableICMP()

	listener, err := gonet.ListenerTCP4(sshPort)

	if err != nil {
		log.Fatalf("could not initialize SSH listener, %v", err)
	}

	ssh = &util.Console{
		Banner:   fmt.Sprintf("%s/%s (%s) • add-in kernel (Secure World)", runtime.GOOS, runtime.GOARCH, runtime.Version()),
		Help:     cmd.Help,
		Handler:  cmd.Handle,
		Listener: listener,
	}

	if err = ssh.Start(); err != nil {
		log.Fatalf("could not initialize SSH server, %v", err)
	}

	usb.USB1.Init()
	usb.USB1.DeviceMode()
	usb.USB1.Reset()

	// never returns
	usb.USB1.Start(gonet.Device())
}

func main() {
	defer log.Printf("add-in kernel says goodbye")

	b, err := board.New()

	if err != nil {
		log.Fatal(err)
	}

	b.Host.Term = func() *term.Terminal {
		if ssh == nil {
			return nil
		}

		return ssh.Terminal()
	}

	a := &addin{
		b:        b,
		requests: make(chan func()),
	}

	b.Sequencer.Addin = &boot.Addin{
		Main: a.main,
	}

	b.Sequencer.SetRestart(true)

	cmd.Kernel = b.Kernel
	cmd.Sequencer = b.Sequencer
	cmd.Memory = b.Bus
	cmd.Run = a.run

	if imx6.Native {
		go startConsole()
	}

	rc := b.Sequencer.Start(boot.Args{IsAppli: 1})

	log.Printf("add-in kernel returned %d", rc)
}
