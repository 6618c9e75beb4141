// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm
// +build tamago,arm

// Host OS stand-in for the USB armory add-in kernel board, it runs in the
// NonSecure World whenever the add-in calls into its host.
package main

import (
	"log"
	"os"
	"runtime"
	_ "unsafe"

	"github.com/usbarmory/tamago/soc/imx6"

	"github.com/usbarmory/GoTEE-addin/mem"
	"github.com/usbarmory/GoTEE-addin/service"
)

//go:linkname ramStart runtime.ramStart
var ramStart uint32 = mem.NonSecureStart

//go:linkname ramSize runtime.ramSize
var ramSize uint32 = mem.NonSecureSize

//go:linkname hwinit runtime.hwinit
func hwinit() {
	imx6.Init()
}

//go:linkname printk runtime.printk
func printk(c byte) {
	printSecure(c)
}

// serve performs the host side of a service, the add-in screen was copied
// to host video memory by the kernel beforehand.
func serve(req service.Request) {
	switch req.ID {
	case service.MENU:
		log.Printf("host OS showing main menu, add-in suspended")
	case service.POWEROFF:
		if req.Logo {
			log.Printf("host OS showing power off logo")
		}

		log.Printf("host OS powering off, add-in resumes at power on")
	}
}

func init() {
	log.SetFlags(log.Ltime)
	log.SetOutput(os.Stdout)
}

func main() {
	log.Printf("%s/%s (%s) • host OS (NonSecure World)", runtime.GOOS, runtime.GOARCH, runtime.Version())

	req, err := request()

	if err != nil {
		log.Printf("host OS could not serve request, %v", err)
	} else {
		serve(req)
	}

	// the add-in world is restored by the monitor once we yield
	exit()

	// this should be unreachable
	log.Printf("host OS says goodbye")
}
