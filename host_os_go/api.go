// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm
// +build tamago,arm

package main

import (
	"github.com/usbarmory/GoTEE/syscall"

	"github.com/usbarmory/GoTEE-addin/service"
)

// defined in api.s
func call(num uint32, arg uint32) (r0 uint32, r1 uint32)

func printSecure(c byte) {
	call(syscall.SYS_WRITE, uint32(c))
}

// exit yields back to the add-in kernel, it returns only if the host OS is
// entered again without reload.
func exit() {
	call(syscall.SYS_EXIT, 0)
}

// request returns the service the add-in kernel called through for.
func request() (service.Request, error) {
	return service.Decode(call(service.SYS_SERVICE, 0))
}
