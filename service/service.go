// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package service defines the host world services the add-in kernel calls
// through to, and their encoding as host OS system call results.
package service

import (
	"fmt"
)

// SYS_SERVICE is issued by the host OS on entry, the kernel returns the
// requested service in R0 and its argument in R1. It is numbered away from
// the GoTEE system calls.
const SYS_SERVICE = 0x100

// Host services
const (
	MENU     = 1
	POWEROFF = 2
)

// Request represents a host service request.
type Request struct {
	// ID is the service (MENU, POWEROFF)
	ID uint32
	// Logo requests the power off logo
	Logo bool
}

// Menu returns a main menu request.
func Menu() Request {
	return Request{ID: MENU}
}

// PowerOff returns a power off request.
func PowerOff(showLogo bool) Request {
	return Request{ID: POWEROFF, Logo: showLogo}
}

// Encode returns the request register values.
func (r Request) Encode() (r0 uint32, r1 uint32) {
	r0 = r.ID

	if r.Logo {
		r1 = 1
	}

	return
}

// Decode parses request register values.
func Decode(r0 uint32, r1 uint32) (r Request, err error) {
	switch r0 {
	case MENU:
		if r1 != 0 {
			return r, fmt.Errorf("invalid main menu argument %#x", r1)
		}
	case POWEROFF:
		if r1 > 1 {
			return r, fmt.Errorf("invalid power off argument %#x", r1)
		}
	default:
		return r, fmt.Errorf("invalid host service %#x", r0)
	}

	return Request{ID: r0, Logo: r1 == 1}, nil
}

func (r Request) String() string {
	switch r.ID {
	case MENU:
		return "main menu"
	case POWEROFF:
		return fmt.Sprintf("power off logo:%v", r.Logo)
	default:
		return fmt.Sprintf("service %#x", r.ID)
	}
}
