// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm
// +build tamago,arm

package board

import (
	"sync"

	usbarmory "github.com/usbarmory/tamago/board/usbarmory/mk2"

	"github.com/usbarmory/GoTEE-addin/drivers"
)

var ledNames = []string{"blue", "white"}

// LED represents the board LEDs, the add-in world signals activity on the
// blue LED.
type LED struct {
	drivers.Base

	mu    sync.Mutex
	state [4]byte
}

// Set changes an LED state.
func (l *LED) Set(name string, on bool) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, n := range ledNames {
		if n != name {
			continue
		}

		if err = usbarmory.LED(name, on); err != nil {
			return
		}

		l.state[i] = 0

		if on {
			l.state[i] = 1
		}
	}

	return
}

// Save implements drivers.Driver.
func (l *LED) Save(buf []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	copy(buf, l.state[:])
}

// Restore implements drivers.Driver.
func (l *LED) Restore(buf []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	copy(l.state[:], buf)

	for i, name := range ledNames {
		usbarmory.LED(name, l.state[i] == 1)
	}
}

// Configure implements drivers.Driver.
func (l *LED) Configure() {
	l.Set("blue", true)
	l.Set("white", false)
}
