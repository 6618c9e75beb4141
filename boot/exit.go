// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package boot

import (
	"runtime"
	"sync"
)

// exitChannel delivers the add-in exit code to the sequencer, at most once
// per run.
type exitChannel struct {
	once sync.Once
	c    chan int
}

func newExitChannel() *exitChannel {
	return &exitChannel{
		c: make(chan int, 1),
	}
}

// send delivers the exit code, it returns false if a code was already
// delivered.
func (e *exitChannel) send(code int) (sent bool) {
	e.once.Do(func() {
		e.c <- code
		sent = true
	})

	return
}

var (
	mu      sync.Mutex
	current *exitChannel
)

func setCurrent(e *exitChannel) {
	mu.Lock()
	defer mu.Unlock()

	current = e
}

// RequestExit terminates the running add-in with the given exit code, it
// must be called from the add-in goroutine (its constructors or main
// function, or a function it runs on behalf of others) and never returns.
//
// When called from any other goroutine the exit code is recorded but the
// sequencer keeps waiting until the add-in main function returns, the calling
// goroutine is terminated regardless.
//
// Only the add-in destructors execute afterwards, before the kernel is
// uninstalled.
func RequestExit(code int) {
	mu.Lock()
	e := current
	mu.Unlock()

	if e != nil {
		e.send(code)
	}

	runtime.Goexit()
}
