// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"log"
	"net"
	"runtime"
	"sync"

	"github.com/mattn/go-tty"
	"golang.org/x/term"

	"github.com/usbarmory/GoTEE-addin/cmd"
	"github.com/usbarmory/GoTEE-addin/util"
)

var banner = fmt.Sprintf("%s/%s (%s) • add-in kernel simulator", runtime.GOOS, runtime.GOARCH, runtime.Version())

var (
	ssh *util.Console

	mu    sync.Mutex
	local *term.Terminal
)

// terminal returns the local terminal, or the active SSH shell one.
func terminal() *term.Terminal {
	mu.Lock()
	t := local
	mu.Unlock()

	if t == nil && ssh != nil {
		t = ssh.Terminal()
	}

	return t
}

func setLocal(t *term.Terminal) {
	mu.Lock()
	defer mu.Unlock()

	local = t
}

// logHandler routes world console output to the active terminal, to avoid
// interleaved logs.
func logHandler(c byte, addin bool) {
	if t := terminal(); t != nil {
		util.BufferedTermLog(c, addin, t)
	} else {
		util.BufferedStdoutLog(c, addin)
	}
}

func startSSH(addr string) (err error) {
	listener, err := net.Listen("tcp", addr)

	if err != nil {
		return fmt.Errorf("could not initialize SSH listener, %v", err)
	}

	ssh = &util.Console{
		Banner:   banner,
		Help:     cmd.Help,
		Handler:  cmd.Handle,
		Listener: listener,
	}

	return ssh.Start()
}

type ttyReadWriter struct {
	*tty.TTY
}

func (t ttyReadWriter) Read(p []byte) (int, error) {
	return t.Input().Read(p)
}

func (t ttyReadWriter) Write(p []byte) (int, error) {
	return t.Output().Write(p)
}

// startTTY serves the console on the controlling terminal, or on the given
// device path.
func startTTY(path string) (err error) {
	var t *tty.TTY

	if path == "" {
		t, err = tty.Open()
	} else {
		t, err = tty.OpenDevice(path)
	}

	if err != nil {
		return fmt.Errorf("could not open terminal, %v", err)
	}

	restore, err := t.Raw()

	if err != nil {
		t.Close()
		return fmt.Errorf("could not set terminal raw mode, %v", err)
	}

	console := term.NewTerminal(ttyReadWriter{t}, "")
	console.SetPrompt(string(console.Escape.Red) + "> " + string(console.Escape.Reset))

	fmt.Fprintf(console, "%s\n", banner)
	setLocal(console)

	go func() {
		defer t.Close()
		defer restore()

		for {
			line, err := console.ReadLine()

			if err == io.EOF {
				break
			}

			if err != nil {
				log.Printf("readline error: %v", err)
				continue
			}

			err = cmd.Handle(console, line)

			if err == io.EOF {
				break
			}

			if err != nil {
				fmt.Fprintf(console, "error: %v\n", err)
			}
		}

		setLocal(nil)
	}()

	return
}
