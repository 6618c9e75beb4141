// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"runtime/debug"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/usbarmory/GoTEE-addin/drivers"
)

func init() {
	Add(Cmd{
		Name: "help",
		Help: "this help",
		Fn:   helpCmd,
	})

	Add(Cmd{
		Name:    "exit, quit",
		Args:    1,
		Pattern: regexp.MustCompile(`^(exit|quit)$`),
		Help:    "close session",
		Fn:      exitCmd,
	})

	Add(Cmd{
		Name: "stack",
		Help: "stack trace of the add-in goroutine",
		Fn:   stackCmd,
	})

	Add(Cmd{
		Name: "drivers",
		Help: "show drivers power and ownership flags",
		Fn:   driversCmd,
	})
}

func helpCmd(term *term.Terminal, _ []string) (string, error) {
	return Help(term), nil
}

func exitCmd(_ *term.Terminal, _ []string) (string, error) {
	return "logout", io.EOF
}

// stackCmd captures the stack from within the add-in, console goroutines are
// of no interest.
func stackCmd(_ *term.Terminal, _ []string) (res string, err error) {
	err = run(func() error {
		res = string(debug.Stack())
		return nil
	})

	return
}

func driversCmd(_ *term.Terminal, _ []string) (res string, err error) {
	var buf bytes.Buffer

	if Kernel == nil || Kernel.Drivers == nil {
		return "", errors.New("kernel not available")
	}

	reg := Kernel.Drivers
	powered := make([]bool, reg.Count())

	err = run(func() error {
		for i := range powered {
			powered[i] = reg.Get(i).Driver.Powered()
		}

		return nil
	})

	if err != nil {
		return
	}

	t := tabwriter.NewWriter(&buf, 8, 8, 1, ' ', 0)
	fmt.Fprintf(t, "#\tname\tpowered\tflags\n")

	for i := 0; i < reg.Count(); i++ {
		var flags drivers.Flags

		if Kernel.Installed() {
			flags = Kernel.Flags(i)
		} else {
			flags = reg.Get(i).Flags
		}

		fmt.Fprintf(t, "%d\t%s\t%v\t%s\n", i, reg.Get(i).Name, powered[i], flags)
	}

	t.Flush()

	return buf.String(), nil
}
