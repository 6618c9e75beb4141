// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/usbarmory/GoTEE-addin/boot"
	"github.com/usbarmory/GoTEE-addin/kernel"
	"github.com/usbarmory/GoTEE-addin/mem"
)

func init() {
	Add(Cmd{
		Name: "info",
		Help: "hardware and kernel information",
		Fn:   infoCmd,
	})

	Add(Cmd{
		Name: "world",
		Help: "show drivers and world buffer layout",
		Fn:   worldCmd,
	})

	Add(Cmd{
		Name: "sync",
		Help: "wait for drivers to complete ongoing operations",
		Fn:   syncCmd,
	})

	Add(Cmd{
		Name: "switch",
		Help: "round trip to the host world",
		Fn:   switchCmd,
	})

	Add(Cmd{
		Name: "osmenu",
		Help: "show the host main menu",
		Fn:   osmenuCmd,
	})

	Add(Cmd{
		Name:    "poweroff",
		Args:    1,
		Pattern: regexp.MustCompile(`^poweroff ?(logo)?$`),
		Syntax:  "(logo)?",
		Help:    "power off through the host",
		Fn:      poweroffCmd,
	})

	Add(Cmd{
		Name:    "onchip",
		Args:    1,
		Pattern: regexp.MustCompile(`^onchip ?(reinitialize|backup)?$`),
		Syntax:  "(reinitialize|backup)?",
		Help:    "show/change on-chip memory save mode",
		Fn:      onchipCmd,
	})

	Add(Cmd{
		Name:    "restart",
		Args:    1,
		Pattern: regexp.MustCompile(`^restart ?(on|off)?$`),
		Syntax:  "(on|off)?",
		Help:    "show/change add-in restart after exit",
		Fn:      restartCmd,
	})

	Add(Cmd{
		Name:    "halt",
		Args:    1,
		Pattern: regexp.MustCompile(`^halt (-?\d+)$`),
		Syntax:  "<exit code>",
		Help:    "request add-in exit",
		Fn:      haltCmd,
	})
}

type available interface {
	Available() int
}

func infoCmd(_ *term.Terminal, _ []string) (res string, err error) {
	var buf bytes.Buffer

	if Kernel == nil {
		return "", errors.New("kernel not available")
	}

	mode, _ := Kernel.OnchipSaveMode()

	fmt.Fprintf(&buf, "hardware ......: %s\n", Kernel.Variant)
	fmt.Fprintf(&buf, "installed .....: %v\n", Kernel.Installed())
	fmt.Fprintf(&buf, "on-chip mode ..: %s\n", mode)

	if h, ok := Kernel.Heap.(available); ok {
		fmt.Fprintf(&buf, "heap available : %s\n", humanize.IBytes(uint64(h.Available())))
	}

	if l := Kernel.Layout; l != nil {
		fmt.Fprintf(&buf, "rom ...........: %#.8x (%s)\n", l.ROM.Load, humanize.IBytes(uint64(l.ROM.Size)))
		fmt.Fprintf(&buf, "data ..........: %#.8x (%s)\n", l.Data.Run, humanize.IBytes(uint64(l.Data.Size)))
		fmt.Fprintf(&buf, "bss ...........: %#.8x (%s)\n", l.BSS.Run, humanize.IBytes(uint64(l.BSS.Size)))
		fmt.Fprintf(&buf, "stack top .....: %#.8x\n", l.StackTop)
	}

	if Sequencer != nil {
		args := Sequencer.Args()
		fmt.Fprintf(&buf, "restart .......: %v\n", Sequencer.Restart())
		fmt.Fprintf(&buf, "arguments .....: isappli:%d optnum:%d\n", args.IsAppli, args.OptNum)
	}

	return buf.String(), nil
}

func worldCmd(_ *term.Terminal, _ []string) (res string, err error) {
	var buf bytes.Buffer

	if Kernel == nil || Kernel.Drivers == nil {
		return "", errors.New("kernel not available")
	}

	reg := Kernel.Drivers
	w := Kernel.Addin

	t := tabwriter.NewWriter(&buf, 8, 8, 1, ' ', 0)
	fmt.Fprintf(t, "#\tname\tstate\toffset\tflags\n")

	for i := 0; i < reg.Count(); i++ {
		d := reg.Get(i)
		flags := d.Flags
		offset := "-"

		if Kernel.Installed() {
			flags = Kernel.Flags(i)
		}

		if w != nil {
			offset = fmt.Sprintf("%#x", w.Offset(i))
		}

		fmt.Fprintf(t, "%d\t%s\t%s\t%s\t%s\n", i, d.Name, humanize.IBytes(uint64(d.StateSize)), offset, flags)
	}

	t.Flush()

	if w != nil {
		fmt.Fprintf(&buf, "\nworld buffer size: %s (x2)", humanize.IBytes(uint64(w.Size())))
	}

	return buf.String(), nil
}

func syncCmd(_ *term.Terminal, _ []string) (res string, err error) {
	return "", run(func() error {
		Kernel.Sync()
		return nil
	})
}

func switchCmd(_ *term.Terminal, _ []string) (res string, err error) {
	return "", run(func() error {
		return Kernel.Switch(func() {})
	})
}

func osmenuCmd(_ *term.Terminal, _ []string) (res string, err error) {
	return "", run(Kernel.OSMenu)
}

func poweroffCmd(_ *term.Terminal, arg []string) (res string, err error) {
	logo := arg[0] == "logo"

	return "", run(func() error {
		return Kernel.Poweroff(logo)
	})
}

func onchipCmd(_ *term.Terminal, arg []string) (res string, err error) {
	if Kernel == nil {
		return "", errors.New("kernel not available")
	}

	switch arg[0] {
	case "reinitialize":
		err = run(func() error {
			return Kernel.SetOnchipSaveMode(kernel.ONCHIP_REINITIALIZE, nil)
		})
	case "backup":
		buf := make([]byte, mem.OnchipSize)

		err = run(func() error {
			return Kernel.SetOnchipSaveMode(kernel.ONCHIP_BACKUP, buf)
		})
	}

	if err != nil {
		return
	}

	mode, _ := Kernel.OnchipSaveMode()

	return fmt.Sprintf("on-chip save mode: %s", mode), nil
}

func restartCmd(_ *term.Terminal, arg []string) (res string, err error) {
	if Sequencer == nil {
		return "", errors.New("sequencer not available")
	}

	switch arg[0] {
	case "on":
		Sequencer.SetRestart(true)
	case "off":
		Sequencer.SetRestart(false)
	}

	return fmt.Sprintf("restart: %v", Sequencer.Restart()), nil
}

func haltCmd(_ *term.Terminal, arg []string) (res string, err error) {
	code, err := strconv.Atoi(arg[0])

	if err != nil {
		return "", fmt.Errorf("invalid exit code, %v", err)
	}

	// the exit request terminates the calling goroutine, which must
	// belong to the add-in
	if Run == nil {
		return "", errors.New("add-in not running")
	}

	return "", run(func() error {
		boot.RequestExit(code)
		return nil
	})
}
