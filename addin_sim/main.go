// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/usbarmory/GoTEE-addin/boot"
	"github.com/usbarmory/GoTEE-addin/cmd"
	"github.com/usbarmory/GoTEE-addin/hw"
	"github.com/usbarmory/GoTEE-addin/kernel"
	"github.com/usbarmory/GoTEE-addin/mem"

	sim "github.com/usbarmory/GoTEE-addin/addin_sim/internal"
)

var (
	osFlag     = flag.String("os", "cg", "host OS family (fx, cg, cp)")
	cpuFlag    = flag.String("cpu", "sh4", "processor family (sh3, sh4)")
	elfFlag    = flag.String("elf", "", "add-in ELF image (built-in image if empty)")
	listenFlag = flag.String("listen", "", "SSH console address")
	ttyFlag    = flag.Bool("tty", false, "serve the console on the controlling terminal")
	devFlag    = flag.String("dev", "", "serve the console on a terminal device")
	restart    = flag.Bool("restart", false, "restart the add-in through the host main menu after exit")
	onchip     = flag.String("onchip", "reinitialize", "on-chip memory save mode (reinitialize, backup)")
)

func init() {
	log.SetFlags(log.Ltime)
	log.SetOutput(os.Stdout)
}

func parseConfig() (conf *sim.Config, err error) {
	conf = &sim.Config{}

	switch *osFlag {
	case "fx":
		conf.OS = hw.FX
	case "cg":
		conf.OS = hw.CG
	case "cp":
		conf.OS = hw.CP
	default:
		return nil, fmt.Errorf("invalid OS family %q", *osFlag)
	}

	switch *cpuFlag {
	case "sh3":
		conf.CPU = hw.SH3
	case "sh4":
		conf.CPU = hw.SH4
	default:
		return nil, fmt.Errorf("invalid processor family %q", *cpuFlag)
	}

	if *elfFlag != "" {
		if conf.ELF, err = os.ReadFile(*elfFlag); err != nil {
			return nil, fmt.Errorf("could not read add-in image, %v", err)
		}
	}

	return
}

// demo exercises the host world calls and then exits the add-in, a restart
// request is honored once.
func demo(m *sim.Machine, a *sim.Addin) {
	k := m.Kernel

	for i := 0; ; i++ {
		err := a.Run(func() {
			k.Sync()

			if err := k.OSMenu(); err != nil {
				log.Printf("sim main menu error, %v", err)
			}

			if err := k.Poweroff(true); err != nil {
				log.Printf("sim power off error, %v", err)
			}
		})

		if err != nil {
			log.Printf("sim demo error, %v", err)
			return
		}

		last := i > 0 || !m.Sequencer.Restart()

		if last {
			m.Sequencer.SetRestart(false)
		}

		if err = a.Exit(0); err != nil {
			log.Printf("sim demo exit error, %v", err)
		}

		if last {
			return
		}
	}
}

func main() {
	flag.Parse()

	conf, err := parseConfig()

	if err != nil {
		log.Fatal(err)
	}

	m, err := sim.NewMachine(conf)

	if err != nil {
		log.Fatalf("sim could not create machine, %v", err)
	}

	a := sim.NewAddin(m)
	a.Log = logHandler
	m.Host.Log = logHandler

	switch *onchip {
	case "reinitialize":
	case "backup":
		if err = m.Kernel.SetOnchipSaveMode(kernel.ONCHIP_BACKUP, make([]byte, mem.OnchipSize)); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("invalid on-chip save mode %q", *onchip)
	}

	m.Sequencer.SetRestart(*restart)

	cmd.Kernel = m.Kernel
	cmd.Sequencer = m.Sequencer
	cmd.Memory = m.RAM
	cmd.Run = a.Run

	switch {
	case *ttyFlag || *devFlag != "":
		err = startTTY(*devFlag)
	case *listenFlag != "":
		err = startSSH(*listenFlag)
	default:
		go demo(m, a)
	}

	if err != nil {
		log.Fatalf("sim could not start console, %v", err)
	}

	rc := m.Sequencer.Start(boot.Args{IsAppli: 1})

	log.Printf("sim add-in returned %d", rc)

	if rc != 0 {
		os.Exit(1)
	}
}
