// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm
// +build tamago,arm

package board

import (
	_ "embed"
	"errors"
	"fmt"
	"log"

	"golang.org/x/term"

	"github.com/usbarmory/tamago/arm"
	usbarmory "github.com/usbarmory/tamago/board/usbarmory/mk2"
	"github.com/usbarmory/tamago/dma"

	"github.com/usbarmory/GoTEE/monitor"
	"github.com/usbarmory/GoTEE/syscall"

	"github.com/usbarmory/armory-boot/exec"

	"github.com/usbarmory/GoTEE-addin/mem"
	"github.com/usbarmory/GoTEE-addin/service"
	"github.com/usbarmory/GoTEE-addin/util"
)

// The host OS ELF binary is embedded within the add-in kernel executable,
// using Go embed package.

//go:embed assets/host_os.elf
var osELF []byte

// screenSize is the fx-CG display frame buffer size.
const screenSize = 384 * 216 * 2

// HostOS represents the host operating system, executed as a GoTEE
// NonSecure World context on each host world call.
type HostOS struct {
	// Term, when set, receives host console output
	Term func() *term.Terminal

	region *dma.Region
	screen []byte

	// service requested by the current host world call
	req service.Request
}

// NewHostOS prepares the host OS memory region.
func NewHostOS() (h *HostOS) {
	h = &HostOS{
		region: &dma.Region{
			Start: mem.NonSecureStart,
			Size:  mem.NonSecureSize,
		},
		screen: make([]byte, screenSize),
	}

	h.region.Init()
	h.region.Reserve(mem.NonSecureSize, 0)

	return
}

// handler serves host OS system calls: console output, service requests and
// yield back to the add-in world.
func (h *HostOS) handler(ctx *monitor.ExecCtx) (err error) {
	switch {
	case ctx.R0 == service.SYS_SERVICE:
		ctx.R0, ctx.R1 = h.req.Encode()
	case ctx.R0 == syscall.SYS_WRITE:
		var t *term.Terminal

		if h.Term != nil {
			t = h.Term()
		}

		if t != nil {
			util.BufferedTermLog(byte(ctx.R1), false, t)
		} else {
			util.BufferedStdoutLog(byte(ctx.R1), false)
		}
	case ctx.R0 == syscall.SYS_EXIT:
		if ctx.Debug {
			ctx.Print()
		}

		return errors.New("exit")
	default:
		err = monitor.NonSecureHandler(ctx)
	}

	return
}

func (h *HostOS) load() (ctx *monitor.ExecCtx, err error) {
	image := &exec.ELFImage{
		Region: h.region,
		ELF:    osELF,
	}

	if err = image.Load(); err != nil {
		return
	}

	if ctx, err = monitor.Load(image.Entry(), image.Region, false); err != nil {
		return nil, fmt.Errorf("could not load host OS, %v", err)
	}

	log.Printf("board loaded host OS addr:%#x size:%d entry:%#x", ctx.Memory.Start, len(osELF), ctx.R15)

	ctx.Handler = h.handler
	ctx.Debug = true

	return
}

func (h *HostOS) run(req service.Request) {
	ctx, err := h.load()

	if err != nil {
		log.Printf("board %s failed, %v", req, err)
		return
	}

	h.req = req
	mode := arm.ModeName(int(ctx.SPSR) & 0x1f)

	log.Printf("board host %s mode:%s sp:%#.8x pc:%#.8x", req, mode, ctx.R13, ctx.R15)

	err = ctx.Run()

	log.Printf("board host stopped mode:%s sp:%#.8x lr:%#.8x pc:%#.8x err:%v", mode, ctx.R13, ctx.R14, ctx.R15, err)
}

// OSMenu implements kernel.Host.
func (h *HostOS) OSMenu() {
	h.run(service.Menu())
}

// PowerOff implements kernel.Host, the board stays on and only the LEDs are
// turned off.
func (h *HostOS) PowerOff(showLogo bool) {
	h.run(service.PowerOff(showLogo))

	usbarmory.LED("blue", false)
	usbarmory.LED("white", false)
}

// VRAM implements kernel.Host.
func (h *HostOS) VRAM() []byte {
	return h.screen
}
