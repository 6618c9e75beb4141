// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cmd_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/term"

	"github.com/usbarmory/GoTEE-addin/boot"
	"github.com/usbarmory/GoTEE-addin/cmd"
	"github.com/usbarmory/GoTEE-addin/drivers"
	"github.com/usbarmory/GoTEE-addin/hw"
	"github.com/usbarmory/GoTEE-addin/kernel"
	"github.com/usbarmory/GoTEE-addin/mem"
)

const ramStart = 0x88000000

type console struct {
	in  bytes.Buffer
	out bytes.Buffer
}

func (c *console) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c *console) Write(p []byte) (int, error) { return c.out.Write(p) }

type counter struct {
	drivers.Base
	saved int
}

func (d *counter) Save(_ []byte) { d.saved++ }

type stopped struct {
	drivers.Base
}

func (d *stopped) Powered() bool { return false }

type host struct {
	poweroff []bool
	menu     int
}

func (h *host) PowerOff(showLogo bool) { h.poweroff = append(h.poweroff, showLogo) }
func (h *host) OSMenu()                { h.menu++ }
func (h *host) VRAM() []byte           { return nil }

type env struct {
	t    *term.Terminal
	con  *console
	host *host
	drv  *counter
	ram  *mem.RAM
}

func setup(t *testing.T) *env {
	e := &env{
		con:  &console{},
		host: &host{},
		drv:  &counter{},
		ram:  &mem.RAM{},
	}

	e.t = term.NewTerminal(e.con, "")

	_, err := e.ram.Map("ram", ramStart, 0x1000)
	require.NoError(t, err)

	reg := &drivers.Registry{}
	require.NoError(t, reg.Register(&drivers.Descriptor{Name: "timer", StateSize: 8, Driver: e.drv}))
	require.NoError(t, reg.Register(&drivers.Descriptor{Name: "rtc", StateSize: 12, Driver: &stopped{}}))

	k := &kernel.Kernel{
		Drivers: reg,
		Heap:    mem.NewArena(0x1000),
		Memory:  e.ram,
		Variant: hw.Variant{OS: hw.CG, CPU: hw.SH3},
		Host:    e.host,
	}

	require.NoError(t, k.Install())

	cmd.Kernel = k
	cmd.Memory = e.ram
	cmd.Sequencer = &boot.Sequencer{Kernel: k, OS: hw.CG}
	cmd.Run = nil

	t.Cleanup(func() {
		k.Uninstall()

		cmd.Kernel = nil
		cmd.Memory = nil
		cmd.Sequencer = nil
		cmd.Run = nil
	})

	return e
}

func (e *env) output() string {
	return e.con.out.String()
}

func TestHelp(t *testing.T) {
	help := cmd.Help(nil)

	for _, name := range []string{"help", "world", "sync", "switch", "osmenu", "poweroff", "onchip", "restart", "halt", "peek", "poke", "dis", "drivers", "stack"} {
		assert.Contains(t, help, name)
	}

	assert.Less(t, strings.Index(help, "\nonchip"), strings.Index(help, "\nworld"))
}

func TestUnknown(t *testing.T) {
	e := setup(t)

	assert.Error(t, cmd.Handle(e.t, "frobnicate"))
	assert.Error(t, cmd.Handle(e.t, "peek"))
}

func TestExit(t *testing.T) {
	e := setup(t)

	assert.Equal(t, io.EOF, cmd.Handle(e.t, "exit"))
	assert.Equal(t, io.EOF, cmd.Handle(e.t, "quit"))
}

func TestWorld(t *testing.T) {
	e := setup(t)

	require.NoError(t, cmd.Handle(e.t, "world"))

	out := e.output()
	assert.Contains(t, out, "timer")
	assert.Contains(t, out, "rtc")
	assert.Contains(t, out, "12 B")
	assert.Contains(t, out, "0x8")
}

func TestSwitch(t *testing.T) {
	e := setup(t)

	saved := e.drv.saved
	require.NoError(t, cmd.Handle(e.t, "switch"))

	// one save on the way out, one on the way back in
	assert.Equal(t, saved+2, e.drv.saved)
}

func TestRun(t *testing.T) {
	e := setup(t)

	calls := 0
	cmd.Run = func(fn func()) error {
		calls++
		fn()
		return nil
	}

	require.NoError(t, cmd.Handle(e.t, "sync"))
	require.NoError(t, cmd.Handle(e.t, "osmenu"))

	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, e.host.menu)
}

func TestPoweroff(t *testing.T) {
	e := setup(t)

	require.NoError(t, cmd.Handle(e.t, "poweroff"))
	require.NoError(t, cmd.Handle(e.t, "poweroff logo"))

	assert.Equal(t, []bool{false, true}, e.host.poweroff)
}

func TestOnchip(t *testing.T) {
	e := setup(t)

	require.NoError(t, cmd.Handle(e.t, "onchip backup"))

	mode, buf := cmd.Kernel.OnchipSaveMode()
	assert.Equal(t, kernel.ONCHIP_BACKUP, mode)
	assert.Len(t, buf, mem.OnchipSize)

	require.NoError(t, cmd.Handle(e.t, "onchip reinitialize"))

	mode, _ = cmd.Kernel.OnchipSaveMode()
	assert.Equal(t, kernel.ONCHIP_REINITIALIZE, mode)
}

func TestRestart(t *testing.T) {
	e := setup(t)

	require.NoError(t, cmd.Handle(e.t, "restart on"))
	assert.True(t, cmd.Sequencer.Restart())

	require.NoError(t, cmd.Handle(e.t, "restart off"))
	assert.False(t, cmd.Sequencer.Restart())

	cmd.Sequencer.OS = hw.CP

	require.NoError(t, cmd.Handle(e.t, "restart on"))
	assert.False(t, cmd.Sequencer.Restart())
}

func TestHaltNotRunning(t *testing.T) {
	e := setup(t)

	assert.Error(t, cmd.Handle(e.t, "halt 3"))
}

func TestPeekPoke(t *testing.T) {
	e := setup(t)

	require.NoError(t, cmd.Handle(e.t, "poke 88000010 cafebabe"))
	assert.Equal(t, uint32(0xcafebabe), mem.Read32(e.ram, ramStart+0x10))

	require.NoError(t, cmd.Handle(e.t, "peek 88000010 4"))
	assert.Contains(t, e.output(), "be ba fe ca")

	assert.Error(t, cmd.Handle(e.t, "peek 88000011 4"))
	assert.Error(t, cmd.Handle(e.t, "peek 90000000 4"))
	assert.Error(t, cmd.Handle(e.t, "poke 90000000 1"))
}

func TestDrivers(t *testing.T) {
	e := setup(t)

	require.NoError(t, cmd.Handle(e.t, "drivers"))

	out := e.output()
	assert.Regexp(t, `0\s+timer\s+true`, out)
	assert.Regexp(t, `1\s+rtc\s+false`, out)
}

func TestStack(t *testing.T) {
	e := setup(t)

	ran := false

	cmd.Run = func(fn func()) error {
		ran = true
		fn()
		return nil
	}

	require.NoError(t, cmd.Handle(e.t, "stack"))

	assert.True(t, ran)
	assert.Contains(t, e.output(), "goroutine")
}
