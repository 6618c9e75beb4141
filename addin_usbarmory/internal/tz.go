// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm
// +build tamago,arm

package board

import (
	"log"

	"github.com/usbarmory/tamago/soc/imx6"
	"github.com/usbarmory/tamago/soc/imx6/csu"
	"github.com/usbarmory/tamago/soc/imx6/tzasc"

	"github.com/usbarmory/GoTEE-addin/drivers"
	"github.com/usbarmory/GoTEE-addin/mem"
)

// CSL indices of peripherals reserved to the add-in world
const (
	cslGPIO4  = 2
	cslIOMUXC = 6
	cslDCP    = 34
)

// cslCount is the number of config security levels, each covering two
// slaves.
const cslCount = csu.CSL_MAX - csu.CSL_MIN

// TrustZone represents the Central Security Unit peripheral access policy,
// each world carries its own configuration.
type TrustZone struct {
	drivers.Base
}

// StateSize returns the world state size for the driver.
func (tz *TrustZone) StateSize() int {
	return (cslCount*2 + 3) &^ 3
}

// Save implements drivers.Driver.
func (tz *TrustZone) Save(buf []byte) {
	if !imx6.Native {
		return
	}

	for i := csu.CSL_MIN; i < csu.CSL_MAX; i++ {
		off := (i - csu.CSL_MIN) * 2

		buf[off], _, _ = csu.GetSecurityLevel(i, 0)
		buf[off+1], _, _ = csu.GetSecurityLevel(i, 1)
	}
}

// Restore implements drivers.Driver.
func (tz *TrustZone) Restore(buf []byte) {
	if !imx6.Native {
		return
	}

	for i := csu.CSL_MIN; i < csu.CSL_MAX; i++ {
		off := (i - csu.CSL_MIN) * 2

		if err := csu.SetSecurityLevel(i, 0, buf[off], false); err != nil {
			log.Printf("board could not restore CSL%.2d, %v", i, err)
		}

		if err := csu.SetSecurityLevel(i, 1, buf[off+1], false); err != nil {
			log.Printf("board could not restore CSL%.2d, %v", i, err)
		}
	}
}

// Configure implements drivers.Driver, it restricts the LEDs and DCP to
// Secure World access.
func (tz *TrustZone) Configure() {
	if !imx6.Native {
		return
	}

	csu.Init()

	// restrict LEDs (GPIO4, IOMUXC)
	if err := csu.SetSecurityLevel(cslGPIO4, 1, csu.SEC_LEVEL_4, false); err != nil {
		log.Printf("board could not restrict GPIO4, %v", err)
	}

	if err := csu.SetSecurityLevel(cslIOMUXC, 1, csu.SEC_LEVEL_4, false); err != nil {
		log.Printf("board could not restrict IOMUXC, %v", err)
	}

	// restrict DCP
	if err := csu.SetSecurityLevel(cslDCP, 0, csu.SEC_LEVEL_4, false); err != nil {
		log.Printf("board could not restrict DCP, %v", err)
	}
}

// grantHostMemory configures TZASC NonSecure World R/W access to the host OS
// memory.
func grantHostMemory() (err error) {
	if !imx6.Native {
		return
	}

	return tzasc.EnableRegion(1, mem.NonSecureStart, mem.NonSecureSize, (1<<tzasc.SP_NW_RD)|(1<<tzasc.SP_NW_WR))
}

// Coprocessor represents NonSecure access to the VFP coprocessors, its
// configuration is shared between worlds.
type Coprocessor struct {
	drivers.Base
}

// Bind implements drivers.Driver.
func (c *Coprocessor) Bind() {
	// grant NonSecure access to CP10 and CP11
	imx6.ARM.NonSecureAccessControl(1<<11 | 1<<10)
}
