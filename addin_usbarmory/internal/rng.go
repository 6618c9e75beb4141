// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm
// +build tamago,arm

package board

import (
	"fmt"

	"github.com/canonical/go-sp800.90a-drbg"

	"github.com/usbarmory/tamago/soc/imx6"
	"github.com/usbarmory/tamago/soc/imx6/rngb"

	"github.com/usbarmory/GoTEE-addin/drivers"
)

// RNGB represents the hardware random number generator, the host world gets
// exclusive access to it while it runs.
type RNGB struct {
	drivers.Base
}

// ForeignBind implements drivers.Driver, it re-configures the TamaGo runtime
// entropy source to a pure software one (NIST SP 800-90A DRBG) and yields
// the RNGB to the host world.
func (r *RNGB) ForeignBind() {
	if !imx6.Native {
		return
	}

	seed := make([]byte, 256)
	rngb.GetRandomData(seed)

	nonce := make([]byte, 128)
	rngb.GetRandomData(nonce)

	uid := imx6.UniqueID()

	rng, err := drbg.NewCTRWithExternalEntropy(32, seed, nonce, uid[:], nil)

	if err != nil {
		panic(fmt.Sprintf("could not instantiate DRBG, %v", err))
	}

	// override TamaGo entropy source with an RNGB seeded DRGB
	imx6.SetRNG(func(b []byte) {
		rng.Read(b)
	})

	rngb.Reset()
}

// ForeignUnbind implements drivers.Driver, it restores the RNGB as TamaGo
// runtime entropy source.
func (r *RNGB) ForeignUnbind() {
	if !imx6.Native {
		return
	}

	imx6.SetRNG(rngb.GetRandomData)
}
