// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package drivers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usbarmory/GoTEE-addin/drivers"
)

func TestFlags(t *testing.T) {
	var f drivers.Flags

	assert.Equal(t, "-", f.String())

	f.Set(drivers.FLAG_CLEAN)
	assert.True(t, f.Has(drivers.FLAG_CLEAN))
	assert.False(t, f.Has(drivers.FLAG_SHARED))

	f.SetTo(drivers.FLAG_FOREIGN_POWERED, true)
	assert.Equal(t, "clean,foreign-powered", f.String())

	f.Clear(drivers.FLAG_CLEAN)
	f.SetTo(drivers.FLAG_FOREIGN_POWERED, false)
	assert.Equal(t, drivers.Flags(0), f)
}

func TestBase(t *testing.T) {
	var d drivers.Driver = drivers.Base{}

	assert.True(t, d.Powered())

	buf := []byte{1, 2, 3}
	d.Save(buf)
	d.Restore(buf)

	assert.Equal(t, []byte{1, 2, 3}, buf)
}

func TestRegistry(t *testing.T) {
	reg := &drivers.Registry{}

	require.NoError(t, reg.Register(&drivers.Descriptor{Name: "cpg", StateSize: 12, Driver: drivers.Base{}}))
	require.NoError(t, reg.Register(&drivers.Descriptor{Name: "intc", StateSize: 3, Driver: drivers.Base{}}))

	assert.Error(t, reg.Register(&drivers.Descriptor{Name: "cpg", Driver: drivers.Base{}}))
	assert.Error(t, reg.Register(&drivers.Descriptor{Name: "nil"}))
	assert.Error(t, reg.Register(&drivers.Descriptor{Name: "neg", StateSize: -1, Driver: drivers.Base{}}))
	assert.Error(t, reg.Register(nil))

	assert.Equal(t, 2, reg.Count())
	assert.Equal(t, "intc", reg.Get(1).Name)
	assert.Equal(t, []int{12, 3}, reg.StateSizes())

	reg.Seal()

	assert.True(t, reg.Sealed())
	assert.Equal(t, drivers.ErrSealed, reg.Register(&drivers.Descriptor{Name: "tmu", Driver: drivers.Base{}}))
}
