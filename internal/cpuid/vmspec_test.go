// Copyright (C) 2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package cpuid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withHostVendor pins the host vendor query for the duration of a test.
func withHostVendor(t *testing.T, vendor string) {
	t.Helper()
	orig := hostVendorID
	hostVendorID = func() ([vendorIDSize]byte, error) {
		var v [vendorIDSize]byte
		copy(v[:], vendor)
		return v, nil
	}
	t.Cleanup(func() { hostVendorID = orig })
}

// withHostBrand pins the host brand string for the duration of a test.
func withHostBrand(t *testing.T, brand string) {
	t.Helper()
	orig := hostBrandName
	hostBrandName = func() string { return brand }
	t.Cleanup(func() { hostBrandName = orig })
}

// testVMSpec builds a spec without touching the host, for use by the
// transformer tests.
func testVMSpec(vendor string, cpuIndex, cpuCount int, smt bool) *VMSpec {
	var v [vendorIDSize]byte
	copy(v[:], vendor)
	spec := &VMSpec{
		vendorID: v,
		cpuIndex: uint8(cpuIndex),
		cpuCount: uint8(cpuCount),
	}
	if cpuCount > 1 && smt {
		spec.cpuBits = 1
	}
	return spec
}

func TestNewVMSpecCPUBits(t *testing.T) {
	withHostVendor(t, IntelVendor)
	withHostBrand(t, "")

	tests := []struct {
		name            string
		cpuCount        int
		smt             bool
		wantBits        uint8
		wantCpusPerCore uint8
	}{
		{name: "single cpu with smt", cpuCount: 1, smt: true, wantBits: 0, wantCpusPerCore: 1},
		{name: "single cpu without smt", cpuCount: 1, smt: false, wantBits: 0, wantCpusPerCore: 1},
		{name: "two cpus without smt", cpuCount: 2, smt: false, wantBits: 0, wantCpusPerCore: 1},
		{name: "two cpus with smt", cpuCount: 2, smt: true, wantBits: 1, wantCpusPerCore: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := NewVMSpec(0, tt.cpuCount, tt.smt)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBits, spec.cpuBits)
			assert.Equal(t, tt.wantCpusPerCore, spec.CPUsPerCore())
		})
	}
}

func TestNewVMSpecVendorFromHost(t *testing.T) {
	withHostVendor(t, AMDVendor)
	withHostBrand(t, "")

	spec, err := NewVMSpec(0, 1, false)
	require.NoError(t, err)
	vendor := spec.VendorID()
	assert.Equal(t, AMDVendor, string(vendor[:]))
	assert.Equal(t, amdBrandTemplate, spec.brandString.String())
}

func TestNewVMSpecCountOverflow(t *testing.T) {
	withHostVendor(t, IntelVendor)
	withHostBrand(t, "")

	_, err := NewVMSpec(0, 256, false)
	assert.ErrorIs(t, err, ErrVcpuCountOverflow)

	_, err = NewVMSpec(0, 0, false)
	assert.ErrorIs(t, err, ErrVcpuCountOverflow)
}

func TestNewVMSpecIndexOutOfRange(t *testing.T) {
	withHostVendor(t, IntelVendor)
	withHostBrand(t, "")

	_, err := NewVMSpec(2, 2, false)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, err = NewVMSpec(-1, 2, false)
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestNewVMSpecVendorQueryFailure(t *testing.T) {
	orig := hostVendorID
	hostVendorID = func() ([vendorIDSize]byte, error) {
		var v [vendorIDSize]byte
		return v, ErrVendorQuery
	}
	t.Cleanup(func() { hostVendorID = orig })

	_, err := NewVMSpec(0, 1, false)
	assert.ErrorIs(t, err, ErrVendorQuery)
}
