// Copyright (C) 2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package cpuid

import (
	"fmt"

	hostcpu "github.com/klauspost/cpuid/v2"
)

// vendorIDSize is the length of the vendor identification string returned in
// EBX/EDX/ECX of leaf 0x0.
const vendorIDSize = 12

// hostVendorID reads the vendor identification string from the host CPU. It
// is a package variable so tests can substitute a fixed vendor.
var hostVendorID = func() ([vendorIDSize]byte, error) {
	var vendor [vendorIDSize]byte
	if len(hostcpu.CPU.VendorString) != vendorIDSize {
		return vendor, fmt.Errorf("%w: vendor string %q", ErrVendorQuery, hostcpu.CPU.VendorString)
	}
	copy(vendor[:], hostcpu.CPU.VendorString)
	return vendor, nil
}

// VMSpec describes the guest shape one vCPU's CPUID table is rewritten for.
// It is built once per vCPU before transformation begins and is immutable
// afterwards.
type VMSpec struct {
	// vendorID is the host CPU vendor identification, never guest-supplied.
	vendorID [vendorIDSize]byte
	// brandString is the processor name presented to the guest, derived
	// from vendorID.
	brandString brandString

	// cpuIndex is the zero-based index of this vCPU in [0, cpuCount).
	cpuIndex uint8
	// cpuCount is the total number of logical CPUs of the guest.
	cpuCount uint8
	// cpuBits is the number of low-order APIC ID bits that enumerate the
	// logical CPUs sharing a physical core.
	cpuBits uint8
}

// NewVMSpec builds the spec for one vCPU. The vendor identity is read from
// the host; everything after construction is a pure function of the spec.
// cpuCount must fit the byte-wide topology fields of the CPUID leaves and
// cpuIndex must fall within [0, cpuCount).
func NewVMSpec(cpuIndex, cpuCount int, smt bool) (*VMSpec, error) {
	if cpuCount < 1 || cpuCount > 0xFF {
		return nil, ErrVcpuCountOverflow
	}
	if cpuIndex < 0 || cpuIndex >= cpuCount {
		return nil, fmt.Errorf("%w: cpu index %d outside [0, %d)", ErrInvalidParameters, cpuIndex, cpuCount)
	}
	vendorID, err := hostVendorID()
	if err != nil {
		return nil, err
	}
	spec := &VMSpec{
		vendorID:    vendorID,
		brandString: newBrandString(vendorID),
		cpuIndex:    uint8(cpuIndex),
		cpuCount:    uint8(cpuCount),
	}
	if cpuCount > 1 && smt {
		spec.cpuBits = 1
	}
	return spec, nil
}

// VendorID returns the host CPU vendor identification string.
func (s *VMSpec) VendorID() [vendorIDSize]byte {
	return s.vendorID
}

// CPUsPerCore returns the number of logical CPUs per physical core,
// always a power of two.
func (s *VMSpec) CPUsPerCore() uint8 {
	return 1 << s.cpuBits
}
