// Copyright (C) 2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package cpuid

import (
	"regexp"

	hostcpu "github.com/klauspost/cpuid/v2"
)

// The brand string occupies leaves 0x80000002..0x80000004, 16 bytes per
// leaf, 4 bytes per register, NUL-terminated, little-endian within each
// register.
const (
	brandStringLeafCount = 3
	brandStringRegSize   = 4
	brandStringSize      = brandStringLeafCount * 4 * brandStringRegSize
)

// Vendor-specific model names presented to the guest in place of the host
// processor name. Unknown vendors degrade to the neutral default; brand
// string synthesis never fails.
const (
	intelBrandTemplate   = "Intel(R) Xeon(R) Processor"
	amdBrandTemplate     = "AMD EPYC"
	defaultBrandTemplate = "Virtual Processor"
)

// reFrequency matches the clock suffix of a host brand string,
// e.g. "3.00GHz" in "Intel(R) Xeon(R) Platinum 8175M CPU @ 3.00GHz".
var reFrequency = regexp.MustCompile(`[0-9]+\.[0-9]+ ?[MGT]Hz`)

// hostBrandName reads the processor name string from the host CPU. Package
// variable so tests can pin the host frequency suffix.
var hostBrandName = func() string {
	return hostcpu.CPU.BrandName
}

// brandString is the fixed 48-byte processor name buffer injected into the
// brand string leaves.
type brandString struct {
	bytes [brandStringSize]byte
}

// newBrandString synthesizes the guest processor name for a vendor. The
// vendor template is extended with the host's clock suffix when the host
// brand string carries one, so guests see a plausible frequency.
func newBrandString(vendorID [vendorIDSize]byte) brandString {
	var template string
	switch string(vendorID[:]) {
	case IntelVendor:
		template = intelBrandTemplate
	case AMDVendor:
		template = amdBrandTemplate
	default:
		template = defaultBrandTemplate
	}
	if freq := reFrequency.FindString(hostBrandName()); freq != "" {
		template += " @ " + freq
	}

	var b brandString
	// leave at least one NUL terminator
	if len(template) > brandStringSize-1 {
		template = template[:brandStringSize-1]
	}
	copy(b.bytes[:], template)
	return b
}

// leafValues returns the four register values for one of the brand string
// leaves. Functions outside 0x80000002..0x80000004 yield zero registers.
func (b *brandString) leafValues(function uint32) [4]uint32 {
	var regs [4]uint32
	if function < leafBrandString0 || function > leafBrandString2 {
		return regs
	}
	offset := int(function-leafBrandString0) * 4 * brandStringRegSize
	for reg := range regs {
		pos := offset + reg*brandStringRegSize
		regs[reg] = uint32(b.bytes[pos]) |
			uint32(b.bytes[pos+1])<<8 |
			uint32(b.bytes[pos+2])<<16 |
			uint32(b.bytes[pos+3])<<24
	}
	return regs
}

// String returns the readable processor name, without trailing NUL bytes.
func (b *brandString) String() string {
	n := 0
	for n < brandStringSize && b.bytes[n] != 0 {
		n++
	}
	return string(b.bytes[:n])
}
