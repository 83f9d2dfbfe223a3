// Copyright (C) 2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package cpuid rewrites a host CPUID table into one that is safe to present
// to a guest vCPU. The caller fetches the raw table from the hypervisor,
// builds a VMSpec describing the guest's shape, selects the transformer that
// matches the host vendor, and calls its Process method. Entries are mutated
// in place; on any error the caller must discard the table and fail the
// vCPU's construction.
package cpuid

// CPU vendor identification strings as reported in leaf 0x0.
const (
	IntelVendor = "GenuineIntel"
	AMDVendor   = "AuthenticAMD"
)

// CPUID leaf functions handled by the vendor transformers.
const (
	leafFeatureInfo        uint32 = 0x1
	leafCacheParameters    uint32 = 0x4
	leafThermalPower       uint32 = 0x6
	leafStructuredExtended uint32 = 0x7
	leafPerfMonitoring     uint32 = 0xA
	leafExtendedTopology   uint32 = 0xB
	leafLargestExtendedFn  uint32 = 0x80000000
	leafExtendedFeatureFn  uint32 = 0x80000001
	leafBrandString0       uint32 = 0x80000002
	leafBrandString1       uint32 = 0x80000003
	leafBrandString2       uint32 = 0x80000004
	leafAMDFeatures        uint32 = 0x80000008
	leafExtendedCacheTopo  uint32 = 0x8000001D
	leafExtendedAPICID     uint32 = 0x8000001E
)

// KVMCpuidFlagSignificantIndex marks an entry whose Index (sub-leaf) is
// meaningful, matching KVM_CPUID_FLAG_SIGNIFCANT_INDEX.
const KVMCpuidFlagSignificantIndex uint32 = 1

// MaxEntries caps the size of a table, matching KVM_MAX_CPUID_ENTRIES.
const MaxEntries = 256

// CpuidEntry is one leaf of the CPUID table: a (function, sub-leaf) key and
// the four output registers. It mirrors KVM's kvm_cpuid_entry2 without the
// trailing padding (see the kvm package for the wire form).
type CpuidEntry struct {
	Function uint32
	Index    uint32
	Flags    uint32
	Eax      uint32
	Ebx      uint32
	Ecx      uint32
	Edx      uint32
}

// Cpuid is an ordered CPUID table in host enumeration order. The order is
// not guaranteed to be sorted by leaf function.
type Cpuid []CpuidEntry

// FindEntry returns the entry with the given function and sub-leaf index, or
// nil if the table does not contain it.
func (c Cpuid) FindEntry(function, index uint32) *CpuidEntry {
	for i := range c {
		if c[i].Function == function && c[i].Index == index {
			return &c[i]
		}
	}
	return nil
}

// hasFunction reports whether any entry with the given function is present.
func (c Cpuid) hasFunction(function uint32) bool {
	for i := range c {
		if c[i].Function == function {
			return true
		}
	}
	return false
}

// append adds an entry to the table, failing when the table is at the KVM
// entry limit.
func (c *Cpuid) append(entry CpuidEntry) error {
	if len(*c) >= MaxEntries {
		return ErrTableFull
	}
	*c = append(*c, entry)
	return nil
}

// removeFunction drops every entry with the given function, preserving the
// order of the remaining entries.
func (c *Cpuid) removeFunction(function uint32) {
	kept := (*c)[:0]
	for _, entry := range *c {
		if entry.Function != function {
			kept = append(kept, entry)
		}
	}
	*c = kept
}
