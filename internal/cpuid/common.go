// Copyright (C) 2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package cpuid

import (
	"fmt"
	mathbits "math/bits"
)

// Leaf 0x1 (feature information) register layout.
const (
	// EBX[15:8] CLFLUSH line size, in 8-byte units
	featureInfoEbxClflushSize = 8 // 64-byte cache line
	// ECX feature bits cleared or set for guests
	featureInfoEcxDtes64      = 2  // 64-bit debug store, host only
	featureInfoEcxMonitor     = 3  // MONITOR/MWAIT, not exposed to guests
	featureInfoEcxDsCpl       = 4  // CPL-qualified debug store, host only
	featureInfoEcxTm2         = 8  // thermal monitor 2, physical sensor
	featureInfoEcxCnxtID      = 10 // L1 context ID, host only
	featureInfoEcxSdbg        = 11 // silicon debug, host only
	featureInfoEcxXtpr        = 14 // xTPR update control, host only
	featureInfoEcxPdcm        = 15 // perfmon and debug capability, host only
	featureInfoEcxDca         = 18 // direct cache access, physical topology
	featureInfoEcxTscDeadline = 24 // TSC deadline timer, emulated by KVM
	featureInfoEcxHypervisor  = 31
	// EDX feature bits
	featureInfoEdxPsn  = 18 // processor serial number, host specific
	featureInfoEdxDs   = 21 // debug store, host only
	featureInfoEdxAcpi = 22 // thermal monitor via MSRs, physical sensor
	featureInfoEdxHtt  = 28
	featureInfoEdxTm   = 29 // thermal monitor, physical sensor
	featureInfoEdxPbe  = 31 // pending break enable, host only
)

// Leaf 0x7 (structured extended features) EBX bits tied to the host's
// physical resource-director topology.
const (
	structuredExtendedEbxPqm = 12 // platform QoS monitoring
	structuredExtendedEbxPqe = 15 // platform QoS enforcement
)

// Leaf 0xB (extended topology) level types, ECX[15:8].
const (
	topologyLevelTypeInvalid uint32 = 0
	topologyLevelTypeSMT     uint32 = 1
	topologyLevelTypeCore    uint32 = 2
)

// Sub-leaf numbers of leaf 0xB: level 0 enumerates SMT siblings, level 1
// enumerates the cores of the package.
const (
	topologyLevelThread uint32 = 0
	topologyLevelCore   uint32 = 1
)

// maxCpusPerPackage returns the maximum number of addressable logical CPUs
// in the package: the smallest power of two that covers cpuCount, as
// required by the APIC ID width fields. Counts whose power-of-two cover does
// not fit in a byte are a vCPU count overflow.
func maxCpusPerPackage(cpuCount uint8) (uint8, error) {
	if cpuCount == 0 {
		return 0, fmt.Errorf("%w: zero cpu count", ErrInvalidParameters)
	}
	width := mathbits.Len8(cpuCount - 1)
	if width >= 8 {
		return 0, ErrVcpuCountOverflow
	}
	return 1 << width, nil
}

// updateFeatureInfoEntry rewrites leaf 0x1 for the guest: the initial APIC
// ID and addressable-ID fields come from the VM spec, host-only feature
// bits are masked, and the hypervisor bit is raised.
func updateFeatureInfoEntry(entry *CpuidEntry, spec *VMSpec) error {
	maxCpus, err := maxCpusPerPackage(spec.cpuCount)
	if err != nil {
		return err
	}

	if entry.Ebx, err = setRange(entry.Ebx, 15, 8, featureInfoEbxClflushSize); err != nil {
		return err
	}
	if entry.Ebx, err = setRange(entry.Ebx, 23, 16, uint32(maxCpus)); err != nil {
		return err
	}
	if entry.Ebx, err = setRange(entry.Ebx, 31, 24, uint32(spec.cpuIndex)); err != nil {
		return err
	}

	for _, bit := range []uint{
		featureInfoEcxDtes64,
		featureInfoEcxMonitor,
		featureInfoEcxDsCpl,
		featureInfoEcxTm2,
		featureInfoEcxCnxtID,
		featureInfoEcxSdbg,
		featureInfoEcxXtpr,
		featureInfoEcxPdcm,
		featureInfoEcxDca,
	} {
		entry.Ecx = clearBit(entry.Ecx, bit)
	}
	entry.Ecx = setBit(entry.Ecx, featureInfoEcxTscDeadline)
	entry.Ecx = setBit(entry.Ecx, featureInfoEcxHypervisor)

	for _, bit := range []uint{
		featureInfoEdxPsn,
		featureInfoEdxDs,
		featureInfoEdxAcpi,
		featureInfoEdxTm,
		featureInfoEdxPbe,
	} {
		entry.Edx = clearBit(entry.Edx, bit)
	}
	entry.Edx = setBitVal(entry.Edx, featureInfoEdxHtt, spec.cpuCount > 1)

	return nil
}

// updateStructuredExtendedEntry hides the resource-director features of
// leaf 0x7, which describe the host's physical cache allocation domains.
func updateStructuredExtendedEntry(entry *CpuidEntry, spec *VMSpec) error {
	if entry.Index == 0 {
		entry.Ebx = clearBit(entry.Ebx, structuredExtendedEbxPqm)
		entry.Ebx = clearBit(entry.Ebx, structuredExtendedEbxPqe)
	}
	return nil
}

// updateCacheSharingEntry rewrites the "maximum addressable IDs sharing this
// cache" field common to Intel leaf 0x4 and AMD leaf 0x8000001D: L1 and L2
// are shared by the SMT siblings of a core, the last-level cache by the
// whole package.
func updateCacheSharingEntry(entry *CpuidEntry, spec *VMSpec) error {
	cacheType := getRange(entry.Eax, 4, 0)
	if cacheType == 0 {
		// null entry ends the cache enumeration
		return nil
	}
	cacheLevel := getRange(entry.Eax, 7, 5)

	var sharing uint32
	switch cacheLevel {
	case 1, 2:
		sharing = uint32(spec.CPUsPerCore()) - 1
	default:
		sharing = uint32(spec.cpuCount) - 1
	}
	var err error
	entry.Eax, err = setRange(entry.Eax, 25, 14, sharing)
	return err
}

// updateExtendedTopologyEntry rewrites leaf 0xB from the VM spec alone: the
// thread level reflects cpuBits and the core level spans the whole guest
// package. The x2APIC ID of every level is the vCPU index.
func updateExtendedTopologyEntry(entry *CpuidEntry, spec *VMSpec) error {
	entry.Flags |= KVMCpuidFlagSignificantIndex
	entry.Edx = uint32(spec.cpuIndex)

	var err error
	if entry.Ecx, err = setRange(0, 7, 0, entry.Index); err != nil {
		return err
	}

	switch entry.Index {
	case topologyLevelThread:
		if entry.Eax, err = setRange(entry.Eax, 4, 0, uint32(spec.cpuBits)); err != nil {
			return err
		}
		if entry.Ebx, err = setRange(entry.Ebx, 15, 0, uint32(spec.CPUsPerCore())); err != nil {
			return err
		}
		entry.Ecx, err = setRange(entry.Ecx, 15, 8, topologyLevelTypeSMT)
	case topologyLevelCore:
		// bits to strip from the x2APIC ID to reach the package ID
		shift := uint32(mathbits.Len8(spec.cpuCount - 1))
		if entry.Eax, err = setRange(entry.Eax, 4, 0, shift); err != nil {
			return err
		}
		if entry.Ebx, err = setRange(entry.Ebx, 15, 0, uint32(spec.cpuCount)); err != nil {
			return err
		}
		entry.Ecx, err = setRange(entry.Ecx, 15, 8, topologyLevelTypeCore)
	default:
		entry.Eax = 0
		entry.Ebx = 0
		entry.Ecx, err = setRange(entry.Ecx, 15, 8, topologyLevelTypeInvalid)
	}
	return err
}

// updateBrandStringEntry injects the synthesized processor name into one of
// the three brand string leaves.
func updateBrandStringEntry(entry *CpuidEntry, spec *VMSpec) error {
	regs := spec.brandString.leafValues(entry.Function)
	entry.Eax, entry.Ebx, entry.Ecx, entry.Edx = regs[0], regs[1], regs[2], regs[3]
	return nil
}

// hostCpuidFn executes the CPUID instruction on the host. Package variable
// so tests can supply synthetic host leaves.
var hostCpuidFn = hostCpuid

// useHostCpuidFunction replaces the table's entries for one function with
// the values the host CPU itself reports, enumerating sub-leaves until the
// null cache type when the function is indexed. KVM's supported-CPUID table
// omits some vendor leaves the guest needs; this pulls them from hardware.
// New entries are appended at the end of the table.
func useHostCpuidFunction(cpuid *Cpuid, function uint32, indexed bool) error {
	cpuid.removeFunction(function)

	var flags uint32
	if indexed {
		flags = KVMCpuidFlagSignificantIndex
	}
	for index := uint32(0); ; index++ {
		eax, ebx, ecx, edx, err := hostCpuidFn(function, index)
		if err != nil {
			return err
		}
		if indexed && getRange(eax, 4, 0) == 0 {
			break
		}
		err = cpuid.append(CpuidEntry{
			Function: function,
			Index:    index,
			Flags:    flags,
			Eax:      eax,
			Ebx:      ebx,
			Ecx:      ecx,
			Edx:      edx,
		})
		if err != nil {
			return err
		}
		if !indexed {
			break
		}
	}
	return nil
}
