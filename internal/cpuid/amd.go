// Copyright (C) 2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package cpuid

import mathbits "math/bits"

// largestExtendedFn is the highest extended function advertised to AMD
// guests; the extended APIC ID leaf is the last one this package rewrites.
const largestExtendedFn = leafExtendedAPICID

// Leaf 0x80000001 ECX: topology extensions, required for the extended cache
// topology leaf the guest is given.
const extendedFeatureFnEcxTopoExt = 22

// amdTransformer rewrites CPUID tables for AMD-family hosts.
type amdTransformer struct{}

// Process overrides the default walk: KVM's supported-CPUID table omits the
// extended cache topology and extended APIC ID leaves, so they are pulled
// from the host CPU (appended at the end of the table) before the rewrite
// pass computes their guest values.
func (t *amdTransformer) Process(cpuid *Cpuid, spec *VMSpec) error {
	vendor := spec.VendorID()
	if string(vendor[:]) != AMDVendor {
		return ErrInvalidVendor
	}
	if err := useHostCpuidFunction(cpuid, leafExtendedCacheTopo, true); err != nil {
		return err
	}
	if err := useHostCpuidFunction(cpuid, leafExtendedAPICID, false); err != nil {
		return err
	}
	return processEntries(t, cpuid, spec)
}

func (t *amdTransformer) entryTransformerFn(entry *CpuidEntry) EntryTransformerFn {
	switch entry.Function {
	case leafFeatureInfo:
		return updateFeatureInfoEntry
	case leafStructuredExtended:
		return updateStructuredExtendedEntry
	case leafLargestExtendedFn:
		return updateLargestExtendedFnEntry
	case leafExtendedFeatureFn:
		return updateExtendedFeatureFnEntry
	case leafAMDFeatures:
		return updateAMDFeaturesEntry
	case leafExtendedCacheTopo:
		return updateExtendedCacheTopologyEntry
	case leafExtendedAPICID:
		return updateExtendedApicIDEntry
	case leafBrandString0, leafBrandString1, leafBrandString2:
		return updateBrandStringEntry
	}
	return nil
}

func updateLargestExtendedFnEntry(entry *CpuidEntry, spec *VMSpec) error {
	entry.Eax = largestExtendedFn
	return nil
}

func updateExtendedFeatureFnEntry(entry *CpuidEntry, spec *VMSpec) error {
	entry.Ecx = setBit(entry.Ecx, extendedFeatureFnEcxTopoExt)
	return nil
}

// updateAMDFeaturesEntry rewrites leaf 0x80000008: ECX[7:0] holds the
// number of logical threads minus one and ECX[15:12] the APIC ID width
// covering them.
func updateAMDFeaturesEntry(entry *CpuidEntry, spec *VMSpec) error {
	maxCpus, err := maxCpusPerPackage(spec.cpuCount)
	if err != nil {
		return err
	}
	if entry.Ecx, err = setRange(entry.Ecx, 7, 0, uint32(spec.cpuCount)-1); err != nil {
		return err
	}
	apicIDSize := uint32(mathbits.Len8(maxCpus - 1))
	entry.Ecx, err = setRange(entry.Ecx, 15, 12, apicIDSize)
	return err
}

// updateExtendedCacheTopologyEntry rewrites leaf 0x8000001D, which shares
// its cache-sharing field layout with Intel's deterministic cache leaf.
func updateExtendedCacheTopologyEntry(entry *CpuidEntry, spec *VMSpec) error {
	entry.Flags |= KVMCpuidFlagSignificantIndex
	return updateCacheSharingEntry(entry, spec)
}

// updateExtendedApicIDEntry rewrites leaf 0x8000001E from the VM spec: the
// extended APIC ID is the vCPU index, SMT siblings share a compute unit,
// and the guest is a single NUMA node.
func updateExtendedApicIDEntry(entry *CpuidEntry, spec *VMSpec) error {
	entry.Eax = uint32(spec.cpuIndex)

	var err error
	computeUnitID := uint32(spec.cpuIndex >> spec.cpuBits)
	if entry.Ebx, err = setRange(0, 7, 0, computeUnitID); err != nil {
		return err
	}
	if entry.Ebx, err = setRange(entry.Ebx, 15, 8, uint32(spec.CPUsPerCore()-1)); err != nil {
		return err
	}
	entry.Ecx = 0
	entry.Edx = 0
	return nil
}
