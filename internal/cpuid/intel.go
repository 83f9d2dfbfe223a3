// Copyright (C) 2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package cpuid

// Leaf 0x6 (thermal and power management) bits cleared for guests.
const (
	thermalPowerEaxTurboBoost     = 1 // turbo state is a host decision
	thermalPowerEcxEnergyPerfBias = 3 // IA32_ENERGY_PERF_BIAS not exposed
)

// intelTransformer rewrites CPUID tables for Intel-family hosts.
type intelTransformer struct{}

func (t *intelTransformer) Process(cpuid *Cpuid, spec *VMSpec) error {
	vendor := spec.VendorID()
	if string(vendor[:]) != IntelVendor {
		return ErrInvalidVendor
	}
	return processEntries(t, cpuid, spec)
}

func (t *intelTransformer) entryTransformerFn(entry *CpuidEntry) EntryTransformerFn {
	switch entry.Function {
	case leafFeatureInfo:
		return updateFeatureInfoEntry
	case leafCacheParameters:
		return updateDeterministicCacheEntry
	case leafThermalPower:
		return updateThermalPowerEntry
	case leafStructuredExtended:
		return updateStructuredExtendedEntry
	case leafPerfMonitoring:
		return updatePerfMonitoringEntry
	case leafExtendedTopology:
		return updateExtendedTopologyEntry
	case leafBrandString0, leafBrandString1, leafBrandString2:
		return updateBrandStringEntry
	}
	return nil
}

// updateDeterministicCacheEntry rewrites leaf 0x4: the cache-sharing fields
// come from the guest topology and EAX[31:26] advertises the number of
// addressable cores in the package.
func updateDeterministicCacheEntry(entry *CpuidEntry, spec *VMSpec) error {
	entry.Flags |= KVMCpuidFlagSignificantIndex
	if getRange(entry.Eax, 4, 0) == 0 {
		return nil
	}
	if err := updateCacheSharingEntry(entry, spec); err != nil {
		return err
	}
	cores := uint32(spec.cpuCount) / uint32(spec.CPUsPerCore())
	if cores == 0 {
		cores = 1
	}
	var err error
	entry.Eax, err = setRange(entry.Eax, 31, 26, cores-1)
	return err
}

// updateThermalPowerEntry hides host power management state from the guest.
func updateThermalPowerEntry(entry *CpuidEntry, spec *VMSpec) error {
	entry.Eax = clearBit(entry.Eax, thermalPowerEaxTurboBoost)
	entry.Ecx = clearBit(entry.Ecx, thermalPowerEcxEnergyPerfBias)
	return nil
}

// updatePerfMonitoringEntry disables architectural performance monitoring;
// the PMU is not virtualized.
func updatePerfMonitoringEntry(entry *CpuidEntry, spec *VMSpec) error {
	entry.Eax = 0
	entry.Ebx = 0
	entry.Ecx = 0
	entry.Edx = 0
	return nil
}
