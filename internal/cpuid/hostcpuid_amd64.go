// Copyright (C) 2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

//go:build amd64

package cpuid

// cpuid executes the CPUID instruction with the given leaf function and
// sub-leaf index. Implemented in cpuid_amd64.s.
func cpuid(eaxArg, ecxArg uint32) (eax, ebx, ecx, edx uint32)

func hostCpuid(function, index uint32) (eax, ebx, ecx, edx uint32, err error) {
	eax, ebx, ecx, edx = cpuid(function, index)
	return eax, ebx, ecx, edx, nil
}
