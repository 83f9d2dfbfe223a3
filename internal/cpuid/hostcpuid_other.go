// Copyright (C) 2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

//go:build !amd64

package cpuid

import "fmt"

func hostCpuid(function, index uint32) (eax, ebx, ecx, edx uint32, err error) {
	return 0, 0, 0, 0, fmt.Errorf("%w: CPUID instruction not available on this architecture", ErrVendorQuery)
}
