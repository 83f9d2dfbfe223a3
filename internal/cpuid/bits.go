// Copyright (C) 2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package cpuid

import "fmt"

// Bit-field helpers for 32-bit CPUID registers. Ranges are inclusive on both
// ends, [lo, hi], matching the notation used in the vendor manuals.

func setBit(v uint32, bit uint) uint32 {
	return v | 1<<bit
}

func clearBit(v uint32, bit uint) uint32 {
	return v &^ (1 << bit)
}

func setBitVal(v uint32, bit uint, set bool) uint32 {
	if set {
		return setBit(v, bit)
	}
	return clearBit(v, bit)
}

func testBit(v uint32, bit uint) bool {
	return v&(1<<bit) != 0
}

// getRange extracts bits [lo, hi] of v, shifted down to bit 0. Callers pass
// constant bounds; out-of-order bounds are a programming error and are
// reported through setRange's validation on the write path.
func getRange(v uint32, hi, lo uint) uint32 {
	return (v >> lo) & (1<<(hi-lo+1) - 1)
}

// setRange writes val into bits [lo, hi] of v. It fails when the bounds are
// inverted or beyond bit 31, or when val does not fit in the range.
func setRange(v uint32, hi, lo uint, val uint32) (uint32, error) {
	if hi < lo || hi > 31 {
		return 0, fmt.Errorf("%w: bit range [%d, %d]", ErrInvalidParameters, lo, hi)
	}
	mask := uint32(1<<(hi-lo+1) - 1)
	if val > mask {
		return 0, fmt.Errorf("%w: value %#x does not fit in bit range [%d, %d]", ErrInvalidParameters, val, lo, hi)
	}
	return v&^(mask<<lo) | val<<lo, nil
}
