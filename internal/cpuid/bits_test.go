// Copyright (C) 2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package cpuid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRange(t *testing.T) {
	assert.Equal(t, uint32(0xAB), getRange(0x00AB0000, 23, 16))
	assert.Equal(t, uint32(1), getRange(0x80000000, 31, 31))
	assert.Equal(t, uint32(0xFFFFFFFF), getRange(0xFFFFFFFF, 31, 0))
	assert.Equal(t, uint32(0x5), getRange(0x5, 2, 0))
}

func TestSetRange(t *testing.T) {
	v, err := setRange(0, 23, 16, 0xAB)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x00AB0000), v)

	// existing bits outside the range are preserved
	v, err = setRange(0xFF0000FF, 15, 8, 0x12)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFF0012FF), v)

	// the range itself is overwritten, not or-ed
	v, err = setRange(0x0000FF00, 15, 8, 0x01)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x00000100), v)
}

func TestSetRangeInvalid(t *testing.T) {
	_, err := setRange(0, 8, 16, 1)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, err = setRange(0, 32, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	// value does not fit in the range
	_, err = setRange(0, 15, 8, 0x100)
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestBitHelpers(t *testing.T) {
	assert.Equal(t, uint32(0x10), setBit(0, 4))
	assert.Equal(t, uint32(0), clearBit(0x10, 4))
	assert.True(t, testBit(0x10, 4))
	assert.False(t, testBit(0x10, 3))
	assert.Equal(t, uint32(0x10), setBitVal(0, 4, true))
	assert.Equal(t, uint32(0), setBitVal(0x10, 4, false))
}
