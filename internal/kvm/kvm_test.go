// Copyright (C) 2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

//go:build linux

package kvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcpuid/internal/cpuid"
)

func TestIoctlRequestEncoding(t *testing.T) {
	// reference values from linux/kvm.h
	assert.Equal(t, uintptr(0xC008AE05), ioWR(nrGetSupportedCPUID, headerSize))
	assert.Equal(t, uintptr(0x4008AE90), ioW(nrSetCPUID2, headerSize))
}

func TestEncodeTableLayout(t *testing.T) {
	table := cpuid.Cpuid{
		{Function: 0x1, Index: 0, Flags: 0, Eax: 0xAABBCCDD},
	}
	buf, err := encodeTable(table)
	require.NoError(t, err)

	require.Len(t, buf, headerSize+entrySize)
	assert.Equal(t, byte(1), buf[0], "nent")
	assert.Equal(t, byte(0x1), buf[headerSize], "function, little-endian")
	assert.Equal(t, byte(0xDD), buf[headerSize+12], "eax low byte")

	decoded, err := decodeTable(buf)
	require.NoError(t, err)
	assert.Equal(t, table, decoded)
}

func TestEncodeTableTooLarge(t *testing.T) {
	table := make(cpuid.Cpuid, cpuid.MaxEntries+1)
	_, err := encodeTable(table)
	assert.Error(t, err)
}

func TestDecodeTableBogusCount(t *testing.T) {
	buf := make([]byte, headerSize+entrySize)
	buf[0] = 0xFF // nent far beyond the buffer
	_, err := decodeTable(buf)
	assert.Error(t, err)
}
