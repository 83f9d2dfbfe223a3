// Copyright (C) 2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFlagsCPUBounds(t *testing.T) {
	resetFlags := func() {
		flagCPUIndex = 0
		flagCPUCount = 1
		flagSMT = false
		flagInput = ""
		flagOutput = ""
	}
	t.Cleanup(resetFlags)

	tests := []struct {
		name     string
		cpuIndex int
		cpuCount int
		wantErr  bool
	}{
		{name: "defaults", cpuIndex: 0, cpuCount: 1, wantErr: false},
		{name: "last vcpu", cpuIndex: 3, cpuCount: 4, wantErr: false},
		{name: "zero count", cpuIndex: 0, cpuCount: 0, wantErr: true},
		{name: "count above byte range", cpuIndex: 0, cpuCount: 256, wantErr: true},
		{name: "index out of range", cpuIndex: 4, cpuCount: 4, wantErr: true},
		{name: "negative index", cpuIndex: -1, cpuCount: 2, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			flagCPUIndex = tt.cpuIndex
			flagCPUCount = tt.cpuCount
			err := validateFlags(Cmd, nil)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFlagsMissingInput(t *testing.T) {
	flagCPUIndex = 0
	flagCPUCount = 1
	flagInput = "/nonexistent/cpuid.yaml"
	t.Cleanup(func() { flagInput = "" })

	err := validateFlags(Cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}
