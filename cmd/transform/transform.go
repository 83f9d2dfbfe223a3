// Package transform is a subcommand of the root command. It rewrites a host
// CPUID table into the table one guest vCPU should see.
package transform

// Copyright (C) 2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"vcpuid/internal/common"
	"vcpuid/internal/cpuid"
	"vcpuid/internal/kvm"
	"vcpuid/internal/report"
	"vcpuid/internal/util"
)

const cmdName = "transform"

var examples = []string{
	fmt.Sprintf("  Prepare vCPU 0 of a 4 vCPU SMT guest: $ %s %s --cpu-index 0 --cpu-count 4 --smt", common.AppName, cmdName),
	fmt.Sprintf("  Rewrite a captured dump:              $ %s %s --input cpuid.yaml --cpu-count 2 --output vcpu0.yaml", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Short:         "Rewrite a host CPUID table for one guest vCPU",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "primary",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
}

// flag vars
var (
	flagCPUIndex int
	flagCPUCount int
	flagSMT      bool
	flagInput    string
	flagOutput   string
)

// flag names
const (
	flagCPUIndexName = "cpu-index"
	flagCPUCountName = "cpu-count"
	flagSMTName      = "smt"
	flagInputName    = "input"
	flagOutputName   = "output"
)

func init() {
	Cmd.Flags().IntVar(&flagCPUIndex, flagCPUIndexName, 0, "zero-based index of the vCPU the table is prepared for")
	Cmd.Flags().IntVar(&flagCPUCount, flagCPUCountName, 1, "total number of vCPUs of the guest")
	Cmd.Flags().BoolVar(&flagSMT, flagSMTName, false, "expose hyperthreading to the guest")
	Cmd.Flags().StringVar(&flagInput, flagInputName, "", "read the raw table from this YAML dump instead of probing the host")
	Cmd.Flags().StringVar(&flagOutput, flagOutputName, "", "write the transformed table to this file instead of stdout")
}

func validateFlags(cmd *cobra.Command, args []string) error {
	if flagCPUCount < 1 || flagCPUCount > 0xFF {
		return fmt.Errorf("invalid flag value, --%s must be between 1 and 255", flagCPUCountName)
	}
	if flagCPUIndex < 0 || flagCPUIndex >= flagCPUCount {
		return fmt.Errorf("invalid flag value, --%s must be between 0 and %d", flagCPUIndexName, flagCPUCount-1)
	}
	if flagInput != "" {
		path, err := util.AbsPath(flagInput)
		if err != nil {
			return err
		}
		exists, err := util.FileExists(path)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("input file %s does not exist", path)
		}
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		slog.Debug("flag", slog.String("name", f.Name), slog.String("value", f.Value.String()))
	})
	return nil
}

func runCmd(cmd *cobra.Command, args []string) error {
	raw, err := loadTable()
	if err != nil {
		slog.Error("failed to load raw CPUID table", slog.String("error", err.Error()))
		return err
	}

	spec, err := cpuid.NewVMSpec(flagCPUIndex, flagCPUCount, flagSMT)
	if err != nil {
		slog.Error("failed to build VM spec", slog.String("error", err.Error()))
		return err
	}

	before := make(cpuid.Cpuid, len(raw))
	copy(before, raw)

	if err := cpuid.Filter(&raw, spec); err != nil {
		slog.Error("CPUID transformation failed", slog.String("error", err.Error()))
		return err
	}
	logRewrites(before, raw)

	return writeTable(raw)
}

// loadTable reads the raw table from the input dump, or probes the host's
// KVM when no input file was given.
func loadTable() (cpuid.Cpuid, error) {
	if flagInput != "" {
		path, err := util.AbsPath(flagInput)
		if err != nil {
			return nil, err
		}
		in, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer in.Close()
		return report.ReadYAML(in)
	}
	kvmFile, err := kvm.Open()
	if err != nil {
		return nil, err
	}
	defer kvmFile.Close()
	return kvm.GetSupportedCPUID(kvmFile.Fd())
}

// logRewrites reports which leaf functions were changed by the
// transformation. Leaves appended by the vendor transformer count as
// changed.
func logRewrites(before, after cpuid.Cpuid) {
	changed := mapset.NewSet[uint32]()
	for i := range after {
		if i >= len(before) || before[i] != after[i] {
			changed.Add(after[i].Function)
		}
	}
	functions := changed.ToSlice()
	rendered := make([]string, 0, len(functions))
	for _, fn := range functions {
		rendered = append(rendered, fmt.Sprintf("%#x", fn))
	}
	slog.Info("transformed CPUID table",
		slog.Int("entries", len(after)),
		slog.Int("rewritten functions", changed.Cardinality()),
		slog.String("functions", strings.Join(rendered, ",")))
}

func writeTable(table cpuid.Cpuid) error {
	if flagOutput != "" {
		path, err := util.AbsPath(flagOutput)
		if err != nil {
			return err
		}
		out, err := os.Create(path)
		if err != nil {
			return err
		}
		defer out.Close()
		return report.WriteYAML(out, table)
	}
	if common.IsTerminal(os.Stdout) {
		return report.WriteText(os.Stdout, table)
	}
	return report.WriteYAML(os.Stdout, table)
}
