// Package probe is a subcommand of the root command. It dumps the CPUID
// table the host's KVM is willing to expose to guests.
package probe

// Copyright (C) 2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"vcpuid/internal/common"
	"vcpuid/internal/kvm"
	"vcpuid/internal/report"
	"vcpuid/internal/util"
)

const cmdName = "probe"

var examples = []string{
	fmt.Sprintf("  Print the supported CPUID table:  $ %s %s", common.AppName, cmdName),
	fmt.Sprintf("  Save the table for later rewrite: $ %s %s --output cpuid.yaml", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Short:         "Dump the CPUID table KVM supports for guests",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	GroupID:       "primary",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
}

var flagOutput string

const flagOutputName = "output"

func init() {
	Cmd.Flags().StringVar(&flagOutput, flagOutputName, "", "write the YAML dump to this file instead of stdout")
}

func runCmd(cmd *cobra.Command, args []string) error {
	kvmFile, err := kvm.Open()
	if err != nil {
		slog.Error("failed to open KVM device", slog.String("error", err.Error()))
		return err
	}
	defer kvmFile.Close()

	table, err := kvm.GetSupportedCPUID(kvmFile.Fd())
	if err != nil {
		slog.Error("failed to read supported CPUID", slog.String("error", err.Error()))
		return err
	}
	slog.Info("read supported CPUID table", slog.Int("entries", len(table)))

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
