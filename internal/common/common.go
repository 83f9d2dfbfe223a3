// Package common defines data structures and functions that are used by
// multiple application commands, e.g., probe and transform.
package common

// Copyright (C) 2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"path/filepath"

	"golang.org/x/term"
)

var AppName = filepath.Base(os.Args[0])

// Flag names defined on the root command but read by subcommands.
const (
	FlagDebugName     = "debug"
	FlagLogStdOutName = "log-stdout"
)

// IsTerminal reports whether the given file writes to a terminal, used to
// pick between the text listing and the YAML dump on stdout.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
