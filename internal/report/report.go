// Copyright (C) 2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package report reads and writes CPUID leaf tables in the formats the
// command line exchanges: a YAML dump for files and pipelines, and an
// aligned text listing for terminals.
package report

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v2"

	"vcpuid/internal/cpuid"
)

// HexU32 is a uint32 rendered as 0x-prefixed hex in YAML. Plain decimal
// values are accepted on input.
type HexU32 uint32

// MarshalYAML implements yaml.Marshaler.
func (h HexU32) MarshalYAML() (interface{}, error) {
	return fmt.Sprintf("%#010x", uint32(h)), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (h *HexU32) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	var v uint64
	if _, err := fmt.Sscanf(raw, "0x%x", &v); err != nil {
		if _, err := fmt.Sscanf(raw, "%d", &v); err != nil {
			return fmt.Errorf("invalid register value %q", raw)
		}
	}
	if v > 0xFFFFFFFF {
		return fmt.Errorf("register value %q exceeds 32 bits", raw)
	}
	*h = HexU32(v)
	return nil
}

// Entry is the dump file form of one CPUID table entry.
type Entry struct {
	Function HexU32 `yaml:"function"`
	Index    HexU32 `yaml:"index"`
	Flags    HexU32 `yaml:"flags"`
	Eax      HexU32 `yaml:"eax"`
	Ebx      HexU32 `yaml:"ebx"`
	Ecx      HexU32 `yaml:"ecx"`
	Edx      HexU32 `yaml:"edx"`
}

// WriteYAML writes a CPUID table as a YAML dump.
func WriteYAML(w io.Writer, table cpuid.Cpuid) error {
	entries := make([]Entry, 0, len(table))
	for _, e := range table {
		entries = append(entries, Entry{
			Function: HexU32(e.Function),
			Index:    HexU32(e.Index),
			Flags:    HexU32(e.Flags),
			Eax:      HexU32(e.Eax),
			Ebx:      HexU32(e.Ebx),
			Ecx:      HexU32(e.Ecx),
			Edx:      HexU32(e.Edx),
		})
	}
	out, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling CPUID table: %w", err)
	}
	_, err = w.Write(out)
	return err
}

// ReadYAML parses a YAML dump back into a CPUID table, preserving entry
// order.
func ReadYAML(r io.Reader) (cpuid.Cpuid, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parsing CPUID table: %w", err)
	}
	table := make(cpuid.Cpuid, 0, len(entries))
	for _, e := range entries {
		table = append(table, cpuid.CpuidEntry{
			Function: uint32(e.Function),
			Index:    uint32(e.Index),
			Flags:    uint32(e.Flags),
			Eax:      uint32(e.Eax),
			Ebx:      uint32(e.Ebx),
			Ecx:      uint32(e.Ecx),
			Edx:      uint32(e.Edx),
		})
	}
	return table, nil
}

// WriteText writes a human-readable listing, one leaf per line.
func WriteText(w io.Writer, table cpuid.Cpuid) error {
	for _, e := range table {
		_, err := fmt.Fprintf(w, "0x%08x 0x%02x: eax=0x%08x ebx=0x%08x ecx=0x%08x edx=0x%08x (flags:%x)\n",
			e.Function, e.Index, e.Eax, e.Ebx, e.Ecx, e.Edx, e.Flags)
		if err != nil {
			return err
		}
	}
	return nil
}
