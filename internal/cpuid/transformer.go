// Copyright (C) 2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package cpuid

import "errors"

// Errors reported while transforming a CPUID table. All of them are fatal to
// the vCPU being constructed; none are retried at this layer.
var (
	// ErrVendorQuery indicates the host CPU vendor identity could not be read.
	ErrVendorQuery = errors.New("host CPU vendor identification is not available")
	// ErrInvalidVendor indicates the operation is not permitted for the current vendor.
	ErrInvalidVendor = errors.New("operation not permitted for current vendor")
	// ErrVcpuCountOverflow indicates the maximum number of addressable logical
	// CPUs cannot be stored in a byte-wide topology field.
	ErrVcpuCountOverflow = errors.New("maximum number of addressable logical CPUs cannot be stored in a byte")
	// ErrTableFull indicates the CPUID table cannot hold additional entries.
	ErrTableFull = errors.New("CPUID table cannot hold additional entries")
	// ErrInvalidParameters indicates an internal helper received out-of-range input.
	ErrInvalidParameters = errors.New("invalid parameters")
)

// EntryTransformerFn rewrites a single CPUID entry for the given VM spec. It
// must only read the spec and mutate the one entry it is handed.
type EntryTransformerFn func(entry *CpuidEntry, spec *VMSpec) error

// Transformer rewrites a raw host CPUID table in place so it describes the
// guest defined by the VM spec instead of the host.
//
// Process visits every entry exactly once and applies at most one rewrite
// function per entry. It stops at the first failing rewrite and returns its
// error; entries already rewritten are left as-is, so a failed table must be
// discarded. Process assumes raw hardware values and must be called exactly
// once per fetched table: re-applying it to an already transformed table is
// not supported.
type Transformer interface {
	Process(cpuid *Cpuid, spec *VMSpec) error
}

// entryLookup is the capability each vendor transformer supplies: map an
// entry's (function, index) to its rewrite function, or nil for passthrough.
type entryLookup interface {
	entryTransformerFn(entry *CpuidEntry) EntryTransformerFn
}

// processEntries is the default transformation algorithm shared by the
// vendor transformers: walk the table in order and apply the registered
// rewrite function, if any, to each entry.
func processEntries(lookup entryLookup, cpuid *Cpuid, spec *VMSpec) error {
	for i := range *cpuid {
		entry := &(*cpuid)[i]
		if fn := lookup.entryTransformerFn(entry); fn != nil {
			if err := fn(entry, spec); err != nil {
				return err
			}
		}
	}
	return nil
}

// NewTransformer returns the transformer matching the spec's vendor
// identity, or ErrInvalidVendor for vendors this package does not emulate.
func NewTransformer(spec *VMSpec) (Transformer, error) {
	vendor := spec.VendorID()
	switch string(vendor[:]) {
	case IntelVendor:
		return &intelTransformer{}, nil
	case AMDVendor:
		return &amdTransformer{}, nil
	}
	return nil, ErrInvalidVendor
}

// Filter is the package entry point used by vCPU construction: it selects
// the vendor transformer for the spec and processes the table with it.
func Filter(cpuid *Cpuid, spec *VMSpec) error {
	transformer, err := NewTransformer(spec)
	if err != nil {
		return err
	}
	return transformer.Process(cpuid, spec)
}
