// Copyright (C) 2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

//go:build linux

// Package kvm is the hypervisor boundary: it fetches the CPUID table KVM
// supports for guests and installs a transformed table into a vCPU. The
// transformation itself lives in the cpuid package; this package only moves
// tables across the ioctl interface.
package kvm

import (
	"bytes"
	"encoding/binary"
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"vcpuid/internal/cpuid"
)

const devicePath = "/dev/kvm"

// KVM ioctl request numbers, linux/kvm.h.
const (
	kvmIO uintptr = 0xAE

	nrGetSupportedCPUID uintptr = 0x05
	nrSetCPUID2         uintptr = 0x90

	iocWrite uintptr = 1
	iocRead  uintptr = 2
)

// cpuid2Header is the fixed prefix of struct kvm_cpuid2; the entries follow
// it as a flexible array member.
type cpuid2Header struct {
	Nent    uint32
	Padding uint32
}

// cpuidEntry2 is the wire form of struct kvm_cpuid_entry2.
type cpuidEntry2 struct {
	Function uint32
	Index    uint32
	Flags    uint32
	Eax      uint32
	Ebx      uint32
	Ecx      uint32
	Edx      uint32
	Padding  [3]uint32
}

const (
	headerSize = 8
	entrySize  = 40
)

func ioWR(nr, size uintptr) uintptr {
	return (iocRead|iocWrite)<<30 | size<<16 | kvmIO<<8 | nr
}

func ioW(nr, size uintptr) uintptr {
	return iocWrite<<30 | size<<16 | kvmIO<<8 | nr
}

func addrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}

func ioctl(fd, request, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, request, arg)
	if errno != 0 {
		return errno
	}
	return nil
}

// Open opens the KVM device node.
func Open() (*os.File, error) {
	f, err := os.OpenFile(devicePath, os.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrap(err, "opening KVM device")
	}
	return f, nil
}

// GetSupportedCPUID returns the CPUID table KVM is willing to expose to
// guests, in host enumeration order. The buffer is grown and the ioctl
// retried while KVM reports it is too small.
func GetSupportedCPUID(kvmFd uintptr) (cpuid.Cpuid, error) {
	for nent := 64; nent <= cpuid.MaxEntries; nent *= 2 {
		buf := make([]byte, headerSize+nent*entrySize)
		binary.LittleEndian.PutUint32(buf[0:4], uint32(nent))

		err := ioctl(kvmFd, ioWR(nrGetSupportedCPUID, headerSize), addrOf(buf))
		if err == unix.E2BIG || err == unix.ENOMEM {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "KVM_GET_SUPPORTED_CPUID")
		}
		return decodeTable(buf)
	}
	return nil, errors.Errorf("supported CPUID table exceeds %d entries", cpuid.MaxEntries)
}

// SetCPUID2 installs a transformed CPUID table into the vCPU.
func SetCPUID2(vcpuFd uintptr, table cpuid.Cpuid) error {
	buf, err := encodeTable(table)
	if err != nil {
		return err
	}
	err = ioctl(vcpuFd, ioW(nrSetCPUID2, headerSize), addrOf(buf))
	return errors.Wrap(err, "KVM_SET_CPUID2")
}

func encodeTable(table cpuid.Cpuid) ([]byte, error) {
	if len(table) > cpuid.MaxEntries {
		return nil, errors.Errorf("CPUID table has %d entries, KVM accepts at most %d", len(table), cpuid.MaxEntries)
	}
	var buf bytes.Buffer
	header := cpuid2Header{Nent: uint32(len(table))}
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		return nil, errors.Wrap(err, "encoding CPUID header")
	}
	for _, entry := range table {
		wire := cpuidEntry2{
			Function: entry.Function,
			Index:    entry.Index,
			Flags:    entry.Flags,
			Eax:      entry.Eax,
			Ebx:      entry.Ebx,
			Ecx:      entry.Ecx,
			Edx:      entry.Edx,
		}
		if err := binary.Write(&buf, binary.LittleEndian, wire); err != nil {
			return nil, errors.Wrap(err, "encoding CPUID entry")
		}
	}
	return buf.Bytes(), nil
}

func decodeTable(buf []byte) (cpuid.Cpuid, error) {
	reader := bytes.NewReader(buf)
	var header cpuid2Header
	if err := binary.Read(reader, binary.LittleEndian, &header); err != nil {
		return nil, errors.Wrap(err, "decoding CPUID header")
	}
	if int(header.Nent) > (len(buf)-headerSize)/entrySize {
		return nil, errors.Errorf("KVM reported %d entries for a %d byte buffer", header.Nent, len(buf))
	}
	table := make(cpuid.Cpuid, 0, header.Nent)
	for i := uint32(0); i < header.Nent; i++ {
		var wire cpuidEntry2
		if err := binary.Read(reader, binary.LittleEndian, &wire); err != nil {
			return nil, errors.Wrap(err, "decoding CPUID entry")
		}
		table = append(table, cpuid.CpuidEntry{
			Function: wire.Function,
			Index:    wire.Index,
			Flags:    wire.Flags,
			Eax:      wire.Eax,
			Ebx:      wire.Ebx,
			Ecx:      wire.Ecx,
			Edx:      wire.Edx,
		})
	}
	return table, nil
}
