package emu

import (
	"fmt"

	"github.com/ethereum-optimism/rvtrace/rvgo/riscv"
)

// MisalignedAccessError is raised by the MMU when a primitive access
// is not aligned to its natural width.
type MisalignedAccessError struct {
	Address uint64
	Width   uint64
	Store   bool
}

func (e *MisalignedAccessError) Error() string {
	op := "load"
	if e.Store {
		op = "store"
	}
	return fmt.Sprintf("misaligned %d-byte %s at 0x%x", e.Width, op, e.Address)
}

func (e *MisalignedAccessError) Code() uint64 { return riscv.ErrMisalignedAccess }

// UnsupportedStateError reports a width mode, register index or access width
// outside of what the hart supports.
type UnsupportedStateError struct {
	What  string
	Value any
}

func (e *UnsupportedStateError) Error() string {
	return fmt.Sprintf("unsupported %s: %v", e.What, e.Value)
}

func (e *UnsupportedStateError) Code() uint64 {
	if e.What == "register" {
		return riscv.ErrInvalidRegister
	}
	return riscv.ErrInvalidXlen
}

type UnsupportedSyscallError struct {
	Number uint64
}

func (e *UnsupportedSyscallError) Error() string {
	return fmt.Sprintf("unrecognized system call: %d", e.Number)
}

func (e *UnsupportedSyscallError) Code() uint64 { return riscv.ErrInvalidSyscall }
