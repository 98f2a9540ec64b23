package isa

import (
	"fmt"

	"github.com/ethereum-optimism/rvtrace/rvgo/emu"
	"github.com/ethereum-optimism/rvtrace/rvgo/riscv"
)

// IllegalInstructionError is returned when no catalog entry matches an encoded word.
type IllegalInstructionError struct {
	Word       uint32
	Address    uint64
	Compressed bool
	Xlen       emu.Xlen
}

func (e *IllegalInstructionError) Error() string {
	if e.Compressed {
		return fmt.Sprintf("illegal compressed instruction 0x%04x at 0x%x (%s)", uint16(e.Word), e.Address, e.Xlen)
	}
	return fmt.Sprintf("illegal instruction 0x%08x at 0x%x (%s)", e.Word, e.Address, e.Xlen)
}

func (e *IllegalInstructionError) Code() uint64 { return riscv.ErrUnknownOpCode }

// AlignmentError is the architectural alignment fault: the ISA's own rule for the
// access size is violated. This is distinct from the MMU's natural alignment check.
type AlignmentError struct {
	Address  uint64 // effective address
	Required uint64 // required alignment in bytes
	Rs1      uint8
	Imm      uint64
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("address 0x%x (%s%+d) is not %d-byte aligned", e.Address, regName(e.Rs1), int64(e.Imm), e.Required)
}

func (e *AlignmentError) Code() uint64 { return riscv.ErrNotAlignedAddr }

// AssertionError is raised by a virtual assertion whose operands do not satisfy it.
type AssertionError struct {
	Assertion string
	Lhs, Rhs  uint64
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("virtual assertion %q failed: 0x%x, 0x%x", e.Assertion, e.Lhs, e.Rhs)
}

func (e *AssertionError) Code() uint64 { return riscv.ErrAssertionFailed }
