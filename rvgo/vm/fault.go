package vm

import (
	"errors"
	"fmt"

	"github.com/ethereum-optimism/rvtrace/rvgo/emu"
	"github.com/ethereum-optimism/rvtrace/rvgo/isa"
	"github.com/ethereum-optimism/rvtrace/rvgo/riscv"
)

type FaultKind uint8

const (
	FaultUnknown FaultKind = iota
	FaultFetch
	FaultIllegalInstruction
	FaultAlignment
	FaultMisalignedAccess
	FaultAssertion
	FaultSyscall
	FaultUnsupportedState
)

func (k FaultKind) String() string {
	switch k {
	case FaultFetch:
		return "fetch"
	case FaultIllegalInstruction:
		return "illegal-instruction"
	case FaultAlignment:
		return "alignment"
	case FaultMisalignedAccess:
		return "misaligned-access"
	case FaultAssertion:
		return "assertion"
	case FaultSyscall:
		return "syscall"
	case FaultUnsupportedState:
		return "unsupported-state"
	default:
		return "unknown"
	}
}

// Fault reports a step that could not complete. The state is left at the start of
// the failing instruction, and the trace holds every cycle up to it.
type Fault struct {
	Kind    FaultKind
	Step    uint64
	Address uint64
	Word    uint32

	// Instruction and Operands are empty when the word did not decode.
	Instruction string
	Operands    string

	Err error
}

func (f *Fault) Error() string {
	if f.Instruction == "" {
		return fmt.Sprintf("%s fault at step %d, pc 0x%x (word %08x): %v", f.Kind, f.Step, f.Address, f.Word, f.Err)
	}
	return fmt.Sprintf("%s fault at step %d, pc 0x%x (%s %s): %v", f.Kind, f.Step, f.Address, f.Instruction, f.Operands, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Code is the numeric fault code of the underlying error, riscv.ErrUnknownFault if it has none.
func (f *Fault) Code() uint64 {
	var coded interface{ Code() uint64 }
	if errors.As(f.Err, &coded) {
		return coded.Code()
	}
	return riscv.ErrUnknownFault
}

func classify(err error) FaultKind {
	var (
		illegal     *isa.IllegalInstructionError
		alignment   *isa.AlignmentError
		assertion   *isa.AssertionError
		misaligned  *emu.MisalignedAccessError
		syscall     *emu.UnsupportedSyscallError
		unsupported *emu.UnsupportedStateError
	)
	switch {
	case errors.As(err, &illegal):
		return FaultIllegalInstruction
	case errors.As(err, &alignment):
		return FaultAlignment
	case errors.As(err, &assertion):
		return FaultAssertion
	case errors.As(err, &misaligned):
		return FaultMisalignedAccess
	case errors.As(err, &syscall):
		return FaultSyscall
	case errors.As(err, &unsupported):
		return FaultUnsupportedState
	default:
		return FaultUnknown
	}
}
