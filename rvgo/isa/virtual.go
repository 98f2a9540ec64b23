package isa

import (
	"github.com/ethereum-optimism/rvtrace/rvgo/emu"
)

// Semantics of the virtual instructions. They only appear inside expansions.

var execVirtualLW = load(4, true)

func assertAlignment(n uint64) execFunc {
	return func(in Instruction, cpu *emu.CPU, _ *emu.MMU) (emu.RAMAccess, error) {
		ops, ok := in.Operands.(FormatAssertAlign)
		if !ok {
			return emu.RAMAccess{}, badOperands(in)
		}
		addr := cpu.Unsigned(cpu.Read(ops.Rs1) + ops.Imm)
		return emu.RAMAccess{}, checkAlignment(addr, n, ops.Rs1, ops.Imm)
	}
}

func execVirtualAdvice(in Instruction, cpu *emu.CPU, _ *emu.MMU) (emu.RAMAccess, error) {
	ops, ok := in.Operands.(FormatAdvice)
	if !ok {
		return emu.RAMAccess{}, badOperands(in)
	}
	cpu.Write(ops.Rd, ops.Advice)
	return emu.RAMAccess{}, nil
}

// assertion builds a check over rs1 and rs2 of a FormatB operand tuple.
func assertion(name string, pred func(cpu *emu.CPU, a, b uint64) bool) execFunc {
	return func(in Instruction, cpu *emu.CPU, _ *emu.MMU) (emu.RAMAccess, error) {
		ops, ok := in.Operands.(FormatB)
		if !ok {
			return emu.RAMAccess{}, badOperands(in)
		}
		a, b := cpu.Read(ops.Rs1), cpu.Read(ops.Rs2)
		if !pred(cpu, a, b) {
			return emu.RAMAccess{}, &AssertionError{Assertion: name, Lhs: a, Rhs: b}
		}
		return emu.RAMAccess{}, nil
	}
}

func assertEQ(_ *emu.CPU, a, b uint64) bool {
	return a == b
}

// assertValidDiv0 checks (divisor, quotient): a zero divisor must yield all ones.
func assertValidDiv0(cpu *emu.CPU, y, q uint64) bool {
	return y != 0 || cpu.Unsigned(q) == cpu.Unsigned(^uint64(0))
}

// assertValidUnsignedRemainder checks (remainder, divisor).
func assertValidUnsignedRemainder(cpu *emu.CPU, r, y uint64) bool {
	return cpu.Unsigned(y) == 0 || cpu.Unsigned(r) < cpu.Unsigned(y)
}

func absU(v uint64) uint64 {
	if int64(v) < 0 {
		return -v
	}
	return v
}

// assertValidSignedRemainder checks (remainder, divisor).
// Registers hold sign-extended values, so the 64-bit view is the signed view at any width.
func assertValidSignedRemainder(_ *emu.CPU, r, y uint64) bool {
	return y == 0 || absU(r) < absU(y)
}

// assertRemainderSign checks (remainder, dividend).
func assertRemainderSign(_ *emu.CPU, r, x uint64) bool {
	return r == 0 || (int64(r) < 0) == (int64(x) < 0)
}
