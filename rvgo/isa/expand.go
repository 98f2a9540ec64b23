package isa

import (
	"github.com/ethereum-optimism/rvtrace/rvgo/emu"
	"github.com/ethereum-optimism/rvtrace/rvgo/riscv"
)

// sequence collects the micro-ops of one expansion. Every micro-op inherits the
// address and encoding size of the instruction it replaces.
type sequence struct {
	parent Instruction
	ops    []Instruction
}

func newSequence(parent Instruction, capacity int) *sequence {
	return &sequence{parent: parent, ops: make([]Instruction, 0, capacity)}
}

func (s *sequence) emit(kind Kind, operands Format) {
	s.ops = append(s.ops, Instruction{
		Kind:         kind,
		Address:      s.parent.Address,
		Operands:     operands,
		IsCompressed: s.parent.IsCompressed,
	})
}

// finish numbers the micro-ops so that the last one has zero remaining.
func (s *sequence) finish() []Instruction {
	n := len(s.ops)
	for i := range s.ops {
		remaining := uint16(n - 1 - i)
		s.ops[i].VirtualSequenceRemaining = &remaining
	}
	return s.ops
}

func v(i int) uint8 {
	return riscv.VirtualRegister(i)
}

func alignmentAssertion(width uint64) (Kind, bool) {
	switch width {
	case 2:
		return VirtualAssertHalfwordAlignment, true
	case 4:
		return VirtualAssertWordAlignment, true
	default:
		return Invalid, false
	}
}

// expandLoad replaces a sub-word load with a naturally aligned load of the
// enclosing register-sized container, followed by shifts that isolate the value.
func expandLoad(width uint64, signed bool) expandFunc {
	return func(in Instruction, cpu *emu.CPU) []Instruction {
		ops, ok := in.Operands.(FormatLoad)
		if !ok {
			return nil
		}
		xlenBytes := cpu.Xlen.Bytes()
		s := newSequence(in, 9)
		if assert, ok := alignmentAssertion(width); ok {
			s.emit(assert, FormatAssertAlign{Rs1: ops.Rs1, Imm: ops.Imm})
		}
		if width == xlenBytes {
			// a full word in 32-bit mode is already naturally aligned
			s.emit(VirtualLW, ops)
			return s.finish()
		}

		addr, containerAddr, container, shift := v(0), v(1), v(2), v(3)
		s.emit(ADDI, FormatI{Rd: addr, Rs1: ops.Rs1, Imm: ops.Imm})
		s.emit(ANDI, FormatI{Rd: containerAddr, Rs1: addr, Imm: -xlenBytes})
		if cpu.Xlen == emu.Bit32 {
			s.emit(VirtualLW, FormatLoad{Rd: container, Rs1: containerAddr})
		} else {
			s.emit(LD, FormatLoad{Rd: container, Rs1: containerAddr})
		}
		s.emit(XORI, FormatI{Rd: shift, Rs1: addr, Imm: xlenBytes - width})
		s.emit(SLLI, FormatI{Rd: shift, Rs1: shift, Imm: 3})
		s.emit(SLL, FormatR{Rd: ops.Rd, Rs1: container, Rs2: shift})
		extract := SRLI
		if signed {
			extract = SRAI
		}
		s.emit(extract, FormatI{Rd: ops.Rd, Rs1: ops.Rd, Imm: uint64(cpu.Xlen) - width*8})
		return s.finish()
	}
}

// expandStore merges the stored bytes into the enclosing container with a
// read-modify-write of the naturally aligned register-sized word.
func expandStore(width uint64) expandFunc {
	return func(in Instruction, cpu *emu.CPU) []Instruction {
		ops, ok := in.Operands.(FormatS)
		if !ok {
			return nil
		}
		xlenBytes := cpu.Xlen.Bytes()
		s := newSequence(in, 14)
		if assert, ok := alignmentAssertion(width); ok {
			s.emit(assert, FormatAssertAlign{Rs1: ops.Rs1, Imm: ops.Imm})
		}
		if width == xlenBytes {
			s.emit(VirtualSW, ops)
			return s.finish()
		}

		addr, containerAddr, container, shift, mask, value := v(0), v(1), v(2), v(3), v(4), v(5)
		s.emit(ADDI, FormatI{Rd: addr, Rs1: ops.Rs1, Imm: ops.Imm})
		s.emit(ANDI, FormatI{Rd: containerAddr, Rs1: addr, Imm: -xlenBytes})
		if cpu.Xlen == emu.Bit32 {
			s.emit(VirtualLW, FormatLoad{Rd: container, Rs1: containerAddr})
		} else {
			s.emit(LD, FormatLoad{Rd: container, Rs1: containerAddr})
		}
		s.emit(SLLI, FormatI{Rd: shift, Rs1: addr, Imm: 3})
		if width == 1 {
			s.emit(ADDI, FormatI{Rd: mask, Rs1: 0, Imm: 0xFF})
		} else {
			s.emit(ADDI, FormatI{Rd: mask, Rs1: 0, Imm: ^uint64(0)})
			s.emit(SRLI, FormatI{Rd: mask, Rs1: mask, Imm: uint64(cpu.Xlen) - width*8})
		}
		s.emit(SLL, FormatR{Rd: mask, Rs1: mask, Rs2: shift})
		s.emit(SLL, FormatR{Rd: value, Rs1: ops.Rs2, Rs2: shift})
		s.emit(XOR, FormatR{Rd: value, Rs1: container, Rs2: value})
		s.emit(AND, FormatR{Rd: value, Rs1: value, Rs2: mask})
		s.emit(XOR, FormatR{Rd: container, Rs1: container, Rs2: value})
		if cpu.Xlen == emu.Bit32 {
			s.emit(VirtualSW, FormatS{Rs1: containerAddr, Rs2: container})
		} else {
			s.emit(SD, FormatS{Rs1: containerAddr, Rs2: container})
		}
		return s.finish()
	}
}

// expandDivision replaces a division or remainder with untrusted advice for the
// quotient and remainder, and assertions that pin them down:
// x == q*y + r, the remainder bound and sign, and the division-by-zero result.
func expandDivision(signed, remainder bool) expandFunc {
	return func(in Instruction, cpu *emu.CPU) []Instruction {
		ops, ok := in.Operands.(FormatR)
		if !ok {
			return nil
		}
		x, y := cpu.Read(ops.Rs1), cpu.Read(ops.Rs2)
		var q, r uint64
		if signed {
			q, r = divOp(cpu, x, y), remOp(cpu, x, y)
		} else {
			q, r = divuOp(cpu, x, y), remuOp(cpu, x, y)
		}

		vq, vr, vt := v(0), v(1), v(2)
		s := newSequence(in, 9)
		s.emit(VirtualAdvice, FormatAdvice{Rd: vq, Advice: q})
		s.emit(VirtualAdvice, FormatAdvice{Rd: vr, Advice: r})
		if signed {
			s.emit(VirtualAssertValidSignedRemainder, FormatB{Rs1: vr, Rs2: ops.Rs2})
			s.emit(VirtualAssertRemainderSign, FormatB{Rs1: vr, Rs2: ops.Rs1})
		} else {
			s.emit(VirtualAssertValidUnsignedRemainder, FormatB{Rs1: vr, Rs2: ops.Rs2})
		}
		s.emit(VirtualAssertValidDiv0, FormatB{Rs1: ops.Rs2, Rs2: vq})
		s.emit(MUL, FormatR{Rd: vt, Rs1: vq, Rs2: ops.Rs2})
		s.emit(ADD, FormatR{Rd: vt, Rs1: vt, Rs2: vr})
		s.emit(VirtualAssertEQ, FormatB{Rs1: vt, Rs2: ops.Rs1})
		result := vq
		if remainder {
			result = vr
		}
		s.emit(ADDI, FormatI{Rd: ops.Rd, Rs1: result, Imm: 0})
		return s.finish()
	}
}
