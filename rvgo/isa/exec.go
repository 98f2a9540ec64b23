package isa

import (
	"fmt"

	"github.com/ethereum-optimism/rvtrace/rvgo/emu"
)

// Direct semantics of the primitive instructions. Control flow is relative to
// the instruction's own address: the caller has already moved PC past it.

func badOperands(in Instruction) error {
	return fmt.Errorf("%s at 0x%x: unexpected operand format %T", in.Name(), in.Address, in.Operands)
}

func execInvalid(in Instruction, _ *emu.CPU, _ *emu.MMU) (emu.RAMAccess, error) {
	return emu.RAMAccess{}, &IllegalInstructionError{Address: in.Address, Compressed: in.IsCompressed}
}

func execNop(Instruction, *emu.CPU, *emu.MMU) (emu.RAMAccess, error) {
	return emu.RAMAccess{}, nil
}

func execECALL(_ Instruction, cpu *emu.CPU, mmu *emu.MMU) (emu.RAMAccess, error) {
	return emu.RAMAccess{}, emu.Syscall(cpu, mmu.Memory())
}

func execLUI(in Instruction, cpu *emu.CPU, _ *emu.MMU) (emu.RAMAccess, error) {
	ops, ok := in.Operands.(FormatU)
	if !ok {
		return emu.RAMAccess{}, badOperands(in)
	}
	cpu.Write(ops.Rd, ops.Imm)
	return emu.RAMAccess{}, nil
}

func execAUIPC(in Instruction, cpu *emu.CPU, _ *emu.MMU) (emu.RAMAccess, error) {
	ops, ok := in.Operands.(FormatU)
	if !ok {
		return emu.RAMAccess{}, badOperands(in)
	}
	cpu.Write(ops.Rd, in.Address+ops.Imm)
	return emu.RAMAccess{}, nil
}

func execJAL(in Instruction, cpu *emu.CPU, _ *emu.MMU) (emu.RAMAccess, error) {
	ops, ok := in.Operands.(FormatJ)
	if !ok {
		return emu.RAMAccess{}, badOperands(in)
	}
	cpu.Write(ops.Rd, in.Address+in.Size())
	cpu.PC = cpu.Unsigned(in.Address + ops.Imm)
	return emu.RAMAccess{}, nil
}

func execJALR(in Instruction, cpu *emu.CPU, _ *emu.MMU) (emu.RAMAccess, error) {
	ops, ok := in.Operands.(FormatI)
	if !ok {
		return emu.RAMAccess{}, badOperands(in)
	}
	// rs1 is read before rd is written, they may be the same register
	target := (cpu.Read(ops.Rs1) + ops.Imm) &^ 1
	cpu.Write(ops.Rd, in.Address+in.Size())
	cpu.PC = cpu.Unsigned(target)
	return emu.RAMAccess{}, nil
}

func branch(cond func(cpu *emu.CPU, a, b uint64) bool) execFunc {
	return func(in Instruction, cpu *emu.CPU, _ *emu.MMU) (emu.RAMAccess, error) {
		ops, ok := in.Operands.(FormatB)
		if !ok {
			return emu.RAMAccess{}, badOperands(in)
		}
		if cond(cpu, cpu.Read(ops.Rs1), cpu.Read(ops.Rs2)) {
			cpu.PC = cpu.Unsigned(in.Address + ops.Imm)
		}
		return emu.RAMAccess{}, nil
	}
}

func opImm(op binOp) execFunc {
	return func(in Instruction, cpu *emu.CPU, _ *emu.MMU) (emu.RAMAccess, error) {
		ops, ok := in.Operands.(FormatI)
		if !ok {
			return emu.RAMAccess{}, badOperands(in)
		}
		cpu.Write(ops.Rd, op(cpu, cpu.Read(ops.Rs1), cpu.SignExtend(ops.Imm)))
		return emu.RAMAccess{}, nil
	}
}

func opReg(op binOp) execFunc {
	return func(in Instruction, cpu *emu.CPU, _ *emu.MMU) (emu.RAMAccess, error) {
		ops, ok := in.Operands.(FormatR)
		if !ok {
			return emu.RAMAccess{}, badOperands(in)
		}
		cpu.Write(ops.Rd, op(cpu, cpu.Read(ops.Rs1), cpu.Read(ops.Rs2)))
		return emu.RAMAccess{}, nil
	}
}

// checkAlignment applies the architectural alignment rule of halfword and word
// accesses. Bytes need none, doublewords are left to the MMU.
func checkAlignment(addr, width uint64, rs1 uint8, imm uint64) error {
	if width != 2 && width != 4 {
		return nil
	}
	if addr&(width-1) != 0 {
		return &AlignmentError{Address: addr, Required: width, Rs1: rs1, Imm: imm}
	}
	return nil
}

func load(width uint64, signed bool) execFunc {
	return func(in Instruction, cpu *emu.CPU, mmu *emu.MMU) (emu.RAMAccess, error) {
		ops, ok := in.Operands.(FormatLoad)
		if !ok {
			return emu.RAMAccess{}, badOperands(in)
		}
		addr := cpu.Unsigned(cpu.Read(ops.Rs1) + ops.Imm)
		if err := checkAlignment(addr, width, ops.Rs1, ops.Imm); err != nil {
			return emu.RAMAccess{}, err
		}
		v, access, err := mmu.Load(addr, width)
		if err != nil {
			return emu.RAMAccess{}, err
		}
		if signed && width < 8 {
			v = signExtend(v, uint(width*8-1))
		}
		cpu.Write(ops.Rd, v)
		return access, nil
	}
}

func store(width uint64) execFunc {
	return func(in Instruction, cpu *emu.CPU, mmu *emu.MMU) (emu.RAMAccess, error) {
		ops, ok := in.Operands.(FormatS)
		if !ok {
			return emu.RAMAccess{}, badOperands(in)
		}
		addr := cpu.Unsigned(cpu.Read(ops.Rs1) + ops.Imm)
		if err := checkAlignment(addr, width, ops.Rs1, ops.Imm); err != nil {
			return emu.RAMAccess{}, err
		}
		return mmu.Store(addr, width, cpu.Read(ops.Rs2))
	}
}
