package isa

import (
	"fmt"

	"github.com/ethereum-optimism/rvtrace/rvgo/emu"
)

// Instruction is one decoded instruction, or one micro-op of a virtual sequence.
// It is created once per fetch and never modified afterwards.
type Instruction struct {
	Kind         Kind
	Address      uint64
	Operands     Format
	IsCompressed bool

	// VirtualSequenceRemaining is set on micro-ops only: the number of micro-ops
	// that follow this one in the same expansion.
	VirtualSequenceRemaining *uint16
}

func (in Instruction) Name() string {
	return in.Kind.String()
}

// Size is the encoded length in bytes, used for the fall-through PC and link values.
func (in Instruction) Size() uint64 {
	if in.IsCompressed {
		return 2
	}
	return 4
}

// SequenceRemaining returns the countdown of a micro-op, and false for macro-instructions.
func (in Instruction) SequenceRemaining() (uint16, bool) {
	if in.VirtualSequenceRemaining == nil {
		return 0, false
	}
	return *in.VirtualSequenceRemaining, true
}

func (in Instruction) String() string {
	ops := ""
	if in.Operands != nil {
		ops = in.Operands.String()
	}
	if ops == "" {
		return in.Name()
	}
	return in.Name() + " " + ops
}

func (in Instruction) checkOperands() error {
	if in.Operands == nil {
		return fmt.Errorf("instruction %s at 0x%x has no operands", in.Name(), in.Address)
	}
	rd, rs1, rs2 := in.Operands.Registers()
	for _, r := range [...]uint8{rd, rs1, rs2} {
		if err := emu.CheckRegister(r); err != nil {
			return err
		}
	}
	return nil
}

// VirtualSequence returns the micro-ops this instruction expands to at the CPU's
// width, or nil when the instruction executes as a single primitive.
// Expansions that need advice read it from the current register values.
func (in Instruction) VirtualSequence(cpu *emu.CPU) []Instruction {
	expand := in.Kind.info().expand
	if expand == nil || in.VirtualSequenceRemaining != nil {
		return nil
	}
	return expand(in, cpu)
}

// Execute performs the architectural effect of the instruction without recording anything.
func (in Instruction) Execute(cpu *emu.CPU, mmu *emu.MMU) error {
	if err := in.checkOperands(); err != nil {
		return err
	}
	_, err := in.Kind.info().exec(in, cpu, mmu)
	return err
}

// Trace performs the same effect as Execute. Instructions that expand run their
// virtual sequence instead, one micro-op at a time. When trace is non-nil every
// executed primitive appends one Cycle.
//
// Virtual registers are cleared once the sequence is done, whether it completed
// or faulted, so nothing leaks into the next instruction.
func (in Instruction) Trace(cpu *emu.CPU, mmu *emu.MMU, trace *Trace) error {
	if seq := in.VirtualSequence(cpu); seq != nil {
		defer cpu.ClearVirtualRegisters()
		for _, micro := range seq {
			if err := micro.Trace(cpu, mmu, trace); err != nil {
				return err
			}
		}
		return nil
	}

	if err := in.checkOperands(); err != nil {
		return err
	}
	rd, rs1, rs2 := in.Operands.Registers()
	regs := RegisterState{
		Rs1Value: cpu.Read(rs1),
		Rs2Value: cpu.Read(rs2),
		RdPre:    cpu.Read(rd),
	}
	access, err := in.Kind.info().exec(in, cpu, mmu)
	if err != nil {
		return err
	}
	if trace != nil {
		regs.RdPost = cpu.Read(rd)
		trace.Append(Cycle{Instruction: in, RAMAccess: access, Registers: regs})
	}
	return nil
}
