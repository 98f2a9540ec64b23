package isa

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/rvtrace/rvgo/emu"
	"github.com/ethereum-optimism/rvtrace/rvgo/riscv"
)

func newTestState(t *testing.T, xlen emu.Xlen) *emu.State {
	state, err := emu.NewState(xlen)
	require.NoError(t, err)
	return state
}

func rInstr(kind Kind, rd, rs1, rs2 uint8) Instruction {
	return Instruction{Kind: kind, Address: 0x1000, Operands: FormatR{Rd: rd, Rs1: rs1, Rs2: rs2}}
}

func iInstr(kind Kind, rd, rs1 uint8, imm uint64) Instruction {
	return Instruction{Kind: kind, Address: 0x1000, Operands: FormatI{Rd: rd, Rs1: rs1, Imm: imm}}
}

type aluCase struct {
	name string
	xlen emu.Xlen
	kind Kind
	a, b uint64
	want uint64
}

const (
	min32 = 0xFFFF_FFFF_8000_0000 // sign-extended register form of int32 min
	min64 = 0x8000_0000_0000_0000
	ones  = 0xFFFF_FFFF_FFFF_FFFF
)

var aluCases = []aluCase{
	{"add wraps 32", emu.Bit32, ADD, 0x7FFF_FFFF, 1, min32},
	{"add wraps 64", emu.Bit64, ADD, 0x7FFF_FFFF_FFFF_FFFF, 1, min64},
	{"sltu 32 unsigned view", emu.Bit32, SLTU, 1, min32, 1},
	{"slt 32 signed view", emu.Bit32, SLT, min32, 1, 1},
	{"sll masks shift 32", emu.Bit32, SLL, 1, 33, 2},
	{"sll masks shift 64", emu.Bit64, SLL, 1, 65, 2},
	{"srl 32 fills zeroes", emu.Bit32, SRL, min32, 4, 0x0800_0000},
	{"sra 32 extends sign", emu.Bit32, SRA, min32, 4, 0xFFFF_FFFF_F800_0000},
	{"srl 64", emu.Bit64, SRL, min64, 63, 1},
	{"sra 64", emu.Bit64, SRA, min64, 63, ones},

	{"mul low 32", emu.Bit32, MUL, 0x1_0000, 0x1_0000, 0},
	{"mulh 32", emu.Bit32, MULH, min32, min32, 0x4000_0000},
	{"mulhu 32", emu.Bit32, MULHU, ones, ones, 0xFFFF_FFFF_FFFF_FFFE},
	{"mulhsu 32", emu.Bit32, MULHSU, ones, ones, ones},
	{"mulh 64 negatives", emu.Bit64, MULH, ones, ones, 0},
	{"mulh 64 min", emu.Bit64, MULH, min64, min64, 0x4000_0000_0000_0000},
	{"mulhu 64", emu.Bit64, MULHU, ones, ones, 0xFFFF_FFFF_FFFF_FFFE},
	{"mulhsu 64", emu.Bit64, MULHSU, ones, ones, ones},
	{"mulhsu 64 positive", emu.Bit64, MULHSU, 2, min64, 1},

	{"div min by -1 32", emu.Bit32, DIV, min32, ones, min32},
	{"rem min by -1 32", emu.Bit32, REM, min32, ones, 0},
	{"div by zero 32", emu.Bit32, DIV, 7, 0, ones},
	{"divu by zero 32", emu.Bit32, DIVU, 7, 0, ones},
	{"rem by zero 32", emu.Bit32, REM, min32, 0, min32},
	{"remu by zero 32", emu.Bit32, REMU, 7, 0, 7},
	{"div truncates 32", emu.Bit32, DIV, neg(-7), 2, neg(-3)},
	{"rem sign follows dividend 32", emu.Bit32, REM, neg(-7), 2, neg(-1)},
	{"divu 32 unsigned view", emu.Bit32, DIVU, min32, 2, 0x4000_0000},
	{"remu 32 unsigned view", emu.Bit32, REMU, ones, 10, 5},
	{"div min by -1 64", emu.Bit64, DIV, min64, ones, min64},
	{"rem min by -1 64", emu.Bit64, REM, min64, ones, 0},
	{"div by zero 64", emu.Bit64, DIV, 7, 0, ones},
	{"divu by zero 64", emu.Bit64, DIVU, 7, 0, ones},
	{"rem by zero 64", emu.Bit64, REM, neg(-9), 0, neg(-9)},
	{"remu by zero 64", emu.Bit64, REMU, 7, 0, 7},
	{"divu 64", emu.Bit64, DIVU, ones, 2, 0x7FFF_FFFF_FFFF_FFFF},
	{"rem 64", emu.Bit64, REM, 7, neg(-2), 1},

	{"addw wraps", emu.Bit64, ADDW, 0x7FFF_FFFF, 1, min32},
	{"subw ignores upper bits", emu.Bit64, SUBW, 0xAAAA_0000_0000_0005, 6, ones},
	{"sllw", emu.Bit64, SLLW, 1, 31, min32},
	{"srlw", emu.Bit64, SRLW, min32, 4, 0x0800_0000},
	{"sraw", emu.Bit64, SRAW, min32, 4, 0xFFFF_FFFF_F800_0000},
	{"mulw", emu.Bit64, MULW, 0x1_0000, 0x8000, min32},
	{"divw min by -1", emu.Bit64, DIVW, min32, ones, min32},
	{"divw by zero", emu.Bit64, DIVW, 5, 0, ones},
	{"divuw by zero", emu.Bit64, DIVUW, 5, 0, ones},
	{"divuw", emu.Bit64, DIVUW, 0xFFFF_FFFF, 1, ones},
	{"remw by zero", emu.Bit64, REMW, min32, 0, min32},
	{"remuw", emu.Bit64, REMUW, 0x1_0000_000A, 3, 1},
}

func TestRegisterOps(t *testing.T) {
	for _, c := range aluCases {
		t.Run(c.name, func(t *testing.T) {
			for _, traced := range []bool{false, true} {
				state := newTestState(t, c.xlen)
				state.CPU.Write(1, c.a)
				state.CPU.Write(2, c.b)
				in := rInstr(c.kind, 3, 1, 2)
				var err error
				if traced {
					err = in.Trace(state.CPU, state.MMU(), nil)
				} else {
					err = in.Execute(state.CPU, state.MMU())
				}
				require.NoError(t, err)
				require.Equal(t, c.want, state.CPU.Read(3), "traced=%v", traced)
			}
		})
	}
}

func TestImmediateOps(t *testing.T) {
	state := newTestState(t, emu.Bit32)
	state.CPU.Write(1, 0xF0)
	mmu := state.MMU()

	require.NoError(t, iInstr(ADDI, 2, 1, neg(-0xF1)).Execute(state.CPU, mmu))
	require.Equal(t, uint64(ones), state.CPU.Read(2))

	require.NoError(t, iInstr(SLTIU, 3, 1, neg(-1)).Execute(state.CPU, mmu))
	require.Equal(t, uint64(1), state.CPU.Read(3), "immediate compares as unsigned all ones")

	require.NoError(t, iInstr(XORI, 4, 1, neg(-1)).Execute(state.CPU, mmu))
	require.Equal(t, uint64(0xFFFF_FFFF_FFFF_FF0F), state.CPU.Read(4))

	require.NoError(t, iInstr(SRAI, 5, 2, 31).Execute(state.CPU, mmu))
	require.Equal(t, uint64(ones), state.CPU.Read(5))

	// writes to x0 are dropped
	require.NoError(t, iInstr(ADDI, 0, 1, 1).Execute(state.CPU, mmu))
	require.Equal(t, uint64(0), state.CPU.Read(0))
}

func TestUpperImmediates(t *testing.T) {
	state := newTestState(t, emu.Bit32)
	lui := Instruction{Kind: LUI, Address: 0x1000, Operands: FormatU{Rd: 1, Imm: 0xFFFF_FFFF_8000_0000}}
	require.NoError(t, lui.Execute(state.CPU, state.MMU()))
	require.Equal(t, uint64(min32), state.CPU.Read(1))

	auipc := Instruction{Kind: AUIPC, Address: 0x1000, Operands: FormatU{Rd: 2, Imm: 0x2000}}
	require.NoError(t, auipc.Execute(state.CPU, state.MMU()))
	require.Equal(t, uint64(0x3000), state.CPU.Read(2))
}

func TestJumpsAndBranches(t *testing.T) {
	state := newTestState(t, emu.Bit64)
	mmu := state.MMU()

	jal := Instruction{Kind: JAL, Address: 0x1000, Operands: FormatJ{Rd: 1, Imm: neg(-0x10)}}
	require.NoError(t, jal.Execute(state.CPU, mmu))
	require.Equal(t, uint64(0x1004), state.CPU.Read(1))
	require.Equal(t, uint64(0xFF0), state.CPU.PC)

	// rd == rs1: the target uses the old value, low bit cleared
	state.CPU.Write(5, 0x2001)
	jalr := iInstr(JALR, 5, 5, 4)
	require.NoError(t, jalr.Execute(state.CPU, mmu))
	require.Equal(t, uint64(0x2004), state.CPU.PC)
	require.Equal(t, uint64(0x1004), state.CPU.Read(5))

	state.CPU.PC = 0x1004
	state.CPU.Write(6, ones)
	state.CPU.Write(7, 1)
	blt := Instruction{Kind: BLT, Address: 0x1000, Operands: FormatB{Rs1: 6, Rs2: 7, Imm: 0x40}}
	require.NoError(t, blt.Execute(state.CPU, mmu))
	require.Equal(t, uint64(0x1040), state.CPU.PC, "-1 < 1 signed")

	state.CPU.PC = 0x1004
	bltu := Instruction{Kind: BLTU, Address: 0x1000, Operands: FormatB{Rs1: 6, Rs2: 7, Imm: 0x40}}
	require.NoError(t, bltu.Execute(state.CPU, mmu))
	require.Equal(t, uint64(0x1004), state.CPU.PC, "not taken, PC stays on fall-through")
}

func TestJumpTarget32BitWraps(t *testing.T) {
	state := newTestState(t, emu.Bit32)
	jal := Instruction{Kind: JAL, Address: 0x10, Operands: FormatJ{Imm: neg(-0x20)}}
	require.NoError(t, jal.Execute(state.CPU, state.MMU()))
	require.Equal(t, uint64(0xFFFF_FFF0), state.CPU.PC)
}

func TestDirectLoadStore(t *testing.T) {
	state := newTestState(t, emu.Bit64)
	mmu := state.MMU()
	state.Memory.SetUnaligned(0x1000, []byte{0xCD, 0xAB, 0x34, 0x12, 0x78, 0x56, 0xF0, 0xDE})
	state.CPU.Write(11, 0x1000)

	ld := Instruction{Kind: LD, Address: 0x40, Operands: FormatLoad{Rd: 10, Rs1: 11}}
	require.NoError(t, ld.Execute(state.CPU, mmu))
	require.Equal(t, uint64(0xDEF0_5678_1234_ABCD), state.CPU.Read(10))

	lw := Instruction{Kind: LW, Address: 0x40, Operands: FormatLoad{Rd: 10, Rs1: 11, Imm: 4}}
	require.NoError(t, lw.Execute(state.CPU, mmu))
	require.Equal(t, uint64(0xFFFF_FFFF_DEF0_5678), state.CPU.Read(10))

	lwu := Instruction{Kind: LWU, Address: 0x40, Operands: FormatLoad{Rd: 10, Rs1: 11, Imm: 4}}
	require.NoError(t, lwu.Execute(state.CPU, mmu))
	require.Equal(t, uint64(0xDEF0_5678), state.CPU.Read(10))

	state.CPU.Write(12, 0x99)
	sb := Instruction{Kind: SB, Address: 0x40, Operands: FormatS{Rs1: 11, Rs2: 12, Imm: 7}}
	require.NoError(t, sb.Execute(state.CPU, mmu))
	require.Equal(t, uint64(0x99F0_5678_1234_ABCD), state.Memory.GetUint(0x1000, 8))

	// misaligned doubleword is an MMU fault, not an architectural one
	ldBad := Instruction{Kind: LD, Address: 0x40, Operands: FormatLoad{Rd: 10, Rs1: 11, Imm: 4}}
	err := ldBad.Execute(state.CPU, mmu)
	var mis *emu.MisalignedAccessError
	require.ErrorAs(t, err, &mis)
	require.Equal(t, riscv.ErrMisalignedAccess, mis.Code())
}

func TestECALL(t *testing.T) {
	state := newTestState(t, emu.Bit32)
	var stdout bytes.Buffer
	state.CPU.Stdout = &stdout
	state.Memory.SetUnaligned(0x2000, []byte("hi"))
	state.CPU.Write(riscv.RegA7, riscv.SysWrite)
	state.CPU.Write(riscv.RegA0, riscv.FdStdout)
	state.CPU.Write(riscv.RegA1, 0x2000)
	state.CPU.Write(riscv.RegA2, 2)

	ecall := Instruction{Kind: ECALL, Operands: FormatNone{}}
	require.NoError(t, ecall.Execute(state.CPU, state.MMU()))
	require.Equal(t, "hi", stdout.String())

	state.CPU.Write(riscv.RegA7, 1234)
	err := ecall.Execute(state.CPU, state.MMU())
	var unsupported *emu.UnsupportedSyscallError
	require.ErrorAs(t, err, &unsupported)
}

func TestExecuteRejectsBadRegister(t *testing.T) {
	state := newTestState(t, emu.Bit64)
	err := rInstr(ADD, 1, 60, 2).Execute(state.CPU, state.MMU())
	var unsupported *emu.UnsupportedStateError
	require.ErrorAs(t, err, &unsupported)
	require.Equal(t, riscv.ErrInvalidRegister, unsupported.Code())
}
