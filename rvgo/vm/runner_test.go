package vm

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/rvtrace/rvgo/emu"
	"github.com/ethereum-optimism/rvtrace/rvgo/isa"
	"github.com/ethereum-optimism/rvtrace/rvgo/riscv"
)

const programBase = 0x1000

func testLogger() log.Logger {
	return log.NewLogger(log.LogfmtHandlerWithLevel(io.Discard, log.LevelInfo))
}

func rtype(k isa.Kind, rd, rs1, rs2 uint8) isa.Instruction {
	return isa.Instruction{Kind: k, Operands: isa.FormatR{Rd: rd, Rs1: rs1, Rs2: rs2}}
}

func itype(k isa.Kind, rd, rs1 uint8, imm int64) isa.Instruction {
	return isa.Instruction{Kind: k, Operands: isa.FormatI{Rd: rd, Rs1: rs1, Imm: uint64(imm)}}
}

func ld(k isa.Kind, rd, rs1 uint8, imm int64) isa.Instruction {
	return isa.Instruction{Kind: k, Operands: isa.FormatLoad{Rd: rd, Rs1: rs1, Imm: uint64(imm)}}
}

func st(k isa.Kind, rs1, rs2 uint8, imm int64) isa.Instruction {
	return isa.Instruction{Kind: k, Operands: isa.FormatS{Rs1: rs1, Rs2: rs2, Imm: uint64(imm)}}
}

var ecall = isa.Instruction{Kind: isa.ECALL, Operands: isa.FormatNone{}}

func assemble(t *testing.T, program ...isa.Instruction) []byte {
	out := make([]byte, 0, len(program)*4)
	for _, in := range program {
		word, err := isa.Encode(in)
		require.NoError(t, err, in.String())
		out = binary.LittleEndian.AppendUint32(out, word)
	}
	return out
}

func newRunner(t *testing.T, xlen emu.Xlen, program []byte, traced bool) *Runner {
	state, err := emu.NewState(xlen)
	require.NoError(t, err)
	require.NoError(t, emu.LoadProgram(state, programBase, program))
	var trace *isa.Trace
	if traced {
		trace = isa.NewTrace(256)
	}
	return NewRunner(state, trace, testLogger())
}

// exitWith loads a0 from rs and exits.
func exitWith(rs uint8) []isa.Instruction {
	return []isa.Instruction{
		itype(isa.ADDI, riscv.RegA7, 0, riscv.SysExit),
		itype(isa.ADDI, riscv.RegA0, rs, 0),
		ecall,
	}
}

func mixedProgram() []isa.Instruction {
	prog := []isa.Instruction{
		itype(isa.ADDI, 5, 0, 1234),
		itype(isa.ADDI, 6, 0, -7),
		rtype(isa.DIV, 7, 5, 6),
		rtype(isa.REM, 8, 5, 6),
		rtype(isa.DIVU, 9, 5, 0),
		rtype(isa.REMU, 18, 6, 5),
		itype(isa.ADDI, 11, 0, 0x700),
		st(isa.SW, 11, 5, 0),
		st(isa.SW, 11, 0, 4),
		st(isa.SB, 11, 6, 5),
		st(isa.SH, 11, 7, 6),
		ld(isa.LB, 12, 11, 5),
		ld(isa.LHU, 13, 11, 6),
		ld(isa.LW, 14, 11, 4),
		ld(isa.LBU, 15, 11, 1),
		ld(isa.LH, 19, 11, 6),
		rtype(isa.MUL, 16, 7, 8),
		rtype(isa.MULHU, 20, 6, 6),
	}
	return append(prog, exitWith(8)...)
}

func TestRunTracedMatchesDirect(t *testing.T) {
	for _, xlen := range []emu.Xlen{emu.Bit32, emu.Bit64} {
		t.Run(xlen.String(), func(t *testing.T) {
			program := assemble(t, mixedProgram()...)
			direct := newRunner(t, xlen, program, false)
			traced := newRunner(t, xlen, program, true)

			require.NoError(t, direct.Run(context.Background(), 1000))
			require.NoError(t, traced.Run(context.Background(), 1000))

			ds, ts := direct.State(), traced.State()
			require.True(t, ts.CPU.Exited)
			require.Equal(t, uint64(2), ts.CPU.ExitCode)
			require.Equal(t, ds.CPU.Registers, ts.CPU.Registers)
			require.Equal(t, ds.EncodeWitness().StateHash(), ts.EncodeWitness().StateHash())
			require.Equal(t, uint64(len(mixedProgram())), ts.Step)

			cpu := ts.CPU
			require.Equal(t, uint64(0xFFFF_FFFF_FFFF_FF50), cpu.Read(7), "1234 / -7")
			require.Equal(t, uint64(2), cpu.Read(8))
			require.Equal(t, uint64(0xFFFF_FFFF_FFFF_FFFF), cpu.Read(9), "division by zero")
			require.Equal(t, uint64(0xFFFF_FFFF_FFFF_FFF9), cpu.Read(12), "sign-extended byte")
			require.Equal(t, uint64(0xFF50), cpu.Read(13))
			require.Equal(t, uint64(0xFFFF_FFFF_FF50_F900), cpu.Read(14))
			require.Equal(t, uint64(0x04), cpu.Read(15), "1234 = 0x4d2")
			require.Equal(t, uint64(0xFFFF_FFFF_FFFF_FF50), cpu.Read(19))
			require.Equal(t, uint64(0xFFFF_FFFF_FFFF_FEA0), cpu.Read(16))

			// every micro-op is attributed to a program address, and the trace only grows
			cycles := traced.Trace().Cycles()
			require.Greater(t, len(cycles), int(ts.Step))
			for _, c := range cycles {
				require.GreaterOrEqual(t, c.Instruction.Address, uint64(programBase))
				require.Less(t, c.Instruction.Address, uint64(programBase+len(program)))
				require.False(t, c.Instruction.Kind == isa.DIV || c.Instruction.Kind == isa.LB,
					"expanded macro-instructions never appear in the trace")
			}
		})
	}
}

func TestRunFaultRestoresPC(t *testing.T) {
	for _, xlen := range []emu.Xlen{emu.Bit32, emu.Bit64} {
		for _, traced := range []bool{false, true} {
			program := assemble(t,
				itype(isa.ADDI, 11, 0, 0x700),
				itype(isa.ADDI, 5, 0, 3),
				ld(isa.LW, 10, 11, 2),
				ecall,
			)
			runner := newRunner(t, xlen, program, traced)
			err := runner.Run(context.Background(), 100)

			var fault *Fault
			require.ErrorAs(t, err, &fault)
			require.Equal(t, FaultAlignment, fault.Kind)
			require.Equal(t, uint64(2), fault.Step)
			require.Equal(t, uint64(programBase+8), fault.Address)
			require.Equal(t, "LW", fault.Instruction)
			require.Equal(t, "x10, 2(x11)", fault.Operands)
			require.Equal(t, riscv.ErrNotAlignedAddr, fault.Code())

			var alignment *isa.AlignmentError
			require.ErrorAs(t, err, &alignment)
			require.Equal(t, uint64(0x702), alignment.Address)

			state := runner.State()
			require.Equal(t, uint64(programBase+8), state.CPU.PC)
			require.Equal(t, uint64(2), state.Step)
			require.False(t, state.CPU.Exited)
			for reg := riscv.RegisterCount; reg < riscv.TotalRegisterCount; reg++ {
				require.Zero(t, state.CPU.Registers[reg])
			}
			if traced {
				require.Equal(t, 2, runner.Trace().Len(), "cycles before the fault are kept")
			}
		}
	}
}

func TestRunIllegalInstruction(t *testing.T) {
	program := binary.LittleEndian.AppendUint32(nil, 0xFFFF_FFFF)
	runner := newRunner(t, emu.Bit64, program, true)
	err := runner.Step()

	var fault *Fault
	require.ErrorAs(t, err, &fault)
	require.Equal(t, FaultIllegalInstruction, fault.Kind)
	require.Equal(t, uint32(0xFFFF_FFFF), fault.Word)
	require.Empty(t, fault.Instruction)
	require.Equal(t, riscv.ErrUnknownOpCode, fault.Code())
	require.Equal(t, uint64(programBase), runner.State().CPU.PC)
	require.Zero(t, runner.Trace().Len())
}

func TestRunRV64OnlyInstructionFaultsIn32BitMode(t *testing.T) {
	program := assemble(t, ld(isa.LD, 10, 0, 0))
	runner := newRunner(t, emu.Bit32, program, true)
	var fault *Fault
	require.ErrorAs(t, runner.Step(), &fault)
	require.Equal(t, FaultIllegalInstruction, fault.Kind)
}

func TestRunUnsupportedSyscall(t *testing.T) {
	program := assemble(t, itype(isa.ADDI, riscv.RegA7, 0, 1000), ecall)
	runner := newRunner(t, emu.Bit64, program, false)
	err := runner.Run(context.Background(), 0)
	var fault *Fault
	require.ErrorAs(t, err, &fault)
	require.Equal(t, FaultSyscall, fault.Kind)
	require.Equal(t, riscv.ErrInvalidSyscall, fault.Code())
}

func TestRunStepLimit(t *testing.T) {
	loop := isa.Instruction{Kind: isa.JAL, Operands: isa.FormatJ{Rd: 0, Imm: 0}}
	runner := newRunner(t, emu.Bit32, assemble(t, loop), true)
	err := runner.Run(context.Background(), 250)
	require.ErrorIs(t, err, ErrStepLimit)
	require.Equal(t, uint64(250), runner.State().Step)
	require.Equal(t, 250, runner.Trace().Len())
	require.Equal(t, uint64(programBase), runner.State().CPU.PC)
}

func TestRunCancelled(t *testing.T) {
	loop := isa.Instruction{Kind: isa.JAL, Operands: isa.FormatJ{Rd: 0, Imm: 0}}
	runner := newRunner(t, emu.Bit64, assemble(t, loop), false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runner.Run(ctx, 0)
	require.True(t, errors.Is(err, context.Canceled))
	require.Zero(t, runner.State().Step)
}

func TestRunCompressed(t *testing.T) {
	program := assemble(t, itype(isa.ADDI, riscv.RegA7, 0, riscv.SysExit))
	program = binary.LittleEndian.AppendUint16(program, 0x4515) // c.li a0, 5
	program = append(program, assemble(t, ecall)...)

	for _, traced := range []bool{false, true} {
		runner := newRunner(t, emu.Bit64, program, traced)
		require.NoError(t, runner.Run(context.Background(), 10))
		state := runner.State()
		require.True(t, state.CPU.Exited)
		require.Equal(t, uint64(5), state.CPU.ExitCode)
		require.Equal(t, uint64(3), state.Step)
		require.Equal(t, uint64(programBase+10), state.CPU.PC)
		if traced {
			cycles := runner.Trace().Cycles()
			require.True(t, cycles[1].Instruction.IsCompressed)
			require.Equal(t, uint64(programBase+4), cycles[1].Instruction.Address)
		}
	}
}

func TestRunRecordsRegisterState(t *testing.T) {
	program := assemble(t,
		itype(isa.ADDI, 5, 0, 40),
		itype(isa.ADDI, 5, 5, 2),
	)
	runner := newRunner(t, emu.Bit64, program, true)
	require.NoError(t, runner.Step())
	require.NoError(t, runner.Step())
	c := runner.Trace().Cycles()[1]
	require.Equal(t, isa.RegisterState{Rs1Value: 40, Rs2Value: 0, RdPre: 40, RdPost: 42}, c.Registers)
	require.Equal(t, emu.NoAccess, c.RAMAccess.Kind)
}

func TestRunLoadedStateComparesSigned(t *testing.T) {
	state, err := emu.NewState(emu.Bit32)
	require.NoError(t, err)
	require.NoError(t, emu.LoadProgram(state, programBase, assemble(t,
		rtype(isa.SLT, 3, 1, 0),
		isa.Instruction{Kind: isa.BLT, Operands: isa.FormatB{Rs1: 1, Rs2: 0, Imm: 8}},
		itype(isa.ADDI, 4, 0, 1),
		itype(isa.ADDI, 5, 0, 1),
	)))
	state.CPU.Registers[1] = 0x8000_0000 // not sign-extended

	dat, err := json.Marshal(state)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, dat, 0o644))
	loaded, err := emu.LoadStateFromFile(path)
	require.NoError(t, err)

	runner := NewRunner(loaded, isa.NewTrace(8), testLogger())
	for i := 0; i < 3; i++ {
		require.NoError(t, runner.Step())
	}
	cpu := runner.State().CPU
	require.Equal(t, uint64(1), cpu.Read(3), "int32(0x80000000) < 0")
	require.Zero(t, cpu.Read(4), "branch taken")
	require.Equal(t, uint64(1), cpu.Read(5))
}
