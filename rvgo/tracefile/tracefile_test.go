package tracefile

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/rvtrace/rvgo/emu"
	"github.com/ethereum-optimism/rvtrace/rvgo/isa"
)

// lhuTrace records LHU x10, 2(x11) over the halfword 0x1234, preceded by an ADDI.
func lhuTrace(t *testing.T, xlen emu.Xlen) *isa.Trace {
	state, err := emu.NewState(xlen)
	require.NoError(t, err)
	state.Memory.SetUnaligned(0x1000, []byte{0xCD, 0xAB, 0x34, 0x12})
	state.CPU.Write(11, 0x1000)

	trace := isa.NewTrace(16)
	addi := isa.Instruction{Kind: isa.ADDI, Address: 0x7C, Operands: isa.FormatI{Rd: 5, Rs1: 0, Imm: 7}}
	lhu := isa.Instruction{Kind: isa.LHU, Address: 0x80, Operands: isa.FormatLoad{Rd: 10, Rs1: 11, Imm: 2}}
	require.NoError(t, addi.Trace(state.CPU, state.MMU(), trace))
	require.NoError(t, lhu.Trace(state.CPU, state.MMU(), trace))
	return trace
}

func TestCommitmentDeterministic(t *testing.T) {
	a := Commitment(lhuTrace(t, emu.Bit64))
	b := Commitment(lhuTrace(t, emu.Bit64))
	require.Equal(t, a, b)
	require.NotEqual(t, common.Hash{}, a)

	// the two widths read different word sizes, so their traces differ
	require.NotEqual(t, a, Commitment(lhuTrace(t, emu.Bit32)))
}

func TestCommitmentEmptyTrace(t *testing.T) {
	require.Equal(t, crypto.Keccak256Hash(), Commitment(isa.NewTrace(0)))
}

func TestCommitmentCoversEveryCycle(t *testing.T) {
	trace := lhuTrace(t, emu.Bit64)
	var buf []byte
	for _, c := range trace.Cycles() {
		buf = EncodeCycle(buf, c)
	}
	require.Len(t, buf, trace.Len()*cycleEncodingLen)
	require.Equal(t, crypto.Keccak256Hash(buf), Commitment(trace))

	changed := isa.NewTrace(trace.Len())
	for i, c := range trace.Cycles() {
		if i == trace.Len()-1 {
			c.Registers.RdPost++
		}
		changed.Append(c)
	}
	require.NotEqual(t, Commitment(trace), Commitment(changed))
}

func TestWriteJSON(t *testing.T) {
	trace := lhuTrace(t, emu.Bit64)
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, trace))

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	require.Len(t, raw, trace.Len())

	first := raw[0]
	require.Equal(t, "ADDI", first["kind"])
	require.Equal(t, "0x7c", first["address"])
	require.Equal(t, "0x7", first["rdPost"])
	require.NotContains(t, first, "remaining")
	require.NotContains(t, first, "ram")

	last := raw[len(raw)-1]
	require.Equal(t, "SRLI", last["kind"])
	require.Equal(t, "0x80", last["address"])
	require.Equal(t, float64(0), last["remaining"])
	require.Equal(t, "0x1234", last["rdPost"])

	var reads int
	for _, rec := range raw {
		if ram, ok := rec["ram"].(map[string]any); ok {
			require.Equal(t, "read", ram["kind"])
			require.Equal(t, "0x1000", ram["address"])
			reads++
		}
	}
	require.Equal(t, 1, reads)
}

func TestWriteFileRoundTrip(t *testing.T) {
	trace := lhuTrace(t, emu.Bit32)
	path := filepath.Join(t.TempDir(), "trace.json")
	require.NoError(t, WriteFile(path, trace))

	records, err := ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, Records(trace), records)
}

func TestWriteJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, isa.NewTrace(0)))
	var raw []any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	require.Empty(t, raw)
}

func TestSummarize(t *testing.T) {
	trace := lhuTrace(t, emu.Bit64)
	s := Summarize(trace)
	require.Equal(t, 9, s.Cycles)
	require.Equal(t, 2, s.Instructions)
	require.Equal(t, 8, s.Virtual)
	require.Equal(t, 1, s.Reads)
	require.Zero(t, s.Writes)
	require.Equal(t, 1, s.ByKind[isa.VirtualAssertHalfwordAlignment])
	require.Zero(t, s.ByKind[isa.LHU], "the macro-instruction itself is never recorded")

	top := s.Top(1)
	require.Len(t, top, 1)
	require.Equal(t, isa.ADDI, top[0].Kind, "the ADDI and the expansion's offset add")
	require.Equal(t, 2, top[0].Count)
	require.Len(t, s.Top(0), len(s.ByKind))
}
