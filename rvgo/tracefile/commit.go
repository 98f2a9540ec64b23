package tracefile

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ethereum-optimism/rvtrace/rvgo/isa"
)

// cycleEncodingLen is the size of the canonical binary encoding of one cycle.
const cycleEncodingLen = 1 + 8 + 1 + 1 + 2 + 3 + 8 + 4*8 + 1 + 8 + 1 + 8 + 8

// EncodeCycle appends the canonical big-endian encoding of c to dst:
//
//	kind | address | compressed | hasRemaining | remaining | rd rs1 rs2 | imm |
//	rs1Value rs2Value rdPre rdPost | access kind | access address | width | value | previous
func EncodeCycle(dst []byte, c isa.Cycle) []byte {
	in := c.Instruction
	dst = append(dst, uint8(in.Kind))
	dst = binary.BigEndian.AppendUint64(dst, in.Address)
	dst = append(dst, boolByte(in.IsCompressed))
	remaining, ok := in.SequenceRemaining()
	dst = append(dst, boolByte(ok))
	dst = binary.BigEndian.AppendUint16(dst, remaining)

	var rd, rs1, rs2 uint8
	var imm uint64
	if in.Operands != nil {
		rd, rs1, rs2 = in.Operands.Registers()
		imm = in.Operands.Immediate()
	}
	dst = append(dst, rd, rs1, rs2)
	dst = binary.BigEndian.AppendUint64(dst, imm)

	dst = binary.BigEndian.AppendUint64(dst, c.Registers.Rs1Value)
	dst = binary.BigEndian.AppendUint64(dst, c.Registers.Rs2Value)
	dst = binary.BigEndian.AppendUint64(dst, c.Registers.RdPre)
	dst = binary.BigEndian.AppendUint64(dst, c.Registers.RdPost)

	ram := c.RAMAccess
	dst = append(dst, uint8(ram.Kind))
	dst = binary.BigEndian.AppendUint64(dst, ram.Address)
	dst = append(dst, uint8(ram.Width))
	dst = binary.BigEndian.AppendUint64(dst, ram.Value)
	dst = binary.BigEndian.AppendUint64(dst, ram.Previous)
	return dst
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Commitment is the keccak256 hash over the canonical encoding of all cycles, in order.
func Commitment(trace *isa.Trace) common.Hash {
	h := crypto.NewKeccakState()
	buf := make([]byte, 0, cycleEncodingLen)
	for _, c := range trace.Cycles() {
		buf = EncodeCycle(buf[:0], c)
		h.Write(buf)
	}
	var out common.Hash
	_, _ = h.Read(out[:])
	return out
}
