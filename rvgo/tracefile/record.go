package tracefile

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ethereum-optimism/rvtrace/rvgo/emu"
	"github.com/ethereum-optimism/rvtrace/rvgo/isa"
)

// Access is the JSON form of a primitive memory access.
type Access struct {
	Kind     string         `json:"kind"`
	Address  hexutil.Uint64 `json:"address"`
	Width    uint64         `json:"width"`
	Value    hexutil.Uint64 `json:"value"`
	Previous hexutil.Uint64 `json:"previous,omitempty"`
}

// Record is the JSON form of one trace cycle.
type Record struct {
	Kind       string         `json:"kind"`
	Address    hexutil.Uint64 `json:"address"`
	Compressed bool           `json:"compressed,omitempty"`
	// Remaining is only present on micro-ops of a virtual sequence.
	Remaining *uint16 `json:"remaining,omitempty"`

	Operands string         `json:"operands,omitempty"`
	Rd       uint8          `json:"rd"`
	Rs1      uint8          `json:"rs1"`
	Rs2      uint8          `json:"rs2"`
	Imm      hexutil.Uint64 `json:"imm"`

	Rs1Value hexutil.Uint64 `json:"rs1Value"`
	Rs2Value hexutil.Uint64 `json:"rs2Value"`
	RdPre    hexutil.Uint64 `json:"rdPre"`
	RdPost   hexutil.Uint64 `json:"rdPost"`

	RAM *Access `json:"ram,omitempty"`
}

func NewRecord(c isa.Cycle) Record {
	in := c.Instruction
	rec := Record{
		Kind:       in.Name(),
		Address:    hexutil.Uint64(in.Address),
		Compressed: in.IsCompressed,
		Rs1Value:   hexutil.Uint64(c.Registers.Rs1Value),
		Rs2Value:   hexutil.Uint64(c.Registers.Rs2Value),
		RdPre:      hexutil.Uint64(c.Registers.RdPre),
		RdPost:     hexutil.Uint64(c.Registers.RdPost),
	}
	if n, ok := in.SequenceRemaining(); ok {
		rec.Remaining = &n
	}
	if in.Operands != nil {
		rec.Operands = in.Operands.String()
		rec.Rd, rec.Rs1, rec.Rs2 = in.Operands.Registers()
		rec.Imm = hexutil.Uint64(in.Operands.Immediate())
	}
	if c.RAMAccess.Kind != emu.NoAccess {
		rec.RAM = &Access{
			Kind:     c.RAMAccess.Kind.String(),
			Address:  hexutil.Uint64(c.RAMAccess.Address),
			Width:    c.RAMAccess.Width,
			Value:    hexutil.Uint64(c.RAMAccess.Value),
			Previous: hexutil.Uint64(c.RAMAccess.Previous),
		}
	}
	return rec
}

func Records(trace *isa.Trace) []Record {
	cycles := trace.Cycles()
	out := make([]Record, len(cycles))
	for i, c := range cycles {
		out[i] = NewRecord(c)
	}
	return out
}
