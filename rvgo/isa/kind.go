package isa

// Kind identifies one instruction variant. The set is closed: every RV32IM/RV64IM
// opcode plus the virtual opcodes that only appear inside expansions.
type Kind uint8

const (
	Invalid Kind = iota

	LUI
	AUIPC
	JAL
	JALR
	BEQ
	BNE
	BLT
	BGE
	BLTU
	BGEU
	LB
	LH
	LW
	LBU
	LHU
	LWU
	LD
	SB
	SH
	SW
	SD
	ADDI
	SLTI
	SLTIU
	XORI
	ORI
	ANDI
	SLLI
	SRLI
	SRAI
	ADD
	SUB
	SLL
	SLT
	SLTU
	XOR
	SRL
	SRA
	OR
	AND
	FENCE
	ECALL
	EBREAK
	ADDIW
	SLLIW
	SRLIW
	SRAIW
	ADDW
	SUBW
	SLLW
	SRLW
	SRAW
	MUL
	MULH
	MULHSU
	MULHU
	DIV
	DIVU
	REM
	REMU
	MULW
	DIVW
	DIVUW
	REMW
	REMUW

	VirtualAssertHalfwordAlignment
	VirtualAssertWordAlignment
	VirtualLW
	VirtualSW
	VirtualAdvice
	VirtualAssertEQ
	VirtualAssertValidDiv0
	VirtualAssertValidUnsignedRemainder
	VirtualAssertValidSignedRemainder
	VirtualAssertRemainderSign

	numKinds
)

func (k Kind) info() *kindInfo {
	if k >= numKinds {
		return &catalog[Invalid]
	}
	return &catalog[k]
}

func (k Kind) String() string {
	return k.info().name
}

// IsVirtual reports whether k only exists inside virtual sequences.
func (k Kind) IsVirtual() bool {
	return k.info().virtual
}

// Kinds returns every non-invalid kind, in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, numKinds-1)
	for k := Invalid + 1; k < numKinds; k++ {
		out = append(out, k)
	}
	return out
}
