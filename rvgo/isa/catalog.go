package isa

import (
	"github.com/ethereum-optimism/rvtrace/rvgo/emu"
)

// execFunc performs the architectural effect of an instruction directly.
// It returns the RAM access the instruction made, if any.
type execFunc func(in Instruction, cpu *emu.CPU, mmu *emu.MMU) (emu.RAMAccess, error)

// expandFunc returns the virtual sequence for an instruction, or nil when the
// instruction is a primitive at the current width.
type expandFunc func(in Instruction, cpu *emu.CPU) []Instruction

type kindInfo struct {
	name    string
	mask    uint32
	match   uint32
	decode  func(word uint32) Format
	rv64    bool // only valid in 64-bit mode
	shift   bool // 6-bit shamt; shamt[5] is illegal in 32-bit mode
	virtual bool
	exec    execFunc
	expand  expandFunc
}

var (
	catalog [numKinds]kindInfo

	// decodeTable lists the encodable kinds, scanned in order by Decode.
	decodeTable []Kind
)

const (
	maskOpcode = 0x0000_007F
	maskFunct3 = 0x0000_707F
	maskFunct6 = 0xFC00_707F
	maskFunct7 = 0xFE00_707F
	maskFull   = 0xFFFF_FFFF
)

func init() {
	catalog = [numKinds]kindInfo{
		Invalid: {name: "INVALID", exec: execInvalid},

		LUI:   {name: "LUI", mask: maskOpcode, match: 0x0000_0037, decode: decodeU, exec: execLUI},
		AUIPC: {name: "AUIPC", mask: maskOpcode, match: 0x0000_0017, decode: decodeU, exec: execAUIPC},
		JAL:   {name: "JAL", mask: maskOpcode, match: 0x0000_006F, decode: decodeJ, exec: execJAL},
		JALR:  {name: "JALR", mask: maskFunct3, match: 0x0000_0067, decode: decodeI, exec: execJALR},

		BEQ:  {name: "BEQ", mask: maskFunct3, match: 0x0000_0063, decode: decodeB, exec: branch(func(cpu *emu.CPU, a, b uint64) bool { return a == b })},
		BNE:  {name: "BNE", mask: maskFunct3, match: 0x0000_1063, decode: decodeB, exec: branch(func(cpu *emu.CPU, a, b uint64) bool { return a != b })},
		BLT:  {name: "BLT", mask: maskFunct3, match: 0x0000_4063, decode: decodeB, exec: branch(func(cpu *emu.CPU, a, b uint64) bool { return int64(a) < int64(b) })},
		BGE:  {name: "BGE", mask: maskFunct3, match: 0x0000_5063, decode: decodeB, exec: branch(func(cpu *emu.CPU, a, b uint64) bool { return int64(a) >= int64(b) })},
		BLTU: {name: "BLTU", mask: maskFunct3, match: 0x0000_6063, decode: decodeB, exec: branch(func(cpu *emu.CPU, a, b uint64) bool { return cpu.Unsigned(a) < cpu.Unsigned(b) })},
		BGEU: {name: "BGEU", mask: maskFunct3, match: 0x0000_7063, decode: decodeB, exec: branch(func(cpu *emu.CPU, a, b uint64) bool { return cpu.Unsigned(a) >= cpu.Unsigned(b) })},

		LB:  {name: "LB", mask: maskFunct3, match: 0x0000_0003, decode: decodeLoad, exec: load(1, true), expand: expandLoad(1, true)},
		LH:  {name: "LH", mask: maskFunct3, match: 0x0000_1003, decode: decodeLoad, exec: load(2, true), expand: expandLoad(2, true)},
		LW:  {name: "LW", mask: maskFunct3, match: 0x0000_2003, decode: decodeLoad, exec: load(4, true), expand: expandLoad(4, true)},
		LBU: {name: "LBU", mask: maskFunct3, match: 0x0000_4003, decode: decodeLoad, exec: load(1, false), expand: expandLoad(1, false)},
		LHU: {name: "LHU", mask: maskFunct3, match: 0x0000_5003, decode: decodeLoad, exec: load(2, false), expand: expandLoad(2, false)},
		LWU: {name: "LWU", mask: maskFunct3, match: 0x0000_6003, decode: decodeLoad, rv64: true, exec: load(4, false), expand: expandLoad(4, false)},
		LD:  {name: "LD", mask: maskFunct3, match: 0x0000_3003, decode: decodeLoad, rv64: true, exec: load(8, false)},

		SB: {name: "SB", mask: maskFunct3, match: 0x0000_0023, decode: decodeS, exec: store(1), expand: expandStore(1)},
		SH: {name: "SH", mask: maskFunct3, match: 0x0000_1023, decode: decodeS, exec: store(2), expand: expandStore(2)},
		SW: {name: "SW", mask: maskFunct3, match: 0x0000_2023, decode: decodeS, exec: store(4), expand: expandStore(4)},
		SD: {name: "SD", mask: maskFunct3, match: 0x0000_3023, decode: decodeS, rv64: true, exec: store(8)},

		ADDI:  {name: "ADDI", mask: maskFunct3, match: 0x0000_0013, decode: decodeI, exec: opImm(addOp)},
		SLTI:  {name: "SLTI", mask: maskFunct3, match: 0x0000_2013, decode: decodeI, exec: opImm(sltOp)},
		SLTIU: {name: "SLTIU", mask: maskFunct3, match: 0x0000_3013, decode: decodeI, exec: opImm(sltuOp)},
		XORI:  {name: "XORI", mask: maskFunct3, match: 0x0000_4013, decode: decodeI, exec: opImm(xorOp)},
		ORI:   {name: "ORI", mask: maskFunct3, match: 0x0000_6013, decode: decodeI, exec: opImm(orOp)},
		ANDI:  {name: "ANDI", mask: maskFunct3, match: 0x0000_7013, decode: decodeI, exec: opImm(andOp)},
		SLLI:  {name: "SLLI", mask: maskFunct6, match: 0x0000_1013, decode: decodeShiftI, shift: true, exec: opImm(sllOp)},
		SRLI:  {name: "SRLI", mask: maskFunct6, match: 0x0000_5013, decode: decodeShiftI, shift: true, exec: opImm(srlOp)},
		SRAI:  {name: "SRAI", mask: maskFunct6, match: 0x4000_5013, decode: decodeShiftI, shift: true, exec: opImm(sraOp)},

		ADD:  {name: "ADD", mask: maskFunct7, match: 0x0000_0033, decode: decodeR, exec: opReg(addOp)},
		SUB:  {name: "SUB", mask: maskFunct7, match: 0x4000_0033, decode: decodeR, exec: opReg(subOp)},
		SLL:  {name: "SLL", mask: maskFunct7, match: 0x0000_1033, decode: decodeR, exec: opReg(sllOp)},
		SLT:  {name: "SLT", mask: maskFunct7, match: 0x0000_2033, decode: decodeR, exec: opReg(sltOp)},
		SLTU: {name: "SLTU", mask: maskFunct7, match: 0x0000_3033, decode: decodeR, exec: opReg(sltuOp)},
		XOR:  {name: "XOR", mask: maskFunct7, match: 0x0000_4033, decode: decodeR, exec: opReg(xorOp)},
		SRL:  {name: "SRL", mask: maskFunct7, match: 0x0000_5033, decode: decodeR, exec: opReg(srlOp)},
		SRA:  {name: "SRA", mask: maskFunct7, match: 0x4000_5033, decode: decodeR, exec: opReg(sraOp)},
		OR:   {name: "OR", mask: maskFunct7, match: 0x0000_6033, decode: decodeR, exec: opReg(orOp)},
		AND:  {name: "AND", mask: maskFunct7, match: 0x0000_7033, decode: decodeR, exec: opReg(andOp)},

		FENCE:  {name: "FENCE", mask: maskFunct3, match: 0x0000_000F, decode: decodeNone, exec: execNop},
		ECALL:  {name: "ECALL", mask: maskFull, match: 0x0000_0073, decode: decodeNone, exec: execECALL},
		EBREAK: {name: "EBREAK", mask: maskFull, match: 0x0010_0073, decode: decodeNone, exec: execNop},

		ADDIW: {name: "ADDIW", mask: maskFunct3, match: 0x0000_001B, decode: decodeI, rv64: true, exec: opImm(addwOp)},
		SLLIW: {name: "SLLIW", mask: maskFunct7, match: 0x0000_101B, decode: decodeShiftI, rv64: true, exec: opImm(sllwOp)},
		SRLIW: {name: "SRLIW", mask: maskFunct7, match: 0x0000_501B, decode: decodeShiftI, rv64: true, exec: opImm(srlwOp)},
		SRAIW: {name: "SRAIW", mask: maskFunct7, match: 0x4000_501B, decode: decodeShiftI, rv64: true, exec: opImm(srawOp)},
		ADDW:  {name: "ADDW", mask: maskFunct7, match: 0x0000_003B, decode: decodeR, rv64: true, exec: opReg(addwOp)},
		SUBW:  {name: "SUBW", mask: maskFunct7, match: 0x4000_003B, decode: decodeR, rv64: true, exec: opReg(subwOp)},
		SLLW:  {name: "SLLW", mask: maskFunct7, match: 0x0000_103B, decode: decodeR, rv64: true, exec: opReg(sllwOp)},
		SRLW:  {name: "SRLW", mask: maskFunct7, match: 0x0000_503B, decode: decodeR, rv64: true, exec: opReg(srlwOp)},
		SRAW:  {name: "SRAW", mask: maskFunct7, match: 0x4000_503B, decode: decodeR, rv64: true, exec: opReg(srawOp)},

		MUL:    {name: "MUL", mask: maskFunct7, match: 0x0200_0033, decode: decodeR, exec: opReg(mulOp)},
		MULH:   {name: "MULH", mask: maskFunct7, match: 0x0200_1033, decode: decodeR, exec: opReg(mulhOp)},
		MULHSU: {name: "MULHSU", mask: maskFunct7, match: 0x0200_2033, decode: decodeR, exec: opReg(mulhsuOp)},
		MULHU:  {name: "MULHU", mask: maskFunct7, match: 0x0200_3033, decode: decodeR, exec: opReg(mulhuOp)},
		DIV:    {name: "DIV", mask: maskFunct7, match: 0x0200_4033, decode: decodeR, exec: opReg(divOp), expand: expandDivision(true, false)},
		DIVU:   {name: "DIVU", mask: maskFunct7, match: 0x0200_5033, decode: decodeR, exec: opReg(divuOp), expand: expandDivision(false, false)},
		REM:    {name: "REM", mask: maskFunct7, match: 0x0200_6033, decode: decodeR, exec: opReg(remOp), expand: expandDivision(true, true)},
		REMU:   {name: "REMU", mask: maskFunct7, match: 0x0200_7033, decode: decodeR, exec: opReg(remuOp), expand: expandDivision(false, true)},
		MULW:   {name: "MULW", mask: maskFunct7, match: 0x0200_003B, decode: decodeR, rv64: true, exec: opReg(mulwOp)},
		DIVW:   {name: "DIVW", mask: maskFunct7, match: 0x0200_403B, decode: decodeR, rv64: true, exec: opReg(divwOp)},
		DIVUW:  {name: "DIVUW", mask: maskFunct7, match: 0x0200_503B, decode: decodeR, rv64: true, exec: opReg(divuwOp)},
		REMW:   {name: "REMW", mask: maskFunct7, match: 0x0200_603B, decode: decodeR, rv64: true, exec: opReg(remwOp)},
		REMUW:  {name: "REMUW", mask: maskFunct7, match: 0x0200_703B, decode: decodeR, rv64: true, exec: opReg(remuwOp)},

		VirtualAssertHalfwordAlignment:      {name: "VIRTUAL_ASSERT_HALFWORD_ALIGNMENT", virtual: true, exec: assertAlignment(2)},
		VirtualAssertWordAlignment:          {name: "VIRTUAL_ASSERT_WORD_ALIGNMENT", virtual: true, exec: assertAlignment(4)},
		VirtualLW:                           {name: "VIRTUAL_LW", virtual: true, exec: execVirtualLW},
		VirtualSW:                           {name: "VIRTUAL_SW", virtual: true, exec: store(4)},
		VirtualAdvice:                       {name: "VIRTUAL_ADVICE", virtual: true, exec: execVirtualAdvice},
		VirtualAssertEQ:                     {name: "VIRTUAL_ASSERT_EQ", virtual: true, exec: assertion("eq", assertEQ)},
		VirtualAssertValidDiv0:              {name: "VIRTUAL_ASSERT_VALID_DIV0", virtual: true, exec: assertion("valid division by zero", assertValidDiv0)},
		VirtualAssertValidUnsignedRemainder: {name: "VIRTUAL_ASSERT_VALID_UNSIGNED_REMAINDER", virtual: true, exec: assertion("valid unsigned remainder", assertValidUnsignedRemainder)},
		VirtualAssertValidSignedRemainder:   {name: "VIRTUAL_ASSERT_VALID_SIGNED_REMAINDER", virtual: true, exec: assertion("valid signed remainder", assertValidSignedRemainder)},
		VirtualAssertRemainderSign:          {name: "VIRTUAL_ASSERT_REMAINDER_SIGN", virtual: true, exec: assertion("remainder sign", assertRemainderSign)},
	}

	for k := Invalid + 1; k < numKinds; k++ {
		info := &catalog[k]
		if info.name == "" || info.exec == nil {
			panic("incomplete instruction catalog entry")
		}
		if !info.virtual {
			decodeTable = append(decodeTable, k)
		}
	}
}

// Decode turns an encoded word fetched at address into an instruction.
// Words whose low two bits are not 0b11 are 16-bit compressed encodings.
func Decode(word uint32, address uint64, xlen emu.Xlen) (Instruction, error) {
	if err := xlen.Validate(); err != nil {
		return Instruction{}, err
	}
	if isCompressed(word) {
		return DecodeCompressed(uint16(word), address, xlen)
	}
	return decode32(word, address, xlen, false)
}

func decode32(word uint32, address uint64, xlen emu.Xlen, compressed bool) (Instruction, error) {
	for _, k := range decodeTable {
		info := &catalog[k]
		if word&info.mask != info.match {
			continue
		}
		if info.rv64 && xlen != emu.Bit64 {
			break
		}
		if info.shift && xlen == emu.Bit32 && word&(1<<25) != 0 {
			break
		}
		return Instruction{
			Kind:         k,
			Address:      address,
			Operands:     info.decode(word),
			IsCompressed: compressed,
		}, nil
	}
	return Instruction{}, &IllegalInstructionError{Word: word, Address: address, Compressed: compressed, Xlen: xlen}
}

// Encode is the inverse of Decode for non-virtual instructions.
func Encode(in Instruction) (uint32, error) {
	info := in.Kind.info()
	if in.Kind == Invalid || info.virtual {
		return 0, &IllegalInstructionError{Address: in.Address}
	}
	switch ops := in.Operands.(type) {
	case FormatR:
		return encodeR(info.match, ops.Rd, ops.Rs1, ops.Rs2), nil
	case FormatI:
		return encodeI(info.match, ops.Rd, ops.Rs1, ops.Imm), nil
	case FormatLoad:
		return encodeI(info.match, ops.Rd, ops.Rs1, ops.Imm), nil
	case FormatS:
		return encodeS(info.match, ops.Rs1, ops.Rs2, ops.Imm), nil
	case FormatB:
		return encodeB(info.match, ops.Rs1, ops.Rs2, ops.Imm), nil
	case FormatU:
		return encodeU(info.match, ops.Rd, ops.Imm), nil
	case FormatJ:
		return encodeJ(info.match, ops.Rd, ops.Imm), nil
	case FormatNone:
		return info.match, nil
	default:
		return 0, &IllegalInstructionError{Address: in.Address}
	}
}
