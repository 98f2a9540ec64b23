package isa

import (
	"fmt"

	"github.com/ethereum-optimism/rvtrace/rvgo/riscv"
)

// Format is the decoded operand tuple of an instruction.
// Formats are plain values and never change after decoding.
type Format interface {
	// Registers returns the destination and source register indices.
	// Slots a format does not use are reported as x0.
	Registers() (rd, rs1, rs2 uint8)
	// Immediate returns the sign-extended immediate, or zero.
	Immediate() uint64
	String() string
}

type FormatR struct {
	Rd, Rs1, Rs2 uint8
}

type FormatI struct {
	Rd, Rs1 uint8
	Imm     uint64
}

// FormatLoad is the I-type layout used by loads, printed as an address expression.
type FormatLoad struct {
	Rd, Rs1 uint8
	Imm     uint64
}

type FormatS struct {
	Rs1, Rs2 uint8
	Imm      uint64
}

type FormatB struct {
	Rs1, Rs2 uint8
	Imm      uint64
}

type FormatU struct {
	Rd  uint8
	Imm uint64
}

type FormatJ struct {
	Rd  uint8
	Imm uint64
}

// FormatAssertAlign names the address operand of an alignment assertion.
type FormatAssertAlign struct {
	Rs1 uint8
	Imm uint64
}

// FormatAdvice carries a value computed outside the sequence, written to Rd.
type FormatAdvice struct {
	Rd     uint8
	Advice uint64
}

type FormatNone struct{}

func (f FormatR) Registers() (uint8, uint8, uint8)           { return f.Rd, f.Rs1, f.Rs2 }
func (f FormatI) Registers() (uint8, uint8, uint8)           { return f.Rd, f.Rs1, 0 }
func (f FormatLoad) Registers() (uint8, uint8, uint8)        { return f.Rd, f.Rs1, 0 }
func (f FormatS) Registers() (uint8, uint8, uint8)           { return 0, f.Rs1, f.Rs2 }
func (f FormatB) Registers() (uint8, uint8, uint8)           { return 0, f.Rs1, f.Rs2 }
func (f FormatU) Registers() (uint8, uint8, uint8)           { return f.Rd, 0, 0 }
func (f FormatJ) Registers() (uint8, uint8, uint8)           { return f.Rd, 0, 0 }
func (f FormatAssertAlign) Registers() (uint8, uint8, uint8) { return 0, f.Rs1, 0 }
func (f FormatAdvice) Registers() (uint8, uint8, uint8)      { return f.Rd, 0, 0 }
func (f FormatNone) Registers() (uint8, uint8, uint8)        { return 0, 0, 0 }

func (f FormatR) Immediate() uint64           { return 0 }
func (f FormatI) Immediate() uint64           { return f.Imm }
func (f FormatLoad) Immediate() uint64        { return f.Imm }
func (f FormatS) Immediate() uint64           { return f.Imm }
func (f FormatB) Immediate() uint64           { return f.Imm }
func (f FormatU) Immediate() uint64           { return f.Imm }
func (f FormatJ) Immediate() uint64           { return f.Imm }
func (f FormatAssertAlign) Immediate() uint64 { return f.Imm }
func (f FormatAdvice) Immediate() uint64      { return f.Advice }
func (f FormatNone) Immediate() uint64        { return 0 }

func regName(r uint8) string {
	if riscv.IsVirtualRegister(r) {
		return fmt.Sprintf("v%d", r-riscv.RegisterCount)
	}
	return fmt.Sprintf("x%d", r)
}

func (f FormatR) String() string {
	return fmt.Sprintf("%s, %s, %s", regName(f.Rd), regName(f.Rs1), regName(f.Rs2))
}

func (f FormatI) String() string {
	return fmt.Sprintf("%s, %s, %d", regName(f.Rd), regName(f.Rs1), int64(f.Imm))
}

func (f FormatLoad) String() string {
	return fmt.Sprintf("%s, %d(%s)", regName(f.Rd), int64(f.Imm), regName(f.Rs1))
}

func (f FormatS) String() string {
	return fmt.Sprintf("%s, %d(%s)", regName(f.Rs2), int64(f.Imm), regName(f.Rs1))
}

func (f FormatB) String() string {
	return fmt.Sprintf("%s, %s, %d", regName(f.Rs1), regName(f.Rs2), int64(f.Imm))
}

func (f FormatU) String() string {
	return fmt.Sprintf("%s, 0x%x", regName(f.Rd), uint32(f.Imm)>>12)
}

func (f FormatJ) String() string {
	return fmt.Sprintf("%s, %d", regName(f.Rd), int64(f.Imm))
}

func (f FormatAssertAlign) String() string {
	return fmt.Sprintf("%d(%s)", int64(f.Imm), regName(f.Rs1))
}

func (f FormatAdvice) String() string {
	return fmt.Sprintf("%s, 0x%x", regName(f.Rd), f.Advice)
}

func (f FormatNone) String() string { return "" }

// Functions to parse the instruction field values from the different RISC-V encodings.

func signExtend(v uint64, bit uint) uint64 {
	shift := 63 - bit
	return uint64(int64(v<<shift) >> shift)
}

func parseRd(word uint32) uint8  { return uint8((word >> 7) & 0x1F) }
func parseRs1(word uint32) uint8 { return uint8((word >> 15) & 0x1F) }
func parseRs2(word uint32) uint8 { return uint8((word >> 20) & 0x1F) }

func parseImmTypeI(word uint32) uint64 {
	return uint64(int64(int32(word) >> 20))
}

func parseImmTypeS(word uint32) uint64 {
	return signExtend(uint64((word>>25)<<5|(word>>7)&0x1F), 11)
}

func parseImmTypeB(word uint32) uint64 {
	// imm is a signed offset, in multiples of 2 bytes.
	// So it's really 13 bits with a hardcoded 0 bit.
	imm := (word>>8)&0xF<<1 |
		(word>>25)&0x3F<<5 |
		(word>>7)&1<<11 |
		(word>>31)<<12
	return signExtend(uint64(imm), 12)
}

func parseImmTypeU(word uint32) uint64 {
	return uint64(int64(int32(word & 0xFFFF_F000)))
}

func parseImmTypeJ(word uint32) uint64 {
	imm := (word>>21)&0x3FF<<1 |
		(word>>20)&1<<11 |
		(word>>12)&0xFF<<12 |
		(word>>31)<<20
	return signExtend(uint64(imm), 20)
}

func decodeR(word uint32) Format {
	return FormatR{Rd: parseRd(word), Rs1: parseRs1(word), Rs2: parseRs2(word)}
}

func decodeI(word uint32) Format {
	return FormatI{Rd: parseRd(word), Rs1: parseRs1(word), Imm: parseImmTypeI(word)}
}

// decodeShiftI keeps only the shift amount, 6 bits wide. 32-bit validity is checked by the catalog.
func decodeShiftI(word uint32) Format {
	return FormatI{Rd: parseRd(word), Rs1: parseRs1(word), Imm: uint64((word >> 20) & 0x3F)}
}

func decodeLoad(word uint32) Format {
	return FormatLoad{Rd: parseRd(word), Rs1: parseRs1(word), Imm: parseImmTypeI(word)}
}

func decodeS(word uint32) Format {
	return FormatS{Rs1: parseRs1(word), Rs2: parseRs2(word), Imm: parseImmTypeS(word)}
}

func decodeB(word uint32) Format {
	return FormatB{Rs1: parseRs1(word), Rs2: parseRs2(word), Imm: parseImmTypeB(word)}
}

func decodeU(word uint32) Format {
	return FormatU{Rd: parseRd(word), Imm: parseImmTypeU(word)}
}

func decodeJ(word uint32) Format {
	return FormatJ{Rd: parseRd(word), Imm: parseImmTypeJ(word)}
}

func decodeNone(uint32) Format {
	return FormatNone{}
}

// Encoders, the inverse of the decoders above. match supplies the opcode and function bits.

func encodeR(match uint32, rd, rs1, rs2 uint8) uint32 {
	return match | uint32(rs2)<<20 | uint32(rs1)<<15 | uint32(rd)<<7
}

func encodeI(match uint32, rd, rs1 uint8, imm uint64) uint32 {
	return match | uint32(imm&0xFFF)<<20 | uint32(rs1)<<15 | uint32(rd)<<7
}

func encodeS(match uint32, rs1, rs2 uint8, imm uint64) uint32 {
	return match | uint32((imm>>5)&0x7F)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | uint32(imm&0x1F)<<7
}

func encodeB(match uint32, rs1, rs2 uint8, imm uint64) uint32 {
	return match |
		uint32((imm>>12)&1)<<31 |
		uint32((imm>>5)&0x3F)<<25 |
		uint32(rs2)<<20 |
		uint32(rs1)<<15 |
		uint32((imm>>1)&0xF)<<8 |
		uint32((imm>>11)&1)<<7
}

func encodeU(match uint32, rd uint8, imm uint64) uint32 {
	return match | uint32(imm)&0xFFFF_F000 | uint32(rd)<<7
}

func encodeJ(match uint32, rd uint8, imm uint64) uint32 {
	return match |
		uint32((imm>>20)&1)<<31 |
		uint32((imm>>1)&0x3FF)<<21 |
		uint32((imm>>11)&1)<<20 |
		uint32((imm>>12)&0xFF)<<12 |
		uint32(rd)<<7
}
