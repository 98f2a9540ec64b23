package isa

import (
	"github.com/ethereum-optimism/rvtrace/rvgo/emu"
)

// isCompressed reports whether the low 16 bits of word form a compressed (RVC) encoding.
func isCompressed(word uint32) bool {
	return word&3 != 3
}

// DecodeCompressed decodes a 16-bit RVC encoding by expanding it into the
// equivalent 32-bit instruction. The result keeps IsCompressed set so fall-through
// and link addresses advance by 2.
func DecodeCompressed(half uint16, address uint64, xlen emu.Xlen) (Instruction, error) {
	word, ok := expandCompressed(half, xlen)
	if !ok {
		return Instruction{}, &IllegalInstructionError{Word: uint32(half), Address: address, Compressed: true, Xlen: xlen}
	}
	return decode32(word, address, xlen, true)
}

func m(k Kind) uint32 {
	return catalog[k].match
}

// Register fields of the compressed formats. The 3-bit forms address x8..x15.
func cRd(c uint32) uint8       { return uint8((c >> 7) & 0x1F) }
func cRs2(c uint32) uint8      { return uint8((c >> 2) & 0x1F) }
func cRdPrime(c uint32) uint8  { return uint8((c>>2)&7) + 8 }
func cRs1Prime(c uint32) uint8 { return uint8((c>>7)&7) + 8 }

// cImm6 is the signed 6-bit immediate of C.ADDI, C.LI, C.ANDI and friends.
func cImm6(c uint32) uint64 {
	return signExtend(uint64((c>>7)&0x20|(c>>2)&0x1F), 5)
}

func cShamt(c uint32) uint64 {
	return uint64((c>>7)&0x20 | (c>>2)&0x1F)
}

func expandCompressed(half uint16, xlen emu.Xlen) (uint32, bool) {
	c := uint32(half)
	rv64 := xlen == emu.Bit64
	funct3 := (c >> 13) & 7

	switch c & 3 {
	case 0:
		switch funct3 {
		case 0: // C.ADDI4SPN
			imm := (c>>7)&0x30 | (c>>1)&0x3C0 | (c>>4)&0x4 | (c>>2)&0x8
			if imm == 0 {
				return 0, false
			}
			return encodeI(m(ADDI), cRdPrime(c), 2, uint64(imm)), true
		case 2: // C.LW
			imm := (c>>7)&0x38 | (c>>4)&0x4 | (c<<1)&0x40
			return encodeI(m(LW), cRdPrime(c), cRs1Prime(c), uint64(imm)), true
		case 3: // C.LD
			if !rv64 {
				return 0, false
			}
			imm := (c>>7)&0x38 | (c<<1)&0xC0
			return encodeI(m(LD), cRdPrime(c), cRs1Prime(c), uint64(imm)), true
		case 6: // C.SW
			imm := (c>>7)&0x38 | (c>>4)&0x4 | (c<<1)&0x40
			return encodeS(m(SW), cRs1Prime(c), cRdPrime(c), uint64(imm)), true
		case 7: // C.SD
			if !rv64 {
				return 0, false
			}
			imm := (c>>7)&0x38 | (c<<1)&0xC0
			return encodeS(m(SD), cRs1Prime(c), cRdPrime(c), uint64(imm)), true
		}
		// floating point forms and the reserved slot
		return 0, false

	case 1:
		switch funct3 {
		case 0: // C.ADDI, C.NOP
			return encodeI(m(ADDI), cRd(c), cRd(c), cImm6(c)), true
		case 1:
			if !rv64 { // C.JAL
				return encodeJ(m(JAL), 1, cJumpImm(c)), true
			}
			if cRd(c) == 0 {
				return 0, false
			}
			// C.ADDIW
			return encodeI(m(ADDIW), cRd(c), cRd(c), cImm6(c)), true
		case 2: // C.LI
			return encodeI(m(ADDI), cRd(c), 0, cImm6(c)), true
		case 3:
			if cRd(c) == 2 { // C.ADDI16SP
				imm := (c>>3)&0x200 | (c>>2)&0x10 | (c<<1)&0x40 | (c<<4)&0x180 | (c<<3)&0x20
				if imm == 0 {
					return 0, false
				}
				return encodeI(m(ADDI), 2, 2, signExtend(uint64(imm), 9)), true
			}
			// C.LUI
			imm := (c<<5)&0x20000 | (c<<10)&0x1F000
			if imm == 0 {
				return 0, false
			}
			return encodeU(m(LUI), cRd(c), signExtend(uint64(imm), 17)), true
		case 4:
			rd := cRs1Prime(c)
			switch (c >> 10) & 3 {
			case 0: // C.SRLI
				return encodeI(m(SRLI), rd, rd, cShamt(c)), true
			case 1: // C.SRAI
				return encodeI(m(SRAI), rd, rd, cShamt(c)), true
			case 2: // C.ANDI
				return encodeI(m(ANDI), rd, rd, cImm6(c)), true
			}
			rs2 := cRdPrime(c)
			if c&(1<<12) == 0 {
				op := [...]Kind{SUB, XOR, OR, AND}[(c>>5)&3]
				return encodeR(m(op), rd, rd, rs2), true
			}
			if !rv64 {
				return 0, false
			}
			switch (c >> 5) & 3 {
			case 0:
				return encodeR(m(SUBW), rd, rd, rs2), true
			case 1:
				return encodeR(m(ADDW), rd, rd, rs2), true
			}
			return 0, false
		case 5: // C.J
			return encodeJ(m(JAL), 0, cJumpImm(c)), true
		case 6: // C.BEQZ
			return encodeB(m(BEQ), cRs1Prime(c), 0, cBranchImm(c)), true
		case 7: // C.BNEZ
			return encodeB(m(BNE), cRs1Prime(c), 0, cBranchImm(c)), true
		}

	case 2:
		switch funct3 {
		case 0: // C.SLLI
			return encodeI(m(SLLI), cRd(c), cRd(c), cShamt(c)), true
		case 2: // C.LWSP
			if cRd(c) == 0 {
				return 0, false
			}
			imm := (c>>7)&0x20 | (c>>2)&0x1C | (c<<4)&0xC0
			return encodeI(m(LW), cRd(c), 2, uint64(imm)), true
		case 3: // C.LDSP
			if !rv64 || cRd(c) == 0 {
				return 0, false
			}
			imm := (c>>7)&0x20 | (c>>2)&0x18 | (c<<4)&0x1C0
			return encodeI(m(LD), cRd(c), 2, uint64(imm)), true
		case 4:
			rs1, rs2 := cRd(c), cRs2(c)
			if c&(1<<12) == 0 {
				if rs2 == 0 { // C.JR
					if rs1 == 0 {
						return 0, false
					}
					return encodeI(m(JALR), 0, rs1, 0), true
				}
				// C.MV
				return encodeR(m(ADD), rs1, 0, rs2), true
			}
			if rs1 == 0 && rs2 == 0 {
				return m(EBREAK), true
			}
			if rs2 == 0 { // C.JALR
				return encodeI(m(JALR), 1, rs1, 0), true
			}
			// C.ADD
			return encodeR(m(ADD), rs1, rs1, rs2), true
		case 6: // C.SWSP
			imm := (c>>7)&0x3C | (c>>1)&0xC0
			return encodeS(m(SW), 2, cRs2(c), uint64(imm)), true
		case 7: // C.SDSP
			if !rv64 {
				return 0, false
			}
			imm := (c>>7)&0x38 | (c>>1)&0x1C0
			return encodeS(m(SD), 2, cRs2(c), uint64(imm)), true
		}
		return 0, false
	}
	return 0, false
}

func cJumpImm(c uint32) uint64 {
	imm := (c>>1)&0x800 | (c>>7)&0x10 | (c>>1)&0x300 | (c<<2)&0x400 |
		(c>>1)&0x40 | (c<<1)&0x80 | (c>>2)&0xE | (c<<3)&0x20
	return signExtend(uint64(imm), 11)
}

func cBranchImm(c uint32) uint64 {
	imm := (c>>4)&0x100 | (c>>7)&0x18 | (c<<1)&0xC0 | (c>>2)&0x6 | (c<<3)&0x20
	return signExtend(uint64(imm), 8)
}
