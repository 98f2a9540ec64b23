package isa

import (
	"github.com/holiman/uint256"

	"github.com/ethereum-optimism/rvtrace/rvgo/emu"
)

// binOp computes a register result from two operands at the CPU's width.
// Operands arrive in register representation (sign-extended in 32-bit mode),
// and the result is normalized by the register write.
type binOp func(cpu *emu.CPU, a, b uint64) uint64

func mask32Signed64(v uint64) uint64 {
	return uint64(int64(int32(uint32(v))))
}

func signExtend64To256(v uint64) *uint256.Int {
	out := new(uint256.Int).SetUint64(v)
	if v&(1<<63) != 0 {
		ones := new(uint256.Int).Not(new(uint256.Int))
		out.Or(out, ones.Lsh(ones, 64))
	}
	return out
}

func sdiv[T int32 | int64](x, y T) T {
	if y == 0 {
		return -1
	}
	// the most negative value divided by -1 wraps to itself, as RISC-V requires
	return x / y
}

func srem[T int32 | int64](x, y T) T {
	if y == 0 {
		return x
	}
	return x % y
}

func udiv[T uint32 | uint64](x, y T) T {
	if y == 0 {
		return ^T(0)
	}
	return x / y
}

func urem[T uint32 | uint64](x, y T) T {
	if y == 0 {
		return x
	}
	return x % y
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func addOp(_ *emu.CPU, a, b uint64) uint64 { return a + b }
func subOp(_ *emu.CPU, a, b uint64) uint64 { return a - b }
func xorOp(_ *emu.CPU, a, b uint64) uint64 { return a ^ b }
func orOp(_ *emu.CPU, a, b uint64) uint64  { return a | b }
func andOp(_ *emu.CPU, a, b uint64) uint64 { return a & b }
func mulOp(_ *emu.CPU, a, b uint64) uint64 { return a * b }

func sltOp(_ *emu.CPU, a, b uint64) uint64 { return boolToU64(int64(a) < int64(b)) }

func sltuOp(cpu *emu.CPU, a, b uint64) uint64 {
	return boolToU64(cpu.Unsigned(a) < cpu.Unsigned(b))
}

func sllOp(cpu *emu.CPU, a, b uint64) uint64 {
	return a << (b & cpu.ShiftMask())
}

func srlOp(cpu *emu.CPU, a, b uint64) uint64 {
	// logical: fill with zeroes
	return cpu.Unsigned(a) >> (b & cpu.ShiftMask())
}

func sraOp(cpu *emu.CPU, a, b uint64) uint64 {
	// arithmetic: sign bit is extended
	return uint64(int64(a) >> (b & cpu.ShiftMask()))
}

func mulhOp(cpu *emu.CPU, a, b uint64) uint64 {
	if cpu.Xlen == emu.Bit32 {
		return uint64((int64(a) * int64(b)) >> 32)
	}
	prod := new(uint256.Int).Mul(signExtend64To256(a), signExtend64To256(b))
	return prod.Rsh(prod, 64).Uint64()
}

func mulhsuOp(cpu *emu.CPU, a, b uint64) uint64 {
	if cpu.Xlen == emu.Bit32 {
		return uint64((int64(a) * int64(cpu.Unsigned(b))) >> 32)
	}
	prod := new(uint256.Int).Mul(signExtend64To256(a), uint256.NewInt(b))
	return prod.Rsh(prod, 64).Uint64()
}

func mulhuOp(cpu *emu.CPU, a, b uint64) uint64 {
	if cpu.Xlen == emu.Bit32 {
		return (cpu.Unsigned(a) * cpu.Unsigned(b)) >> 32
	}
	prod := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	return prod.Rsh(prod, 64).Uint64()
}

func divOp(cpu *emu.CPU, a, b uint64) uint64 {
	if cpu.Xlen == emu.Bit32 {
		return uint64(int64(sdiv(int32(a), int32(b))))
	}
	return uint64(sdiv(int64(a), int64(b)))
}

func divuOp(cpu *emu.CPU, a, b uint64) uint64 {
	if cpu.Xlen == emu.Bit32 {
		return uint64(udiv(uint32(a), uint32(b)))
	}
	return udiv(a, b)
}

func remOp(cpu *emu.CPU, a, b uint64) uint64 {
	if cpu.Xlen == emu.Bit32 {
		return uint64(int64(srem(int32(a), int32(b))))
	}
	return uint64(srem(int64(a), int64(b)))
}

func remuOp(cpu *emu.CPU, a, b uint64) uint64 {
	if cpu.Xlen == emu.Bit32 {
		return uint64(urem(uint32(a), uint32(b)))
	}
	return urem(a, b)
}

// 32-bit operations of RV64, results are sign-extended from bit 31.

func addwOp(_ *emu.CPU, a, b uint64) uint64 { return mask32Signed64(a + b) }
func subwOp(_ *emu.CPU, a, b uint64) uint64 { return mask32Signed64(a - b) }
func mulwOp(_ *emu.CPU, a, b uint64) uint64 { return mask32Signed64(a * b) }

func sllwOp(_ *emu.CPU, a, b uint64) uint64 {
	return mask32Signed64(uint64(uint32(a) << (b & 0x1F)))
}

func srlwOp(_ *emu.CPU, a, b uint64) uint64 {
	return mask32Signed64(uint64(uint32(a) >> (b & 0x1F)))
}

func srawOp(_ *emu.CPU, a, b uint64) uint64 {
	return uint64(int64(int32(a) >> (b & 0x1F)))
}

func divwOp(_ *emu.CPU, a, b uint64) uint64 {
	return uint64(int64(sdiv(int32(a), int32(b))))
}

func divuwOp(_ *emu.CPU, a, b uint64) uint64 {
	return mask32Signed64(uint64(udiv(uint32(a), uint32(b))))
}

func remwOp(_ *emu.CPU, a, b uint64) uint64 {
	return uint64(int64(srem(int32(a), int32(b))))
}

func remuwOp(_ *emu.CPU, a, b uint64) uint64 {
	return mask32Signed64(uint64(urem(uint32(a), uint32(b))))
}
