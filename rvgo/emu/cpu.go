package emu

import (
	"io"

	"github.com/ethereum-optimism/rvtrace/rvgo/riscv"
)

// CPU is the architectural state of a single hart, extended with the
// virtual registers used by instruction expansions.
type CPU struct {
	Xlen Xlen   `json:"xlen"`
	PC   uint64 `json:"pc"`

	Registers [riscv.TotalRegisterCount]uint64 `json:"registers"`

	Exited   bool   `json:"exited"`
	ExitCode uint64 `json:"exit"`

	Stdout io.Writer `json:"-"`
	Stderr io.Writer `json:"-"`
}

func NewCPU(xlen Xlen) (*CPU, error) {
	if err := xlen.Validate(); err != nil {
		return nil, err
	}
	return &CPU{Xlen: xlen}, nil
}

// CheckRegister returns an error if reg does not index the register file.
func CheckRegister(reg uint8) error {
	if reg >= riscv.TotalRegisterCount {
		return &UnsupportedStateError{What: "register", Value: reg}
	}
	return nil
}

// Read returns the value of register reg. x0 always reads as zero.
func (c *CPU) Read(reg uint8) uint64 {
	if reg == 0 {
		return 0
	}
	return c.Registers[reg]
}

// Write sets register reg, normalized to the hart width. Writes to x0 are dropped.
func (c *CPU) Write(reg uint8, v uint64) {
	if reg == 0 {
		return
	}
	c.Registers[reg] = c.SignExtend(v)
}

// SignExtend normalizes v to the register representation:
// in 32-bit mode values are kept sign-extended from bit 31.
func (c *CPU) SignExtend(v uint64) uint64 {
	if c.Xlen == Bit32 {
		return uint64(int64(int32(uint32(v))))
	}
	return v
}

// Unsigned returns the xlen-bit unsigned view of v.
func (c *CPU) Unsigned(v uint64) uint64 {
	if c.Xlen == Bit32 {
		return v & 0xFFFF_FFFF
	}
	return v
}

// ShiftMask is the mask applied to shift amounts, 31 or 63.
func (c *CPU) ShiftMask() uint64 {
	return uint64(c.Xlen) - 1
}

// ClearVirtualRegisters zeroes the scratch space so no value survives an expansion.
func (c *CPU) ClearVirtualRegisters() {
	for i := riscv.RegisterCount; i < riscv.TotalRegisterCount; i++ {
		c.Registers[i] = 0
	}
}

// normalize puts registers that did not come through Write, e.g. from a state file,
// into register representation: x0 is zero, 32-bit values are sign-extended,
// the virtual slots are empty and PC is within the address space.
func (c *CPU) normalize() {
	c.Registers[0] = 0
	for i := 1; i < riscv.RegisterCount; i++ {
		c.Registers[i] = c.SignExtend(c.Registers[i])
	}
	c.ClearVirtualRegisters()
	c.PC = c.Unsigned(c.PC)
}

// ArchRegisters returns a copy of the architectural register file.
func (c *CPU) ArchRegisters() (out [riscv.RegisterCount]uint64) {
	copy(out[:], c.Registers[:riscv.RegisterCount])
	return out
}
