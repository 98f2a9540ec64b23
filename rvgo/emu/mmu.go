package emu

import (
	"encoding/binary"
)

type AccessKind uint8

const (
	NoAccess AccessKind = iota
	ReadAccess
	WriteAccess
)

func (k AccessKind) String() string {
	switch k {
	case ReadAccess:
		return "read"
	case WriteAccess:
		return "write"
	default:
		return "none"
	}
}

// RAMAccess records a single primitive memory access.
// For reads Value is the loaded value; for writes Previous holds the overwritten value.
type RAMAccess struct {
	Kind     AccessKind
	Address  uint64
	Width    uint64
	Value    uint64
	Previous uint64
}

// MMU performs the primitive, naturally aligned memory accesses of a hart.
type MMU struct {
	mem  *Memory
	xlen Xlen
}

func NewMMU(mem *Memory, xlen Xlen) *MMU {
	return &MMU{mem: mem, xlen: xlen}
}

func (m *MMU) Memory() *Memory {
	return m.mem
}

func (m *MMU) effectiveAddr(addr uint64) uint64 {
	if m.xlen == Bit32 {
		return addr & 0xFFFF_FFFF
	}
	return addr
}

func (m *MMU) check(addr uint64, width uint64, store bool) error {
	switch width {
	case 1, 2, 4, 8:
	default:
		return &UnsupportedStateError{What: "access width", Value: width}
	}
	if addr&(width-1) != 0 {
		return &MisalignedAccessError{Address: addr, Width: width, Store: store}
	}
	return nil
}

// Load reads width bytes at addr, zero-extended.
func (m *MMU) Load(addr uint64, width uint64) (uint64, RAMAccess, error) {
	addr = m.effectiveAddr(addr)
	if err := m.check(addr, width, false); err != nil {
		return 0, RAMAccess{}, err
	}
	v := m.mem.GetUint(addr, width)
	return v, RAMAccess{Kind: ReadAccess, Address: addr, Width: width, Value: v}, nil
}

// Store writes the low width bytes of value at addr.
func (m *MMU) Store(addr uint64, width uint64, value uint64) (RAMAccess, error) {
	addr = m.effectiveAddr(addr)
	if err := m.check(addr, width, true); err != nil {
		return RAMAccess{}, err
	}
	if width < 8 {
		value &= (uint64(1) << (width * 8)) - 1
	}
	prev := m.mem.GetUint(addr, width)
	m.mem.SetUint(addr, width, value)
	return RAMAccess{Kind: WriteAccess, Address: addr, Width: width, Value: value, Previous: prev}, nil
}

func (m *MMU) LoadByte(addr uint64) (uint64, RAMAccess, error) { return m.Load(addr, 1) }

func (m *MMU) LoadHalfword(addr uint64) (uint64, RAMAccess, error) { return m.Load(addr, 2) }

func (m *MMU) LoadWord(addr uint64) (uint64, RAMAccess, error) { return m.Load(addr, 4) }

func (m *MMU) LoadDoubleword(addr uint64) (uint64, RAMAccess, error) { return m.Load(addr, 8) }

// Fetch reads the 32 bits at addr as an instruction word. Instruction fetch only needs
// 2-byte alignment (compressed encodings) and is not recorded as a RAM access.
func (m *MMU) Fetch(addr uint64) (uint32, error) {
	addr = m.effectiveAddr(addr)
	if addr&1 != 0 {
		return 0, &MisalignedAccessError{Address: addr, Width: 2}
	}
	// the upper half is fetched separately so it wraps like any other address
	var out [4]byte
	m.mem.GetUnaligned(addr, out[:2])
	m.mem.GetUnaligned(m.effectiveAddr(addr+2), out[2:])
	return binary.LittleEndian.Uint32(out[:]), nil
}
