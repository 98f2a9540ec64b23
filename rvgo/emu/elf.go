package emu

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"
	"sort"
)

// DefaultStackPointer is where LoadELF places the initial stack for each width.
func DefaultStackPointer(xlen Xlen) uint64 {
	if xlen == Bit32 {
		return 0x7FFF_F000
	}
	return 0x10_00_00_00_00_00_00_00
}

// LoadELF maps the loadable segments of a RISC-V ELF binary into a fresh state.
// The width mode follows the ELF class.
func LoadELF(f *elf.File) (*State, error) {
	var xlen Xlen
	switch f.Class {
	case elf.ELFCLASS32:
		xlen = Bit32
	case elf.ELFCLASS64:
		xlen = Bit64
	default:
		return nil, &UnsupportedStateError{What: "elf class", Value: f.Class.String()}
	}
	out, err := NewState(xlen)
	if err != nil {
		return nil, err
	}

	// statically prepare VM state:
	out.CPU.PC = f.Entry
	out.CPU.Write(2, DefaultStackPointer(xlen))

	for i, prog := range f.Progs {
		if prog.Type == 0x70000003 {
			// RISC-V reuses the MIPS_ABIFLAGS program type to type its segment with the `.riscv.attributes` section.
			// See: https://github.com/riscv-non-isa/riscv-elf-psabi-doc/blob/master/riscv-elf.adoc#attributes
			// This section has 0 mem size because it is not loaded into memory.
			continue
		}
		if prog.Type != elf.PT_LOAD {
			continue
		}

		r := io.Reader(io.NewSectionReader(prog, 0, int64(prog.Filesz)))
		if prog.Filesz != prog.Memsz {
			if prog.Filesz < prog.Memsz {
				r = io.MultiReader(r, bytes.NewReader(make([]byte, prog.Memsz-prog.Filesz)))
			} else {
				return nil, fmt.Errorf("invalid PT_LOAD program segment %d, file size (%d) > mem size (%d)", i, prog.Filesz, prog.Memsz)
			}
		}

		if err := out.Memory.SetMemoryRange(prog.Vaddr, r); err != nil {
			return nil, fmt.Errorf("failed to read program segment %d: %w", i, err)
		}
	}
	return out, nil
}

// LoadProgram places raw little-endian instruction bytes at addr and points the PC at it.
func LoadProgram(state *State, addr uint64, program []byte) error {
	if err := state.Memory.SetMemoryRange(addr, bytes.NewReader(program)); err != nil {
		return fmt.Errorf("failed to load program at 0x%x: %w", addr, err)
	}
	state.CPU.PC = addr
	return nil
}

type SortedSymbols []elf.Symbol

// FindSymbol finds the symbol that intersects with the given addr, or nil if none exists
func (s SortedSymbols) FindSymbol(addr uint64) elf.Symbol {
	// find first symbol with higher start. Or n if no such symbol exists
	i := sort.Search(len(s), func(i int) bool {
		return s[i].Value > addr
	})
	if i == 0 {
		return elf.Symbol{Name: "!start", Value: 0}
	}
	out := &s[i-1]
	if out.Value+out.Size < addr { // addr may be pointing to a gap between symbols
		return elf.Symbol{Name: "!gap", Value: addr}
	}
	return *out
}

func Symbols(f *elf.File) (SortedSymbols, error) {
	symbols, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("failed to read symbols data: %w", err)
	}
	// not every ELF has sorted symbols.
	out := make(SortedSymbols, len(symbols))
	copy(out, symbols)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Value < out[j].Value
	})
	return out, nil
}
