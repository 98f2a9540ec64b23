package emu

import (
	"fmt"
	"io"

	"github.com/ethereum-optimism/rvtrace/rvgo/riscv"
)

// MaxWriteCount caps the bytes a single write call transfers. Longer writes
// complete short and report the count written, as write(2) permits.
const MaxWriteCount = 64 * 1024

// Syscall services an ECALL. Only the calls a bare-metal guest needs to report
// its result are supported: exit, exit_group and write to stdout/stderr.
func Syscall(cpu *CPU, mem *Memory) error {
	a7 := cpu.Read(riscv.RegA7)
	switch a7 {
	case riscv.SysExit, riscv.SysExitGroup:
		cpu.ExitCode = cpu.Read(riscv.RegA0)
		cpu.Exited = true
		// program stops here, no need to change registers.
	case riscv.SysWrite:
		fd := cpu.Read(riscv.RegA0)                  // A0 = fd
		addr := cpu.Unsigned(cpu.Read(riscv.RegA1))  // A1 = *buf addr
		count := cpu.Unsigned(cpu.Read(riscv.RegA2)) // A2 = count
		var w io.Writer
		switch fd {
		case riscv.FdStdout:
			w = cpu.Stdout
		case riscv.FdStderr:
			w = cpu.Stderr
		default:
			cpu.Write(riscv.RegA0, ^uint64(0)) // -1 (writing error)
			return nil
		}
		if count > MaxWriteCount {
			count = MaxWriteCount
		}
		if w != nil {
			src := mem.readMemoryRangeMasked(addr, count, cpu.Unsigned(^uint64(0)))
			if _, err := io.Copy(w, src); err != nil {
				return fmt.Errorf("fd %d writing err: %w", fd, err)
			}
		}
		cpu.Write(riscv.RegA0, count) // write completes in a single instruction step, possibly short
	default:
		return &UnsupportedSyscallError{Number: a7}
	}
	return nil
}
